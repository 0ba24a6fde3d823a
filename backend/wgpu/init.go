package wgpu

import (
	"sync"

	// Register the Vulkan HAL backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/gopromax/backend"
	"github.com/gogpu/gopromax/compute"
)

var (
	factoryMu   sync.Mutex
	factoryOpts []Option
)

// Configure sets the options used when the backend registry opens a
// device. It does not affect devices already open.
func Configure(opts ...Option) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryOpts = append([]Option(nil), opts...)
}

func open() (compute.Device, error) {
	factoryMu.Lock()
	opts := factoryOpts
	factoryMu.Unlock()
	d, err := Open(opts...)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func init() {
	backend.Register(backend.BackendWGPU, open)
}
