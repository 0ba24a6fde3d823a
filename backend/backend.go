package backend

import (
	"errors"

	"github.com/gogpu/gopromax/compute"
)

// Backend name constants.
const (
	// BackendWGPU is the name of the Pure Go GPU backend (gogpu/wgpu HAL).
	BackendWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered, or no registered backend could open a device.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Factory opens a compute device. Each call returns a new device owned by
// the caller.
type Factory func() (compute.Device, error)

// Closer is implemented by devices that hold resources beyond their
// handles. Callers should close such devices when done.
type Closer interface {
	Close() error
}

// Close closes dev if it implements Closer.
func Close(dev compute.Device) error {
	if c, ok := dev.(Closer); ok {
		return c.Close()
	}
	return nil
}
