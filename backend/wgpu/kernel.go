package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gopromax/compute"
)

// Kernel is a compute pipeline for one entry point of a Program.
type Kernel struct {
	dev      *Device
	entry    string
	pipeline hal.ComputePipeline
	bgLayout hal.BindGroupLayout

	mu       sync.Mutex
	args     [compute.NumArgs]*Plane
	released bool
}

// CreateKernel implements compute.Device.
func (d *Device) CreateKernel(p compute.Program, entry string) (compute.Kernel, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	prog, ok := p.(*Program)
	if !ok || prog.dev != d {
		return nil, compute.ErrForeignHandle
	}

	prog.mu.Lock()
	defer prog.mu.Unlock()
	if prog.released {
		return nil, compute.ErrReleased
	}

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  entry,
		Layout: prog.pipelineLayout,
		Compute: hal.ComputeState{
			Module:     prog.module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create compute pipeline %s: %w", entry, err)
	}
	slogger().Debug("wgpu: kernel created", "entry", entry, "program", prog.label)
	return &Kernel{dev: d, entry: entry, pipeline: pipeline, bgLayout: prog.bgLayout}, nil
}

// Name implements compute.Kernel.
func (k *Kernel) Name() string { return k.entry }

// SetArg implements compute.Kernel.
func (k *Kernel) SetArg(index int, p compute.Plane) error {
	if index < 0 || index >= compute.NumArgs {
		return fmt.Errorf("%w: %d", compute.ErrArgIndex, index)
	}
	plane, ok := p.(*Plane)
	if !ok || plane.dev != k.dev {
		return compute.ErrForeignHandle
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return compute.ErrReleased
	}
	k.args[index] = plane
	return nil
}

// snapshot returns the current arguments.
func (k *Kernel) snapshot() ([compute.NumArgs]*Plane, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return k.args, compute.ErrReleased
	}
	for _, a := range k.args {
		if a == nil {
			return k.args, compute.ErrArgsUnset
		}
	}
	return k.args, nil
}

// Release implements compute.Kernel.
func (k *Kernel) Release() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return
	}
	k.released = true
	k.args = [compute.NumArgs]*Plane{}
	if k.dev.live() {
		k.dev.device.DestroyComputePipeline(k.pipeline)
	}
	k.pipeline = nil
}
