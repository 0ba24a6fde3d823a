package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gopromax/compute"
)

// Bindings of the stitch program.
const (
	bindingDestination = 0
	bindingFront       = 1
	bindingRear        = 2
	bindingParams      = 3
)

// workgroupSize is the @workgroup_size of every entry point in x and y.
const workgroupSize = 8

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, err
	}

	// SPIR-V is little-endian 32-bit words
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}

// bindGroupLayoutEntries returns the fixed stitch kernel layout.
func bindGroupLayoutEntries() []gputypes.BindGroupLayoutEntry {
	buffer := func(binding uint32, typ gputypes.BufferBindingType) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}
	return []gputypes.BindGroupLayoutEntry{
		buffer(bindingDestination, gputypes.BufferBindingTypeStorage),
		buffer(bindingFront, gputypes.BufferBindingTypeReadOnlyStorage),
		buffer(bindingRear, gputypes.BufferBindingTypeReadOnlyStorage),
		buffer(bindingParams, gputypes.BufferBindingTypeUniform),
	}
}

// Program is a compiled shader module with the stitch pipeline layout.
type Program struct {
	dev   *Device
	label string

	mu             sync.Mutex
	released       bool
	module         hal.ShaderModule
	bgLayout       hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
}

// CompileProgram implements compute.Device.
func (d *Device) CompileProgram(src compute.Source) (compute.Program, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	spirv, err := compileSPIRV(src.WGSL)
	if err != nil {
		return nil, fmt.Errorf("wgpu: compile %s: %w", src.Label, err)
	}

	p := &Program{dev: d, label: src.Label}
	p.module, err = d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  src.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create shader module %s: %w", src.Label, err)
	}
	p.bgLayout, err = d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   src.Label + "_bgl",
		Entries: bindGroupLayoutEntries(),
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("wgpu: create bind group layout %s: %w", src.Label, err)
	}
	p.pipelineLayout, err = d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            src.Label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgLayout},
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("wgpu: create pipeline layout %s: %w", src.Label, err)
	}

	slogger().Debug("wgpu: program compiled",
		"label", src.Label,
		"wgsl_bytes", len(src.WGSL),
		"spirv_words", len(spirv))
	return p, nil
}

// Release destroys the pipeline layout, bind group layout and shader
// module.
func (p *Program) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	if !p.dev.live() {
		p.pipelineLayout, p.bgLayout, p.module = nil, nil, nil
		return
	}

	dev := p.dev.device
	if p.pipelineLayout != nil {
		dev.DestroyPipelineLayout(p.pipelineLayout)
		p.pipelineLayout = nil
	}
	if p.bgLayout != nil {
		dev.DestroyBindGroupLayout(p.bgLayout)
		p.bgLayout = nil
	}
	if p.module != nil {
		dev.DestroyShaderModule(p.module)
		p.module = nil
	}
}
