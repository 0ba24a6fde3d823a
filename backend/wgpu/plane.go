package wgpu

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gopromax/compute"
)

// Plane is a storage buffer holding w×h×step u32 samples.
type Plane struct {
	dev  *Device
	w, h int
	step int
	size uint64

	mu       sync.Mutex
	buf      hal.Buffer
	released bool
}

// AllocPlane implements compute.Device.
func (d *Device) AllocPlane(w, h, step int) (compute.Plane, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("wgpu: invalid plane size %dx%d", w, h)
	}
	if step < 1 {
		step = 1
	}
	size := uint64(w) * uint64(h) * uint64(step) * 4
	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: fmt.Sprintf("plane_%dx%d", w, h),
		Size:  size,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create plane buffer %dx%d: %w", w, h, err)
	}
	return &Plane{dev: d, w: w, h: h, step: step, size: size, buf: buf}, nil
}

// Width implements compute.Plane.
func (p *Plane) Width() int { return p.w }

// Height implements compute.Plane.
func (p *Plane) Height() int { return p.h }

// Step returns the samples per pixel.
func (p *Plane) Step() int { return p.step }

// Samples returns the number of u32 samples in the plane.
func (p *Plane) Samples() int { return p.w * p.h * p.step }

func (p *Plane) buffer() (hal.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, compute.ErrReleased
	}
	return p.buf, nil
}

// Release implements compute.Plane.
func (p *Plane) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return
	}
	p.released = true
	if p.dev.live() {
		p.dev.device.DestroyBuffer(p.buf)
	}
	p.buf = nil
}

func (d *Device) plane(p compute.Plane) (*Plane, hal.Buffer, error) {
	plane, ok := p.(*Plane)
	if !ok || plane.dev != d {
		return nil, nil, compute.ErrForeignHandle
	}
	buf, err := plane.buffer()
	if err != nil {
		return nil, nil, err
	}
	return plane, buf, nil
}

// Upload writes samples into p. len(samples) must equal the plane's
// sample count.
func (d *Device) Upload(p compute.Plane, samples []uint32) error {
	if err := d.check(); err != nil {
		return err
	}
	plane, buf, err := d.plane(p)
	if err != nil {
		return err
	}
	if len(samples) != plane.Samples() {
		return fmt.Errorf("%w: got %d, plane holds %d", ErrSampleCount, len(samples), plane.Samples())
	}
	d.queue.WriteBuffer(buf, 0, encodeWords(samples))
	return nil
}

// Download reads the samples of p back to the host. It waits for the copy
// to complete, so work writing p must have finished.
func (d *Device) Download(p compute.Plane) ([]uint32, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	plane, buf, err := d.plane(p)
	if err != nil {
		return nil, err
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "plane_readback",
		Size:  plane.size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer func() {
		if d.live() {
			d.device.DestroyBuffer(staging)
		}
	}()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "plane_readback"})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("plane_readback"); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	encoder.CopyBufferToBuffer(buf, staging, []hal.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      plane.size,
	}})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer d.freeCommandBuffer(cmdBuf)

	if err := d.submitAndWait(cmdBuf); err != nil {
		return nil, err
	}

	readback := make([]byte, plane.size)
	if err := d.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return decodeWords(readback), nil
}

// submitAndWait submits cmdBuf and waits for the GPU to finish it. On
// ErrFenceTimeout the device is marked lost.
func (d *Device) submitAndWait(cmdBuf hal.CommandBuffer) error {
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, d.opts.fenceTimeout)
	if err != nil {
		d.device.DestroyFence(fence)
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	if !ok {
		d.markLost()
		slogger().Error("wgpu: GPU did not signal, device lost", "timeout", d.opts.fenceTimeout)
		return fmt.Errorf("%w after %v", ErrFenceTimeout, d.opts.fenceTimeout)
	}
	d.device.DestroyFence(fence)
	return nil
}

func (d *Device) freeCommandBuffer(cmdBuf hal.CommandBuffer) {
	if d.live() {
		d.device.FreeCommandBuffer(cmdBuf)
	}
}

func encodeWords(words []uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

func decodeWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return words
}
