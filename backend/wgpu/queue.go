package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gopromax/compute"
)

// paramsSize is the byte size of the plane geometry uniform: eight u32
// values, the last one padding.
const paramsSize = 32

// params returns the plane geometry uniform for one dispatch.
func params(args [compute.NumArgs]*Plane) []byte {
	dst, front, rear := args[compute.ArgDestination], args[compute.ArgFront], args[compute.ArgRear]
	return encodeWords([]uint32{
		uint32(dst.w), uint32(dst.h),
		uint32(front.w), uint32(front.h),
		uint32(rear.w), uint32(rear.h),
		uint32(dst.step),
		0,
	})
}

// workgroups returns the number of workgroups covering n invocations.
func workgroups(n int) uint32 {
	return uint32((n + workgroupSize - 1) / workgroupSize)
}

// dispatchResources tracks per-dispatch GPU resources for cleanup.
type dispatchResources struct {
	bindGroup hal.BindGroup
	uniform   hal.Buffer
}

// Queue records dispatches into one pending command encoder.
type Queue struct {
	dev *Device

	mu       sync.Mutex
	encoder  hal.CommandEncoder
	pending  []dispatchResources
	released bool
}

// CreateQueue implements compute.Device.
func (d *Device) CreateQueue() (compute.Queue, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return &Queue{dev: d}, nil
}

// Enqueue implements compute.Queue. The kernel's arguments are captured
// in a bind group, so later SetArg calls do not affect this dispatch.
func (q *Queue) Enqueue(k compute.Kernel, ws compute.WorkSize) error {
	kern, ok := k.(*Kernel)
	if !ok || kern.dev != q.dev {
		return compute.ErrForeignHandle
	}
	if err := q.dev.check(); err != nil {
		return err
	}
	if ws.Empty() {
		return fmt.Errorf("%w: %s", compute.ErrEmptyWorkSize, ws)
	}
	args, err := kern.snapshot()
	if err != nil {
		return err
	}
	var entries []gputypes.BindGroupEntry
	for i, a := range args {
		buf, err := a.buffer()
		if err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
		entries = append(entries, bufferEntry(uint32(i), buf))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return compute.ErrReleased
	}
	dev := q.dev.device

	if q.encoder == nil {
		encoder, err := dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gopromax"})
		if err != nil {
			return fmt.Errorf("wgpu: create command encoder: %w", err)
		}
		if err := encoder.BeginEncoding("gopromax"); err != nil {
			return fmt.Errorf("wgpu: begin encoding: %w", err)
		}
		q.encoder = encoder
	}

	uniform, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: kern.entry + "_params",
		Size:  paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("wgpu: create params buffer: %w", err)
	}
	q.dev.queue.WriteBuffer(uniform, 0, params(args))
	entries = append(entries, bufferEntry(bindingParams, uniform))

	bg, err := dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   kern.entry + "_bg",
		Layout:  kern.bgLayout,
		Entries: entries,
	})
	if err != nil {
		dev.DestroyBuffer(uniform)
		return fmt.Errorf("wgpu: create bind group for %s: %w", kern.entry, err)
	}
	q.pending = append(q.pending, dispatchResources{bindGroup: bg, uniform: uniform})

	pass := q.encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: kern.entry})
	pass.SetPipeline(kern.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(workgroups(ws.X), workgroups(ws.Y), 1)
	pass.End()

	slogger().Debug("wgpu: dispatch recorded",
		"entry", kern.entry,
		"work", ws.String(),
		"workgroups", fmt.Sprintf("%dx%d", workgroups(ws.X), workgroups(ws.Y)))
	return nil
}

func bufferEntry(binding uint32, buf hal.Buffer) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: 0,
			Size:   0, // 0 = entire buffer
		},
	}
}

// Finish implements compute.Queue. It submits the recorded dispatches and
// blocks until the GPU has completed them.
//
// After ErrFenceTimeout the device is lost: the dispatch resources stay
// alive, later calls on the device fail with ErrDeviceLost, and the device
// must be closed.
func (q *Queue) Finish() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.encoder == nil {
		return nil
	}
	encoder := q.encoder
	q.encoder = nil
	defer q.cleanup()
	if err := q.dev.check(); err != nil {
		encoder.DiscardEncoding()
		return err
	}

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer q.dev.freeCommandBuffer(cmdBuf)

	n := len(q.pending)
	if err := q.dev.submitAndWait(cmdBuf); err != nil {
		return err
	}
	slogger().Debug("wgpu: queue finished", "dispatches", n)
	return nil
}

// cleanup destroys the per-dispatch resources. The caller holds q.mu.
func (q *Queue) cleanup() {
	if q.dev.live() {
		dev := q.dev.device
		for _, r := range q.pending {
			dev.DestroyBindGroup(r.bindGroup)
			dev.DestroyBuffer(r.uniform)
		}
	}
	q.pending = nil
}

// Release implements compute.Queue. Recorded but unfinished work is
// discarded.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return
	}
	q.released = true
	if q.encoder != nil {
		q.encoder.DiscardEncoding()
		q.encoder = nil
	}
	q.cleanup()
}
