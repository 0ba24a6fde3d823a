// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package computetest provides an in-memory compute.Device for tests.
//
// The device records every call, counts releases per handle, and can be
// told to fail any single operation. Enqueued work runs on Finish through
// an optional CPU kernel function so tests can check pixel results.
package computetest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gopromax/compute"
)

// ErrInjected is the error returned by injected faults.
var ErrInjected = errors.New("computetest: injected failure")

// KernelFunc runs an entry point on the CPU. args holds the destination,
// front and rear planes in argument order.
type KernelFunc func(entry string, ws compute.WorkSize, args [compute.NumArgs]*Plane)

// Faults selects operations that fail. Counters are 1-based: FailEnqueue = 2
// fails the second Enqueue call on any queue. Zero disables a fault.
type Faults struct {
	Compile    bool
	Queue      bool
	Kernel     bool
	AllocPlane int
	Enqueue    int
	Finish     bool
}

// Dispatch is one recorded Enqueue.
type Dispatch struct {
	Entry    string
	WorkSize compute.WorkSize
	Args     [compute.NumArgs]*Plane
}

// Device is a recording compute.Device.
type Device struct {
	mu sync.Mutex

	// Faults is consulted on every call.
	Faults Faults

	// Kernel, when set, runs dispatches on Finish.
	Kernel KernelFunc

	// FinishDelay, when set, is slept by Finish with the number of the
	// Finish call (1-based) as argument.
	FinishDelay func(call int) time.Duration

	// Events is the ordered log of calls, e.g. "compile", "enqueue gopromax_stack 8x4".
	Events []string

	Dispatches []Dispatch

	programs []*Program
	queues   []*Queue
	kernels  []*Kernel
	planes   []*Plane

	allocs   int
	enqueues int
	finishes int
}

var _ compute.Device = (*Device)(nil)

// NewDevice returns an empty device.
func NewDevice() *Device { return &Device{} }

// Name implements compute.Device.
func (d *Device) Name() string { return "computetest" }

func (d *Device) logf(format string, args ...any) {
	d.Events = append(d.Events, fmt.Sprintf(format, args...))
}

// CompileProgram implements compute.Device.
func (d *Device) CompileProgram(src compute.Source) (compute.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logf("compile %s", src.Label)
	if d.Faults.Compile {
		return nil, fmt.Errorf("compile %q: %w", src.Label, ErrInjected)
	}
	p := &Program{dev: d, Source: src}
	d.programs = append(d.programs, p)
	return p, nil
}

// CreateQueue implements compute.Device.
func (d *Device) CreateQueue() (compute.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logf("create queue")
	if d.Faults.Queue {
		return nil, fmt.Errorf("create queue: %w", ErrInjected)
	}
	q := &Queue{dev: d}
	d.queues = append(d.queues, q)
	return q, nil
}

// CreateKernel implements compute.Device.
func (d *Device) CreateKernel(p compute.Program, entry string) (compute.Kernel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logf("create kernel %s", entry)
	prog, ok := p.(*Program)
	if !ok || prog.dev != d {
		return nil, compute.ErrForeignHandle
	}
	if prog.released > 0 {
		return nil, compute.ErrReleased
	}
	if d.Faults.Kernel {
		return nil, fmt.Errorf("create kernel %q: %w", entry, ErrInjected)
	}
	k := &Kernel{dev: d, entry: entry}
	d.kernels = append(d.kernels, k)
	return k, nil
}

// AllocPlane implements compute.Device.
func (d *Device) AllocPlane(w, h, step int) (compute.Plane, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allocs++
	d.logf("alloc %dx%d", w, h)
	if d.Faults.AllocPlane == d.allocs {
		return nil, fmt.Errorf("alloc plane %dx%d: %w", w, h, ErrInjected)
	}
	if step < 1 {
		step = 1
	}
	p := &Plane{dev: d, W: w, H: h, Step: step, Data: make([]uint32, w*h*step)}
	d.planes = append(d.planes, p)
	return p, nil
}

// Programs returns every program created so far.
func (d *Device) Programs() []*Program {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Program(nil), d.programs...)
}

// Queues returns every queue created so far.
func (d *Device) Queues() []*Queue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Queue(nil), d.queues...)
}

// Kernels returns every kernel created so far.
func (d *Device) Kernels() []*Kernel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Kernel(nil), d.kernels...)
}

// Planes returns every plane allocated so far.
func (d *Device) Planes() []*Plane {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Plane(nil), d.planes...)
}

// LivePlanes returns the number of planes not yet released.
func (d *Device) LivePlanes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, p := range d.planes {
		if p.released == 0 {
			n++
		}
	}
	return n
}

// Program is a recorded compute.Program.
type Program struct {
	dev      *Device
	Source   compute.Source
	released int
}

// Release implements compute.Program.
func (p *Program) Release() {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	p.released++
	p.dev.logf("release program")
}

// Released returns how many times Release was called.
func (p *Program) Released() int {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return p.released
}

// Kernel is a recorded compute.Kernel.
type Kernel struct {
	dev      *Device
	entry    string
	args     [compute.NumArgs]*Plane
	released int
}

// Name implements compute.Kernel.
func (k *Kernel) Name() string { return k.entry }

// SetArg implements compute.Kernel.
func (k *Kernel) SetArg(index int, p compute.Plane) error {
	k.dev.mu.Lock()
	defer k.dev.mu.Unlock()
	if index < 0 || index >= compute.NumArgs {
		return fmt.Errorf("%w: %d", compute.ErrArgIndex, index)
	}
	plane, ok := p.(*Plane)
	if !ok || plane.dev != k.dev {
		return compute.ErrForeignHandle
	}
	k.args[index] = plane
	return nil
}

// Release implements compute.Kernel.
func (k *Kernel) Release() {
	k.dev.mu.Lock()
	defer k.dev.mu.Unlock()
	k.released++
	k.dev.logf("release kernel %s", k.entry)
}

// Released returns how many times Release was called.
func (k *Kernel) Released() int {
	k.dev.mu.Lock()
	defer k.dev.mu.Unlock()
	return k.released
}

// Queue is a recorded compute.Queue.
type Queue struct {
	dev      *Device
	pending  []Dispatch
	released int
}

// Enqueue implements compute.Queue.
func (q *Queue) Enqueue(k compute.Kernel, ws compute.WorkSize) error {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	q.dev.enqueues++
	q.dev.logf("enqueue %s %s", k.Name(), ws)
	if q.released > 0 {
		return compute.ErrReleased
	}
	if q.dev.Faults.Enqueue == q.dev.enqueues {
		return fmt.Errorf("enqueue %s: %w", k.Name(), ErrInjected)
	}
	kern, ok := k.(*Kernel)
	if !ok || kern.dev != q.dev {
		return compute.ErrForeignHandle
	}
	if ws.Empty() {
		return compute.ErrEmptyWorkSize
	}
	for _, a := range kern.args {
		if a == nil {
			return compute.ErrArgsUnset
		}
	}
	d := Dispatch{Entry: kern.entry, WorkSize: ws, Args: kern.args}
	q.pending = append(q.pending, d)
	q.dev.Dispatches = append(q.dev.Dispatches, d)
	return nil
}

// Finish implements compute.Queue.
func (q *Queue) Finish() error {
	q.dev.mu.Lock()
	q.dev.finishes++
	call := q.dev.finishes
	q.dev.logf("finish")
	pending := q.pending
	q.pending = nil
	fail := q.dev.Faults.Finish
	run := q.dev.Kernel
	delay := q.dev.FinishDelay
	q.dev.mu.Unlock()

	if delay != nil {
		time.Sleep(delay(call))
	}
	if fail {
		return fmt.Errorf("finish: %w", ErrInjected)
	}
	if run != nil {
		for _, d := range pending {
			run(d.Entry, d.WorkSize, d.Args)
		}
	}
	return nil
}

// Release implements compute.Queue.
func (q *Queue) Release() {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	q.released++
	q.dev.logf("release queue")
}

// Released returns how many times Release was called.
func (q *Queue) Released() int {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	return q.released
}

// Plane is an in-memory compute.Plane holding one uint32 per sample.
type Plane struct {
	dev      *Device
	W, H     int
	Step     int
	Data     []uint32
	released int
}

// Width implements compute.Plane.
func (p *Plane) Width() int { return p.W }

// Height implements compute.Plane.
func (p *Plane) Height() int { return p.H }

// Release implements compute.Plane.
func (p *Plane) Release() {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	p.released++
}

// Released returns how many times Release was called.
func (p *Plane) Released() int {
	p.dev.mu.Lock()
	defer p.dev.mu.Unlock()
	return p.released
}
