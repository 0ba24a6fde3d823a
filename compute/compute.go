// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compute defines the GPU capability the stitcher is written against.
//
// The interfaces mirror the handful of operations a dual-input compute
// filter needs from a GPU API: compile a program, create a command queue and
// a kernel bound to a named entry point, bind plane buffers as kernel
// arguments, enqueue a 2-D dispatch, and wait for the queue to drain.
//
//	            +------------------+
//	            |     gopromax     |
//	            | (Stitcher, bind) |
//	            +--------+---------+
//	                     |
//	          +----------+-----------+
//	          |                      |
//	+---------v--------+   +---------v---------+
//	|   backend/wgpu   |   |    computetest    |
//	|  (hal.Device)    |   | (recording fake)  |
//	+------------------+   +-------------------+
//
// # Resource Management
//
// Every handle returned by a [Device] is owned by the caller and must be
// released with its Release method. Release is idempotent in every
// implementation: releasing a handle twice is a no-op.
//
// # Kernel Arguments
//
// Stitch kernels take three plane arguments in a fixed order, see
// [ArgDestination], [ArgFront] and [ArgRear]. The order is a contract with
// the kernel source and is never permuted.
package compute

import (
	"errors"
	"fmt"
)

// Kernel argument indices.
const (
	ArgDestination = 0
	ArgFront       = 1
	ArgRear        = 2

	// NumArgs is the number of plane arguments a stitch kernel takes.
	NumArgs = 3
)

// Entry points exposed by the stitch program.
const (
	EntryStack           = "gopromax_stack"
	EntryEquirectangular = "gopromax_equirectangular"
)

// Errors shared by compute implementations.
var (
	// ErrReleased is returned when a released handle is used.
	ErrReleased = errors.New("compute: handle already released")

	// ErrArgIndex is returned by Kernel.SetArg for an index outside [0, NumArgs).
	ErrArgIndex = errors.New("compute: kernel argument index out of range")

	// ErrArgsUnset is returned by Queue.Enqueue when a kernel argument was
	// never bound.
	ErrArgsUnset = errors.New("compute: kernel arguments not set")

	// ErrEmptyWorkSize is returned when a dispatch covers no work items.
	ErrEmptyWorkSize = errors.New("compute: empty work size")

	// ErrForeignHandle is returned when a handle created by another device
	// is passed in.
	ErrForeignHandle = errors.New("compute: handle belongs to another device")
)

// Source is the text of a compute program.
type Source struct {
	// Label is an optional debug label.
	Label string

	// WGSL is the program text.
	WGSL string
}

// Device creates compute resources.
type Device interface {
	// Name returns a short human readable device name.
	Name() string

	// CompileProgram compiles src into a program that kernels can be
	// created from.
	CompileProgram(src Source) (Program, error)

	// CreateQueue creates an in-order command queue.
	CreateQueue() (Queue, error)

	// CreateKernel creates a kernel for the named entry point of p.
	CreateKernel(p Program, entry string) (Kernel, error)

	// AllocPlane allocates a GPU buffer for a w×h plane with step samples
	// per pixel.
	AllocPlane(w, h, step int) (Plane, error)
}

// Program is a compiled compute program.
type Program interface {
	Release()
}

// Kernel is a compiled entry point with its current argument bindings.
type Kernel interface {
	// Name returns the entry point name.
	Name() string

	// SetArg binds p to argument index. Bindings persist until changed and
	// are captured by each Enqueue.
	SetArg(index int, p Plane) error

	Release()
}

// Queue is an in-order command queue.
type Queue interface {
	// Enqueue records one dispatch of k over ws using k's current
	// arguments. Work may not start until Finish.
	Enqueue(k Kernel, ws WorkSize) error

	// Finish blocks until all enqueued work has completed on the device.
	Finish() error

	Release()
}

// Plane is one GPU-resident image plane.
type Plane interface {
	// Width returns the plane width in pixels.
	Width() int

	// Height returns the plane height in pixels.
	Height() int

	Release()
}

// WorkSize is a 2-D global work size, one work item per pixel.
type WorkSize struct {
	X, Y int
}

// Empty reports whether ws covers no work items.
func (ws WorkSize) Empty() bool { return ws.X <= 0 || ws.Y <= 0 }

func (ws WorkSize) String() string { return fmt.Sprintf("%dx%d", ws.X, ws.Y) }

// WorkSizeFromPlane returns the work size covering every pixel of p.
func WorkSizeFromPlane(p Plane) (WorkSize, error) {
	if p == nil {
		return WorkSize{}, fmt.Errorf("%w: nil plane", ErrEmptyWorkSize)
	}
	ws := WorkSize{X: p.Width(), Y: p.Height()}
	if ws.Empty() {
		return WorkSize{}, fmt.Errorf("%w: plane is %s", ErrEmptyWorkSize, ws)
	}
	return ws, nil
}

// Release releases every non-nil handle in order. It is the structured
// counterpart of releasing each handle on its own failure branch.
func Release(handles ...interface{ Release() }) {
	for _, h := range handles {
		if h == nil {
			continue
		}
		h.Release()
	}
}
