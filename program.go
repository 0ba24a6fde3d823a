package gopromax

import (
	"fmt"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/frame"
	"github.com/gogpu/gopromax/pixfmt"
)

// ProgramState reports whether a Stitcher has bound its GPU program.
type ProgramState int

// Program states. A Stitcher moves from ProgramUnbound to ProgramBound at
// most once.
const (
	ProgramUnbound ProgramState = iota
	ProgramBound
)

func (s ProgramState) String() string {
	if s == ProgramBound {
		return "bound"
	}
	return "unbound"
}

// binding holds the GPU resources created on the first complete pair.
type binding struct {
	program compute.Program
	queue   compute.Queue
	kernel  compute.Kernel

	planes int
	alloc  *frame.Allocator
}

// release frees the kernel, queue and program in that order. Missing
// handles are skipped.
func (b *binding) release() {
	compute.Release(b.kernel, b.queue, b.program)
	b.kernel, b.queue, b.program = nil, nil, nil
}

// bind validates the software formats carried by the first pair and
// creates the program, queue and kernel. Nothing is left allocated when it
// fails.
func bind(dev compute.Device, src compute.Source, mode Projection, geom Geometry, front, rear pixfmt.Format) (_ *binding, err error) {
	fd, ok := pixfmt.Describe(front)
	if !ok {
		return nil, fmt.Errorf("%w: front %v", ErrUnsupportedFormat, front)
	}
	rd, ok := pixfmt.Describe(rear)
	if !ok {
		return nil, fmt.Errorf("%w: rear %v", ErrUnsupportedFormat, rear)
	}
	if fd.Log2ChromaW != fd.Log2ChromaH {
		return nil, fmt.Errorf("%w: front %v has uneven chroma subsampling", ErrUnsupportedFormat, front)
	}
	if rd.PlaneCount() != fd.PlaneCount() || rd.Log2ChromaW != fd.Log2ChromaW || rd.Log2ChromaH != fd.Log2ChromaH {
		return nil, fmt.Errorf("%w: front %v, rear %v", ErrIncompatibleInputs, front, rear)
	}
	alloc, err := frame.NewAllocator(dev, front, geom.Width, geom.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	entry := mode.KernelName()
	b := &binding{planes: fd.PlaneCount(), alloc: alloc}
	defer func() {
		if err != nil {
			b.release()
		}
	}()

	if b.program, err = dev.CompileProgram(src); err != nil {
		return nil, fmt.Errorf("%w: compile program: %w", ErrDeviceIO, err)
	}
	if b.queue, err = dev.CreateQueue(); err != nil {
		return nil, fmt.Errorf("%w: create command queue: %w", ErrDeviceIO, err)
	}
	if b.kernel, err = dev.CreateKernel(b.program, entry); err != nil {
		return nil, fmt.Errorf("%w: create kernel %s: %w", ErrDeviceIO, entry, err)
	}

	Logger().Info("gopromax: program bound",
		"device", dev.Name(),
		"kernel", entry,
		"format", front,
		"planes", b.planes,
		"output", geom.String())
	return b, nil
}
