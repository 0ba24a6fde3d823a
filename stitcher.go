// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gopromax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/frame"
	"github.com/gogpu/gopromax/framesync"
)

// Stitcher stitches synchronized front and rear frames into panoramic
// output frames on a compute device.
//
// A Stitcher has a single owner. Its methods are serialized by a mutex so
// that accidental concurrent use cannot interleave dispatches, but output
// order is only defined for calls made in order.
type Stitcher struct {
	mu   sync.Mutex
	dev  compute.Device
	opts options

	configured  bool
	front, rear StreamDescriptor
	geom        Geometry

	state  ProgramState
	b      *binding
	closed bool
}

// New creates a Stitcher on dev. WithProgramSource and WithSink are
// required.
func New(dev compute.Device, opts ...Option) (*Stitcher, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: nil device", ErrConfig)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.source.WGSL == "" {
		return nil, ErrNoProgram
	}
	if o.sink == nil {
		return nil, ErrNoSink
	}
	if o.source.Label == "" {
		o.source.Label = "gopromax"
	}
	trackDevice(dev)
	return &Stitcher{dev: dev, opts: o}, nil
}

// Projection returns the configured output projection.
func (s *Stitcher) Projection() Projection { return s.opts.projection }

// ProgramState reports whether the GPU program has been bound.
func (s *Stitcher) ProgramState() ProgramState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Geometry returns the resolved output geometry and whether
// ConfigureOutput has succeeded.
func (s *Stitcher) Geometry() (Geometry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geom, s.configured
}

// ConfigureOutput validates the negotiated inputs and resolves the output
// geometry from the front stream. Once resolved the geometry is fixed: a
// later call resolving a different size fails with ErrGeometryChanged.
//
// No GPU resources are created here.
func (s *Stitcher) ConfigureOutput(front, rear StreamDescriptor) (Geometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Geometry{}, ErrClosed
	}
	if front.Log2ChromaW != front.Log2ChromaH {
		return Geometry{}, fmt.Errorf("%w: %v subsamples chroma %dx%d",
			ErrUnsupportedFormat, front.Format, front.SubsampleX(), front.SubsampleY())
	}
	if front.Width <= 0 || front.Height <= 0 {
		return Geometry{}, fmt.Errorf("%w: invalid front size %dx%d", ErrConfig, front.Width, front.Height)
	}

	g := Resolve(front.Width, front.Height, s.opts.projection)
	if s.configured {
		if g != s.geom {
			return s.geom, fmt.Errorf("%w: %v to %v", ErrGeometryChanged, s.geom, g)
		}
		return g, nil
	}
	if rear.Width != front.Width || rear.Height != front.Height {
		Logger().Warn("gopromax: rear size differs from front, geometry follows front",
			"front", fmt.Sprintf("%dx%d", front.Width, front.Height),
			"rear", fmt.Sprintf("%dx%d", rear.Width, rear.Height))
	}

	s.front, s.rear, s.geom = front, rear, g
	s.configured = true
	Logger().Debug("gopromax: output configured",
		"projection", s.opts.projection.String(),
		"kernel", s.opts.projection.KernelName(),
		"output", g.String())
	return g, nil
}

// StitchPair stitches one synchronized pair and hands the result to the
// sink. A pair with a missing frame yields framesync.ErrNotReady and is
// otherwise ignored.
//
// The pair's frames stay owned by the caller. The output frame is owned by
// the Stitcher until it is passed to the sink, and released on any failure
// before that.
func (s *Stitcher) StitchPair(ctx context.Context, p framesync.Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.stitchLocked(ctx, p)
}

func (s *Stitcher) stitchLocked(ctx context.Context, p framesync.Pair) error {
	front, err := p.Frame(framesync.Front)
	if err != nil {
		return err
	}
	rear, err := p.Frame(framesync.Rear)
	if err != nil {
		return err
	}
	if !s.configured {
		return ErrNotConfigured
	}

	if s.state == ProgramUnbound {
		if front.HW == nil || rear.HW == nil {
			return fmt.Errorf("%w: input frame carries no hardware frames context", ErrConfig)
		}
		b, err := bind(s.dev, s.opts.source, s.opts.projection, s.geom, front.HW.SWFormat, rear.HW.SWFormat)
		if err != nil {
			return err
		}
		s.b = b
		s.state = ProgramBound
	}

	if len(front.Planes) < s.b.planes || len(rear.Planes) < s.b.planes {
		return fmt.Errorf("%w: need %d planes, front has %d, rear has %d",
			ErrIncompatibleInputs, s.b.planes, len(front.Planes), len(rear.Planes))
	}

	out, err := s.b.alloc.Alloc()
	if err != nil {
		return fmt.Errorf("%w: output frame: %w", ErrOutOfMemory, err)
	}
	if err := s.dispatch(out, front, rear); err != nil {
		out.Release()
		return err
	}

	frame.CopyProps(out, front)
	Logger().Debug("gopromax: frame stitched", "pts", out.PTS, "planes", s.b.planes)

	return s.opts.sink.SendFrame(ctx, out)
}

// dispatch enqueues one kernel run per plane and waits for all of them.
func (s *Stitcher) dispatch(out, front, rear *frame.Frame) error {
	b := s.b
	for i := 0; i < b.planes; i++ {
		if err := s.enqueuePlane(i, out, front, rear); err != nil {
			s.drain()
			return fmt.Errorf("%w: plane %d: %w", ErrDeviceIO, i, err)
		}
	}
	if err := b.queue.Finish(); err != nil {
		return fmt.Errorf("%w: finish: %w", ErrDeviceIO, err)
	}
	return nil
}

func (s *Stitcher) enqueuePlane(i int, out, front, rear *frame.Frame) error {
	b := s.b
	dst := out.Planes[i]
	if err := b.kernel.SetArg(compute.ArgDestination, dst); err != nil {
		return fmt.Errorf("set destination: %w", err)
	}
	if err := b.kernel.SetArg(compute.ArgFront, front.Planes[i]); err != nil {
		return fmt.Errorf("set front source: %w", err)
	}
	if err := b.kernel.SetArg(compute.ArgRear, rear.Planes[i]); err != nil {
		return fmt.Errorf("set rear source: %w", err)
	}
	ws, err := compute.WorkSizeFromPlane(dst)
	if err != nil {
		return err
	}
	Logger().Debug("gopromax: dispatch", "kernel", b.kernel.Name(), "plane", i, "work", ws.String())
	return b.queue.Enqueue(b.kernel, ws)
}

// drain waits for work already enqueued so that nothing in flight still
// references the output planes when they are released.
func (s *Stitcher) drain() {
	if err := s.b.queue.Finish(); err != nil {
		Logger().Warn("gopromax: drain after failed enqueue", "err", err)
	}
}

// Activate stitches every pair fs can currently produce. It returns nil
// when fs needs more input and io.EOF once the output has ended.
func (s *Stitcher) Activate(ctx context.Context, fs *framesync.Sync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := fs.Next()
		switch {
		case errors.Is(err, framesync.ErrAgain):
			return nil
		case err != nil:
			return err
		}
		if err := s.stitchLocked(ctx, p); err != nil && !errors.Is(err, framesync.ErrNotReady) {
			return err
		}
	}
}

// Run stitches pairs from seq until it ends, returning nil at the end of
// the stream. Pairs with a missing frame are skipped. ctx is checked
// between pairs; a dispatch in progress always runs to completion.
func (s *Stitcher) Run(ctx context.Context, seq iter.Seq2[framesync.Pair, error]) error {
	for p, err := range seq {
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.StitchPair(ctx, p); err != nil && !errors.Is(err, framesync.ErrNotReady) {
			return err
		}
	}
	return nil
}

// Close releases the kernel, command queue and program, and the frames
// held by an attached synchronizer. It is safe to call more than once.
func (s *Stitcher) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.b != nil {
		s.b.release()
		s.b = nil
	}
	if s.opts.sync != nil {
		s.opts.sync.Close()
	}
	untrackDevice(s.dev)
	return nil
}
