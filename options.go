package gopromax

import (
	"context"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/frame"
	"github.com/gogpu/gopromax/framesync"
)

// Sink receives stitched frames. SendFrame takes ownership of f whether or
// not it returns an error.
//
// SendFrame runs with the Stitcher locked. It must not call StitchPair,
// Activate, Run, ConfigureOutput, Geometry, ProgramState or Close on the
// emitting Stitcher; Projection is safe.
type Sink interface {
	SendFrame(ctx context.Context, f *frame.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, f *frame.Frame) error

// SendFrame calls fn(ctx, f).
func (fn SinkFunc) SendFrame(ctx context.Context, f *frame.Frame) error { return fn(ctx, f) }

// Option configures a Stitcher during creation.
//
// Example:
//
//	s, err := gopromax.New(dev,
//	    gopromax.WithProjection(gopromax.EquiangularCubemapStack),
//	    gopromax.WithProgramSource(src),
//	    gopromax.WithSink(sink),
//	)
type Option func(*options)

type options struct {
	projection Projection
	source     compute.Source
	sink       Sink
	sync       *framesync.Sync
}

// WithProjection sets the output projection. The default is
// Equirectangular.
func WithProjection(p Projection) Option {
	return func(o *options) {
		o.projection = p
	}
}

// WithProgramSource sets the compute program providing the stitch entry
// points. It is required.
func WithProgramSource(src compute.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithSink sets the consumer of stitched frames. It is required.
func WithSink(s Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithSync attaches the synchronizer feeding the stitcher so that Close
// also releases the frames it holds.
func WithSync(fs *framesync.Sync) Option {
	return func(o *options) {
		o.sync = fs
	}
}
