package gopromax

import "errors"

// Error kinds. Every error returned by a Stitcher wraps exactly one of
// ErrConfig, ErrDeviceIO or ErrOutOfMemory, or is a framesync signal.
var (
	// ErrConfig reports a configuration or negotiation error. It is fatal:
	// no output is produced.
	ErrConfig = errors.New("gopromax: configuration error")

	// ErrDeviceIO reports a failed GPU operation: program compilation,
	// queue or kernel creation, enqueue or finish.
	ErrDeviceIO = errors.New("gopromax: device I/O error")

	// ErrOutOfMemory reports a failed output frame allocation.
	ErrOutOfMemory = errors.New("gopromax: out of memory")
)

// Configuration errors.
var (
	// ErrUnsupportedFormat is returned for an input whose horizontal and
	// vertical chroma subsampling differ, or whose format is unknown.
	ErrUnsupportedFormat = wrapConfig("unsupported input format")

	// ErrIncompatibleInputs is returned when the rear stream cannot be
	// dispatched with the same per-plane shape as the front stream.
	ErrIncompatibleInputs = wrapConfig("incompatible front and rear inputs")

	// ErrNotConfigured is returned when frames arrive before ConfigureOutput.
	ErrNotConfigured = wrapConfig("output not configured")

	// ErrGeometryChanged is returned when ConfigureOutput would change an
	// already resolved output geometry.
	ErrGeometryChanged = wrapConfig("output geometry changed")

	// ErrNoSink is returned by New without WithSink.
	ErrNoSink = wrapConfig("no frame sink")

	// ErrNoProgram is returned by New without a program source.
	ErrNoProgram = wrapConfig("no program source")
)

// ErrClosed is returned by a Stitcher used after Close.
var ErrClosed = errors.New("gopromax: stitcher closed")

type configError struct{ msg string }

func (e *configError) Error() string { return "gopromax: " + e.msg }
func (e *configError) Unwrap() error { return ErrConfig }

func wrapConfig(msg string) error { return &configError{msg: msg} }
