package gopromax

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gopromax/compute"
)

// nopHandler discards every record. Enabled reports false, so disabled
// log calls never format their arguments.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the active logger; SetLogger may race with logging.
var loggerPtr atomic.Pointer[slog.Logger]

// devices counts the open stitchers per device so SetLogger can reach them.
var (
	devicesMu sync.Mutex
	devices   = map[compute.Device]int{}
)

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for gopromax and the devices it drives.
// By default, gopromax produces no log output.
//
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by gopromax:
//   - [slog.LevelDebug]: kernel selection, per-plane dispatch, emitted frames
//   - [slog.LevelInfo]: program binding, device selection
//   - [slog.LevelWarn]: release failures, rear/front size mismatch
//
// Example:
//
//	gopromax.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	devicesMu.Lock()
	defer devicesMu.Unlock()
	for d := range devices {
		propagateLogger(d, l)
	}
}

// Logger returns the current logger used by gopromax.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

func propagateLogger(d compute.Device, l *slog.Logger) {
	if ls, ok := d.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

func trackDevice(d compute.Device) {
	if _, ok := d.(loggerSetter); !ok {
		return
	}
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices[d]++
	propagateLogger(d, Logger())
}

func untrackDevice(d compute.Device) {
	if _, ok := d.(loggerSetter); !ok {
		return
	}
	devicesMu.Lock()
	defer devicesMu.Unlock()
	if devices[d] <= 1 {
		delete(devices, d)
		return
	}
	devices[d]--
}
