package framesync

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/compute/computetest"
	"github.com/gogpu/gopromax/frame"
)

// tracked is a frame with a single plane whose releases can be counted.
type tracked struct {
	*frame.Frame
	plane *computetest.Plane
}

func newFrame(t *testing.T, dev *computetest.Device, pts int64) tracked {
	t.Helper()
	p, err := dev.AllocPlane(1, 1, 1)
	require.NoError(t, err)
	f := frame.New([]compute.Plane{p}, 1, 1, nil)
	f.PTS = pts
	return tracked{Frame: f, plane: p.(*computetest.Plane)}
}

func newSync(t *testing.T, frontTB, rearTB frame.Rational, opts ...Option) *Sync {
	t.Helper()
	s, err := New(frontTB, rearTB, opts...)
	require.NoError(t, err)
	return s
}

func push(t *testing.T, s *Sync, st Stream, f tracked) {
	t.Helper()
	require.NoError(t, s.Push(st, f.Frame))
}

func TestPairsFrontWithLatestRear(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)

	f0, f1 := newFrame(t, dev, 0), newFrame(t, dev, 3000)
	r0, r1 := newFrame(t, dev, 0), newFrame(t, dev, 2000)
	push(t, s, Front, f0)
	push(t, s, Rear, r0)

	_, err := s.Next()
	assert.ErrorIs(t, err, ErrAgain, "rear at 0 may still be superseded")

	push(t, s, Rear, r1)
	p, err := s.Next()
	require.NoError(t, err)
	assert.Same(t, f0.Frame, p.Front)
	assert.Same(t, r0.Frame, p.Rear)
	assert.Equal(t, int64(0), p.PTS)

	push(t, s, Front, f1)
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrAgain)
	assert.Equal(t, 1, f0.plane.Released(), "previous front released on Next")

	require.NoError(t, s.CloseInput(Rear))
	p, err = s.Next()
	require.NoError(t, err)
	assert.Same(t, f1.Frame, p.Front)
	assert.Same(t, r1.Frame, p.Rear)
	assert.Equal(t, 1, r0.plane.Released(), "superseded rear released")

	require.NoError(t, s.CloseInput(Front))
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, dev.LivePlanes())
}

func TestFrontBeforeFirstRear(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)
	push(t, s, Front, newFrame(t, dev, 0))
	push(t, s, Rear, newFrame(t, dev, 100))

	p, err := s.Next()
	require.NoError(t, err)
	assert.NotNil(t, p.Front)
	_, err = p.Frame(Rear)
	assert.ErrorIs(t, err, ErrNotReady)
	s.Close()
}

func TestRearRepeatsAfterEOF(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)
	r := newFrame(t, dev, 0)
	push(t, s, Rear, r)
	require.NoError(t, s.CloseInput(Rear))
	for i := int64(0); i < 3; i++ {
		push(t, s, Front, newFrame(t, dev, i))
	}
	require.NoError(t, s.CloseInput(Front))

	n := 0
	for p, err := range s.Pairs(context.Background()) {
		require.NoError(t, err)
		assert.Same(t, r.Frame, p.Rear)
		n++
	}
	assert.Equal(t, 3, n)
	assert.Zero(t, dev.LivePlanes())
}

func TestShortestEndsWithRear(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG, WithShortest(true))
	push(t, s, Rear, newFrame(t, dev, 0))
	require.NoError(t, s.CloseInput(Rear))
	for i := int64(0); i < 3; i++ {
		push(t, s, Front, newFrame(t, dev, i))
	}

	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, dev.LivePlanes(), "queued front frames released at the end")
}

func TestRescalesRearTimestamps(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.Microseconds, frame.MPEG)
	push(t, s, Front, newFrame(t, dev, 33000))
	r0 := newFrame(t, dev, 2970) // 33000µs
	push(t, s, Rear, r0)
	push(t, s, Rear, newFrame(t, dev, 2971))

	p, err := s.Next()
	require.NoError(t, err)
	assert.Same(t, r0.Frame, p.Rear)
	s.Close()
}

func TestPushValidation(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)

	bad := newFrame(t, dev, frame.NoPTS)
	assert.ErrorIs(t, s.Push(Front, bad.Frame), ErrNoPTS)
	assert.Equal(t, 1, bad.plane.Released(), "rejected frames are released")

	push(t, s, Front, newFrame(t, dev, 10))
	dup := newFrame(t, dev, 10)
	assert.ErrorIs(t, s.Push(Front, dup.Frame), ErrNonMonotonic)
	assert.Equal(t, 1, dup.plane.Released())

	other := newFrame(t, dev, 0)
	assert.ErrorIs(t, s.Push(Stream(5), other.Frame), ErrBadStream)
	assert.Equal(t, 1, other.plane.Released())
	assert.ErrorIs(t, s.CloseInput(Stream(-1)), ErrBadStream)

	require.NoError(t, s.CloseInput(Front))
	require.NoError(t, s.CloseInput(Front))
	late := newFrame(t, dev, 20)
	assert.ErrorIs(t, s.Push(Front, late.Frame), ErrClosed)
	assert.Equal(t, 1, late.plane.Released())
	s.Close()
}

func TestCloseReleasesEverything(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)
	for i := int64(0); i < 3; i++ {
		push(t, s, Front, newFrame(t, dev, i))
		push(t, s, Rear, newFrame(t, dev, i))
	}
	_, err := s.Next()
	require.NoError(t, err)

	s.Close()
	assert.Zero(t, dev.LivePlanes())
	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, s.Push(Front, newFrame(t, dev, 9).Frame), ErrClosed)
	for _, p := range dev.Planes() {
		assert.Equal(t, 1, p.Released())
	}
}

func TestPairsWaitsForInput(t *testing.T) {
	dev := computetest.NewDevice()
	s := newSync(t, frame.MPEG, frame.MPEG)

	go func() {
		for i := int64(0); i < 4; i++ {
			time.Sleep(time.Millisecond)
			_ = s.Push(Front, newFrame(t, dev, i).Frame)
			_ = s.Push(Rear, newFrame(t, dev, i).Frame)
		}
		_ = s.CloseInput(Front)
		_ = s.CloseInput(Rear)
	}()

	var pts []int64
	for p, err := range s.Pairs(context.Background()) {
		require.NoError(t, err)
		pts = append(pts, p.PTS)
	}
	assert.Equal(t, []int64{0, 1, 2, 3}, pts)
}

func TestPairsContextCancel(t *testing.T) {
	s := newSync(t, frame.MPEG, frame.MPEG)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	for _, err := range s.Pairs(ctx) {
		got = err
	}
	assert.True(t, errors.Is(got, context.Canceled))
}

func TestPairFrameBadStream(t *testing.T) {
	_, err := Pair{}.Frame(Stream(3))
	assert.ErrorIs(t, err, ErrBadStream)
	assert.Equal(t, "front", Front.String())
	assert.Equal(t, "Stream(3)", Stream(3).String())
}

func TestNewRejectsInvalidTimeBase(t *testing.T) {
	tests := []struct {
		name        string
		front, rear frame.Rational
	}{
		{"zero front", frame.Rational{}, frame.MPEG},
		{"zero rear", frame.MPEG, frame.Rational{}},
		{"negative num", frame.Rational{Num: -1, Den: 30}, frame.MPEG},
		{"zero den", frame.MPEG, frame.Rational{Num: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.front, tt.rear)
			assert.ErrorIs(t, err, ErrBadTimeBase)
			assert.Nil(t, s)
		})
	}
}
