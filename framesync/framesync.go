// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package framesync pairs frames from two independently timed streams.
//
// The front stream is the main input: every front frame produces exactly
// one [Pair], stamped with the front timestamp. The rear frame of a pair is
// the latest rear frame whose timestamp, rescaled to the front time base,
// is not after the front frame. A pair is only produced once that choice
// is final, which means a later rear frame is already queued or the rear
// stream has ended.
//
// Front frames that precede the first rear frame are paired with a nil
// rear frame. After the rear stream ends its last frame is repeated until
// the front stream ends, unless the synchronizer was created with
// [WithShortest], in which case the output ends with the rear stream.
//
// Frames pushed into a [Sync] are owned by it. The frames of a pair are
// borrowed by the consumer until the next call to [Sync.Next]; superseded
// frames are released then.
package framesync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/gogpu/gopromax/frame"
)

// Stream selects one of the two inputs.
type Stream int

// Inputs.
const (
	Front Stream = iota
	Rear
)

func (s Stream) String() string {
	switch s {
	case Front:
		return "front"
	case Rear:
		return "rear"
	default:
		return fmt.Sprintf("Stream(%d)", int(s))
	}
}

// Signals and errors.
var (
	// ErrAgain is returned by Next when more input is needed.
	ErrAgain = errors.New("framesync: need more input")

	// ErrNotReady is returned by Pair.Frame for a missing side of a pair.
	// It is a normal condition, not a failure.
	ErrNotReady = errors.New("framesync: frame not ready")

	// ErrClosed is returned when pushing to an input that has ended.
	ErrClosed = errors.New("framesync: input closed")

	// ErrNonMonotonic is returned when a timestamp does not increase.
	ErrNonMonotonic = errors.New("framesync: non-monotonic timestamp")

	// ErrNoPTS is returned when a frame has no timestamp.
	ErrNoPTS = errors.New("framesync: frame has no timestamp")

	// ErrBadStream is returned for an unknown stream index.
	ErrBadStream = errors.New("framesync: unknown stream")

	// ErrBadTimeBase is returned by New for a time base that is not positive.
	ErrBadTimeBase = errors.New("framesync: invalid time base")
)

// Pair is one synchronization slot.
type Pair struct {
	Front *frame.Frame
	Rear  *frame.Frame

	// PTS is the slot timestamp in the front time base.
	PTS int64
}

// Frame returns the frame of stream s. A missing frame yields ErrNotReady.
func (p Pair) Frame(s Stream) (*frame.Frame, error) {
	var f *frame.Frame
	switch s {
	case Front:
		f = p.Front
	case Rear:
		f = p.Rear
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadStream, int(s))
	}
	if f == nil {
		return nil, fmt.Errorf("%v: %w", s, ErrNotReady)
	}
	return f, nil
}

// Option configures a Sync.
type Option func(*options)

type options struct {
	shortest bool
}

// WithShortest ends the output when either input ends.
func WithShortest(v bool) Option {
	return func(o *options) { o.shortest = v }
}

type input struct {
	tb     frame.Rational
	queue  []queued
	last   int64
	pushed bool
	eof    bool
}

type queued struct {
	f  *frame.Frame
	ts int64 // in the front time base
}

// Sync is a dual-input frame synchronizer.
type Sync struct {
	mu     sync.Mutex
	opts   options
	in     [2]input
	rear   *frame.Frame // current rear frame
	used   bool         // rear has been paired at least once
	front  *frame.Frame // front frame of the last slot
	done   bool
	closed bool
	wake   chan struct{}
}

// New returns a synchronizer for inputs with the given time bases. Both
// must be valid.
func New(frontTB, rearTB frame.Rational, opts ...Option) (*Sync, error) {
	if !frontTB.Valid() {
		return nil, fmt.Errorf("%w: front %v", ErrBadTimeBase, frontTB)
	}
	if !rearTB.Valid() {
		return nil, fmt.Errorf("%w: rear %v", ErrBadTimeBase, rearTB)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Sync{opts: o, wake: make(chan struct{}, 1)}
	s.in[Front].tb = frontTB
	s.in[Rear].tb = rearTB
	return s, nil
}

func (s *Sync) input(st Stream) (*input, error) {
	if st != Front && st != Rear {
		return nil, fmt.Errorf("%w: %d", ErrBadStream, int(st))
	}
	return &s.in[st], nil
}

// Push queues f on stream st. Ownership of f passes to the synchronizer,
// also when an error is returned.
func (s *Sync) Push(st Stream, f *frame.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, err := s.input(st)
	if err != nil {
		f.Release()
		return err
	}
	switch {
	case in.eof || s.closed:
		f.Release()
		return fmt.Errorf("%v: %w", st, ErrClosed)
	case f.PTS == frame.NoPTS:
		f.Release()
		return fmt.Errorf("%v: %w", st, ErrNoPTS)
	case in.pushed && f.PTS <= in.last:
		f.Release()
		return fmt.Errorf("%v: %w: %d after %d", st, ErrNonMonotonic, f.PTS, in.last)
	}
	in.last = f.PTS
	in.pushed = true
	in.queue = append(in.queue, queued{f: f, ts: frame.Rescale(f.PTS, in.tb, s.in[Front].tb)})
	s.signal()
	return nil
}

// CloseInput marks the end of stream st. Closing twice is a no-op.
func (s *Sync) CloseInput(st Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, err := s.input(st)
	if err != nil {
		return err
	}
	in.eof = true
	s.signal()
	return nil
}

func (s *Sync) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the next pair. It returns ErrAgain when the next pair depends
// on input that has not arrived yet, and io.EOF once the output has ended.
// Next never blocks.
func (s *Sync) Next() (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The previous slot's front frame is no longer borrowed.
	s.front.Release()
	s.front = nil

	if s.done || s.closed {
		return Pair{}, io.EOF
	}

	fr := &s.in[Front]
	if len(fr.queue) == 0 {
		if fr.eof {
			s.finish()
			return Pair{}, io.EOF
		}
		return Pair{}, ErrAgain
	}
	head := fr.queue[0]

	rr := &s.in[Rear]
	for len(rr.queue) > 0 && rr.queue[0].ts <= head.ts {
		s.rear.Release()
		s.rear = rr.queue[0].f
		s.used = false
		rr.queue = rr.queue[1:]
	}
	if len(rr.queue) == 0 && !rr.eof {
		return Pair{}, ErrAgain
	}
	if s.opts.shortest && rr.eof && len(rr.queue) == 0 && (s.rear == nil || s.used) {
		s.finish()
		return Pair{}, io.EOF
	}

	fr.queue = fr.queue[1:]
	s.front = head.f
	if s.rear != nil {
		s.used = true
	}
	return Pair{Front: head.f, Rear: s.rear, PTS: head.f.PTS}, nil
}

// finish releases everything still held. The caller holds s.mu.
func (s *Sync) finish() {
	s.done = true
	for i := range s.in {
		for _, q := range s.in[i].queue {
			q.f.Release()
		}
		s.in[i].queue = nil
	}
	s.rear.Release()
	s.rear = nil
	s.front.Release()
	s.front = nil
}

// Close ends the output and releases every held frame. Later calls to
// Next return io.EOF and pushes fail with ErrClosed.
func (s *Sync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.finish()
	s.signal()
}

// Pairs returns an iterator over the remaining pairs. It blocks while
// input is missing and ends after the last pair, or with ctx's error. The
// sequence cannot be restarted: once it has ended, a new iterator yields
// nothing.
func (s *Sync) Pairs(ctx context.Context) iter.Seq2[Pair, error] {
	return func(yield func(Pair, error) bool) {
		for {
			p, err := s.Next()
			switch {
			case err == nil:
				if !yield(p, nil) {
					return
				}
				continue
			case errors.Is(err, io.EOF):
				return
			case !errors.Is(err, ErrAgain):
				yield(Pair{}, err)
				return
			}
			select {
			case <-ctx.Done():
				yield(Pair{}, ctx.Err())
				return
			case <-s.wake:
			}
		}
	}
}
