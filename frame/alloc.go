// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package frame

import (
	"errors"
	"fmt"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/pixfmt"
)

// ErrAlloc is returned when a frame cannot be allocated.
var ErrAlloc = errors.New("frame: allocation failed")

// Allocator creates frames of one format and size on a device.
type Allocator struct {
	hw   HWFramesContext
	desc pixfmt.Descriptor
}

// NewAllocator returns an allocator for w×h frames of format on dev.
func NewAllocator(dev compute.Device, format pixfmt.Format, w, h int) (*Allocator, error) {
	desc, ok := pixfmt.Describe(format)
	if !ok {
		return nil, fmt.Errorf("frame: unknown format %v", format)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame: invalid size %dx%d", w, h)
	}
	return &Allocator{
		hw:   HWFramesContext{Device: dev, SWFormat: format, Width: w, Height: h},
		desc: desc,
	}, nil
}

// Context returns the frames context shared by every allocated frame.
func (a *Allocator) Context() *HWFramesContext { return &a.hw }

// Alloc allocates one frame. On failure every plane allocated so far is
// released and the error wraps ErrAlloc.
func (a *Allocator) Alloc() (*Frame, error) {
	n := a.desc.PlaneCount()
	planes := make([]compute.Plane, 0, n)
	for i := 0; i < n; i++ {
		w, h := a.desc.PlaneSize(i, a.hw.Width, a.hw.Height)
		p, err := a.hw.Device.AllocPlane(w, h, a.desc.PlaneStep(i))
		if err != nil {
			for _, q := range planes {
				q.Release()
			}
			return nil, fmt.Errorf("%w: plane %d (%dx%d): %w", ErrAlloc, i, w, h, err)
		}
		planes = append(planes, p)
	}
	return New(planes, a.hw.Width, a.hw.Height, &a.hw), nil
}
