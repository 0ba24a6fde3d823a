// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frame holds GPU-resident video frames and their metadata.
//
// A Frame owns its planes: Release frees every plane exactly once. Frames
// handed to a consumer transfer that ownership with them.
package frame

import (
	"maps"
	"math"
	"sync"

	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/pixfmt"
)

// NoPTS marks a frame without a presentation timestamp.
const NoPTS int64 = math.MinInt64

// HWFramesContext describes the pool a GPU frame was allocated from. Its
// SWFormat is the layout of the data inside the GPU planes, which is only
// known once frames actually arrive.
type HWFramesContext struct {
	Device   compute.Device
	SWFormat pixfmt.Format
	Width    int
	Height   int
}

// SideDataType identifies a side data payload.
type SideDataType int

// Side data types carried by camera streams.
const (
	SideDataUnknown SideDataType = iota
	SideDataDisplayMatrix
	SideDataSphericalMapping
	SideDataStereo3D
	SideDataGyro
	SideDataTimecode
)

// SideData is an opaque per-frame payload.
type SideData struct {
	Type SideDataType
	Data []byte
}

// Frame is a GPU-resident image with per-plane buffers.
type Frame struct {
	Planes []compute.Plane
	Width  int
	Height int
	HW     *HWFramesContext

	PTS      int64
	Duration int64
	TimeBase Rational
	KeyFrame bool

	SideData []SideData
	Metadata map[string]string

	releaseOnce sync.Once
}

// New returns a frame over planes with no timestamp.
func New(planes []compute.Plane, w, h int, hw *HWFramesContext) *Frame {
	return &Frame{Planes: planes, Width: w, Height: h, HW: hw, PTS: NoPTS}
}

// Format returns the software format of the frame's planes, or
// pixfmt.None when the frame carries no hardware frames context.
func (f *Frame) Format() pixfmt.Format {
	if f == nil || f.HW == nil {
		return pixfmt.None
	}
	return f.HW.SWFormat
}

// Release frees the frame's planes. Calling it more than once, or on a nil
// frame, is a no-op.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.releaseOnce.Do(func() {
		for _, p := range f.Planes {
			if p != nil {
				p.Release()
			}
		}
	})
}

// CopyProps copies everything but the pixel data and the hardware frames
// context from src to dst: timestamps, key flag, side data and metadata.
// Side data and metadata are deep copied.
func CopyProps(dst, src *Frame) {
	dst.PTS = src.PTS
	dst.Duration = src.Duration
	dst.TimeBase = src.TimeBase
	dst.KeyFrame = src.KeyFrame

	dst.SideData = nil
	for _, sd := range src.SideData {
		dst.SideData = append(dst.SideData, SideData{
			Type: sd.Type,
			Data: append([]byte(nil), sd.Data...),
		})
	}
	dst.Metadata = maps.Clone(src.Metadata)
}
