// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pixfmt describes the software pixel formats carried by GPU-resident
// frames: how many planes a format has, which plane each component lives in,
// and how chroma planes are subsampled.
package pixfmt

import (
	"fmt"
	"strings"
)

// Format identifies a software pixel layout.
type Format int32

// Supported formats.
const (
	None Format = iota - 1
	Gray8
	YUV420P         // Planar YUV 4:2:0
	YUV422P         // Planar YUV 4:2:2
	YUV440P         // Planar YUV 4:4:0
	YUV444P         // Planar YUV 4:4:4
	YUVA420P        // Planar YUV 4:2:0 with alpha plane
	YUVA444P        // Planar YUV 4:4:4 with alpha plane
	NV12            // Y plane + interleaved UV plane, 4:2:0
	RGBA            // Packed RGBA 8:8:8:8
	BGRA            // Packed BGRA 8:8:8:8
	GBRP            // Planar G, B, R
)

// Flag describes properties of a format.
type Flag uint32

// Format flags.
const (
	FlagPlanar Flag = 1 << iota
	FlagRGB
	FlagAlpha
)

// Component locates one colour component inside a frame.
type Component struct {
	// Plane is the index of the plane holding this component.
	Plane int

	// Step is the distance in samples between two horizontally adjacent
	// pixels of this component.
	Step int

	// Offset is the sample offset of the component within one step.
	Offset int

	// Depth is the number of significant bits.
	Depth int
}

// Descriptor describes a pixel format.
type Descriptor struct {
	Name       string
	Components []Component

	// Log2ChromaW is the horizontal chroma subsampling shift.
	Log2ChromaW int

	// Log2ChromaH is the vertical chroma subsampling shift.
	Log2ChromaH int

	Flags Flag
}

var descriptors = map[Format]Descriptor{
	Gray8: {
		Name:       "gray",
		Components: []Component{{Plane: 0, Step: 1, Depth: 8}},
	},
	YUV420P: {
		Name:        "yuv420p",
		Components:  planarYUV(),
		Log2ChromaW: 1, Log2ChromaH: 1,
		Flags: FlagPlanar,
	},
	YUV422P: {
		Name:        "yuv422p",
		Components:  planarYUV(),
		Log2ChromaW: 1,
		Flags:       FlagPlanar,
	},
	YUV440P: {
		Name:        "yuv440p",
		Components:  planarYUV(),
		Log2ChromaH: 1,
		Flags:       FlagPlanar,
	},
	YUV444P: {
		Name:       "yuv444p",
		Components: planarYUV(),
		Flags:      FlagPlanar,
	},
	YUVA420P: {
		Name:        "yuva420p",
		Components:  append(planarYUV(), Component{Plane: 3, Step: 1, Depth: 8}),
		Log2ChromaW: 1, Log2ChromaH: 1,
		Flags: FlagPlanar | FlagAlpha,
	},
	YUVA444P: {
		Name:       "yuva444p",
		Components: append(planarYUV(), Component{Plane: 3, Step: 1, Depth: 8}),
		Flags:      FlagPlanar | FlagAlpha,
	},
	NV12: {
		Name: "nv12",
		Components: []Component{
			{Plane: 0, Step: 1, Depth: 8},
			{Plane: 1, Step: 2, Offset: 0, Depth: 8},
			{Plane: 1, Step: 2, Offset: 1, Depth: 8},
		},
		Log2ChromaW: 1, Log2ChromaH: 1,
		Flags: FlagPlanar,
	},
	RGBA: {
		Name:       "rgba",
		Components: packed4(0, 1, 2, 3),
		Flags:      FlagRGB | FlagAlpha,
	},
	BGRA: {
		Name:       "bgra",
		Components: packed4(2, 1, 0, 3),
		Flags:      FlagRGB | FlagAlpha,
	},
	GBRP: {
		Name: "gbrp",
		Components: []Component{
			{Plane: 2, Step: 1, Depth: 8},
			{Plane: 0, Step: 1, Depth: 8},
			{Plane: 1, Step: 1, Depth: 8},
		},
		Flags: FlagPlanar | FlagRGB,
	},
}

func planarYUV() []Component {
	return []Component{
		{Plane: 0, Step: 1, Depth: 8},
		{Plane: 1, Step: 1, Depth: 8},
		{Plane: 2, Step: 1, Depth: 8},
	}
}

func packed4(r, g, b, a int) []Component {
	return []Component{
		{Plane: 0, Step: 4, Offset: r, Depth: 8},
		{Plane: 0, Step: 4, Offset: g, Depth: 8},
		{Plane: 0, Step: 4, Offset: b, Depth: 8},
		{Plane: 0, Step: 4, Offset: a, Depth: 8},
	}
}

// Describe returns the descriptor of f.
func Describe(f Format) (Descriptor, bool) {
	d, ok := descriptors[f]
	return d, ok
}

// Parse looks a format up by its name (case-insensitive).
func Parse(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, d := range descriptors {
		if d.Name == name {
			return f, nil
		}
	}
	return None, fmt.Errorf("pixfmt: unknown format %q", name)
}

// String returns the format name.
func (f Format) String() string {
	if d, ok := descriptors[f]; ok {
		return d.Name
	}
	return fmt.Sprintf("Format(%d)", int32(f))
}

// PlaneCount returns the number of planes of f, or 0 for unknown formats.
func (f Format) PlaneCount() int {
	d, ok := descriptors[f]
	if !ok {
		return 0
	}
	return d.PlaneCount()
}

// PlaneCount returns one more than the highest plane index used by any
// component.
func (d Descriptor) PlaneCount() int {
	n := 0
	for _, c := range d.Components {
		n = max(n, c.Plane+1)
	}
	return n
}

// IsChromaPlane reports whether plane holds subsampled chroma. Plane 0 and
// the alpha plane are always full resolution.
func (d Descriptor) IsChromaPlane(plane int) bool {
	if d.Flags&FlagRGB != 0 {
		return false
	}
	return plane == 1 || plane == 2
}

// PlaneSize returns the size in pixels of plane for a w×h frame. Chroma
// planes round up so odd sizes keep their last column and row.
func (d Descriptor) PlaneSize(plane, w, h int) (int, int) {
	if !d.IsChromaPlane(plane) {
		return w, h
	}
	return ceilShift(w, d.Log2ChromaW), ceilShift(h, d.Log2ChromaH)
}

// PlaneStep returns how many samples one pixel occupies in plane.
func (d Descriptor) PlaneStep(plane int) int {
	step := 0
	for _, c := range d.Components {
		if c.Plane == plane {
			step = max(step, c.Step)
		}
	}
	return step
}

// SubsampleX returns the horizontal chroma subsampling factor.
func (d Descriptor) SubsampleX() int { return 1 << d.Log2ChromaW }

// SubsampleY returns the vertical chroma subsampling factor.
func (d Descriptor) SubsampleY() int { return 1 << d.Log2ChromaH }

func ceilShift(v, s int) int {
	return -((-v) >> s)
}
