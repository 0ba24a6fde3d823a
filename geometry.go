// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gopromax

import (
	"fmt"
	"strings"

	"github.com/gogpu/gopromax/compute"
)

// Overlap constants. The overlap margin is OverlapBase pixels for a
// BaseSize-wide input and scales linearly with the actual input width.
const (
	OverlapBase = 64
	BaseSize    = 4096
)

// Projection selects the output layout.
type Projection int

// Projections.
const (
	// Equirectangular maps the sphere onto a 2:1 rectangle.
	Equirectangular Projection = iota

	// EquiangularCubemapStack stacks the equiangular cube faces of both
	// lenses vertically.
	EquiangularCubemapStack
)

// ProjectionFromFlag maps the numeric mode flag: 0 selects
// Equirectangular, anything else EquiangularCubemapStack.
func ProjectionFromFlag(v int) Projection {
	if v == 0 {
		return Equirectangular
	}
	return EquiangularCubemapStack
}

// ParseProjection parses a projection name.
func ParseProjection(s string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equirectangular", "equirect", "e", "0":
		return Equirectangular, nil
	case "eac", "stack", "cubemap", "1":
		return EquiangularCubemapStack, nil
	}
	return Equirectangular, fmt.Errorf("%w: unknown projection %q", ErrConfig, s)
}

func (p Projection) String() string {
	switch p {
	case Equirectangular:
		return "equirectangular"
	case EquiangularCubemapStack:
		return "eac"
	default:
		return fmt.Sprintf("Projection(%d)", int(p))
	}
}

// KernelName returns the program entry point implementing p.
func (p Projection) KernelName() string {
	if p == EquiangularCubemapStack {
		return compute.EntryStack
	}
	return compute.EntryEquirectangular
}

// Geometry is an output frame size.
type Geometry struct {
	Width, Height int
}

func (g Geometry) String() string { return fmt.Sprintf("%dx%d", g.Width, g.Height) }

// Overlap returns the margin trimmed from each side of a stacked output
// for a frontWidth-wide input.
func Overlap(frontWidth int) int {
	return frontWidth * OverlapBase / BaseSize
}

// Resolve computes the output size for a front stream of the given size.
//
// Equirectangular output is always 2:1 and depends on the input height
// only: (4h, 2h). Stacked cubemap output keeps the input width minus an
// overlap margin on both sides and doubles the height.
func Resolve(frontWidth, frontHeight int, mode Projection) Geometry {
	if mode == EquiangularCubemapStack {
		return Geometry{
			Width:  frontWidth - 2*Overlap(frontWidth),
			Height: 2 * frontHeight,
		}
	}
	return Geometry{Width: 4 * frontHeight, Height: 2 * frontHeight}
}
