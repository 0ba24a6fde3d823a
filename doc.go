// Package gopromax stitches the two fisheye streams of a dual-lens 360°
// camera into one panoramic frame on the GPU.
//
// # Overview
//
// A dual-lens camera records a front and a rear stream. gopromax pairs
// their frames (see package framesync), resolves the output size for the
// chosen projection, and runs a compute kernel once per image plane that
// reads the front and rear planes and writes the output plane. The kernel
// math lives in the compute program supplied with [WithProgramSource];
// this package only orchestrates it.
//
// # Quick Start
//
//	dev, _ := backend.Default()
//	s, err := gopromax.New(dev,
//	    gopromax.WithProjection(gopromax.Equirectangular),
//	    gopromax.WithProgramSource(compute.Source{Label: "gopromax", WGSL: src}),
//	    gopromax.WithSink(sink),
//	)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	if _, err := s.ConfigureOutput(frontDesc, rearDesc); err != nil {
//	    return err
//	}
//	return s.Run(ctx, fs.Pairs(ctx))
//
// # Projections
//
//   - [Equirectangular]: output is 4h×2h for an h pixel high input.
//   - [EquiangularCubemapStack]: output keeps the input width minus an
//     overlap margin of w·64/4096 on each side, and twice its height.
//
// # Program Binding
//
// GPU resources are created lazily. The software pixel format inside the
// GPU frames is only known once the first complete pair arrives, so the
// program, command queue and kernel are created then, exactly once per
// Stitcher. A failed bind leaves nothing allocated.
//
// # Errors
//
// Errors wrap one of [ErrConfig], [ErrDeviceIO] or [ErrOutOfMemory]. A
// missing frame is reported as framesync.ErrNotReady, which is a normal
// condition.
package gopromax

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
