// Package kernels embeds the default stitch program.
//
// The program exposes the gopromax_stack and gopromax_equirectangular entry
// points with the fixed argument layout of package compute: binding 0 is
// the destination plane, 1 the front plane, 2 the rear plane, and 3 a
// uniform block with the plane sizes and samples per pixel.
package kernels

import (
	_ "embed"

	"github.com/gogpu/gopromax/compute"
)

//go:embed gopromax.wgsl
var gopromaxWGSL string

// Default returns the default stitch program.
func Default() compute.Source {
	return compute.Source{Label: "gopromax", WGSL: gopromaxWGSL}
}
