package gopromax

import (
	"fmt"

	"github.com/gogpu/gopromax/pixfmt"
)

// StreamDescriptor describes one negotiated input. It is derived once and
// not changed afterwards.
type StreamDescriptor struct {
	Format      pixfmt.Format
	Width       int
	Height      int
	Planes      int
	Log2ChromaW int
	Log2ChromaH int
}

// DescribeStream derives the descriptor of a w×h input of format.
func DescribeStream(format pixfmt.Format, w, h int) (StreamDescriptor, error) {
	d, ok := pixfmt.Describe(format)
	if !ok {
		return StreamDescriptor{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if w <= 0 || h <= 0 {
		return StreamDescriptor{}, fmt.Errorf("%w: invalid size %dx%d", ErrConfig, w, h)
	}
	return StreamDescriptor{
		Format:      format,
		Width:       w,
		Height:      h,
		Planes:      d.PlaneCount(),
		Log2ChromaW: d.Log2ChromaW,
		Log2ChromaH: d.Log2ChromaH,
	}, nil
}

// SubsampleX returns the horizontal chroma subsampling factor.
func (s StreamDescriptor) SubsampleX() int { return 1 << s.Log2ChromaW }

// SubsampleY returns the vertical chroma subsampling factor.
func (s StreamDescriptor) SubsampleY() int { return 1 << s.Log2ChromaH }

func (s StreamDescriptor) String() string {
	return fmt.Sprintf("%v %dx%d", s.Format, s.Width, s.Height)
}
