package imageio

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/gogpu/gopromax/pixfmt"
)

// FormatOf returns the pixel format img is stored in as frame planes.
// YCbCr and gray images keep their layout; everything else, including
// images whose bounds do not start at the origin, becomes RGBA.
func FormatOf(img image.Image) pixfmt.Format {
	if img.Bounds().Min != (image.Point{}) {
		return pixfmt.RGBA
	}
	switch m := img.(type) {
	case *image.Gray:
		return pixfmt.Gray8
	case *image.NYCbCrA:
		switch m.SubsampleRatio {
		case image.YCbCrSubsampleRatio420:
			return pixfmt.YUVA420P
		case image.YCbCrSubsampleRatio444:
			return pixfmt.YUVA444P
		}
	case *image.YCbCr:
		switch m.SubsampleRatio {
		case image.YCbCrSubsampleRatio420:
			return pixfmt.YUV420P
		case image.YCbCrSubsampleRatio422:
			return pixfmt.YUV422P
		case image.YCbCrSubsampleRatio440:
			return pixfmt.YUV440P
		case image.YCbCrSubsampleRatio444:
			return pixfmt.YUV444P
		}
	}
	return pixfmt.RGBA
}

// ToPlanes splits img into one sample slice per plane of format. Any image
// converts to RGBA; the other formats require FormatOf(img) == format.
func ToPlanes(img image.Image, format pixfmt.Format) ([][]uint32, error) {
	if format == pixfmt.RGBA {
		return [][]uint32{widen(toRGBA(img).Pix)}, nil
	}
	if FormatOf(img) != format {
		return nil, fmt.Errorf("%w: %T as %v", ErrUnsupportedFormat, img, format)
	}
	b := img.Bounds()
	switch m := img.(type) {
	case *image.Gray:
		return [][]uint32{rows(m.Pix, m.Stride, b.Dx(), b.Dy())}, nil
	case *image.NYCbCrA:
		planes := ycbcrPlanes(&m.YCbCr, format)
		return append(planes, rows(m.A, m.AStride, b.Dx(), b.Dy())), nil
	case *image.YCbCr:
		return ycbcrPlanes(m, format), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedFormat, img)
}

func ycbcrPlanes(m *image.YCbCr, format pixfmt.Format) [][]uint32 {
	desc, _ := pixfmt.Describe(format)
	w, h := m.Rect.Dx(), m.Rect.Dy()
	cw, ch := desc.PlaneSize(1, w, h)
	return [][]uint32{
		rows(m.Y, m.YStride, w, h),
		rows(m.Cb, m.CStride, cw, ch),
		rows(m.Cr, m.CStride, cw, ch),
	}
}

// FromPlanes assembles a w×h image of format from plane samples. Samples
// above 255 saturate.
func FromPlanes(format pixfmt.Format, w, h int, planes [][]uint32) (image.Image, error) {
	desc, ok := pixfmt.Describe(format)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
	}
	if len(planes) != desc.PlaneCount() {
		return nil, fmt.Errorf("imageio: %v needs %d planes, got %d", format, desc.PlaneCount(), len(planes))
	}
	for i, p := range planes {
		pw, ph := desc.PlaneSize(i, w, h)
		if want := pw * ph * desc.PlaneStep(i); len(p) != want {
			return nil, fmt.Errorf("imageio: plane %d has %d samples, want %d", i, len(p), want)
		}
	}

	r := image.Rect(0, 0, w, h)
	switch format {
	case pixfmt.Gray8:
		m := image.NewGray(r)
		narrow(m.Pix, planes[0])
		return m, nil
	case pixfmt.RGBA:
		m := image.NewRGBA(r)
		narrow(m.Pix, planes[0])
		return m, nil
	case pixfmt.YUV420P, pixfmt.YUV422P, pixfmt.YUV440P, pixfmt.YUV444P:
		m := image.NewYCbCr(r, subsampleRatio(format))
		fillYCbCr(m, planes)
		return m, nil
	case pixfmt.YUVA420P, pixfmt.YUVA444P:
		m := image.NewNYCbCrA(r, subsampleRatio(format))
		fillYCbCr(&m.YCbCr, planes)
		narrow(m.A, planes[3])
		return m, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
}

func fillYCbCr(m *image.YCbCr, planes [][]uint32) {
	narrow(m.Y, planes[0])
	narrow(m.Cb, planes[1])
	narrow(m.Cr, planes[2])
}

func subsampleRatio(f pixfmt.Format) image.YCbCrSubsampleRatio {
	switch f {
	case pixfmt.YUV420P, pixfmt.YUVA420P:
		return image.YCbCrSubsampleRatio420
	case pixfmt.YUV422P:
		return image.YCbCrSubsampleRatio422
	case pixfmt.YUV440P:
		return image.YCbCrSubsampleRatio440
	default:
		return image.YCbCrSubsampleRatio444
	}
}

// Resize scales img to w×h with a Catmull-Rom filter.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if m, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && m.Stride == 4*b.Dx() {
		return m
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// rows copies a w×h window of a strided byte plane into packed samples.
func rows(pix []byte, stride, w, h int) []uint32 {
	out := make([]uint32, 0, w*h)
	for y := 0; y < h; y++ {
		for _, v := range pix[y*stride : y*stride+w] {
			out = append(out, uint32(v))
		}
	}
	return out
}

func widen(pix []byte) []uint32 {
	out := make([]uint32, len(pix))
	for i, v := range pix {
		out[i] = uint32(v)
	}
	return out
}

func narrow(dst []byte, src []uint32) {
	for i := range dst {
		dst[i] = uint8(min(src[i], 255))
	}
}
