// Package imageio converts host images to and from planar frame samples.
//
// Decoding supports PNG and JPEG from the standard library plus BMP, TIFF
// and WebP from golang.org/x/image. Frames are stored as one uint32 per
// sample, the layout GPU planes use.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned for an image or pixel format that
	// cannot be converted.
	ErrUnsupportedFormat = errors.New("imageio: unsupported format")

	// ErrNoImages is returned when a directory holds no decodable images.
	ErrNoImages = errors.New("imageio: no images found")
)

// imageExts lists the file extensions Load accepts in a sequence.
var imageExts = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// IsImage reports whether path has an image file extension.
func IsImage(path string) bool {
	return slices.Contains(imageExts, strings.ToLower(filepath.Ext(path)))
}

// Load decodes the image at path, detecting the format from its content.
func Load(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imageio: open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f)
}

// Decode decodes an image from r, auto-detecting the format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode: %w", err)
	}
	return img, nil
}

// Save encodes img to path. The format follows the extension: TIFF for
// .tif and .tiff, JPEG for .jpg and .jpeg, PNG otherwise.
func Save(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imageio: create file: %w", err)
	}
	if err := Encode(f, img, filepath.Ext(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Encode writes img to w in the format named by ext.
func Encode(w io.Writer, img image.Image, ext string) error {
	var err error
	switch strings.ToLower(ext) {
	case ".tif", ".tiff":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".jpg", ".jpeg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("imageio: encode: %w", err)
	}
	return nil
}

// Sequence lists the input frames at path. A file is a one-frame sequence;
// a directory yields its image files sorted by name.
func Sequence(path string) ([]string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: %w", err)
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: read dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, path)
	}
	slices.Sort(files)
	return files, nil
}
