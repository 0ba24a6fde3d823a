package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/gopromax"
	"github.com/gogpu/gopromax/backend"
	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/compute/computetest"
	"github.com/gogpu/gopromax/internal/imageio"
	"github.com/gogpu/gopromax/kernels"
	"github.com/gogpu/gopromax/pixfmt"
)

// hostDevice adds host transfers to the recording device.
type hostDevice struct {
	*computetest.Device
}

func (d hostDevice) Upload(p compute.Plane, samples []uint32) error {
	plane := p.(*computetest.Plane)
	if len(samples) != len(plane.Data) {
		return fmt.Errorf("upload %d samples into %d", len(samples), len(plane.Data))
	}
	copy(plane.Data, samples)
	return nil
}

func (d hostDevice) Download(p compute.Plane) ([]uint32, error) {
	return append([]uint32(nil), p.(*computetest.Plane).Data...), nil
}

func newHostDevice() hostDevice {
	dev := hostDevice{computetest.NewDevice()}
	dev.Kernel = func(_ string, _ compute.WorkSize, args [compute.NumArgs]*computetest.Plane) {
		dst := args[compute.ArgDestination]
		for i := range dst.Data {
			dst.Data[i] = 255
		}
	}
	return dev
}

func writeSequence(t *testing.T, n, w, h int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(i), A: 255})
			}
		}
		require.NoError(t, imageio.Save(filepath.Join(dir, fmt.Sprintf("%04d.png", i)), img))
	}
	return dir
}

func newJob(t *testing.T, front, rear string, shortest bool) *job {
	t.Helper()
	frontFiles, err := imageio.Sequence(front)
	require.NoError(t, err)
	rearFiles, err := imageio.Sequence(rear)
	require.NoError(t, err)
	return &job{
		front:      frontFiles,
		rear:       rearFiles,
		projection: gopromax.EquiangularCubemapStack,
		source:     kernels.Default(),
		fps:        30,
		shortest:   shortest,
		outDir:     filepath.Join(t.TempDir(), "out"),
		outExt:     ".png",
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestJobRepeatsLastRearFrame(t *testing.T) {
	dev := newHostDevice()
	j := newJob(t, writeSequence(t, 3, 64, 16), writeSequence(t, 2, 64, 16), false)

	st, err := j.run(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Frames)
	assert.Equal(t, pixfmt.RGBA, st.Format)
	assert.Equal(t, gopromax.Geometry{Width: 62, Height: 32}, st.Output)
	assert.Positive(t, st.Bytes)

	files, err := imageio.Sequence(j.outDir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "frame_000000.png", filepath.Base(files[0]))

	img, err := imageio.Load(files[2])
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 62, 32), img.Bounds())

	assert.Len(t, dev.Programs(), 1, "program bound once")
	assert.Zero(t, dev.LivePlanes(), "every frame released")
}

func TestJobShortest(t *testing.T) {
	dev := newHostDevice()
	j := newJob(t, writeSequence(t, 3, 64, 16), writeSequence(t, 2, 64, 16), true)

	st, err := j.run(context.Background(), dev)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Frames)
	assert.Zero(t, dev.LivePlanes())
}

func TestJobRejectsSizeChange(t *testing.T) {
	front := writeSequence(t, 1, 64, 16)
	img := image.NewRGBA(image.Rect(0, 0, 32, 16))
	require.NoError(t, imageio.Save(filepath.Join(front, "0001.png"), img))

	dev := newHostDevice()
	j := newJob(t, front, writeSequence(t, 2, 64, 16), false)
	_, err := j.run(context.Background(), dev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32x16")
	assert.Zero(t, dev.LivePlanes())
}

func TestJobDeviceFailure(t *testing.T) {
	dev := newHostDevice()
	dev.Faults.Finish = true
	j := newJob(t, writeSequence(t, 2, 64, 16), writeSequence(t, 2, 64, 16), false)

	_, err := j.run(context.Background(), dev)
	assert.ErrorIs(t, err, gopromax.ErrDeviceIO)
	assert.Zero(t, dev.LivePlanes())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	orig := gopromax.Logger()
	t.Cleanup(func() { gopromax.SetLogger(orig) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestGeometryCommand(t *testing.T) {
	out, err := execute(t, "geometry", "4096x1344", "-p", "eac")
	require.NoError(t, err)
	assert.Equal(t, "eac 4096x1344 -> 3968x2688 (overlap 64)\n", out)

	out, err = execute(t, "geometry", "5376x1344")
	require.NoError(t, err)
	assert.Contains(t, out, "-> 5376x2688")

	_, err = execute(t, "geometry", "big")
	assert.ErrorIs(t, err, gopromax.ErrConfig)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stitch:\n  projection: eac\n"), 0o600))

	out, err := execute(t, "config", "--config", path, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "projection: eac")
	assert.Contains(t, out, "level: debug")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "gopromax "+gopromax.Version+"\n", out)
}

func TestStitchUnknownBackend(t *testing.T) {
	in := writeSequence(t, 1, 64, 16)
	_, err := execute(t, "stitch", in, in, "--backend", "nope")
	assert.ErrorIs(t, err, backend.ErrBackendNotAvailable)
}
