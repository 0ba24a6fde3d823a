package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/gogpu/gopromax"
	"github.com/gogpu/gopromax/backend"
	"github.com/gogpu/gopromax/backend/wgpu"
	"github.com/gogpu/gopromax/compute"
	"github.com/gogpu/gopromax/frame"
	"github.com/gogpu/gopromax/framesync"
	"github.com/gogpu/gopromax/internal/imageio"
	"github.com/gogpu/gopromax/kernels"
	"github.com/gogpu/gopromax/pixfmt"
)

// transferDevice is a compute device that can move plane samples to and
// from host memory.
type transferDevice interface {
	compute.Device
	Upload(p compute.Plane, samples []uint32) error
	Download(p compute.Plane) ([]uint32, error)
}

// job is one stitching run over two image sequences.
type job struct {
	front, rear []string
	projection  gopromax.Projection
	source      compute.Source
	fps         int
	shortest    bool
	outDir      string
	outExt      string
	log         *slog.Logger
	progress    io.Writer // nil disables per-frame progress
}

// stats summarizes a finished job.
type stats struct {
	Frames  int
	Bytes   uint64
	Output  gopromax.Geometry
	Format  pixfmt.Format
	Elapsed time.Duration
}

func newStitchCmd(a *app) *cobra.Command {
	var (
		projection   string
		kernelPath   string
		backendName  string
		output       string
		format       string
		fps          int
		shortest     bool
		fenceTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stitch <front> <rear>",
		Short: "Stitch front and rear lens images into panoramas",
		Long: `Stitch pairs of front and rear lens images. Each input is an image file or
a directory of frames sorted by name. Frames are matched by index at the
configured frame rate; when one sequence is shorter its last frame is
repeated unless --shortest is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("projection") {
				cfg.Stitch.Projection = projection
			}
			if flags.Changed("kernel") {
				cfg.Stitch.Kernel = kernelPath
			}
			if flags.Changed("backend") {
				cfg.Device.Backend = backendName
			}
			if flags.Changed("output") {
				cfg.Output.Dir = output
			}
			if flags.Changed("format") {
				cfg.Output.Format = format
			}
			if flags.Changed("fps") {
				cfg.Stitch.FPS = fps
			}
			if flags.Changed("shortest") {
				cfg.Stitch.Shortest = shortest
			}
			if flags.Changed("fence-timeout") {
				cfg.Device.FenceTimeout = fenceTimeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			src := kernels.Default()
			if cfg.Stitch.Kernel != "" {
				wgsl, err := os.ReadFile(filepath.Clean(cfg.Stitch.Kernel))
				if err != nil {
					return fmt.Errorf("read kernel: %w", err)
				}
				src = compute.Source{Label: filepath.Base(cfg.Stitch.Kernel), WGSL: string(wgsl)}
			}

			frontFiles, err := imageio.Sequence(args[0])
			if err != nil {
				return err
			}
			rearFiles, err := imageio.Sequence(args[1])
			if err != nil {
				return err
			}

			dev, err := openDevice(cfg.Device.Backend, cfg.Device.FenceTimeout)
			if err != nil {
				return err
			}
			defer func() {
				if err := backend.Close(dev); err != nil {
					a.log.Warn("close device", "err", err)
				}
			}()
			tdev, ok := dev.(transferDevice)
			if !ok {
				return fmt.Errorf("device %s cannot transfer host images", dev.Name())
			}

			j := &job{
				front:      frontFiles,
				rear:       rearFiles,
				projection: cfg.Projection(),
				source:     src,
				fps:        cfg.Stitch.FPS,
				shortest:   cfg.Stitch.Shortest,
				outDir:     cfg.Output.Dir,
				outExt:     "." + cfg.Output.Format,
				log:        a.log,
			}
			if f := logFile(cmd); f != nil && isatty.IsTerminal(f.Fd()) {
				j.progress = f
			}

			st, err := j.run(cmd.Context(), tdev)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stitched %d %s frames (%s, %s) into %s: %s in %v\n",
				st.Frames, st.Format, j.projection, st.Output, j.outDir,
				humanize.Bytes(st.Bytes), st.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&projection, "projection", "p", "", "output projection (equirectangular|eac)")
	f.StringVarP(&kernelPath, "kernel", "k", "", "WGSL kernel file, built-in kernel if empty")
	f.StringVarP(&backendName, "backend", "b", "", "compute backend, best available if empty")
	f.StringVarP(&output, "output", "o", "", "output directory")
	f.StringVarP(&format, "format", "f", "", "output image format (png|tiff|jpg)")
	f.IntVar(&fps, "fps", 0, "input frame rate")
	f.BoolVar(&shortest, "shortest", false, "stop at the end of the shorter sequence")
	f.DurationVar(&fenceTimeout, "fence-timeout", 0, "maximum wait for one GPU submission")
	return cmd
}

// openDevice opens the named backend, or the best available one when name
// is empty.
func openDevice(name string, fenceTimeout time.Duration) (compute.Device, error) {
	wgpu.Configure(wgpu.WithFenceTimeout(fenceTimeout))
	if name == "" {
		return backend.Default()
	}
	return backend.Open(name)
}

// run uploads every input frame, feeds the synchronizer, and writes each
// stitched frame as it is produced.
func (j *job) run(ctx context.Context, dev transferDevice) (st stats, err error) {
	start := time.Now()
	if err := os.MkdirAll(j.outDir, 0o750); err != nil {
		return st, fmt.Errorf("create output directory: %w", err)
	}

	front0, err := imageio.Load(j.front[0])
	if err != nil {
		return st, err
	}
	rear0, err := imageio.Load(j.rear[0])
	if err != nil {
		return st, err
	}
	format := imageio.FormatOf(front0)
	if imageio.FormatOf(rear0) != format {
		format = pixfmt.RGBA
	}
	st.Format = format

	fb, rb := front0.Bounds(), rear0.Bounds()
	frontDesc, err := gopromax.DescribeStream(format, fb.Dx(), fb.Dy())
	if err != nil {
		return st, err
	}
	rearDesc, err := gopromax.DescribeStream(format, rb.Dx(), rb.Dy())
	if err != nil {
		return st, err
	}
	frontAlloc, err := frame.NewAllocator(dev, format, fb.Dx(), fb.Dy())
	if err != nil {
		return st, err
	}
	rearAlloc, err := frame.NewAllocator(dev, format, rb.Dx(), rb.Dy())
	if err != nil {
		return st, err
	}

	tb := frame.Rational{Num: 1, Den: int64(j.fps)}
	fs, err := framesync.New(tb, tb, framesync.WithShortest(j.shortest))
	if err != nil {
		return st, err
	}

	sink := gopromax.SinkFunc(func(_ context.Context, out *frame.Frame) error {
		defer out.Release()
		n, err := j.write(dev, format, out, st.Frames)
		if err != nil {
			return err
		}
		st.Frames++
		st.Bytes += n
		if j.progress != nil {
			fmt.Fprintf(j.progress, "\rframe %d (%s)", st.Frames, humanize.Bytes(st.Bytes))
		}
		return nil
	})

	s, err := gopromax.New(dev,
		gopromax.WithProjection(j.projection),
		gopromax.WithProgramSource(j.source),
		gopromax.WithSink(sink),
		gopromax.WithSync(fs),
	)
	if err != nil {
		fs.Close()
		return st, err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()

	geom, err := s.ConfigureOutput(frontDesc, rearDesc)
	if err != nil {
		return st, err
	}
	st.Output = geom
	j.log.Info("stitching",
		"front", len(j.front), "rear", len(j.rear),
		"format", format.String(), "input", fmt.Sprintf("%dx%d", fb.Dx(), fb.Dy()),
		"output", geom.String(), "device", dev.Name())

	for i := 0; i < max(len(j.front), len(j.rear)); i++ {
		if i < len(j.front) {
			if err := j.push(fs, framesync.Front, frontAlloc, dev, j.front[i], format, i); err != nil {
				return st, err
			}
		} else if i == len(j.front) {
			_ = fs.CloseInput(framesync.Front)
		}
		if i < len(j.rear) {
			if err := j.push(fs, framesync.Rear, rearAlloc, dev, j.rear[i], format, i); err != nil {
				return st, err
			}
		} else if i == len(j.rear) {
			_ = fs.CloseInput(framesync.Rear)
		}
		if err := s.Activate(ctx, fs); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return st, err
		}
	}
	_ = fs.CloseInput(framesync.Front)
	_ = fs.CloseInput(framesync.Rear)
	if err := s.Activate(ctx, fs); err != nil && !errors.Is(err, io.EOF) {
		return st, err
	}
	if j.progress != nil {
		fmt.Fprintln(j.progress)
	}
	st.Elapsed = time.Since(start)
	return st, nil
}

// push loads one image, uploads it into a new frame, and queues it.
func (j *job) push(fs *framesync.Sync, st framesync.Stream, alloc *frame.Allocator,
	dev transferDevice, path string, format pixfmt.Format, index int) error {
	img, err := imageio.Load(path)
	if err != nil {
		return err
	}
	hw := alloc.Context()
	if b := img.Bounds(); b.Dx() != hw.Width || b.Dy() != hw.Height {
		return fmt.Errorf("%s: %v frame is %dx%d, sequence is %dx%d",
			path, st, b.Dx(), b.Dy(), hw.Width, hw.Height)
	}
	planes, err := imageio.ToPlanes(img, format)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	f, err := alloc.Alloc()
	if err != nil {
		return err
	}
	for i, p := range f.Planes {
		if err := dev.Upload(p, planes[i]); err != nil {
			f.Release()
			return fmt.Errorf("%s: upload plane %d: %w", path, i, err)
		}
	}
	f.PTS = int64(index)
	f.Duration = 1
	f.TimeBase = frame.Rational{Num: 1, Den: int64(j.fps)}
	f.KeyFrame = true
	return fs.Push(st, f)
}

// write downloads out and saves it as the index-th output frame. It
// returns the encoded size.
func (j *job) write(dev transferDevice, format pixfmt.Format, out *frame.Frame, index int) (uint64, error) {
	planes := make([][]uint32, len(out.Planes))
	for i, p := range out.Planes {
		samples, err := dev.Download(p)
		if err != nil {
			return 0, fmt.Errorf("download plane %d: %w", i, err)
		}
		planes[i] = samples
	}
	img, err := imageio.FromPlanes(format, out.Width, out.Height, planes)
	if err != nil {
		return 0, err
	}
	path := filepath.Join(j.outDir, fmt.Sprintf("frame_%06d%s", index, j.outExt))
	if err := imageio.Save(path, img); err != nil {
		return 0, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	j.log.Debug("frame written", "path", path, "pts", out.PTS, "size", humanize.Bytes(uint64(fi.Size())))
	return uint64(fi.Size()), nil
}
