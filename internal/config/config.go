// Package config loads stitching settings for the gopromax command.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/gopromax"
	"github.com/gogpu/gopromax/backend"
)

// Config holds the settings of one stitching run.
type Config struct {
	Stitch  Stitch  `yaml:"stitch"`
	Device  Device  `yaml:"device"`
	Output  Output  `yaml:"output"`
	Logging Logging `yaml:"logging"`
}

// Stitch selects the projection and frame pacing.
type Stitch struct {
	Projection string `yaml:"projection"` // equirectangular, eac
	Kernel     string `yaml:"kernel"`     // WGSL file, empty for the built-in kernel
	FPS        int    `yaml:"fps"`        // input frame rate of image sequences
	Shortest   bool   `yaml:"shortest"`   // stop at the end of the shorter input
}

// Device selects the compute backend.
type Device struct {
	Backend      string        `yaml:"backend"` // empty picks the best available
	FenceTimeout time.Duration `yaml:"fence_timeout"`
}

// Output controls where stitched frames are written.
type Output struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // png, tiff, jpg
}

// Logging controls log verbosity and encoding.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Stitch: Stitch{
			Projection: "equirectangular",
			FPS:        30,
		},
		Device: Device{
			FenceTimeout: 10 * time.Second,
		},
		Output: Output{
			Dir:    "stitched",
			Format: "png",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := gopromax.ParseProjection(c.Stitch.Projection); err != nil {
		errs = append(errs, err)
	}
	if c.Stitch.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.Stitch.FPS))
	}
	if c.Device.Backend != "" && !backend.IsRegistered(c.Device.Backend) {
		errs = append(errs, fmt.Errorf("%w: %q", backend.ErrBackendNotAvailable, c.Device.Backend))
	}
	if c.Device.FenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("fence_timeout must not be negative, got %v", c.Device.FenceTimeout))
	}
	switch strings.ToLower(c.Output.Format) {
	case "png", "tif", "tiff", "jpg", "jpeg":
	default:
		errs = append(errs, fmt.Errorf("unsupported output format %q", c.Output.Format))
	}
	if _, ok := parseLevel(c.Logging.Level); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Projection returns the parsed projection. Call Validate first.
func (c *Config) Projection() gopromax.Projection {
	p, _ := gopromax.ParseProjection(c.Stitch.Projection)
	return p
}

// Write encodes c as YAML to w.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return enc.Close()
}

// NewLogger returns a logger writing to w at the configured level, as
// JSON when Format is "json" and as text otherwise.
func (l Logging) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(l.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
