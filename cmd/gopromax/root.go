package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/gopromax"
	"github.com/gogpu/gopromax/internal/config"
)

// app carries the settings shared by every command.
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gopromax",
		Short: "Stitch dual-fisheye 360° footage on the GPU",
		Long: `gopromax pairs front and rear lens frames by timestamp and stitches
them into equirectangular or equi-angular cubemap panoramas with a WGSL
compute kernel.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (text|json)")

	root.AddCommand(newStitchCmd(a))
	root.AddCommand(newGeometryCmd(a))
	root.AddCommand(newBackendsCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// setup loads the config file, applies the global flags, and installs the
// logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg
	a.log = cfg.Logging.NewLogger(cmd.ErrOrStderr())
	gopromax.SetLogger(a.log)
	return nil
}

// logFile returns the descriptor progress output should check for a
// terminal, or nil when the command writes elsewhere.
func logFile(cmd *cobra.Command) *os.File {
	f, _ := cmd.ErrOrStderr().(*os.File)
	return f
}
