package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/gopromax"
	"github.com/gogpu/gopromax/backend"
	_ "github.com/gogpu/gopromax/backend/wgpu" // register the wgpu backend
)

func newGeometryCmd(a *app) *cobra.Command {
	var projection string
	cmd := &cobra.Command{
		Use:   "geometry <width>x<height>",
		Short: "Print the output size for an input size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w, h int
			if _, err := fmt.Sscanf(strings.ToLower(args[0]), "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
				return fmt.Errorf("%w: invalid size %q", gopromax.ErrConfig, args[0])
			}
			if projection == "" {
				projection = a.cfg.Stitch.Projection
			}
			p, err := gopromax.ParseProjection(projection)
			if err != nil {
				return err
			}
			g := gopromax.Resolve(w, h, p)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %dx%d -> %s (overlap %d)\n",
				p, w, h, g, gopromax.Overlap(w))
			return nil
		},
	}
	cmd.Flags().StringVarP(&projection, "projection", "p", "", "output projection (equirectangular|eac)")
	return cmd
}

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered compute backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range backend.Available() {
				dev, err := backend.Open(name)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s unavailable: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", name, dev.Name())
				if err := backend.Close(dev); err != nil {
					a.log.Warn("close device", "backend", name, "err", err)
				}
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cfg.Write(cmd.OutOrStdout())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gopromax", gopromax.Version)
		},
	}
}
