// Command gopromax stitches dual-fisheye image sequences into panoramas on
// the GPU.
//
// Usage:
//
//	gopromax stitch front/ rear/ -p eac -o out/
//	gopromax geometry 4096x1344 -p eac
//	gopromax backends
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gopromax:", err)
		os.Exit(1)
	}
}
