// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gopromax/compute"
)

// noTimeout makes fence waits block until the GPU signals.
const noTimeout = time.Duration(math.MaxInt64)

// Option configures a Device.
type Option func(*options)

type options struct {
	backend      gputypes.Backend
	fenceTimeout time.Duration
}

func defaultOptions() options {
	return options{backend: gputypes.BackendVulkan, fenceTimeout: noTimeout}
}

// WithFenceTimeout bounds how long Queue.Finish waits for the GPU. Zero
// or a negative value waits indefinitely, which is the default.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d <= 0 {
			d = noTimeout
		}
		o.fenceTimeout = d
	}
}

// WithBackend selects the HAL backend used by Open. The default is Vulkan.
func WithBackend(b gputypes.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// Device is a compute.Device on a HAL device and queue.
type Device struct {
	mu     sync.Mutex
	closed bool
	lost   bool

	instance hal.Instance // nil when the device is shared
	device   hal.Device
	queue    hal.Queue
	owned    bool
	name     string
	opts     options
}

var _ compute.Device = (*Device)(nil)

// Open creates a HAL instance and opens the first discrete or integrated
// GPU, falling back to the first adapter.
func Open(opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	backend, ok := hal.GetBackend(o.backend)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, o.backend)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	d, err := openAdapter(instance, o)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	return d, nil
}

func openAdapter(instance hal.Instance, o options) (*Device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, ErrNoGPU
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrNoGPU, selected.Info.Name, err)
	}
	slogger().Info("wgpu: device opened",
		"adapter", selected.Info.Name,
		"type", selected.Info.DeviceType,
		"backend", o.backend)
	return &Device{
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		owned:    true,
		name:     selected.Info.Name,
		opts:     o,
	}, nil
}

// NewFromDevice wraps a device and queue owned by the caller. Close does
// not destroy them.
func NewFromDevice(device hal.Device, queue hal.Queue, opts ...Option) (*Device, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: nil HAL device or queue")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{device: device, queue: queue, name: "shared", opts: o}, nil
}

// NewFromProvider shares the GPU device of a gpucontext.DeviceProvider. The
// provider must also expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue, as gpucontext.HalProvider implementations do.
func NewFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHAL)
	}
	return NewFromDevice(device, queue, opts...)
}

// Name implements compute.Device.
func (d *Device) Name() string { return "wgpu/" + d.name }

// SetLogger sets the logger for this package. It is called by
// gopromax.SetLogger for devices in use by a stitcher.
func (d *Device) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

func (d *Device) check() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	if d.lost {
		return ErrDeviceLost
	}
	return nil
}

// markLost records that submitted work did not finish in time. The GPU may
// still reference any handle, so releases stop destroying HAL objects and
// everything is reclaimed when Close destroys the device.
func (d *Device) markLost() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lost = true
}

// live reports whether releases may destroy HAL objects.
func (d *Device) live() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.lost
}

// Close destroys the device and instance if Open created them. Handles
// must be released first. Close is idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	return nil
}
