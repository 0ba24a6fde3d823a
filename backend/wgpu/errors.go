package wgpu

import "errors"

var (
	// ErrNoGPU is returned when no adapter can be opened.
	ErrNoGPU = errors.New("wgpu: no compatible GPU found")

	// ErrBackendUnavailable is returned when the HAL backend is not compiled in.
	ErrBackendUnavailable = errors.New("wgpu: HAL backend not available")

	// ErrNotHAL is returned when a device provider does not expose HAL types.
	ErrNotHAL = errors.New("wgpu: provider does not expose HAL device and queue")

	// ErrDeviceClosed is returned when a closed device is used.
	ErrDeviceClosed = errors.New("wgpu: device closed")

	// ErrFenceTimeout is returned when the GPU does not signal in time.
	ErrFenceTimeout = errors.New("wgpu: timed out waiting for GPU")

	// ErrDeviceLost is returned by a device that has hit ErrFenceTimeout.
	// Close it and open a new one.
	ErrDeviceLost = errors.New("wgpu: device lost after GPU timeout")

	// ErrSampleCount is returned when uploaded data does not match the plane.
	ErrSampleCount = errors.New("wgpu: sample count does not match plane")
)
