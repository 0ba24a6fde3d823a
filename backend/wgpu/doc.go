// Package wgpu provides a compute device on the gogpu/wgpu HAL.
//
// Programs are WGSL compiled to SPIR-V with gogpu/naga. Planes are storage
// buffers holding one sample per u32 word, so every plane format uses the
// same kernel signature:
//
//	@group(0) @binding(0) var<storage, read_write> dst: array<u32>;
//	@group(0) @binding(1) var<storage, read> front: array<u32>;
//	@group(0) @binding(2) var<storage, read> rear: array<u32>;
//	@group(0) @binding(3) var<uniform> params: Params;
//
// Buffers carry no dimensions, so the uniform at binding 3 holds the
// destination, front and rear plane sizes and the samples per pixel, in
// that order, as u32 values. Entry points use @workgroup_size(8, 8).
//
// # Registration
//
// The backend registers itself as "wgpu" when imported:
//
//	import _ "github.com/gogpu/gopromax/backend/wgpu"
//
//	wgpu.Configure(wgpu.WithFenceTimeout(5 * time.Second))
//	dev, err := backend.Open("wgpu")
//
// Applications that already own a GPU device share it with
// [NewFromDevice] or [NewFromProvider] instead.
//
// # Queues
//
// A [Queue] records every Enqueue into one pending command encoder. Finish
// ends the encoder, submits it with a fence and waits on the fence, then
// frees the per-dispatch bind groups and uniform buffers.
package wgpu
