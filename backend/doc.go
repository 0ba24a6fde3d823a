// Package backend provides a registry of compute device backends.
//
// Backends register a [Factory] from an init() function and are selected
// at runtime by name or by priority:
//
//	import _ "github.com/gogpu/gopromax/backend/wgpu"
//
//	// Open the best available device
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Open("wgpu")
//
// # Available Backends
//
// - "wgpu": Vulkan compute via gogpu/wgpu, registered by backend/wgpu
package backend
