// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu provides an offscreen GPU backend built on the gogpu/wgpu
// HAL. Frames are rendered into storage buffers by compute passes and read
// back into CPU images on present.
//
// The backend registers itself under the name "wgpu" with priority 50: it
// is preferred over the software headless backend but yields to backends
// that can present to a real surface. Device and swapchain lifetimes are
// decoupled; the device survives surface destruction.
//
// # Usage
//
// Import the package for its registration side effect and select it by
// name, or let automatic selection pick it when a GPU is present:
//
//	import _ "github.com/gogpu/renderloop/backend/wgpu"
//
//	loop, err := renderloop.NewLoop(app, renderloop.WithBackendName(wgpu.BackendName))
//
// # Commands
//
// Device.Submit accepts two kinds of command buffer:
//
//   - FillOp values, which the device encodes as a built-in compute pass
//     clearing the acquired framebuffer to a color.
//   - hal.CommandBuffer values recorded by the application against the
//     device's HAL handles (see Device.Hal and Framebuffer.PixelBuffer).
//     Submit takes ownership and frees them once the frame fence signals.
//
// Pixels are packed one u32 per texel, 0xAABBGGRR little-endian, so the
// readback bytes land in RGBA order.
//
// # Build tags
//
// The nogpu build tag replaces the implementation with a stub that is
// registered but never available, for platforms without a HAL driver.
package wgpu
