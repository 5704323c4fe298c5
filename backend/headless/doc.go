// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package headless provides a pure-software backend for renderloop.
//
// The backend renders into RAM-backed *image.RGBA framebuffers and is
// always available, making it the fallback for automatic backend
// selection and the natural choice for tests and CI.
//
// # Usage
//
// Import the package for its registration side effect:
//
//	import _ "github.com/gogpu/renderloop/backend/headless"
//
//	loop, err := renderloop.NewLoop(app)
//
// Command buffers for this backend are headless.Command values, plain
// functions that receive the target image:
//
//	func (a *app) Render(elapsed float64, fb renderloop.Framebuffer) ([]renderloop.CommandBuffer, error) {
//	    return []renderloop.CommandBuffer{
//	        headless.Command(func(img *image.RGBA) {
//	            draw.Draw(img, img.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
//	        }),
//	    }, nil
//	}
//
// Alternatively, assert the framebuffer to *headless.Framebuffer and draw
// into its Image directly during Render.
//
// # Ownership
//
// The backend is decoupled: the device survives surface destruction and
// is reused when a surface reappears. Presented frames can be read back
// with Device.Snapshot from any thread.
package headless
