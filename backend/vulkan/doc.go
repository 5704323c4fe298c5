// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vulkan presents frames to a window surface through the Vulkan
// API. It is the coupled-ownership backend: device and swapchain are
// created against one surface and both are torn down when that surface
// goes away.
//
// The package is opt-in behind the vulkan build tag because it links
// against the platform Vulkan loader. Without the tag a stub registers
// the name so lookups fail gracefully instead of at link time.
//
// # Usage
//
// Hosts construct the backend directly so they can pass the instance
// extensions their windowing system requires, then hand it to the loop:
//
//	if err := vulkan.Init(); err != nil { ... }
//	window, _ := glfw.CreateWindow(w, h, title, nil, nil)
//	b, err := vulkan.New(vulkan.WithInstanceExtensions(window.GetRequiredInstanceExtensions()...))
//	surf, err := window.CreateWindowSurface(b.Instance(), nil)
//	loop, err := renderloop.NewLoop(app, renderloop.WithBackend(b))
//	loop.SurfaceCreated(surf, w, h)
//
// Init must run on the main thread before New; it loads the Vulkan
// library through GLFW. The registry entry exists so the name shows up
// in listings, but the zero-argument factory cannot know the window's
// required extensions, so registry construction only suits probing.
//
// # Commands
//
// Submit accepts recorded vk.CommandBuffer values. The device allocates
// them from its pool via AllocateCommandBuffers; apps record render
// passes against the swapchain images exposed by Images and Views,
// typically rebuilding their framebuffers in DeviceCreated and Resized
// hooks. The first Submit of a frame waits on the image-acquired
// semaphore and signals the render-finished semaphore Present waits on;
// a frame that submits nothing still presents: the swapchain balances
// the semaphore pair with an empty submission.
//
// All device and swapchain calls are render-thread only, matching the
// loop's threading model.
package vulkan
