// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package glfwhost ties a GLFW window to a render loop.
//
// The host owns the window and translates its platform events into loop
// signals: framebuffer size changes become SurfaceChanged, closing the
// window becomes SurfaceDestroyed, and cursor, button and key events feed
// the loop's input latch. Frames keep rendering on the loop's own thread
// while the host pumps events on the main thread.
//
// # Usage
//
// GLFW requires the main OS thread, so lock it before anything else:
//
//	func init() { runtime.LockOSThread() }
//
// The window exists first, because a vulkan backend is built from the
// window's instance extensions and the surface is minted against that
// backend's instance:
//
//	if err := vulkan.Init(); err != nil {
//		log.Fatal(err)
//	}
//	defer vulkan.Terminate()
//
//	host, err := glfwhost.New(glfwhost.WithTitle("demo"), glfwhost.WithSize(1024, 768))
//	exts := host.Window().GetRequiredInstanceExtensions()
//	b, err := vulkan.New(vulkan.WithInstanceExtensions(exts...))
//	surf, err := host.Window().CreateWindowSurface(b.Instance(), nil)
//	loop, err := renderloop.NewLoop(app, renderloop.WithBackend(b))
//	if err := host.Run(loop, surf); err != nil {
//		log.Fatal(err)
//	}
//
// Backends that do not consume surface handles, such as headless, take a
// nil surface; the host hands over the *glfw.Window itself.
//
// Run blocks until the window closes or the loop stops. Minimizing the
// window pauses the loop; restoring it resumes.
package glfwhost
