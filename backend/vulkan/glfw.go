// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build vulkan

package vulkan

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
)

// This file carries the GLFW dependency for desktop builds. Other
// platforms must load the Vulkan library themselves and are not covered
// by this package.

// ErrNoLoader is returned by Init when GLFW cannot find the platform
// Vulkan loader.
var ErrNoLoader = errors.New("vulkan: loader not found")

// Init loads the Vulkan library through GLFW. It must be called on the
// main thread before New. Calling it again after success is a no-op, so
// hosts that initialize GLFW themselves can still call it.
func Init() error {
	if loaderReady.Load() {
		return nil
	}
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("vulkan: glfw init: %w", err)
	}
	if !glfw.VulkanSupported() {
		return ErrNoLoader
	}
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return fmt.Errorf("vulkan: load library: %w", err)
	}
	loaderReady.Store(true)
	return nil
}

// Terminate shuts GLFW down. Call it last, on the main thread, after
// every backend is destroyed.
func Terminate() {
	glfw.Terminate()
}
