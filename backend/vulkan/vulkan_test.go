// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build vulkan

package vulkan

import (
	"errors"
	"runtime"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/gogpu/renderloop"
)

func TestNewRequiresInit(t *testing.T) {
	if loaderReady.Load() {
		t.Skip("loader already initialized by another test")
	}
	if _, err := New(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("New() before Init: err = %v, want ErrNotInitialized", err)
	}
}

func TestBackendRegistered(t *testing.T) {
	found := false
	for _, name := range renderloop.RegisteredBackends() {
		if name == BackendName {
			found = true
		}
	}
	if !found {
		t.Fatalf("%q missing from registered backends", BackendName)
	}

	b := &Backend{}
	if b.Name() != BackendName {
		t.Errorf("Name() = %q, want %q", b.Name(), BackendName)
	}
	if b.Ownership() != renderloop.OwnershipCoupled {
		t.Errorf("Ownership() = %v, want Coupled", b.Ownership())
	}
}

func TestCreateSwapchainForeignDevice(t *testing.T) {
	b := &Backend{}

	_, err := b.CreateSwapchain(nil, nil, 10, 10)
	if err == nil {
		t.Fatal("expected error for foreign device")
	}
}

func TestSurfaceHandleConversion(t *testing.T) {
	want := vk.SurfaceFromPointer(0x1234)
	got, err := asSurface(want)
	if err != nil || got != want {
		t.Errorf("asSurface(vk.Surface) = %v, %v", got, err)
	}

	got, err = asSurface(uintptr(0x1234))
	if err != nil || got != want {
		t.Errorf("asSurface(uintptr) = %v, %v", got, err)
	}

	if _, err := asSurface("not a surface"); err == nil {
		t.Error("asSurface(string) succeeded, want error")
	}
	if _, err := asSurface(nil); err == nil {
		t.Error("asSurface(nil) succeeded, want error")
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	srgb := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	unorm := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got := chooseSurfaceFormat([]vk.SurfaceFormat{unorm, srgb})
	if got.Format != vk.FormatB8g8r8a8Srgb {
		t.Errorf("format = %v, want sRGB BGRA preferred", got.Format)
	}

	got = chooseSurfaceFormat([]vk.SurfaceFormat{unorm})
	if got.Format != vk.FormatB8g8r8a8Unorm {
		t.Errorf("format = %v, want first available", got.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	got := choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
	if got != vk.PresentModeMailbox {
		t.Errorf("mode = %v, want mailbox preferred", got)
	}

	got = choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate})
	if got != vk.PresentModeFifo {
		t.Errorf("mode = %v, want fifo fallback", got)
	}
}

func TestChooseExtent(t *testing.T) {
	pinned := vk.SurfaceCapabilities{
		CurrentExtent: vk.Extent2D{Width: 800, Height: 600},
	}
	got := chooseExtent(pinned, 1024, 768)
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("extent = %dx%d, want pinned 800x600", got.Width, got.Height)
	}

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	got = chooseExtent(free, 1024, 768)
	if got.Width != 1024 || got.Height != 768 {
		t.Errorf("extent = %dx%d, want requested 1024x768", got.Width, got.Height)
	}

	got = chooseExtent(free, 16, 50000)
	if got.Width != 64 || got.Height != 4096 {
		t.Errorf("extent = %dx%d, want clamped 64x4096", got.Width, got.Height)
	}
}

// initOrSkip loads the Vulkan library, skipping when the environment has
// no loader or no display.
func initOrSkip(t *testing.T) {
	t.Helper()
	runtime.LockOSThread()
	if err := Init(); err != nil {
		t.Skipf("vulkan not available: %v", err)
	}
}

func TestInstanceLifecycle(t *testing.T) {
	initOrSkip(t)

	b, err := New()
	if err != nil {
		t.Skipf("vulkan not available: %v", err)
	}
	if b.Instance() == nil {
		t.Error("Instance() is nil after New")
	}
	b.Destroy()
	b.Destroy()
}

// newSurfaceBackend brings up a hidden window, a backend carrying its
// required extensions, and a window surface. Everything environmental
// skips; cleanup runs in reverse order.
func newSurfaceBackend(t *testing.T) (*glfw.Window, *Backend, uintptr) {
	t.Helper()
	initOrSkip(t)

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Visible, glfw.False)
	window, err := glfw.CreateWindow(320, 240, "vulkan test", nil, nil)
	if err != nil {
		t.Skipf("no window: %v", err)
	}

	b, err := New(WithInstanceExtensions(window.GetRequiredInstanceExtensions()...))
	if err != nil {
		window.Destroy()
		t.Skipf("vulkan not available: %v", err)
	}

	surface, err := window.CreateWindowSurface(b.Instance(), nil)
	if err != nil {
		b.Destroy()
		window.Destroy()
		t.Skipf("no window surface: %v", err)
	}

	t.Cleanup(func() {
		b.DestroySurface(surface)
		b.Destroy()
		window.Destroy()
	})
	return window, b, surface
}

func TestDeviceSwapchainFrame(t *testing.T) {
	_, b, surface := newSurfaceBackend(t)

	dev, err := b.CreateDevice(renderloop.DeviceOptions{
		Label:   "test device",
		Surface: surface,
		Width:   320,
		Height:  240,
	})
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	d := dev.(*Device)
	defer d.Dispose()

	if d.AdapterName() == "" {
		t.Error("AdapterName() is empty")
	}
	if d.Label() != "test device" {
		t.Errorf("Label() = %q", d.Label())
	}

	sc, err := b.CreateSwapchain(dev, surface, 320, 240)
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	s := sc.(*Swapchain)
	defer s.Dispose()

	w, h := s.Size()
	if w <= 0 || h <= 0 {
		t.Fatalf("Size() = %dx%d", w, h)
	}
	if len(s.Images()) == 0 || len(s.Views()) != len(s.Images()) {
		t.Fatalf("images = %d, views = %d", len(s.Images()), len(s.Views()))
	}

	// Frame with recorded command buffers.
	bufs, err := d.AllocateCommandBuffers(1)
	if err != nil {
		t.Fatalf("AllocateCommandBuffers: %v", err)
	}
	defer d.FreeCommandBuffers(bufs)

	begin := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if res := vk.BeginCommandBuffer(bufs[0], &begin); res != vk.Success {
		t.Fatalf("BeginCommandBuffer: %v", vk.Error(res))
	}
	if res := vk.EndCommandBuffer(bufs[0]); res != vk.Success {
		t.Fatalf("EndCommandBuffer: %v", vk.Error(res))
	}

	fb, err := s.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if idx := fb.Index(); idx < 0 || idx >= len(s.Images()) {
		t.Fatalf("Index() = %d with %d images", idx, len(s.Images()))
	}
	if err := d.Submit([]renderloop.CommandBuffer{bufs[0]}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}

	// Frame with no submission still presents.
	if _, err := s.Acquire(); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if err := s.Present(); err != nil {
		t.Fatalf("empty-frame Present: %v", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	_, b, surface := newSurfaceBackend(t)

	dev, err := b.CreateDevice(renderloop.DeviceOptions{Surface: surface})
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	d := dev.(*Device)
	defer d.Dispose()

	// Empty batches pass without a swapchain, anything else needs an
	// acquired framebuffer.
	if err := d.Submit(nil); err != nil {
		t.Errorf("Submit(nil) = %v, want nil", err)
	}
	if err := d.Submit([]renderloop.CommandBuffer{struct{}{}}); !errors.Is(err, ErrNoFramebuffer) {
		t.Errorf("Submit before acquire = %v, want ErrNoFramebuffer", err)
	}

	sc, err := b.CreateSwapchain(dev, surface, 320, 240)
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	s := sc.(*Swapchain)
	defer s.Dispose()

	if err := s.Present(); !errors.Is(err, ErrNoFramebuffer) {
		t.Errorf("Present before acquire = %v, want ErrNoFramebuffer", err)
	}

	if _, err := s.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := d.Submit([]renderloop.CommandBuffer{"bogus"}); !errors.Is(err, ErrBadCommand) {
		t.Errorf("Submit(bogus) = %v, want ErrBadCommand", err)
	}
	if err := s.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
}

func TestDisposeOrder(t *testing.T) {
	_, b, surface := newSurfaceBackend(t)

	dev, err := b.CreateDevice(renderloop.DeviceOptions{Surface: surface})
	if err != nil {
		t.Skipf("GPU not available: %v", err)
	}
	d := dev.(*Device)

	sc, err := b.CreateSwapchain(dev, surface, 320, 240)
	if err != nil {
		d.Dispose()
		t.Fatalf("CreateSwapchain: %v", err)
	}
	s := sc.(*Swapchain)

	s.Dispose()
	if _, err := s.Acquire(); !errors.Is(err, ErrSwapchainDisposed) {
		t.Errorf("Acquire after dispose = %v, want ErrSwapchainDisposed", err)
	}
	if err := s.Resize(100, 100); !errors.Is(err, ErrSwapchainDisposed) {
		t.Errorf("Resize after dispose = %v, want ErrSwapchainDisposed", err)
	}

	d.Dispose()
	if err := d.Submit([]renderloop.CommandBuffer{struct{}{}}); !errors.Is(err, ErrDeviceDisposed) {
		t.Errorf("Submit after dispose = %v, want ErrDeviceDisposed", err)
	}
	if _, err := d.AllocateCommandBuffers(1); !errors.Is(err, ErrDeviceDisposed) {
		t.Errorf("AllocateCommandBuffers after dispose = %v, want ErrDeviceDisposed", err)
	}

	// Both directions are idempotent.
	s.Dispose()
	d.Dispose()
}
