// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build vulkan

package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/renderloop"
)

// surfaceSupport is the surface capability snapshot a swapchain is
// configured from.
type surfaceSupport struct {
	caps    vk.SurfaceCapabilities
	formats []vk.SurfaceFormat
	modes   []vk.PresentMode
}

func querySurfaceSupport(phys vk.PhysicalDevice, surface vk.Surface) surfaceSupport {
	var s surfaceSupport
	vk.GetPhysicalDeviceSurfaceCapabilities(phys, surface, &s.caps)
	s.caps.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(phys, surface, &formatCount, nil)
	if formatCount > 0 {
		s.formats = make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(phys, surface, &formatCount, s.formats)
		for i := range s.formats {
			s.formats[i].Deref()
		}
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(phys, surface, &modeCount, nil)
	if modeCount > 0 {
		s.modes = make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(phys, surface, &modeCount, s.modes)
	}
	return s
}

// chooseSurfaceFormat prefers sRGB BGRA and otherwise takes the first
// format the surface offers.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox and falls back to FIFO, which every
// driver must support.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent takes the surface's current extent when the driver pins
// one, otherwise clamps the requested size into the supported range.
func chooseExtent(caps vk.SurfaceCapabilities, width, height int) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampU32(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampU32(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

// Swapchain owns the presentable images for the device's surface along
// with the per-frame synchronization driving them. Resize and an
// out-of-date surface recreate the chain in place, reusing the old one
// through OldSwapchain; the device stays untouched.
type Swapchain struct {
	dev *Device

	chain  vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D
	images []vk.Image
	views  []vk.ImageView

	imageAvailable []vk.Semaphore
	renderFinished []vk.Semaphore
	inFlight       []vk.Fence
	imagesInFlight []vk.Fence

	frame      int
	target     int
	pending    bool
	generation uint64

	disposed bool
}

// CreateSwapchain builds the swapchain for the device's surface. The
// surface argument, when non-nil, must match the one the device was
// created against.
func (b *Backend) CreateSwapchain(dev renderloop.Device, surface renderloop.SurfaceHandle, width, height int) (renderloop.Swapchain, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, fmt.Errorf("vulkan: device is %T, want *vulkan.Device", dev)
	}
	if d.disposed {
		return nil, ErrDeviceDisposed
	}
	if surface != nil {
		surf, err := asSurface(surface)
		if err != nil {
			return nil, err
		}
		if surf != d.surface {
			return nil, errors.New("vulkan: swapchain surface differs from device surface")
		}
	}

	s := &Swapchain{dev: d, target: -1}
	if err := s.create(width, height); err != nil {
		return nil, err
	}
	if err := s.createSyncObjects(); err != nil {
		s.destroyViews()
		vk.DestroySwapchain(d.device, s.chain, nil)
		s.chain = vk.NullSwapchain
		return nil, err
	}
	d.sc = s

	b.logger().Debug("vulkan swapchain ready",
		"width", s.extent.Width,
		"height", s.extent.Height,
		"images", len(s.images))
	return s, nil
}

// create builds the chain and its image views, reusing and then
// destroying any previous chain via OldSwapchain.
func (s *Swapchain) create(width, height int) error {
	d := s.dev

	support := querySurfaceSupport(d.phys, d.surface)
	if len(support.formats) == 0 || len(support.modes) == 0 {
		return errors.New("vulkan: surface reports no formats or present modes")
	}
	format := chooseSurfaceFormat(support.formats)
	mode := choosePresentMode(support.modes)
	extent := chooseExtent(support.caps, width, height)

	imageCount := support.caps.MinImageCount + 1
	if support.caps.MaxImageCount > 0 && imageCount > support.caps.MaxImageCount {
		imageCount = support.caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      mode,
		Clipped:          vk.True,
		OldSwapchain:     s.chain,
	}
	if d.queues.graphics != d.queues.present {
		indices := []uint32{d.queues.graphics, d.queues.present}
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = uint32(len(indices))
		createInfo.PQueueFamilyIndices = indices
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var chain vk.Swapchain
	if res := vk.CreateSwapchain(d.device, &createInfo, nil, &chain); res != vk.Success {
		return fmt.Errorf("vulkan: create swapchain: %w", vk.Error(res))
	}
	s.destroyViews()
	if s.chain != vk.NullSwapchain {
		vk.DestroySwapchain(d.device, s.chain, nil)
	}
	s.chain = chain
	s.format = format
	s.extent = extent

	var count uint32
	vk.GetSwapchainImages(d.device, s.chain, &count, nil)
	s.images = make([]vk.Image, count)
	vk.GetSwapchainImages(d.device, s.chain, &count, s.images)

	views := make([]vk.ImageView, len(s.images))
	for i, img := range s.images {
		view, err := createImageView(d.device, img, format.Format)
		if err != nil {
			for j := 0; j < i; j++ {
				vk.DestroyImageView(d.device, views[j], nil)
			}
			vk.DestroySwapchain(d.device, s.chain, nil)
			s.chain = vk.NullSwapchain
			s.images = nil
			return err
		}
		views[i] = view
	}
	s.views = views
	s.imagesInFlight = make([]vk.Fence, len(s.images))
	s.generation++
	return nil
}

// recreate rebuilds the chain for a new size or an out-of-date surface.
// The device idles first so no in-flight frame still references the old
// images.
func (s *Swapchain) recreate(width, height int) error {
	d := s.dev
	vk.DeviceWaitIdle(d.device)
	if err := s.create(width, height); err != nil {
		return err
	}
	d.backend.logger().Debug("vulkan swapchain recreated",
		"width", s.extent.Width,
		"height", s.extent.Height)
	return nil
}

func createImageView(device vk.Device, img vk.Image, format vk.Format) (vk.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(device, &createInfo, nil, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("vulkan: create image view: %w", vk.Error(res))
	}
	return view, nil
}

func (s *Swapchain) createSyncObjects() error {
	d := s.dev
	n := d.framesInFlight
	s.imageAvailable = make([]vk.Semaphore, n)
	s.renderFinished = make([]vk.Semaphore, n)
	s.inFlight = make([]vk.Fence, n)

	semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
	}
	for i := 0; i < n; i++ {
		if res := vk.CreateSemaphore(d.device, &semInfo, nil, &s.imageAvailable[i]); res != vk.Success {
			s.destroySyncObjects()
			return fmt.Errorf("vulkan: create semaphore: %w", vk.Error(res))
		}
		if res := vk.CreateSemaphore(d.device, &semInfo, nil, &s.renderFinished[i]); res != vk.Success {
			s.destroySyncObjects()
			return fmt.Errorf("vulkan: create semaphore: %w", vk.Error(res))
		}
		if res := vk.CreateFence(d.device, &fenceInfo, nil, &s.inFlight[i]); res != vk.Success {
			s.destroySyncObjects()
			return fmt.Errorf("vulkan: create fence: %w", vk.Error(res))
		}
	}
	return nil
}

func (s *Swapchain) destroySyncObjects() {
	d := s.dev
	for _, sem := range s.imageAvailable {
		if sem != vk.NullSemaphore {
			vk.DestroySemaphore(d.device, sem, nil)
		}
	}
	for _, sem := range s.renderFinished {
		if sem != vk.NullSemaphore {
			vk.DestroySemaphore(d.device, sem, nil)
		}
	}
	for _, f := range s.inFlight {
		if f != vk.NullFence {
			vk.DestroyFence(d.device, f, nil)
		}
	}
	s.imageAvailable, s.renderFinished, s.inFlight = nil, nil, nil
}

func (s *Swapchain) destroyViews() {
	for _, view := range s.views {
		vk.DestroyImageView(s.dev.device, view, nil)
	}
	s.views = nil
}

// Size returns the current swapchain extent.
func (s *Swapchain) Size() (int, int) {
	return int(s.extent.Width), int(s.extent.Height)
}

// Format returns the swapchain image format.
func (s *Swapchain) Format() vk.Format { return s.format.Format }

// Images returns the swapchain images. The slice is replaced wholesale
// on recreation, so apps re-read it after Resized fires.
func (s *Swapchain) Images() []vk.Image { return s.images }

// Views returns one color image view per swapchain image.
func (s *Swapchain) Views() []vk.ImageView { return s.views }

// Frame returns the frame-in-flight index, for per-frame app resources.
func (s *Swapchain) Frame() int { return s.frame }

// Generation counts chain rebuilds, including internal out-of-date
// recovery where no Resized hook fires. Apps holding framebuffers over
// Images or Views rebuild them when the value changes.
func (s *Swapchain) Generation() uint64 { return s.generation }

// Resize recreates the chain at the new size. In-flight frames finish
// first.
func (s *Swapchain) Resize(width, height int) error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	return s.recreate(width, height)
}

// Acquire waits for the frame's fence and takes the next presentable
// image. An out-of-date surface triggers one in-place recreation and a
// second attempt.
func (s *Swapchain) Acquire() (renderloop.Framebuffer, error) {
	if s.disposed {
		return nil, ErrSwapchainDisposed
	}
	d := s.dev

	vk.WaitForFences(d.device, 1, []vk.Fence{s.inFlight[s.frame]}, vk.True, vk.MaxUint64)

	var idx uint32
	res := vk.AcquireNextImage(d.device, s.chain, vk.MaxUint64, s.imageAvailable[s.frame], vk.NullFence, &idx)
	if res == vk.ErrorOutOfDate {
		if err := s.recreate(int(s.extent.Width), int(s.extent.Height)); err != nil {
			return nil, err
		}
		res = vk.AcquireNextImage(d.device, s.chain, vk.MaxUint64, s.imageAvailable[s.frame], vk.NullFence, &idx)
	}
	if res != vk.Success && res != vk.Suboptimal {
		return nil, fmt.Errorf("vulkan: acquire image: %w", vk.Error(res))
	}

	if s.imagesInFlight[idx] != vk.NullFence {
		vk.WaitForFences(d.device, 1, []vk.Fence{s.imagesInFlight[idx]}, vk.True, vk.MaxUint64)
	}
	s.imagesInFlight[idx] = s.inFlight[s.frame]

	s.target = int(idx)
	s.pending = false
	return &Framebuffer{sc: s, index: int(idx)}, nil
}

// submit sends cmds to the graphics queue. The frame's first batch
// carries the wait/signal semaphore pair and the in-flight fence; later
// batches queue behind it bare.
func (s *Swapchain) submit(cmds []vk.CommandBuffer) error {
	d := s.dev

	if s.pending {
		extra := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: uint32(len(cmds)),
			PCommandBuffers:    cmds,
		}
		if res := vk.QueueSubmit(d.graphics, 1, []vk.SubmitInfo{extra}, vk.NullFence); res != vk.Success {
			return fmt.Errorf("vulkan: queue submit: %w", vk.Error(res))
		}
		return nil
	}

	vk.ResetFences(d.device, 1, []vk.Fence{s.inFlight[s.frame]})

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.imageAvailable[s.frame]},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   uint32(len(cmds)),
		PCommandBuffers:      cmds,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{s.renderFinished[s.frame]},
	}
	if res := vk.QueueSubmit(d.graphics, 1, []vk.SubmitInfo{submitInfo}, s.inFlight[s.frame]); res != vk.Success {
		return fmt.Errorf("vulkan: queue submit: %w", vk.Error(res))
	}
	s.pending = true
	return nil
}

// Present queues the acquired image for display and advances the frame
// index. A frame with no submission gets an empty one first so the
// semaphore pair stays balanced. An out-of-date or suboptimal surface
// recreates the chain after presenting; the next Acquire uses the new
// one.
func (s *Swapchain) Present() error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	if s.target < 0 {
		return ErrNoFramebuffer
	}
	if !s.pending {
		if err := s.submit(nil); err != nil {
			return err
		}
	}
	d := s.dev

	res := vk.QueuePresent(d.present, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{s.renderFinished[s.frame]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.chain},
		PImageIndices:      []uint32{uint32(s.target)},
	})
	s.target = -1
	s.pending = false
	s.frame = (s.frame + 1) % len(s.inFlight)

	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return s.recreate(int(s.extent.Width), int(s.extent.Height))
	default:
		return fmt.Errorf("vulkan: queue present: %w", vk.Error(res))
	}
}

// Dispose idles the device and releases sync objects, views, and the
// chain. The device itself stays alive; its own Dispose follows under
// coupled ownership. Dispose is idempotent and safe after the device is
// gone.
func (s *Swapchain) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	d := s.dev
	if d.disposed {
		return
	}
	vk.DeviceWaitIdle(d.device)

	s.destroySyncObjects()
	s.destroyViews()
	if s.chain != vk.NullSwapchain {
		vk.DestroySwapchain(d.device, s.chain, nil)
		s.chain = vk.NullSwapchain
	}
	if d.sc == s {
		d.sc = nil
	}
}

// Framebuffer identifies one acquired swapchain image.
type Framebuffer struct {
	sc    *Swapchain
	index int
}

// Size returns the swapchain extent the image belongs to.
func (f *Framebuffer) Size() (int, int) { return f.sc.Size() }

// Index returns the swapchain image index, for picking the matching
// per-image resources.
func (f *Framebuffer) Index() int { return f.index }

// Image returns the underlying swapchain image.
func (f *Framebuffer) Image() vk.Image { return f.sc.images[f.index] }

// View returns the color view for the image.
func (f *Framebuffer) View() vk.ImageView { return f.sc.views[f.index] }

// Interface compliance.
var (
	_ renderloop.Swapchain   = (*Swapchain)(nil)
	_ renderloop.Framebuffer = (*Framebuffer)(nil)
)
