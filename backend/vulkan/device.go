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

// Device wraps a Vulkan logical device bound to one window surface. Its
// lifetime matches the surface: the loop disposes it whenever the
// surface goes away and creates a fresh one on reappearance.
//
// Apps record command buffers allocated from the device pool and return
// them from Render; Submit forwards them to the graphics queue wired
// into the swapchain's per-frame synchronization.
type Device struct {
	backend *Backend
	label   string
	adapter string

	phys     vk.PhysicalDevice
	device   vk.Device
	queues   queueFamilyIndices
	graphics vk.Queue
	present  vk.Queue
	cmdPool  vk.CommandPool
	surface  vk.Surface

	framesInFlight int

	sc       *Swapchain
	disposed bool
}

// CreateDevice picks the best physical device for opts.Surface and
// builds a logical device with graphics and present queues plus a
// command pool. The surface handle is required; vulkan devices cannot
// exist without one.
func (b *Backend) CreateDevice(opts renderloop.DeviceOptions) (renderloop.Device, error) {
	if opts.Surface == nil {
		return nil, errors.New("vulkan: device options carry no surface")
	}
	surface, err := asSurface(opts.Surface)
	if err != nil {
		return nil, err
	}

	phys, queues, err := b.pickPhysicalDevice(surface)
	if err != nil {
		return nil, err
	}

	queueInfos := []vk.DeviceQueueCreateInfo{}
	uniqueFamilies := map[uint32]bool{
		queues.graphics: true,
		queues.present:  true,
	}
	priority := float32(1.0)
	for family := range uniqueFamilies {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	features := vk.PhysicalDeviceFeatures{}
	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PQueueCreateInfos:       queueInfos,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		PpEnabledExtensionNames: deviceExtensions,
		EnabledExtensionCount:   uint32(len(deviceExtensions)),
	}
	if b.validate {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var device vk.Device
	if res := vk.CreateDevice(phys, &createInfo, nil, &device); res != vk.Success {
		return nil, fmt.Errorf("vulkan: create logical device: %w", vk.Error(res))
	}

	d := &Device{
		backend:        b,
		label:          opts.Label,
		adapter:        deviceName(phys),
		phys:           phys,
		device:         device,
		queues:         queues,
		surface:        surface,
		framesInFlight: opts.FramesInFlight,
	}
	if d.framesInFlight <= 0 {
		d.framesInFlight = 2
	}
	vk.GetDeviceQueue(device, queues.graphics, 0, &d.graphics)
	vk.GetDeviceQueue(device, queues.present, 0, &d.present)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queues.graphics,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(device, &poolInfo, nil, &d.cmdPool); res != vk.Success {
		vk.DestroyDevice(device, nil)
		return nil, fmt.Errorf("vulkan: create command pool: %w", vk.Error(res))
	}

	b.logger().Info("vulkan device ready",
		"adapter", d.adapter,
		"label", d.label,
		"graphicsFamily", queues.graphics,
		"presentFamily", queues.present)
	return d, nil
}

// Label returns the device label from DeviceOptions.
func (d *Device) Label() string { return d.label }

// AdapterName returns the physical device name.
func (d *Device) AdapterName() string { return d.adapter }

// Vk returns the logical device handle.
func (d *Device) Vk() vk.Device { return d.device }

// Physical returns the physical device handle.
func (d *Device) Physical() vk.PhysicalDevice { return d.phys }

// GraphicsQueue returns the queue command buffers are submitted to.
func (d *Device) GraphicsQueue() vk.Queue { return d.graphics }

// PresentQueue returns the queue frames are presented on. It may equal
// GraphicsQueue when one family covers both.
func (d *Device) PresentQueue() vk.Queue { return d.present }

// GraphicsFamily returns the graphics queue family index.
func (d *Device) GraphicsFamily() uint32 { return d.queues.graphics }

// PresentFamily returns the present queue family index.
func (d *Device) PresentFamily() uint32 { return d.queues.present }

// CommandPool returns the pool AllocateCommandBuffers draws from.
func (d *Device) CommandPool() vk.CommandPool { return d.cmdPool }

// Swapchain returns the chain currently attached to the device, or nil.
// Apps use it to reach the image format and views when building render
// targets.
func (d *Device) Swapchain() *Swapchain { return d.sc }

// AllocateCommandBuffers allocates n primary command buffers from the
// device pool. The pool allows per-buffer reset, so apps re-record them
// each frame.
func (d *Device) AllocateCommandBuffers(n int) ([]vk.CommandBuffer, error) {
	if d.disposed {
		return nil, ErrDeviceDisposed
	}
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.cmdPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(n),
	}
	bufs := make([]vk.CommandBuffer, n)
	if res := vk.AllocateCommandBuffers(d.device, &allocInfo, bufs); res != vk.Success {
		return nil, fmt.Errorf("vulkan: allocate command buffers: %w", vk.Error(res))
	}
	return bufs, nil
}

// FreeCommandBuffers returns command buffers to the device pool.
func (d *Device) FreeCommandBuffers(bufs []vk.CommandBuffer) {
	if d.disposed || len(bufs) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, d.cmdPool, uint32(len(bufs)), bufs)
}

// Submit sends recorded vk.CommandBuffer values to the graphics queue.
// The first submission of a frame waits on the acquired image and
// signals the semaphore Present waits on; later submissions in the same
// frame join the queue behind it without touching the sync pair. An
// empty batch is a no-op.
func (d *Device) Submit(buffers []renderloop.CommandBuffer) error {
	if d.disposed {
		return ErrDeviceDisposed
	}
	if len(buffers) == 0 {
		return nil
	}
	if d.sc == nil || d.sc.target < 0 {
		return ErrNoFramebuffer
	}

	cmds := make([]vk.CommandBuffer, len(buffers))
	for i, buf := range buffers {
		cb, ok := buf.(vk.CommandBuffer)
		if !ok {
			return fmt.Errorf("%w: index %d holds %T", ErrBadCommand, i, buf)
		}
		cmds[i] = cb
	}
	return d.sc.submit(cmds)
}

// Dispose waits for the device to go idle and releases it. The attached
// swapchain, if still alive, goes first. Dispose is idempotent.
func (d *Device) Dispose() {
	if d.disposed {
		return
	}

	vk.DeviceWaitIdle(d.device)
	if d.sc != nil {
		d.sc.Dispose()
	}
	d.disposed = true

	vk.DestroyCommandPool(d.device, d.cmdPool, nil)
	vk.DestroyDevice(d.device, nil)
	d.backend.logger().Debug("vulkan device disposed", "label", d.label)
}

// Interface compliance.
var (
	_ renderloop.Device = (*Device)(nil)
)
