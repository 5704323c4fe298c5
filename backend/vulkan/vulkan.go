// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build vulkan

package vulkan

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/renderloop"
)

// BackendName is the registry name of this backend.
const BackendName = "vulkan"

// Package errors.
var (
	// ErrNotInitialized is returned by New before Init has loaded the
	// Vulkan library.
	ErrNotInitialized = errors.New("vulkan: Init not called")

	// ErrNoDevice is returned when no physical device offers graphics
	// and presentation on the given surface.
	ErrNoDevice = errors.New("vulkan: no suitable GPU found")

	// ErrDeviceDisposed is returned when using a disposed device.
	ErrDeviceDisposed = errors.New("vulkan: device disposed")

	// ErrSwapchainDisposed is returned when using a disposed swapchain.
	ErrSwapchainDisposed = errors.New("vulkan: swapchain disposed")

	// ErrNoFramebuffer is returned by Submit and Present when no
	// framebuffer has been acquired for the current frame.
	ErrNoFramebuffer = errors.New("vulkan: no framebuffer acquired")

	// ErrBadCommand is returned by Submit for command buffer elements
	// that are not vk.CommandBuffer.
	ErrBadCommand = errors.New("vulkan: unsupported command buffer")
)

var (
	validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
	deviceExtensions = []string{"VK_KHR_swapchain"}
)

// loaderReady flips once Init has loaded the Vulkan library.
var loaderReady atomic.Bool

func init() {
	renderloop.RegisterBackend(BackendName, 100, func() (renderloop.Backend, error) {
		return New()
	}, func() bool {
		return loaderReady.Load()
	})
}

// Option configures a Backend before its instance is created.
type Option func(*Backend)

// WithInstanceExtensions adds instance extensions to enable. Hosts that
// present to a window pass the extensions their windowing system
// requires, for example window.GetRequiredInstanceExtensions().
func WithInstanceExtensions(exts ...string) Option {
	return func(b *Backend) {
		b.instanceExts = append(b.instanceExts, exts...)
	}
}

// WithValidation enables the Khronos validation layer and routes its
// reports to the backend logger. If the layer is not installed the
// backend proceeds without it.
func WithValidation() Option {
	return func(b *Backend) {
		b.validate = true
	}
}

// WithAppName sets the application name reported to the driver.
func WithAppName(name string) Option {
	return func(b *Backend) {
		b.appName = name
	}
}

// Backend owns the Vulkan instance. Devices and swapchains created from
// it share that instance and are torn down as one unit per surface.
// Registered under BackendName with priority 100.
type Backend struct {
	log atomic.Pointer[slog.Logger]

	instance vk.Instance
	debug    vk.DebugReportCallback

	appName      string
	instanceExts []string
	validate     bool

	destroyed bool
}

// New creates the Vulkan instance. Init must have been called first.
// Without WithInstanceExtensions the instance carries no surface
// extensions and suits probing only.
func New(opts ...Option) (*Backend, error) {
	if !loaderReady.Load() {
		return nil, ErrNotInitialized
	}

	b := &Backend{appName: "renderloop"}
	for _, opt := range opts {
		opt(b)
	}

	if b.validate && !validationSupported() {
		b.logger().Warn("validation layer not installed, continuing without")
		b.validate = false
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   b.appName,
		ApplicationVersion: vk.MakeVersion(0, 1, 0),
		PEngineName:        "renderloop",
		EngineVersion:      vk.MakeVersion(0, 1, 0),
		ApiVersion:         vk.MakeVersion(1, 1, 0),
	}

	exts := b.instanceExts
	if b.validate {
		exts = append(exts, "VK_EXT_debug_report")
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}
	if b.validate {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return nil, fmt.Errorf("vulkan: create instance: %w", vk.Error(res))
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("vulkan: init instance: %w", err)
	}
	b.instance = instance

	if b.validate {
		if err := b.setupDebugReport(); err != nil {
			b.logger().Warn("debug report unavailable", "error", err)
		}
	}
	return b, nil
}

// Name returns BackendName.
func (b *Backend) Name() string { return BackendName }

// Ownership reports that device and swapchain share the surface
// lifetime.
func (b *Backend) Ownership() renderloop.SwapchainOwnership {
	return renderloop.OwnershipCoupled
}

// SetLogger routes backend logging to l. Nil is ignored.
func (b *Backend) SetLogger(l *slog.Logger) {
	if l != nil {
		b.log.Store(l)
	}
}

func (b *Backend) logger() *slog.Logger {
	if l := b.log.Load(); l != nil {
		return l
	}
	return renderloop.Logger()
}

// Instance returns the Vulkan instance, for window surface creation.
func (b *Backend) Instance() vk.Instance { return b.instance }

// DestroySurface destroys a window surface created against Instance.
// Call it after the loop has released the device and swapchain.
func (b *Backend) DestroySurface(handle renderloop.SurfaceHandle) error {
	surface, err := asSurface(handle)
	if err != nil {
		return err
	}
	vk.DestroySurface(b.instance, surface, nil)
	return nil
}

// Destroy releases the instance. All devices and surfaces created from
// it must be gone first. Destroy is idempotent.
func (b *Backend) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true

	if b.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(b.instance, b.debug, nil)
		b.debug = vk.NullDebugReportCallback
	}
	vk.DestroyInstance(b.instance, nil)
	b.logger().Debug("vulkan instance destroyed")
}

func (b *Backend) setupDebugReport() error {
	createInfo := vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(
			vk.DebugReportErrorBit |
				vk.DebugReportWarningBit |
				vk.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
			object uint64, location uint, messageCode int32,
			layerPrefix string, message string, userData unsafe.Pointer) vk.Bool32 {
			b.logger().Warn("vulkan validation",
				"layer", layerPrefix,
				"code", messageCode,
				"message", message)
			return vk.False
		},
	}
	if res := vk.CreateDebugReportCallback(b.instance, &createInfo, nil, &b.debug); res != vk.Success {
		return fmt.Errorf("vulkan: create debug callback: %w", vk.Error(res))
	}
	return nil
}

func validationSupported() bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	props := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, props) != vk.Success {
		return false
	}
	supported := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		supported[vk.ToString(props[i].LayerName[:])] = true
	}
	for _, l := range validationLayers {
		if !supported[l] {
			return false
		}
	}
	return true
}

// asSurface converts a loop surface handle into a vk.Surface. Hosts pass
// either the vk.Surface itself or the raw uintptr that
// window.CreateWindowSurface returned.
func asSurface(handle renderloop.SurfaceHandle) (vk.Surface, error) {
	switch s := handle.(type) {
	case vk.Surface:
		return s, nil
	case uintptr:
		return vk.SurfaceFromPointer(s), nil
	default:
		return vk.NullSurface, fmt.Errorf("vulkan: surface handle is %T, want vk.Surface or uintptr", handle)
	}
}

// queueFamilyIndices carries the queue families a device needs for
// rendering and presentation. They may name the same family.
type queueFamilyIndices struct {
	graphics uint32
	present  uint32

	hasGraphics bool
	hasPresent  bool
}

func (q queueFamilyIndices) complete() bool { return q.hasGraphics && q.hasPresent }

// pickPhysicalDevice scores every physical device that can render to
// surface and returns the best. Discrete GPUs beat integrated beat the
// rest.
func (b *Backend) pickPhysicalDevice(surface vk.Surface) (vk.PhysicalDevice, queueFamilyIndices, error) {
	var count uint32
	if res := vk.EnumeratePhysicalDevices(b.instance, &count, nil); res != vk.Success || count == 0 {
		return nil, queueFamilyIndices{}, fmt.Errorf("%w: enumerate: %v", ErrNoDevice, vk.Error(res))
	}
	devices := make([]vk.PhysicalDevice, count)
	if res := vk.EnumeratePhysicalDevices(b.instance, &count, devices); res != vk.Success {
		return nil, queueFamilyIndices{}, fmt.Errorf("%w: enumerate: %v", ErrNoDevice, vk.Error(res))
	}

	var selected vk.PhysicalDevice
	var selectedQueues queueFamilyIndices
	best := int32(-1)
	for _, dev := range devices {
		queues := findQueueFamilies(dev, surface)
		if !queues.complete() {
			continue
		}
		if !deviceExtensionsSupported(dev) {
			continue
		}
		support := querySurfaceSupport(dev, surface)
		if len(support.formats) == 0 || len(support.modes) == 0 {
			continue
		}
		if score := deviceScore(dev); score > best {
			best = score
			selected = dev
			selectedQueues = queues
		}
	}

	if selected == (vk.PhysicalDevice)(unsafe.Pointer(nil)) {
		return nil, queueFamilyIndices{}, ErrNoDevice
	}
	return selected, selectedQueues, nil
}

func deviceScore(device vk.PhysicalDevice) int32 {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	switch props.DeviceType {
	case vk.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vk.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

func deviceName(device vk.PhysicalDevice) string {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &props)
	props.Deref()
	return vk.ToString(props.DeviceName[:])
}

func deviceExtensionsSupported(device vk.PhysicalDevice) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, nil) != vk.Success {
		return false
	}
	props := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, props) != vk.Success {
		return false
	}
	supported := make(map[string]bool, count)
	for i := range props {
		props[i].Deref()
		supported[vk.ToString(props[i].ExtensionName[:])] = true
	}
	for _, ext := range deviceExtensions {
		if !supported[ext] {
			return false
		}
	}
	return true
}

func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) queueFamilyIndices {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, props)

	var indices queueFamilyIndices
	for i := range props {
		props[i].Deref()
		if props[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && !indices.hasGraphics {
			indices.graphics = uint32(i)
			indices.hasGraphics = true
		}
		var present vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &present)
		if present == vk.True && !indices.hasPresent {
			indices.present = uint32(i)
			indices.hasPresent = true
		}
		if indices.complete() {
			break
		}
	}
	return indices
}

// Interface compliance.
var (
	_ renderloop.Backend = (*Backend)(nil)
)
