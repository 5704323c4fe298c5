package renderloop

import "errors"

// Common loop and backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// available on this system.
	ErrBackendNotAvailable = errors.New("renderloop: backend not available")

	// ErrNoBackend is returned when no backend is registered or available.
	ErrNoBackend = errors.New("renderloop: no backend available")

	// ErrAlreadyRunning is returned by Start when the render thread is
	// already active.
	ErrAlreadyRunning = errors.New("renderloop: loop already running")

	// ErrLoopClosed is returned when operating on a closed loop.
	ErrLoopClosed = errors.New("renderloop: loop closed")
)

// SurfaceHandle is the native drawable handle delivered by the host in
// SurfaceCreated. Its interpretation is backend-specific: an ANativeWindow
// pointer, a vk.Surface, a window object a backend knows how to unwrap, or
// nil for offscreen backends. The loop never inspects it.
type SurfaceHandle any

// CommandBuffer is an opaque handle to pre-recorded GPU work, produced by
// the application's Render hook and consumed by Device.Submit. The loop
// never inspects it; each backend documents the concrete types it accepts.
type CommandBuffer any

// Framebuffer is one render target acquired from the swapchain for a
// single frame's drawing.
type Framebuffer interface {
	// Size returns the framebuffer dimensions in pixels.
	Size() (width, height int)

	// Index returns the chain slot this framebuffer occupies, for
	// frame-in-flight bookkeeping.
	Index() int
}

// Device is a GPU device owned by the swapchain lifecycle controller.
// All methods are called from the render thread only.
type Device interface {
	// Submit hands command buffers to the device's queue for execution.
	Submit(buffers []CommandBuffer) error

	// Dispose releases the device. The device must not be used afterwards.
	Dispose()
}

// Swapchain is the presentable chain of framebuffers a device cycles
// through. All methods are called from the render thread only.
type Swapchain interface {
	// Size returns the current chain dimensions in pixels.
	Size() (width, height int)

	// Resize recreates or reconfigures the chain in place for the new
	// dimensions. Never called while a frame is in flight.
	Resize(width, height int) error

	// Acquire returns the next framebuffer to draw into.
	Acquire() (Framebuffer, error)

	// Present queues the most recently acquired framebuffer for display.
	Present() error

	// Dispose releases the chain. The chain must not be used afterwards.
	Dispose()
}

// SwapchainOwnership distinguishes the two backend families by how device
// and swapchain lifetimes relate. The lifecycle controller branches on
// this tag once at construction rather than on runtime type inspection.
type SwapchainOwnership int

const (
	// OwnershipDecoupled backends create the device independently of any
	// swapchain; the device survives surface destruction and is reused if
	// the surface reappears.
	OwnershipDecoupled SwapchainOwnership = iota

	// OwnershipCoupled backends create device and swapchain together as a
	// single unit; surface destruction disposes both.
	OwnershipCoupled
)

// String returns the ownership family name.
func (o SwapchainOwnership) String() string {
	switch o {
	case OwnershipDecoupled:
		return "Decoupled"
	case OwnershipCoupled:
		return "Coupled"
	default:
		return "Unknown"
	}
}

// DeviceOptions carries the parameters for device creation.
type DeviceOptions struct {
	// Label names the device for debugging and log output.
	Label string

	// Surface is the native handle from SurfaceCreated. Coupled backends
	// need it at device creation time for queue selection; decoupled
	// backends may ignore it.
	Surface SurfaceHandle

	// Width and Height are the surface dimensions at creation time.
	Width, Height int

	// FramesInFlight is the swapchain chain length. Zero means the
	// backend default (2).
	FramesInFlight int
}

// Backend creates devices and swapchains for one GPU implementation.
// Implementations register themselves via RegisterBackend, typically in an
// init function guarded by a build tag.
type Backend interface {
	// Name returns the backend identifier (e.g. "headless", "wgpu",
	// "vulkan").
	Name() string

	// Ownership reports the backend's device/swapchain ownership family.
	Ownership() SwapchainOwnership

	// CreateDevice creates a GPU device. Coupled backends bind it to
	// opts.Surface; the device cannot outlive that surface.
	CreateDevice(opts DeviceOptions) (Device, error)

	// CreateSwapchain attaches a swapchain for the given surface to an
	// existing device. For coupled backends the surface must match the
	// one the device was created against.
	CreateSwapchain(dev Device, surface SurfaceHandle, width, height int) (Swapchain, error)
}
