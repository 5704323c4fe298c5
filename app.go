package renderloop

// App is the host application driven by a Loop. Both hooks run on the
// render thread, once per frame, in order. A non-nil error from either
// hook is fatal: it is logged, the loop terminates, and the error is
// surfaced through Loop.Err. Hook errors are never retried because GPU
// state after a failure is not trusted.
type App interface {
	// Update advances application state. elapsed is the raw wall-clock
	// gap in seconds since the previous frame (near zero on the first
	// frame after a start). No smoothing or fixed-step accumulation is
	// applied; integration stability is the application's concern.
	Update(elapsed float64) error

	// Render records drawing for the acquired framebuffer and returns
	// the command buffers to submit. Returning an empty slice is valid
	// and produces an empty frame.
	Render(elapsed float64, fb Framebuffer) ([]CommandBuffer, error)
}

// DeviceObserver is an optional interface an App may implement to receive
// device lifecycle notifications. Both methods fire synchronously on the
// render thread.
//
// DeviceCreated fires exactly once per device creation: a decoupled
// backend reattaching its retained device to a new surface does not
// re-fire it, while a coupled backend recreating the device after a
// destroy cycle does.
//
// DeviceDisposed fires before the device is disposed, so the hook may
// still release resources created against it.
type DeviceObserver interface {
	DeviceCreated(dev Device)
	DeviceDisposed()
}

// ResizeObserver is an optional interface an App may implement to be told
// when the swapchain has been resized in place. Fires synchronously on
// the render thread, between frames, after the resize has been applied.
type ResizeObserver interface {
	Resized(width, height int)
}
