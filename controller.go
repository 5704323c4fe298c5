package renderloop

import (
	"fmt"
)

// lifecycle owns the device and swapchain on behalf of the render thread.
// All methods are render-thread only; cross-thread signaling happens in
// Loop, which calls in here after consuming its pending flags.
//
// The two backend families need different handling. A decoupled backend
// keeps its device alive across surface destruction and only the swapchain
// is recreated. A coupled backend creates device and swapchain as one unit,
// so destroying the surface disposes both and fires DeviceDisposed.
type lifecycle struct {
	backend Backend
	app     App

	label          string
	framesInFlight int

	dev Device
	sc  Swapchain

	width  int
	height int

	tornDown bool
}

func newLifecycle(backend Backend, app App, label string, framesInFlight int) *lifecycle {
	return &lifecycle{
		backend:        backend,
		app:            app,
		label:          label,
		framesInFlight: framesInFlight,
	}
}

// ready reports whether a frame may run. Frames never run without both a
// device and a swapchain.
func (lc *lifecycle) ready() bool {
	return lc.dev != nil && lc.sc != nil
}

// handleCreate brings up the device and swapchain for a new surface.
// Creating the device fires DeviceCreated exactly once per device
// creation; a decoupled backend reattaching a swapchain to a retained
// device fires nothing. Calling with a swapchain already in place is a
// no-op, so duplicate surface-created signals are harmless.
func (lc *lifecycle) handleCreate(surface SurfaceHandle, width, height int) error {
	if lc.tornDown {
		return ErrLoopClosed
	}
	if lc.sc != nil {
		return nil
	}

	created := false
	if lc.dev == nil {
		opts := DeviceOptions{
			Label:          lc.label,
			Surface:        surface,
			Width:          width,
			Height:         height,
			FramesInFlight: lc.framesInFlight,
		}
		dev, err := lc.backend.CreateDevice(opts)
		if err != nil {
			return fmt.Errorf("renderloop: create device: %w", err)
		}
		lc.dev = dev
		created = true
	}

	sc, err := lc.backend.CreateSwapchain(lc.dev, surface, width, height)
	if err != nil {
		// A fresh device with no swapchain cannot run frames; unwind it
		// so a later create starts clean.
		if created {
			lc.dev.Dispose()
			lc.dev = nil
		}
		return fmt.Errorf("renderloop: create swapchain: %w", err)
	}
	lc.sc = sc
	lc.width, lc.height = width, height

	Logger().Info("surface ready",
		"backend", lc.backend.Name(),
		"width", width,
		"height", height,
		"newDevice", created)

	if created {
		if o, ok := lc.app.(DeviceObserver); ok {
			o.DeviceCreated(lc.dev)
		}
	}
	return nil
}

// handleResize resizes the swapchain in place and fires Resized. It runs
// between frames only, never while a frame is in flight. A resize with no
// swapchain is skipped without firing anything; the geometry arrives again
// with the next surface-created signal.
func (lc *lifecycle) handleResize(width, height int) error {
	if lc.sc == nil {
		Logger().Warn("resize skipped, no swapchain", "width", width, "height", height)
		return nil
	}

	if err := lc.sc.Resize(width, height); err != nil {
		return fmt.Errorf("renderloop: resize swapchain: %w", err)
	}
	lc.width, lc.height = width, height

	Logger().Info("swapchain resized", "width", width, "height", height)

	if o, ok := lc.app.(ResizeObserver); ok {
		o.Resized(width, height)
	}
	return nil
}

// handleDestroy disposes the swapchain. For a coupled backend the device
// goes with it and DeviceDisposed fires; for a decoupled backend the
// device is retained for a possible surface reappearance.
func (lc *lifecycle) handleDestroy() {
	if lc.sc != nil {
		lc.sc.Dispose()
		lc.sc = nil
	}

	if lc.backend.Ownership() == OwnershipCoupled && lc.dev != nil {
		// Hook first: the app releases device resources while the
		// device can still destroy them.
		if o, ok := lc.app.(DeviceObserver); ok {
			o.DeviceDisposed()
		}
		lc.dev.Dispose()
		lc.dev = nil
	}

	Logger().Info("surface destroyed", "deviceRetained", lc.dev != nil)
}

// teardown releases everything, including a retained device. After
// teardown the lifecycle refuses further creates.
func (lc *lifecycle) teardown() {
	if lc.tornDown {
		return
	}

	if lc.sc != nil {
		lc.sc.Dispose()
		lc.sc = nil
	}
	if lc.dev != nil {
		if o, ok := lc.app.(DeviceObserver); ok {
			o.DeviceDisposed()
		}
		lc.dev.Dispose()
		lc.dev = nil
	}
	lc.tornDown = true

	Logger().Debug("lifecycle torn down")
}
