// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glfwhost

import (
	"errors"
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/renderloop"
)

// pumpInterval bounds how long the event pump sleeps between checks of
// the window close flag and the render thread, in seconds. Input events
// wake it immediately.
const pumpInterval = 0.05

// Option configures a Host during creation.
type Option func(*config)

type config struct {
	title     string
	width     int
	height    int
	resizable bool
}

func defaultConfig() config {
	return config{
		title:     "renderloop",
		width:     800,
		height:    600,
		resizable: true,
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option {
	return func(c *config) {
		c.title = title
	}
}

// WithSize sets the initial window size in screen coordinates. The
// framebuffer may differ on high-DPI displays; the loop always sees
// framebuffer pixels.
func WithSize(width, height int) Option {
	return func(c *config) {
		c.width = width
		c.height = height
	}
}

// WithFixedSize makes the window non-resizable.
func WithFixedSize() Option {
	return func(c *config) {
		c.resizable = false
	}
}

// Host owns a GLFW window and drives a render loop from its events.
// All methods must be called on the main thread.
type Host struct {
	window *glfw.Window
	loop   *renderloop.Loop

	// held tracks a pause issued by the host on minimize, so restoring
	// the window does not resume a pause the application asked for.
	held bool
}

// New initializes GLFW and creates the window. The window carries no
// client API context; presentation is the backend's job.
func New(opts ...Option) (*Host, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfwhost: init glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if cfg.resizable {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Resizable, glfw.False)
	}
	win, err := glfw.CreateWindow(cfg.width, cfg.height, cfg.title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("glfwhost: create window: %w", err)
	}

	return &Host{window: win}, nil
}

// Window returns the underlying GLFW window, for querying instance
// extensions and minting surfaces.
func (h *Host) Window() *glfw.Window {
	return h.window
}

// Run signals the surface lifecycle, starts the loop and pumps window
// events until the window closes or the render thread exits. A nil
// surface hands the *glfw.Window itself to the backend. On window close
// it signals SurfaceDestroyed and waits for the render thread before
// returning the loop's terminal error, if any.
func (h *Host) Run(loop *renderloop.Loop, surface renderloop.SurfaceHandle) error {
	if loop == nil {
		return errors.New("glfwhost: nil loop")
	}
	h.loop = loop
	h.install()

	// A zero-sized framebuffer cannot back a swapchain. Wayland in
	// particular reports 0x0 until the window is mapped.
	width, height := h.window.GetFramebufferSize()
	for width == 0 || height == 0 {
		if h.window.ShouldClose() {
			return nil
		}
		glfw.WaitEventsTimeout(pumpInterval)
		width, height = h.window.GetFramebufferSize()
	}

	if surface == nil {
		surface = h.window
	}
	loop.SurfaceCreated(surface, width, height)
	if err := loop.Start(); err != nil && !errors.Is(err, renderloop.ErrAlreadyRunning) {
		return err
	}
	done := loop.Done()

	for !h.window.ShouldClose() {
		select {
		case <-done:
			// Render thread exited on its own, via Stop or an error.
			return loop.Err()
		default:
		}
		glfw.WaitEventsTimeout(pumpInterval)
	}

	// A paused render thread does not consume lifecycle flags, so lift
	// any pause before asking for teardown.
	loop.Resume()
	loop.SurfaceDestroyed()
	<-done
	return loop.Err()
}

// Close destroys the window. Terminate GLFW separately once all windows
// are gone.
func (h *Host) Close() {
	h.window.Destroy()
}

// install wires window callbacks to the loop and its input latch.
// Callbacks fire on the thread pumping events, which is the thread
// inside Run.
func (h *Host) install() {
	h.window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			// Minimized. Hold frames until the surface has pixels again.
			if !h.held {
				h.held = true
				h.loop.Pause()
			}
			return
		}
		if h.held {
			h.held = false
			h.loop.Resume()
		}
		h.loop.SurfaceChanged(width, height)
	})

	h.window.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		h.loop.Latch().PointerMove(renderloop.Pt(x, y))
	})

	h.window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		x, y := w.GetCursorPos()
		pos := renderloop.Pt(x, y)
		switch action {
		case glfw.Press:
			h.loop.Latch().PointerDown(pointerID(button), pos)
		case glfw.Release:
			h.loop.Latch().PointerUp(pointerID(button), pos)
		}
	})

	h.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			h.loop.Latch().KeyDown(hostKey(key), hostMods(mods))
		case glfw.Release:
			h.loop.Latch().KeyUp(hostKey(key), hostMods(mods))
		}
		// Repeat arrives while the key is already latched down.
	})
}

// pointerID maps a mouse button to a latch pointer id. Left, right and
// middle take ids 0 through 2, matching ButtonPrimary, ButtonSecondary
// and ButtonTertiary. Extra buttons follow at 3 and up.
func pointerID(button glfw.MouseButton) int {
	switch button {
	case glfw.MouseButtonLeft:
		return 0
	case glfw.MouseButtonRight:
		return 1
	case glfw.MouseButtonMiddle:
		return 2
	default:
		return int(button)
	}
}

// hostKey converts a GLFW key code. gpucontext key codes follow the
// GLFW numbering, so the conversion is a cast.
func hostKey(key glfw.Key) gpucontext.Key {
	return gpucontext.Key(key)
}

// hostMods converts a GLFW modifier bitmask, which shares its layout
// with gpucontext.
func hostMods(mods glfw.ModifierKey) gpucontext.Modifiers {
	return gpucontext.Modifiers(mods)
}
