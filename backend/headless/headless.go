// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package headless

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/renderloop"
)

// BackendName is the registry name of this backend.
const BackendName = "headless"

// Errors returned by the headless backend.
var (
	// ErrDeviceDisposed is returned by operations on a disposed device.
	ErrDeviceDisposed = errors.New("headless: device disposed")

	// ErrSwapchainDisposed is returned by operations on a disposed swapchain.
	ErrSwapchainDisposed = errors.New("headless: swapchain disposed")

	// ErrNoFramebuffer is returned by Submit when no framebuffer has been
	// acquired for the current frame.
	ErrNoFramebuffer = errors.New("headless: no framebuffer acquired")

	// ErrBadCommand is returned by Submit for command buffers that are not
	// headless Commands.
	ErrBadCommand = errors.New("headless: command buffer is not a headless.Command")
)

// init registers the headless backend on package import.
//
//	import _ "github.com/gogpu/renderloop/backend/headless"
func init() {
	renderloop.RegisterBackend(BackendName, 10, func() (renderloop.Backend, error) {
		return New(), nil
	}, nil)
}

// Command is the command-buffer type of the headless backend: a function
// executed against the acquired framebuffer image at submit time.
type Command func(img *image.RGBA)

// Backend creates RAM-backed devices and swapchains.
type Backend struct{}

// New returns a headless backend.
func New() *Backend { return &Backend{} }

// Name returns the registry name.
func (*Backend) Name() string { return BackendName }

// Ownership reports the decoupled family: devices outlive swapchains.
func (*Backend) Ownership() renderloop.SwapchainOwnership {
	return renderloop.OwnershipDecoupled
}

// CreateDevice creates a software device. The surface handle and size are
// ignored; they matter only to swapchain creation.
func (*Backend) CreateDevice(opts renderloop.DeviceOptions) (renderloop.Device, error) {
	frames := opts.FramesInFlight
	if frames <= 0 {
		frames = 2
	}
	return &Device{label: opts.Label, frames: frames}, nil
}

// CreateSwapchain attaches an image chain to the device.
func (*Backend) CreateSwapchain(dev renderloop.Device, _ renderloop.SurfaceHandle, width, height int) (renderloop.Swapchain, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, fmt.Errorf("headless: foreign device %T", dev)
	}
	if d.disposed {
		return nil, ErrDeviceDisposed
	}

	sc := newSwapchain(d, width, height, d.frames)
	d.sc = sc
	return sc, nil
}

// Device executes headless Commands against acquired framebuffers.
// GPU-side methods are render-thread only; Snapshot is safe from any
// thread.
type Device struct {
	label    string
	frames   int
	sc       *Swapchain
	disposed bool
}

// Label returns the debug label the device was created with.
func (d *Device) Label() string { return d.label }

// Submit runs each command against the framebuffer acquired for this
// frame. Submitting an empty list is a no-op.
func (d *Device) Submit(bufs []renderloop.CommandBuffer) error {
	if d.disposed {
		return ErrDeviceDisposed
	}
	if len(bufs) == 0 {
		return nil
	}
	if d.sc == nil || d.sc.target == nil {
		return ErrNoFramebuffer
	}

	for i, buf := range bufs {
		cmd, ok := buf.(Command)
		if !ok {
			return fmt.Errorf("%w: index %d holds %T", ErrBadCommand, i, buf)
		}
		cmd(d.sc.target)
	}
	return nil
}

// Snapshot returns a copy of the most recently presented frame, or nil
// if nothing has been presented. Safe from any thread.
func (d *Device) Snapshot() *image.RGBA {
	if d.sc == nil {
		return nil
	}
	return d.sc.Snapshot()
}

// Dispose releases the device. Further submits fail; Snapshot keeps
// returning the last presented frame.
func (d *Device) Dispose() {
	d.disposed = true
}

// Swapchain is a cycling chain of RAM images. Acquire, Present, Resize
// and Dispose are render-thread only; Snapshot is safe from any thread.
type Swapchain struct {
	dev    *Device
	images []*image.RGBA
	next   int
	target *image.RGBA

	width  int
	height int

	disposed bool

	// mu guards front, which crosses threads via Snapshot.
	mu    sync.Mutex
	front *image.RGBA
}

func newSwapchain(dev *Device, width, height, frames int) *Swapchain {
	sc := &Swapchain{dev: dev, width: width, height: height}
	sc.alloc(frames)
	return sc
}

func (s *Swapchain) alloc(frames int) {
	s.images = make([]*image.RGBA, frames)
	for i := range s.images {
		s.images[i] = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}
	s.next = 0
	s.target = nil
}

// Size returns the current chain dimensions.
func (s *Swapchain) Size() (int, int) { return s.width, s.height }

// Resize reallocates the image chain at the new dimensions. The previous
// frame contents are dropped.
func (s *Swapchain) Resize(width, height int) error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	s.width, s.height = width, height
	s.alloc(len(s.images))

	s.mu.Lock()
	s.front = nil
	s.mu.Unlock()
	return nil
}

// Acquire returns the next framebuffer in the chain.
func (s *Swapchain) Acquire() (renderloop.Framebuffer, error) {
	if s.disposed {
		return nil, ErrSwapchainDisposed
	}

	idx := s.next
	s.next = (s.next + 1) % len(s.images)
	s.target = s.images[idx]
	return &Framebuffer{img: s.target, index: idx}, nil
}

// Present publishes the framebuffer acquired for this frame. The
// published pixels are copied, so later frames never tear a Snapshot.
func (s *Swapchain) Present() error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	if s.target == nil {
		return ErrNoFramebuffer
	}

	s.mu.Lock()
	if s.front == nil || s.front.Bounds() != s.target.Bounds() {
		s.front = image.NewRGBA(s.target.Bounds())
	}
	copy(s.front.Pix, s.target.Pix)
	s.mu.Unlock()

	s.target = nil
	return nil
}

// Snapshot returns a copy of the last presented frame, or nil if nothing
// has been presented. Safe from any thread.
func (s *Swapchain) Snapshot() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.front == nil {
		return nil
	}
	out := image.NewRGBA(s.front.Bounds())
	copy(out.Pix, s.front.Pix)
	return out
}

// Dispose releases the chain. The presented front buffer is retained so
// the final frame stays readable through Snapshot.
func (s *Swapchain) Dispose() {
	s.disposed = true
	s.images = nil
	s.target = nil
}

// Framebuffer is one image of the chain, valid for the frame it was
// acquired in. Image may be drawn into directly during Render as an
// alternative to returning Commands.
type Framebuffer struct {
	img   *image.RGBA
	index int
}

// Size returns the framebuffer dimensions.
func (f *Framebuffer) Size() (int, int) {
	b := f.img.Bounds()
	return b.Dx(), b.Dy()
}

// Index returns the position of this framebuffer in the chain.
func (f *Framebuffer) Index() int { return f.index }

// Image returns the backing image.
func (f *Framebuffer) Image() *image.RGBA { return f.img }

// Interface checks.
var (
	_ renderloop.Backend     = (*Backend)(nil)
	_ renderloop.Device      = (*Device)(nil)
	_ renderloop.Swapchain   = (*Swapchain)(nil)
	_ renderloop.Framebuffer = (*Framebuffer)(nil)
)
