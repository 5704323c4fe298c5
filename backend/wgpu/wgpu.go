// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpu

import (
	_ "embed"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/renderloop"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// BackendName is the registry name of this backend.
const BackendName = "wgpu"

// Package errors.
var (
	// ErrNoDriver is returned when no HAL driver is linked into the binary.
	ErrNoDriver = errors.New("wgpu: no hal driver linked")

	// ErrNoAdapter is returned when the HAL driver finds no GPU adapters.
	ErrNoAdapter = errors.New("wgpu: no GPU adapters found")

	// ErrDeviceDisposed is returned when using a disposed device.
	ErrDeviceDisposed = errors.New("wgpu: device disposed")

	// ErrSwapchainDisposed is returned when using a disposed swapchain.
	ErrSwapchainDisposed = errors.New("wgpu: swapchain disposed")

	// ErrNoFramebuffer is returned by Submit and Present when no
	// framebuffer has been acquired for the current frame.
	ErrNoFramebuffer = errors.New("wgpu: no framebuffer acquired")

	// ErrBadCommand is returned by Submit for command buffer elements
	// that are neither FillOp nor hal.CommandBuffer.
	ErrBadCommand = errors.New("wgpu: unsupported command buffer")
)

//go:embed shaders/fill.wgsl
var fillShaderSource string

// fillParamsSize is the byte size of the fill uniform buffer.
// Layout: color (vec4<f32>) + width, height (u32) + padding = 32 bytes.
const fillParamsSize = 32

// frameTimeout bounds the fence wait for one frame's GPU work.
const frameTimeout = 5 * time.Second

func init() {
	renderloop.RegisterBackend(BackendName, 50, func() (renderloop.Backend, error) {
		return New()
	}, func() bool {
		_, ok := hal.GetBackend(gputypes.BackendVulkan)
		return ok
	})
}

// FillOp clears the acquired framebuffer to a solid color. Channel values
// are in [0, 1]. The device encodes it as a built-in compute pass.
type FillOp struct {
	R, G, B, A float32
}

// FillColor converts a color.Color into a FillOp.
func FillColor(c color.Color) FillOp {
	r, g, b, a := c.RGBA()
	return FillOp{
		R: float32(r) / 0xffff,
		G: float32(g) / 0xffff,
		B: float32(b) / 0xffff,
		A: float32(a) / 0xffff,
	}
}

// Backend creates compute devices on the first available GPU adapter.
// Registered under BackendName with priority 50.
type Backend struct {
	log atomic.Pointer[slog.Logger]
}

// New verifies that a HAL driver is linked and at least one GPU adapter
// exists, then returns the backend. The scratch instance is destroyed
// before returning; each device owns its own instance.
func New() (*Backend, error) {
	gb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoDriver
	}
	instance, err := gb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	instance.Destroy()
	if len(adapters) == 0 {
		return nil, ErrNoAdapter
	}
	return &Backend{}, nil
}

// Name returns BackendName.
func (b *Backend) Name() string { return BackendName }

// Ownership reports that devices survive surface destruction.
func (b *Backend) Ownership() renderloop.SwapchainOwnership {
	return renderloop.OwnershipDecoupled
}

// SetLogger installs the loop logger. Called by the loop at construction.
func (b *Backend) SetLogger(l *slog.Logger) { b.log.Store(l) }

func (b *Backend) logger() *slog.Logger {
	if l := b.log.Load(); l != nil {
		return l
	}
	return renderloop.Logger()
}

// CreateDevice opens a GPU adapter and builds the fill pipeline. Discrete
// and integrated GPUs are preferred over software adapters.
func (b *Backend) CreateDevice(opts renderloop.DeviceOptions) (renderloop.Device, error) {
	gb, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, ErrNoDriver
	}
	instance, err := gb.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: open device: %w", err)
	}

	frames := opts.FramesInFlight
	if frames <= 0 {
		frames = 2
	}
	d := &Device{
		backend:  b,
		label:    opts.Label,
		adapter:  selected.Info.Name,
		instance: instance,
		dev:      openDev.Device,
		queue:    openDev.Queue,
		frames:   frames,
	}
	if err := d.createFillPipeline(); err != nil {
		d.dev.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("wgpu: create fill pipeline: %w", err)
	}
	b.logger().Info("wgpu device ready", "adapter", d.adapter, "label", d.label)
	return d, nil
}

// CreateSwapchain builds an offscreen chain of pixel storage buffers on
// the device.
func (b *Backend) CreateSwapchain(dev renderloop.Device, _ renderloop.SurfaceHandle, width, height int) (renderloop.Swapchain, error) {
	d, ok := dev.(*Device)
	if !ok {
		return nil, fmt.Errorf("wgpu: foreign device %T", dev)
	}
	if d.disposed {
		return nil, ErrDeviceDisposed
	}
	sc := &Swapchain{dev: d, target: -1}
	if err := sc.createSlots(width, height); err != nil {
		return nil, err
	}
	d.sc = sc
	return sc, nil
}

// Device owns a HAL instance, device and queue plus the built-in fill
// pipeline. All methods except Snapshot are render-thread only.
type Device struct {
	backend *Backend
	label   string
	adapter string

	instance hal.Instance
	dev      hal.Device
	queue    hal.Queue

	fillShader     hal.ShaderModule
	fillBindLayout hal.BindGroupLayout
	fillPipeLayout hal.PipelineLayout
	fillPipeline   hal.ComputePipeline

	sc       *Swapchain
	frames   int
	disposed bool
}

// Label returns the device label.
func (d *Device) Label() string { return d.label }

// AdapterName returns the name of the GPU adapter backing this device.
func (d *Device) AdapterName() string { return d.adapter }

// Hal exposes the underlying HAL device and queue so applications can
// record their own command buffers for Submit.
func (d *Device) Hal() (hal.Device, hal.Queue) { return d.dev, d.queue }

func (d *Device) createFillPipeline() error {
	fillShader, err := d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "fill",
		Source: hal.ShaderSource{WGSL: fillShaderSource},
	})
	if err != nil {
		return fmt.Errorf("compile fill shader: %w", err)
	}
	d.fillShader = fillShader

	fillBindLayout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "fill_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create fill bind group layout: %w", err)
	}
	d.fillBindLayout = fillBindLayout

	fillPipeLayout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "fill_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.fillBindLayout},
	})
	if err != nil {
		return fmt.Errorf("create fill pipeline layout: %w", err)
	}
	d.fillPipeLayout = fillPipeLayout

	fillPipeline, err := d.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "fill_pipeline", Layout: d.fillPipeLayout,
		Compute: hal.ComputeState{Module: d.fillShader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create fill compute pipeline: %w", err)
	}
	d.fillPipeline = fillPipeline

	return nil
}

func (d *Device) destroyFillPipeline() {
	if d.dev == nil {
		return
	}
	if d.fillPipeline != nil {
		d.dev.DestroyComputePipeline(d.fillPipeline)
	}
	if d.fillPipeLayout != nil {
		d.dev.DestroyPipelineLayout(d.fillPipeLayout)
	}
	if d.fillBindLayout != nil {
		d.dev.DestroyBindGroupLayout(d.fillBindLayout)
	}
	if d.fillShader != nil {
		d.dev.DestroyShaderModule(d.fillShader)
	}
}

// Submit executes the frame's command buffers against the acquired
// framebuffer and blocks until the GPU finishes. FillOp elements are
// encoded in place; hal.CommandBuffer elements pass through and are freed
// after the fence signals.
func (d *Device) Submit(buffers []renderloop.CommandBuffer) error {
	if d.disposed {
		return ErrDeviceDisposed
	}
	if len(buffers) == 0 {
		return nil
	}
	if d.sc == nil || d.sc.disposed || d.sc.target < 0 {
		return ErrNoFramebuffer
	}

	slot := d.sc.slots[d.sc.target]
	w, h := d.sc.width, d.sc.height

	var cmdBufs []hal.CommandBuffer
	var cleanup []func()
	defer func() {
		for _, f := range cleanup {
			f()
		}
	}()

	var enc hal.CommandEncoder
	flush := func() error {
		if enc == nil {
			return nil
		}
		cmdBuf, err := enc.EndEncoding()
		enc = nil
		if err != nil {
			return fmt.Errorf("wgpu: end encoding: %w", err)
		}
		cmdBufs = append(cmdBufs, cmdBuf)
		cleanup = append(cleanup, func() { d.dev.FreeCommandBuffer(cmdBuf) })
		return nil
	}

	for i, buf := range buffers {
		switch cb := buf.(type) {
		case FillOp:
			if enc == nil {
				e, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "fill_encoder"})
				if err != nil {
					return fmt.Errorf("wgpu: create command encoder: %w", err)
				}
				if err := e.BeginEncoding("fill"); err != nil {
					return fmt.Errorf("wgpu: begin encoding: %w", err)
				}
				enc = e
			}
			fns, err := d.encodeFill(enc, cb, slot, w, h)
			cleanup = append(cleanup, fns...)
			if err != nil {
				return err
			}
		case hal.CommandBuffer:
			if err := flush(); err != nil {
				return err
			}
			cmdBufs = append(cmdBufs, cb)
			cleanup = append(cleanup, func() { d.dev.FreeCommandBuffer(cb) })
		default:
			return fmt.Errorf("%w: index %d holds %T", ErrBadCommand, i, buf)
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return d.submitAndWait(cmdBufs)
}

// encodeFill records one compute pass clearing the slot's pixel buffer.
// The returned cleanup functions destroy the pass's uniform buffer and
// bind group and must run after the fence wait.
func (d *Device) encodeFill(enc hal.CommandEncoder, fill FillOp, slot frameSlot, w, h int) ([]func(), error) {
	var fns []func()

	params, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "fill_params", Size: fillParamsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fns, fmt.Errorf("wgpu: create fill params buffer: %w", err)
	}
	fns = append(fns, func() { d.dev.DestroyBuffer(params) })
	d.queue.WriteBuffer(params, 0, packFillParams(fill, w, h))

	pixelBufSize := uint64(w * h * 4)
	bg, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "fill_bind", Layout: d.fillBindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Offset: 0, Size: fillParamsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: slot.pixels.NativeHandle(), Offset: 0, Size: pixelBufSize}},
		},
	})
	if err != nil {
		return fns, fmt.Errorf("wgpu: create fill bind group: %w", err)
	}
	fns = append(fns, func() { d.dev.DestroyBindGroup(bg) })

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: "fill_pass"})
	pass.SetPipeline(d.fillPipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((uint32(w)+7)/8, (uint32(h)+7)/8, 1)
	pass.End()
	return fns, nil
}

// submitAndWait submits the buffers with a fence and blocks until it
// signals. The caller frees the buffers.
func (d *Device) submitAndWait(cmdBufs []hal.CommandBuffer) error {
	if len(cmdBufs) == 0 {
		return nil
	}
	fence, err := d.dev.CreateFence()
	if err != nil {
		return fmt.Errorf("wgpu: create fence: %w", err)
	}
	defer d.dev.DestroyFence(fence)
	if err := d.queue.Submit(cmdBufs, fence, 1); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	fenceOK, err := d.dev.Wait(fence, 1, frameTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wgpu: wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// Snapshot returns a copy of the most recently presented frame, or nil if
// nothing has been presented. Safe to call from any thread.
func (d *Device) Snapshot() *image.RGBA {
	if d.sc == nil {
		return nil
	}
	return d.sc.Snapshot()
}

// Dispose destroys the fill pipeline, the HAL device and its instance.
// The swapchain must be disposed first.
func (d *Device) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	d.destroyFillPipeline()
	if d.dev != nil {
		d.dev.Destroy()
		d.dev = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
	d.backend.logger().Debug("wgpu device disposed", "label", d.label)
}

// frameSlot is one framebuffer's GPU storage: the pixel buffer compute
// passes write to, and the staging buffer present reads back through.
type frameSlot struct {
	pixels  hal.Buffer
	staging hal.Buffer
}

// Swapchain cycles through offscreen pixel buffers. Present reads the
// target buffer back into a CPU front image.
type Swapchain struct {
	dev    *Device
	slots  []frameSlot
	width  int
	height int
	next   int
	target int

	mu    sync.Mutex
	front *image.RGBA

	disposed bool
}

func (s *Swapchain) createSlots(width, height int) error {
	size := uint64(width * height * 4)
	slots := make([]frameSlot, 0, s.dev.frames)
	fail := func(err error) error {
		for _, sl := range slots {
			s.dev.dev.DestroyBuffer(sl.pixels)
			s.dev.dev.DestroyBuffer(sl.staging)
		}
		return err
	}
	for range s.dev.frames {
		pixels, err := s.dev.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "frame_pixels", Size: size,
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fail(fmt.Errorf("wgpu: create pixel buffer: %w", err))
		}
		staging, err := s.dev.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: "frame_staging", Size: size,
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			s.dev.dev.DestroyBuffer(pixels)
			return fail(fmt.Errorf("wgpu: create staging buffer: %w", err))
		}
		slots = append(slots, frameSlot{pixels: pixels, staging: staging})
	}
	s.slots = slots
	s.width = width
	s.height = height
	s.next = 0
	s.target = -1
	return nil
}

func (s *Swapchain) destroySlots() {
	for _, sl := range s.slots {
		s.dev.dev.DestroyBuffer(sl.pixels)
		s.dev.dev.DestroyBuffer(sl.staging)
	}
	s.slots = nil
}

// Size returns the current chain dimensions.
func (s *Swapchain) Size() (width, height int) { return s.width, s.height }

// Resize recreates the chain buffers at the new dimensions. The previous
// front image is dropped. Only called between frames, when the queue is
// idle.
func (s *Swapchain) Resize(width, height int) error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	s.destroySlots()
	if err := s.createSlots(width, height); err != nil {
		return err
	}
	s.mu.Lock()
	s.front = nil
	s.mu.Unlock()
	return nil
}

// Acquire returns the next framebuffer in the chain. The pixel buffer
// contents are unspecified until written by a submitted command.
func (s *Swapchain) Acquire() (renderloop.Framebuffer, error) {
	if s.disposed {
		return nil, ErrSwapchainDisposed
	}
	idx := s.next
	s.next = (s.next + 1) % len(s.slots)
	s.target = idx
	return &Framebuffer{sc: s, index: idx}, nil
}

// Present copies the target pixel buffer to its staging buffer, waits for
// the copy, and reads the result back into the front image.
func (s *Swapchain) Present() error {
	if s.disposed {
		return ErrSwapchainDisposed
	}
	if s.target < 0 {
		return ErrNoFramebuffer
	}
	slot := s.slots[s.target]
	size := uint64(s.width * s.height * 4)

	enc, err := s.dev.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "present_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding("present"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	enc.CopyBufferToBuffer(slot.pixels, slot.staging, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: size},
	})
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer s.dev.dev.FreeCommandBuffer(cmdBuf)
	if err := s.dev.submitAndWait([]hal.CommandBuffer{cmdBuf}); err != nil {
		return err
	}

	readback := make([]byte, size)
	if err := s.dev.queue.ReadBuffer(slot.staging, 0, readback); err != nil {
		return fmt.Errorf("wgpu: readback: %w", err)
	}

	s.mu.Lock()
	if s.front == nil || s.front.Bounds().Dx() != s.width || s.front.Bounds().Dy() != s.height {
		s.front = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	}
	unpackPixels(readback, s.front.Pix, s.width*s.height)
	s.mu.Unlock()

	s.target = -1
	return nil
}

// Snapshot returns a copy of the most recently presented frame, or nil.
// Safe to call from any thread.
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

// Dispose destroys the chain's GPU buffers. The presented front image is
// retained so the final frame stays readable through Snapshot.
func (s *Swapchain) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.destroySlots()
	s.target = -1
}

// Framebuffer is one chain slot exposed to the application for a frame.
type Framebuffer struct {
	sc    *Swapchain
	index int
}

// Size returns the framebuffer dimensions.
func (f *Framebuffer) Size() (width, height int) { return f.sc.width, f.sc.height }

// Index returns the chain slot index.
func (f *Framebuffer) Index() int { return f.index }

// PixelBuffer returns the slot's HAL pixel storage buffer for binding in
// application-recorded passes. Pixels are packed one u32 per texel,
// r | g<<8 | b<<16 | a<<24.
func (f *Framebuffer) PixelBuffer() hal.Buffer { return f.sc.slots[f.index].pixels }

func packFillParams(fill FillOp, w, h int) []byte {
	buf := make([]byte, fillParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(fill.R))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(fill.G))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(fill.B))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(fill.A))
	binary.LittleEndian.PutUint32(buf[16:], uint32(w)) //nolint:gosec // dimensions always fit uint32
	binary.LittleEndian.PutUint32(buf[20:], uint32(h)) //nolint:gosec // dimensions always fit uint32
	return buf
}

func unpackPixels(packed []byte, dst []uint8, pixelCount int) {
	for i := 0; i < pixelCount; i++ {
		val := binary.LittleEndian.Uint32(packed[i*4:])
		dstIdx := i * 4
		dst[dstIdx+0] = uint8(val & 0xFF)         //nolint:gosec // masked to 8 bits
		dst[dstIdx+1] = uint8((val >> 8) & 0xFF)  //nolint:gosec // masked to 8 bits
		dst[dstIdx+2] = uint8((val >> 16) & 0xFF) //nolint:gosec // masked to 8 bits
		dst[dstIdx+3] = uint8((val >> 24) & 0xFF) //nolint:gosec // masked to 8 bits
	}
}

// Interface compliance checks.
var (
	_ renderloop.Backend     = (*Backend)(nil)
	_ renderloop.Device      = (*Device)(nil)
	_ renderloop.Swapchain   = (*Swapchain)(nil)
	_ renderloop.Framebuffer = (*Framebuffer)(nil)
)
