// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package glfwhost

import (
	"runtime"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/renderloop"
	_ "github.com/gogpu/renderloop/backend/headless"
)

func TestPointerID(t *testing.T) {
	cases := []struct {
		button glfw.MouseButton
		want   int
	}{
		{glfw.MouseButtonLeft, 0},
		{glfw.MouseButtonRight, 1},
		{glfw.MouseButtonMiddle, 2},
		{glfw.MouseButton4, 3},
		{glfw.MouseButton8, 7},
	}
	for _, c := range cases {
		if got := pointerID(c.button); got != c.want {
			t.Errorf("pointerID(%d) = %d, want %d", c.button, got, c.want)
		}
	}
}

func TestKeySpaceAlignment(t *testing.T) {
	if got := hostKey(glfw.KeySpace); got != gpucontext.KeySpace {
		t.Fatalf("hostKey(KeySpace) = %d, want %d", got, gpucontext.KeySpace)
	}
}

func TestRunNilLoop(t *testing.T) {
	h := &Host{}
	if err := h.Run(nil, nil); err == nil {
		t.Fatal("Run with nil loop should fail")
	}
}

// pumpApp counts frames and stops its loop after stopAt updates.
type pumpApp struct {
	loop    *renderloop.Loop
	frames  int
	created bool
	stopAt  int
}

func (a *pumpApp) DeviceCreated(renderloop.Device) { a.created = true }

func (a *pumpApp) DeviceDisposed() {}

func (a *pumpApp) Update(float64) error {
	a.frames++
	if a.frames >= a.stopAt {
		a.loop.Stop()
	}
	return nil
}

func (a *pumpApp) Render(float64, renderloop.Framebuffer) ([]renderloop.CommandBuffer, error) {
	return nil, nil
}

func TestRunHeadlessWindow(t *testing.T) {
	runtime.LockOSThread()

	host, err := New(WithTitle("glfwhost test"), WithSize(320, 240), WithFixedSize())
	if err != nil {
		t.Skipf("display not available: %v", err)
	}
	defer glfw.Terminate()
	defer host.Close()

	app := &pumpApp{stopAt: 3}
	loop, err := renderloop.NewLoop(app, renderloop.WithBackendName("headless"))
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	app.loop = loop
	defer loop.Close()

	if err := host.Run(loop, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !app.created {
		t.Error("DeviceCreated never fired")
	}
	if app.frames < app.stopAt {
		t.Errorf("frames = %d, want at least %d", app.frames, app.stopAt)
	}
}
