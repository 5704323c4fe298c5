// Package renderloop drives continuous rendering onto a platform-owned
// surface from a dedicated render thread.
//
// # Overview
//
// renderloop is the runtime piece of the GoGPU ecosystem: it owns the
// render thread, the GPU device and swapchain lifetime, and the handoff
// between host surface-lifecycle callbacks and per-frame application
// hooks. The hard part it solves is not drawing: it is coordinating
// three independently timed actors without races, namely the host's
// surface callbacks (arriving on a UI thread), the free-running render
// thread, and the application's pause/resume/stop/start requests.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/renderloop"
//	    _ "github.com/gogpu/renderloop/backend/headless"
//	)
//
//	loop, err := renderloop.NewLoop(app)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	loop.SurfaceCreated(nil, 640, 480)
//	loop.Start()
//	// ... host delivers SurfaceChanged / SurfaceDestroyed, input events ...
//	<-loop.Done()
//	loop.Close()
//
// The app implements [App]: Update is called with elapsed seconds, then
// Render returns command buffers that are submitted to the device before
// the frame is presented.
//
// # Architecture
//
// The library is organized into:
//   - Public API: Loop, App, InputLatch, the Backend/Device/Swapchain contracts
//   - Backends: backend/headless (in-memory), backend/wgpu (pure Go WebGPU),
//     backend/vulkan (window presentation, build tag "vulkan")
//   - Integration: integration/glfwhost (desktop window glue)
//
// Backends register themselves in init, selected by priority or by name.
// The two backend families differ in ownership: decoupled backends keep
// their device alive across surface destruction, coupled backends create
// and destroy device and swapchain as one unit.
//
// # Threading
//
// All control entry points (Start, Stop, Pause, Resume, the Surface*
// callbacks, input recording) are safe to call from any thread and never
// block on the render thread. GPU objects are created, resized, and
// disposed exclusively on the render thread. Lifecycle notifications
// (DeviceCreated, DeviceDisposed, Resized) and the Update/Render hooks
// fire synchronously on the render thread.
package renderloop

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
