package renderloop

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrNilApp is returned by NewLoop when no App is supplied.
var ErrNilApp = errors.New("renderloop: nil app")

// Loop coordinates a host application, a backend, and a dedicated render
// thread. Surface lifecycle signals and control calls are safe from any
// thread; they only set flags or latch data. The render thread polls
// those flags once per iteration and performs all GPU work itself, so
// device and swapchain handles never cross threads.
//
// A Loop is created stopped. Start launches the render thread; Stop and
// surface destruction halt it. After surface destruction the loop stays
// halted even if the surface reappears; the host must call Start again.
// Pause and Resume suspend frame production without touching GPU
// resources.
type Loop struct {
	app     App
	backend Backend
	lc      *lifecycle
	pacer   *pacer
	latch   *InputLatch

	running atomic.Bool
	paused  atomic.Bool
	closed  atomic.Bool

	createPending  atomic.Bool
	resizePending  atomic.Bool
	destroyPending atomic.Bool
	everCreated    atomic.Bool

	surfaceState atomic.Int32
	renderState  atomic.Int32

	frames     atomic.Uint64
	frameInput atomic.Pointer[Snapshot]

	// pendingMu guards the latched surface geometry. The UI thread
	// writes it on lifecycle signals; the render thread reads it when
	// consuming a pending flag.
	pendingMu      sync.Mutex
	pendingSurface SurfaceHandle
	pendingWidth   int
	pendingHeight  int

	// mu guards err and done across restarts and serializes Start
	// against Close.
	mu   sync.Mutex
	err  error
	done chan struct{}
}

// NewLoop creates a loop for app. The backend is taken from WithBackend
// if given, otherwise resolved through the registry by WithBackendName
// (empty name selects the highest-priority available backend).
// Configuration problems are reported here, never later from the render
// thread.
func NewLoop(app App, opts ...Option) (*Loop, error) {
	if app == nil {
		return nil, ErrNilApp
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.framesInFlight < 0 {
		return nil, fmt.Errorf("renderloop: frames in flight must be >= 0, got %d", cfg.framesInFlight)
	}

	backend := cfg.backend
	if backend == nil {
		var err error
		backend, err = NewBackend(cfg.backendName)
		if err != nil {
			return nil, err
		}
	}
	adoptLoggerTarget(backend)

	// A pre-closed done channel means Done() never blocks callers that
	// wait on a loop that was never started.
	done := make(chan struct{})
	close(done)

	l := &Loop{
		app:     app,
		backend: backend,
		lc:      newLifecycle(backend, app, cfg.deviceLabel, cfg.framesInFlight),
		pacer:   newPacer(),
		latch:   NewInputLatch(),
		done:    done,
	}
	l.surfaceState.Store(int32(SurfaceUncreated))
	l.renderState.Store(int32(RenderStopped))

	Logger().Debug("loop created", "backend", backend.Name(), "ownership", backend.Ownership().String())
	return l, nil
}

// Backend returns the backend the loop was constructed with.
func (l *Loop) Backend() Backend { return l.backend }

// Latch returns the input latch. Platform integrations write pointer and
// key events into it; the render thread flushes it once per frame.
func (l *Loop) Latch() *InputLatch { return l.latch }

// Input returns the snapshot flushed at the top of the most recent frame.
// Before the first frame it is zero.
func (l *Loop) Input() Snapshot {
	if p := l.frameInput.Load(); p != nil {
		return *p
	}
	return Snapshot{}
}

// FrameCount returns the number of completed frames since the loop was
// created. It never resets, not even across Stop/Start.
func (l *Loop) FrameCount() uint64 { return l.frames.Load() }

// State returns the render thread state.
func (l *Loop) State() RenderState { return RenderState(l.renderState.Load()) }

// SurfaceState returns the surface lifecycle state as last signaled or
// processed.
func (l *Loop) SurfaceState() SurfaceState { return SurfaceState(l.surfaceState.Load()) }

// Err returns the error that terminated the render thread, or nil. It is
// reset by Start.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Done returns a channel closed when the render thread exits. Each Start
// produces a fresh channel; before the first Start the returned channel
// is already closed.
func (l *Loop) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// SurfaceCreated signals that the platform surface is ready. Safe from
// any thread; the render thread picks it up on its next iteration.
// Signaling an already-created surface is harmless.
func (l *Loop) SurfaceCreated(surface SurfaceHandle, width, height int) {
	l.pendingMu.Lock()
	l.pendingSurface = surface
	l.pendingWidth = width
	l.pendingHeight = height
	l.pendingMu.Unlock()

	l.surfaceState.Store(int32(SurfaceCreated))
	l.everCreated.Store(true)
	l.createPending.Store(true)
}

// SurfaceChanged signals new surface dimensions. Safe from any thread.
// The swapchain is resized between frames, never mid-frame.
func (l *Loop) SurfaceChanged(width, height int) {
	l.pendingMu.Lock()
	l.pendingWidth = width
	l.pendingHeight = height
	l.pendingMu.Unlock()

	l.resizePending.Store(true)
}

// SurfaceDestroyed signals that the platform surface is going away. Safe
// from any thread. Processing it disposes the swapchain (and, for a
// coupled backend, the device) and halts the loop; a later Start is
// required to run again.
func (l *Loop) SurfaceDestroyed() {
	l.surfaceState.Store(int32(SurfaceDestroyPending))
	l.destroyPending.Store(true)
}

// Start launches the render thread. It fails with ErrAlreadyRunning
// while a render thread is live, including after Stop or a surface
// destroy until Done has closed, and ErrLoopClosed after Close.
// Starting clears a previous termination error and resumes a paused
// loop.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	// Stop does not wait for the thread, so running alone cannot prove
	// the old thread is gone: it could still be mid-iteration and see a
	// re-armed flag. GPU state has a single owner; spawn only after the
	// previous thread has closed its done channel.
	select {
	case <-l.done:
	default:
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.err = nil
	done := make(chan struct{})
	l.done = done
	l.running.Store(true)
	l.mu.Unlock()

	l.paused.Store(false)
	l.renderState.Store(int32(RenderRunning))
	l.pacer.start()

	go l.run(done)

	Logger().Debug("loop started")
	return nil
}

// Stop asks the render thread to exit. It does not block; wait on Done
// before restarting, since Start refuses while the thread is still
// live. GPU resources are left intact, so a later Start continues with
// the existing device and swapchain.
func (l *Loop) Stop() {
	l.running.Store(false)
}

// Pause suspends frame production. The device and swapchain stay alive,
// so Resume is cheap. A stopped loop ignores Pause.
func (l *Loop) Pause() {
	if !l.running.Load() {
		return
	}
	l.paused.Store(true)
	l.renderState.Store(int32(RenderPaused))
	Logger().Debug("loop paused")
}

// Resume restarts frame production after Pause. No device or swapchain
// work happens and no notifications fire.
func (l *Loop) Resume() {
	if !l.running.Load() {
		return
	}
	l.paused.Store(false)
	l.renderState.Store(int32(RenderRunning))
	Logger().Debug("loop resumed")
}

// Close stops the loop, waits for the render thread to exit, and releases
// all GPU resources. The loop cannot be started again. Close is
// idempotent and returns nil.
func (l *Loop) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}

	// mu orders the stop against a concurrent Start: either the started
	// thread sees running false here, or Start observes closed and
	// refuses.
	l.mu.Lock()
	l.running.Store(false)
	done := l.done
	l.mu.Unlock()
	<-done

	// The render thread is gone, so the calling thread may touch the
	// lifecycle safely.
	l.lc.teardown()
	releaseLoggerTarget(l.backend)

	Logger().Debug("loop closed", "frames", l.frames.Load())
	return nil
}

// run is the render thread body. The OS thread is locked because GPU
// drivers bind device contexts to the creating thread.
func (l *Loop) run(done chan struct{}) {
	runtime.LockOSThread()
	defer func() {
		l.renderState.Store(int32(RenderStopped))
		close(done)
	}()

	for l.running.Load() {
		if err := l.step(); err != nil {
			Logger().Error("render loop failed", "error", err)
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
			l.running.Store(false)
			return
		}
	}
}

// step performs one render-thread iteration in strict order: the pause
// and never-created gates, pending destroy, pending resize, input flush,
// pending create, then one frame if a device and swapchain exist.
func (l *Loop) step() error {
	if l.paused.Load() || !l.everCreated.Load() {
		runtime.Gosched()
		return nil
	}

	if l.destroyPending.CompareAndSwap(true, false) {
		l.lc.handleDestroy()
		l.surfaceState.Store(int32(SurfaceDestroyed))
		l.running.Store(false)
		return nil
	}

	if l.resizePending.CompareAndSwap(true, false) {
		_, w, h := l.pendingGeometry()
		if err := l.lc.handleResize(w, h); err != nil {
			return err
		}
	}

	snap := l.latch.Flush()
	l.frameInput.Store(&snap)

	if l.createPending.CompareAndSwap(true, false) {
		surface, w, h := l.pendingGeometry()
		if err := l.lc.handleCreate(surface, w, h); err != nil {
			return err
		}
	}

	if !l.lc.ready() {
		runtime.Gosched()
		return nil
	}

	if err := l.pacer.frame(l.app, l.lc.dev, l.lc.sc); err != nil {
		return err
	}
	l.frames.Add(1)
	return nil
}

func (l *Loop) pendingGeometry() (SurfaceHandle, int, int) {
	l.pendingMu.Lock()
	defer l.pendingMu.Unlock()
	return l.pendingSurface, l.pendingWidth, l.pendingHeight
}
