package renderloop

// SurfaceState is the status of the external drawable surface as last
// reported by the host. Transitions are driven solely by the Surface*
// callbacks; the render thread only reads it.
//
// The underlying type is int32 so the state can live in an atomic word.
type SurfaceState int32

const (
	// SurfaceUncreated means the host has never delivered a surface.
	SurfaceUncreated SurfaceState = iota

	// SurfaceCreated means a surface is available for rendering.
	SurfaceCreated

	// SurfaceDestroyPending means the host has destroyed the surface but
	// the render thread has not yet processed the teardown.
	SurfaceDestroyPending

	// SurfaceDestroyed means the teardown has been processed; rendering
	// requires a new SurfaceCreated signal and an explicit restart.
	SurfaceDestroyed
)

// String returns the surface state name.
func (s SurfaceState) String() string {
	switch s {
	case SurfaceUncreated:
		return "Uncreated"
	case SurfaceCreated:
		return "Created"
	case SurfaceDestroyPending:
		return "DestroyPending"
	case SurfaceDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// RenderState is the render thread's lifecycle state. Pause and Stop are
// externally requested via flags, but only the render thread transitions
// into and out of Running.
type RenderState int32

const (
	// RenderStopped means no render thread is active.
	RenderStopped RenderState = iota

	// RenderRunning means the render thread is iterating.
	RenderRunning

	// RenderPaused means the render thread is alive but skipping frames;
	// GPU resources stay intact for a fast resume.
	RenderPaused
)

// String returns the render state name.
func (s RenderState) String() string {
	switch s {
	case RenderStopped:
		return "Stopped"
	case RenderRunning:
		return "Running"
	case RenderPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}
