package renderloop

// Option configures a Loop during creation.
//
// Example:
//
//	// Highest-priority available backend
//	loop, err := renderloop.NewLoop(app)
//
//	// A specific registered backend
//	loop, err := renderloop.NewLoop(app, renderloop.WithBackendName("headless"))
type Option func(*config)

// config holds optional configuration for Loop creation.
type config struct {
	backend        Backend
	backendName    string
	framesInFlight int
	deviceLabel    string
}

// defaultConfig returns the default loop configuration.
func defaultConfig() config {
	return config{
		backendName: "", // auto-select from the registry
		deviceLabel: "renderloop",
	}
}

// WithBackend injects a pre-constructed backend, bypassing the registry.
// Use this for backends that need host-side configuration before the loop
// exists, such as a vulkan backend carrying window instance extensions.
//
// Example:
//
//	b, err := vulkan.New(vulkan.WithInstanceExtensions(exts))
//	loop, err := renderloop.NewLoop(app, renderloop.WithBackend(b))
func WithBackend(b Backend) Option {
	return func(c *config) {
		c.backend = b
	}
}

// WithBackendName selects a registered backend by name. The empty name
// keeps auto-selection. Unknown or unavailable names fail in NewLoop.
func WithBackendName(name string) Option {
	return func(c *config) {
		c.backendName = name
	}
}

// WithFramesInFlight sets how many frames the backend may have in flight
// at once. Zero keeps the backend default (typically 2). Higher values
// trade latency for throughput stability.
func WithFramesInFlight(n int) Option {
	return func(c *config) {
		c.framesInFlight = n
	}
}

// WithDeviceLabel sets the debug label attached to the created device.
// Labels show up in GPU debuggers and validation-layer messages.
func WithDeviceLabel(label string) Option {
	return func(c *config) {
		c.deviceLabel = label
	}
}
