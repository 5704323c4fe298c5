package renderloop

import (
	"fmt"
	"sort"
	"sync"
)

// BackendFactory creates a new Backend instance. Factories take no
// arguments; backends that need pre-construction configuration (for
// example vulkan instance extensions for window surfaces) are constructed
// directly by the host and injected via WithBackend instead.
type BackendFactory func() (Backend, error)

// registryEntry represents a registered backend.
type registryEntry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	// Standard priorities:
	//   - 100: presenting GPU backends (vulkan)
	//   - 50: offscreen GPU backends (wgpu)
	//   - 10: pure software backends (headless)
	Priority int

	// Factory creates backend instances.
	Factory BackendFactory

	// Available reports if the backend is usable on this system.
	Available func() bool
}

// backendRegistry manages registered backends.
//
// Backends register themselves in init functions, usually guarded by a
// build tag, so importing a backend package is all that is needed:
//
//	import _ "github.com/gogpu/renderloop/backend/headless"
type backendRegistry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// globalBackends is the default registry.
var globalBackends = &backendRegistry{}

// RegisterBackend adds a backend to the global registry.
//
// If available is nil, the backend is assumed always available.
// Registering a name that already exists replaces the previous entry.
func RegisterBackend(name string, priority int, factory BackendFactory, available func() bool) {
	globalBackends.register(name, priority, factory, available)
}

// UnregisterBackend removes a backend from the global registry.
func UnregisterBackend(name string) {
	globalBackends.unregister(name)
}

// RegisteredBackends returns all registered backend names sorted by
// priority (highest first).
func RegisteredBackends() []string {
	return globalBackends.sorted(false)
}

// AvailableBackends returns the names of all available backends sorted by
// priority (highest first).
func AvailableBackends() []string {
	return globalBackends.sorted(true)
}

// NewBackend constructs a backend by name. An empty name selects the
// highest-priority available backend. Unknown names return
// ErrBackendNotAvailable; an empty registry (or one with nothing
// available) returns ErrNoBackend.
func NewBackend(name string) (Backend, error) {
	return globalBackends.newBackend(name)
}

func (r *backendRegistry) register(name string, priority int, factory BackendFactory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*registryEntry)
	}

	if available == nil {
		available = func() bool { return true }
	}

	r.entries[name] = &registryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

func (r *backendRegistry) unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

func (r *backendRegistry) newBackend(name string) (Backend, error) {
	if name != "" {
		r.mu.RLock()
		entry, ok := r.entries[name]
		r.mu.RUnlock()

		if !ok {
			return nil, fmt.Errorf("%w: %q is not registered", ErrBackendNotAvailable, name)
		}
		if !entry.Available() {
			return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
		}
		return entry.Factory()
	}

	// Auto-select: try available backends in priority order. A factory
	// failure falls through to the next candidate.
	var lastErr error
	for _, candidate := range r.sorted(true) {
		r.mu.RLock()
		entry := r.entries[candidate]
		r.mu.RUnlock()
		if entry == nil {
			// Unregistered between the availability scan and now.
			continue
		}

		b, err := entry.Factory()
		if err == nil {
			return b, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: last candidate failed: %v", ErrNoBackend, lastErr)
	}
	return nil, ErrNoBackend
}

// sorted returns backend names sorted by priority (highest first).
// If onlyAvailable is true, filters to available backends only.
func (r *backendRegistry) sorted(onlyAvailable bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil
	}

	type entry struct {
		name     string
		priority int
	}

	entries := make([]entry, 0, len(r.entries))
	for name, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, entry{name: name, priority: e.Priority})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].priority != entries[j].priority {
			return entries[i].priority > entries[j].priority
		}
		return entries[i].name < entries[j].name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}
