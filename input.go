package renderloop

import (
	"sync"

	"github.com/gogpu/gpucontext"
)

// PointerButtons is a bitmask of pressed pointer buttons. Bit N is set
// while pointer id N is down.
type PointerButtons uint32

// Common pointer ids. Touch screens report the first contact as id 0,
// which maps to ButtonPrimary.
const (
	ButtonPrimary   PointerButtons = 1 << 0
	ButtonSecondary PointerButtons = 1 << 1
	ButtonTertiary  PointerButtons = 1 << 2
)

// Down reports whether the button for pointer id is pressed.
func (b PointerButtons) Down(id int) bool {
	if id < 0 || id > 31 {
		return false
	}
	return b&(1<<uint(id)) != 0
}

// Any reports whether any button is pressed.
func (b PointerButtons) Any() bool { return b != 0 }

// Snapshot is an immutable view of latched input, produced once per frame
// by InputLatch.Flush.
type Snapshot struct {
	// Position is the most recent pointer position.
	Position Point

	// Delta is the pointer movement since the previous flush. It is zero
	// on the first flush after a press.
	Delta Point

	// Buttons holds the pressed state of each pointer button.
	Buttons PointerButtons

	// Keys lists the currently held keys in unspecified order.
	Keys []gpucontext.Key

	// Modifiers holds the modifier state from the latest key event.
	Modifiers gpucontext.Modifiers
}

// KeyHeld reports whether key is in the held set.
func (s Snapshot) KeyHeld(key gpucontext.Key) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// InputLatch collects input events from the UI thread for once-per-frame
// consumption by the render thread.
//
// Writers (PointerDown, PointerMove, PointerUp, KeyDown, KeyUp) are called
// from the platform event thread. Flush is called once per frame by the
// render loop and returns the accumulated state plus the pointer delta
// since the previous flush. All accessors serialize on one mutex and hold
// it only for plain field copies.
//
// The zero value is ready to use.
type InputLatch struct {
	mu sync.Mutex

	position Point
	sampled  Point // position at the previous flush
	buttons  PointerButtons

	keys      map[gpucontext.Key]struct{}
	modifiers gpucontext.Modifiers
}

// NewInputLatch returns an empty latch.
func NewInputLatch() *InputLatch {
	return &InputLatch{}
}

// PointerDown records a press of pointer id at pos. The sampled position
// is reset to pos so the first delta after a press is zero.
func (l *InputLatch) PointerDown(id int, pos Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = pos
	l.sampled = pos
	if id >= 0 && id <= 31 {
		l.buttons |= 1 << uint(id)
	}
}

// PointerMove records a pointer move to pos.
func (l *InputLatch) PointerMove(pos Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = pos
}

// PointerUp records a release of pointer id at pos.
func (l *InputLatch) PointerUp(id int, pos Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = pos
	if id >= 0 && id <= 31 {
		l.buttons &^= 1 << uint(id)
	}
}

// KeyDown records a key press with the current modifier state.
func (l *InputLatch) KeyDown(key gpucontext.Key, mods gpucontext.Modifiers) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.keys == nil {
		l.keys = make(map[gpucontext.Key]struct{})
	}
	l.keys[key] = struct{}{}
	l.modifiers = mods
}

// KeyUp records a key release with the current modifier state.
func (l *InputLatch) KeyUp(key gpucontext.Key, mods gpucontext.Modifiers) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.keys, key)
	l.modifiers = mods
}

// Flush returns the latched state and advances the delta baseline: the
// returned Delta is position minus the position at the previous flush,
// and the baseline becomes the current position. Called once per frame
// from the render thread.
func (l *InputLatch) Flush() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.snapshotLocked()
	l.sampled = l.position
	return snap
}

// Snapshot returns the latched state without advancing the delta
// baseline. Safe to call from any thread.
func (l *InputLatch) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.snapshotLocked()
}

func (l *InputLatch) snapshotLocked() Snapshot {
	snap := Snapshot{
		Position:  l.position,
		Delta:     l.position.Sub(l.sampled),
		Buttons:   l.buttons,
		Modifiers: l.modifiers,
	}
	if len(l.keys) > 0 {
		snap.Keys = make([]gpucontext.Key, 0, len(l.keys))
		for k := range l.keys {
			snap.Keys = append(snap.Keys, k)
		}
	}
	return snap
}
