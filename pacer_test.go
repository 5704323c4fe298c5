package renderloop

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// callOrder records the sequence of pacer-driven calls.
type callOrder struct {
	mu    sync.Mutex
	calls []string
}

func (c *callOrder) add(s string) {
	c.mu.Lock()
	c.calls = append(c.calls, s)
	c.mu.Unlock()
}

func (c *callOrder) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

type seqApp struct {
	ord *callOrder
	fb  Framebuffer
}

func (a *seqApp) Update(elapsed float64) error {
	a.ord.add("update")
	return nil
}

func (a *seqApp) Render(elapsed float64, fb Framebuffer) ([]CommandBuffer, error) {
	a.ord.add("render")
	a.fb = fb
	return []CommandBuffer{struct{}{}}, nil
}

type seqDevice struct{ ord *callOrder }

func (d *seqDevice) Submit(bufs []CommandBuffer) error {
	d.ord.add("submit")
	return nil
}
func (d *seqDevice) Dispose() {}

type seqSwapchain struct{ ord *callOrder }

func (s *seqSwapchain) Size() (int, int)      { return 100, 100 }
func (s *seqSwapchain) Resize(w, h int) error { return nil }
func (s *seqSwapchain) Present() error        { s.ord.add("present"); return nil }
func (s *seqSwapchain) Dispose()              {}
func (s *seqSwapchain) Acquire() (Framebuffer, error) {
	s.ord.add("acquire")
	return &fakeFramebuffer{width: 100, height: 100}, nil
}

func TestPacerElapsed(t *testing.T) {
	p := newPacer()

	base := time.Now()
	times := []time.Time{
		base,
		base.Add(16 * time.Millisecond),
		base.Add(48 * time.Millisecond),
	}
	i := 0
	p.now = func() time.Time {
		tm := times[i]
		if i < len(times)-1 {
			i++
		}
		return tm
	}

	app := &recordApp{}
	dev := &fakeDevice{}
	sc := &fakeSwapchain{width: 100, height: 100}

	p.start()
	if err := p.frame(app, dev, sc); err != nil {
		t.Fatalf("frame() = %v", err)
	}
	if err := p.frame(app, dev, sc); err != nil {
		t.Fatalf("frame() = %v", err)
	}

	app.mu.Lock()
	elapsed := append([]float64(nil), app.elapsed...)
	app.mu.Unlock()

	want := []float64{
		times[1].Sub(times[0]).Seconds(),
		times[2].Sub(times[1]).Seconds(),
	}
	if len(elapsed) != 2 {
		t.Fatalf("Update called %d times, want 2", len(elapsed))
	}
	for i := range want {
		if elapsed[i] != want[i] {
			t.Errorf("elapsed[%d] = %v, want %v", i, elapsed[i], want[i])
		}
	}
}

func TestPacerFirstFrameZeroElapsed(t *testing.T) {
	p := newPacer()

	fixed := time.Now()
	p.now = func() time.Time { return fixed }

	app := &recordApp{}
	p.start()
	if err := p.frame(app, &fakeDevice{}, &fakeSwapchain{}); err != nil {
		t.Fatalf("frame() = %v", err)
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	if app.elapsed[0] != 0 {
		t.Errorf("first elapsed = %v, want 0", app.elapsed[0])
	}
}

func TestPacerElapsedNonNegative(t *testing.T) {
	p := newPacer()
	app := &recordApp{}
	dev := &fakeDevice{}
	sc := &fakeSwapchain{}

	p.start()
	for range 5 {
		if err := p.frame(app, dev, sc); err != nil {
			t.Fatalf("frame() = %v", err)
		}
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	for i, e := range app.elapsed {
		if e < 0 {
			t.Errorf("elapsed[%d] = %v, want >= 0", i, e)
		}
	}
}

func TestPacerFrameOrder(t *testing.T) {
	ord := &callOrder{}
	app := &seqApp{ord: ord}
	p := newPacer()

	p.start()
	if err := p.frame(app, &seqDevice{ord: ord}, &seqSwapchain{ord: ord}); err != nil {
		t.Fatalf("frame() = %v", err)
	}

	want := []string{"acquire", "update", "render", "submit", "present"}
	got := ord.list()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
	if app.fb == nil {
		t.Error("Render did not receive the acquired framebuffer")
	}
	if w, h := app.fb.Size(); w != 100 || h != 100 {
		t.Errorf("framebuffer size = %dx%d, want 100x100", w, h)
	}
}

func TestPacerHookErrorUnmodified(t *testing.T) {
	hookErr := errors.New("bad state")
	p := newPacer()
	p.start()

	app := &recordApp{updateErr: hookErr}
	if err := p.frame(app, &fakeDevice{}, &fakeSwapchain{}); err != hookErr {
		t.Errorf("frame() = %v, want the update error itself", err)
	}

	app = &recordApp{renderErr: hookErr}
	if err := p.frame(app, &fakeDevice{}, &fakeSwapchain{}); err != hookErr {
		t.Errorf("frame() = %v, want the render error itself", err)
	}
}

func TestPacerUpdateErrorSkipsSubmit(t *testing.T) {
	p := newPacer()
	p.start()

	app := &recordApp{updateErr: errors.New("boom")}
	dev := &fakeDevice{}
	sc := &fakeSwapchain{}

	if err := p.frame(app, dev, sc); err == nil {
		t.Fatal("expected update error")
	}
	if dev.submits.Load() != 0 {
		t.Error("failed update must not submit")
	}
	if sc.presents.Load() != 0 {
		t.Error("failed update must not present")
	}
}

func TestPacerGPUErrorsWrapped(t *testing.T) {
	gpuErr := errors.New("device lost")
	p := newPacer()

	tests := []struct {
		name  string
		dev   *fakeDevice
		sc    *fakeSwapchain
		stage string
	}{
		{"acquire", &fakeDevice{}, &fakeSwapchain{acquireErr: gpuErr}, "acquire framebuffer"},
		{"submit", &fakeDevice{submitErr: gpuErr}, &fakeSwapchain{}, "submit"},
		{"present", &fakeDevice{}, &fakeSwapchain{presentErr: gpuErr}, "present"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.start()
			err := p.frame(&recordApp{}, tt.dev, tt.sc)
			if err == nil {
				t.Fatal("expected GPU error")
			}
			if !errors.Is(err, gpuErr) {
				t.Errorf("error = %v, want wrapped %v", err, gpuErr)
			}
			if !strings.Contains(err.Error(), tt.stage) {
				t.Errorf("error = %v, want %s stage context", err, tt.stage)
			}
		})
	}
}
