package renderloop

import (
	"fmt"
	"time"
)

// pacer times frames and drives the per-frame hook sequence. Elapsed time
// is the raw wall-clock delta between consecutive frames; there is no
// smoothing, capping, or fixed-step accumulation.
type pacer struct {
	now  func() time.Time
	last time.Time
}

func newPacer() *pacer {
	return &pacer{now: time.Now}
}

// start captures the timing baseline. Calling it again resets timing, so
// it must only be used before the loop runs.
func (p *pacer) start() {
	p.last = p.now()
}

// frame runs one frame: acquire a framebuffer, invoke Update then Render
// with the elapsed seconds since the previous frame, submit the returned
// command buffers, present. Hook errors are returned unmodified; GPU
// errors are wrapped with the failing stage.
func (p *pacer) frame(app App, dev Device, sc Swapchain) error {
	now := p.now()
	elapsed := now.Sub(p.last).Seconds()
	p.last = now

	fb, err := sc.Acquire()
	if err != nil {
		return fmt.Errorf("renderloop: acquire framebuffer: %w", err)
	}

	if err := app.Update(elapsed); err != nil {
		return err
	}

	bufs, err := app.Render(elapsed, fb)
	if err != nil {
		return err
	}

	if err := dev.Submit(bufs); err != nil {
		return fmt.Errorf("renderloop: submit: %w", err)
	}

	if err := sc.Present(); err != nil {
		return fmt.Errorf("renderloop: present: %w", err)
	}
	return nil
}
