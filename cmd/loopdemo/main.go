// Command loopdemo runs a render loop against the headless backend and
// writes the final presented frame to a PNG.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"
	"time"

	"github.com/gogpu/renderloop"
	"github.com/gogpu/renderloop/backend/headless"
)

func main() {
	var (
		backend = flag.String("backend", headless.BackendName, "backend name from the registry")
		width   = flag.Int("width", 800, "surface width")
		height  = flag.Int("height", 600, "surface height")
		frames  = flag.Int("frames", 120, "frames to render before stopping")
		output  = flag.String("output", "loopdemo.png", "output file for the final frame")
		list    = flag.Bool("list", false, "list registered backends and exit")
	)
	flag.Parse()

	if *list {
		for _, name := range renderloop.RegisteredBackends() {
			fmt.Println(name)
		}
		return
	}

	app := &demoApp{limit: *frames}
	loop, err := renderloop.NewLoop(app, renderloop.WithBackendName(*backend))
	if err != nil {
		log.Fatalf("Failed to create loop: %v", err)
	}
	app.loop = loop

	loop.SurfaceCreated(nil, *width, *height)
	start := time.Now()
	if err := loop.Start(); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	go scriptInput(loop, *width, *height)
	<-loop.Done()
	if err := loop.Err(); err != nil {
		log.Fatalf("Render thread failed: %v", err)
	}
	took := time.Since(start)

	if snap := app.snapshot(); snap != nil {
		if err := savePNG(*output, snap); err != nil {
			log.Fatalf("Failed to save: %v", err)
		}
		log.Printf("Final frame saved to %s (%dx%d)", *output, *width, *height)
	}
	if err := loop.Close(); err != nil {
		log.Fatalf("Failed to close: %v", err)
	}

	fps := float64(app.frames) / took.Seconds()
	log.Printf("Rendered %d frames in %s (%.0f fps)", app.frames, took.Round(time.Millisecond), fps)
}

// demoApp paints an orbiting disc over a shifting gradient and stops the
// loop once the frame limit is reached.
type demoApp struct {
	loop   *renderloop.Loop
	dev    renderloop.Device
	limit  int
	frames int
	t      float64
}

func (a *demoApp) DeviceCreated(dev renderloop.Device) {
	a.dev = dev
	log.Printf("Device created")
}

func (a *demoApp) DeviceDisposed() {
	a.dev = nil
}

func (a *demoApp) Resized(width, height int) {
	log.Printf("Resized to %dx%d", width, height)
}

func (a *demoApp) Update(elapsed float64) error {
	a.t += elapsed
	a.frames++
	if a.frames >= a.limit {
		a.loop.Stop()
	}
	return nil
}

func (a *demoApp) Render(_ float64, fb renderloop.Framebuffer) ([]renderloop.CommandBuffer, error) {
	w, h := fb.Size()
	t := a.t

	// The disc follows the scripted pointer drag; until the first press
	// lands it sits in the center.
	snap := a.loop.Input()
	pos := snap.Position
	if !snap.Buttons.Any() {
		pos = renderloop.Pt(float64(w)/2, float64(h)/2)
	}

	return []renderloop.CommandBuffer{
		headless.Command(func(img *image.RGBA) {
			paintBackground(img, t)
		}),
		headless.Command(func(img *image.RGBA) {
			paintDisc(img, pos, t)
		}),
	}, nil
}

// scriptInput stands in for a windowing host: it presses the pointer and
// drags it along a circle until the loop exits.
func scriptInput(loop *renderloop.Loop, width, height int) {
	latch := loop.Latch()
	cx, cy := float64(width)/2, float64(height)/2
	r := float64(min(width, height)) / 3

	latch.PointerDown(0, renderloop.Pt(cx+r, cy))

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	angle := 0.0
	for {
		select {
		case <-loop.Done():
			return
		case <-ticker.C:
			angle += 0.01
			latch.PointerMove(renderloop.Pt(cx+r*math.Cos(angle), cy+r*math.Sin(angle)))
		}
	}
}

// snapshot returns the last presented frame. Valid after the loop has
// stopped; the headless device keeps the front buffer alive.
func (a *demoApp) snapshot() *image.RGBA {
	d, ok := a.dev.(*headless.Device)
	if !ok {
		return nil
	}
	return d.Snapshot()
}

func paintBackground(img *image.RGBA, t float64) {
	b := img.Bounds()
	height := b.Dy()
	shade := 0.5 + 0.5*math.Sin(t*0.3)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		f := float64(y-b.Min.Y) / float64(height)
		r := uint8(255 * (0.10 + 0.25*f))
		g := uint8(255 * (0.15 + 0.20*f*shade))
		bl := uint8(255 * (0.30 + 0.30*f))

		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for x := 0; x+3 < len(row); x += 4 {
			row[x] = r
			row[x+1] = g
			row[x+2] = bl
			row[x+3] = 0xff
		}
	}
}

func paintDisc(img *image.RGBA, pos renderloop.Point, t float64) {
	r := 24 + 8*math.Sin(t*3)
	fillCircle(img, pos.X, pos.Y, r, color.RGBA{R: 0xff, G: 0xb3, B: 0x00, A: 0xff})
}

func fillCircle(img *image.RGBA, cx, cy, r float64, c color.RGBA) {
	b := img.Bounds()
	x0 := clampInt(int(cx-r), b.Min.X, b.Max.X)
	x1 := clampInt(int(cx+r)+1, b.Min.X, b.Max.X)
	y0 := clampInt(int(cy-r), b.Min.Y, b.Max.Y)
	y1 := clampInt(int(cy+r)+1, b.Min.Y, b.Max.Y)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r*r {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
