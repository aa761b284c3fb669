// Command ccdemo composites a small scrolling page in software and saves
// the last frame as a PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/scene"
)

func main() {
	var (
		width   = flag.Int("width", 800, "viewport width")
		height  = flag.Int("height", 600, "viewport height")
		output  = flag.String("output", "frame.png", "output file")
		config  = flag.String("config", "", "settings file (TOML)")
		scrollY = flag.Float64("scroll", 0, "vertical scroll applied before drawing")
		zoom    = flag.Float64("zoom", 1, "pinch zoom applied at the viewport center")
		verbose = flag.Bool("v", false, "log compositor activity")
	)
	flag.Parse()

	if *verbose {
		compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	settings := compositor.DefaultSettings()
	if *config != "" {
		s, err := compositor.LoadSettings(*config)
		if err != nil {
			log.Fatalf("Failed to load settings: %v", err)
		}
		settings = s
	}

	img, err := run(settings, image.Pt(*width, *height), float32(*scrollY), float32(*zoom))
	if err != nil {
		log.Fatalf("Failed to draw: %v", err)
	}
	if err := savePNG(*output, img); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", *output, *width, *height)
}

// run builds the demo page, applies the requested input and draws one frame.
func run(settings compositor.Settings, size image.Point, scrollY, zoom float32) (*image.RGBA, error) {
	h := compositor.NewHost(settings, compositor.Client{})
	defer h.Close()
	h.SetViewportSize(size)

	var last *image.RGBA
	surface := render.NewOutputSurface(nil)
	surface.Present = func(f render.Frame) { last = f.Image }
	if err := h.InitializeRenderer(surface); err != nil {
		return nil, err
	}

	buildPage(h.ActiveTree(), size)
	h.ActiveTree().SetPageScaleFactorAndLimits(1, 0.5, 4)

	center := geom.Pt(float32(size.X)/2, float32(size.Y)/2)
	if zoom != 1 {
		h.ScrollBegin(center, scene.Gesture)
		h.PinchGestureBegin()
		h.PinchGestureUpdate(zoom, center)
		h.PinchGestureEnd()
		h.ScrollEnd()
	}
	if scrollY != 0 {
		// Below and right of the card, so the wheel scrolls the page.
		at := geom.Pt(float32(size.X)*3/4, float32(size.Y)*3/4)
		if h.ScrollBegin(at, scene.Wheel) == scene.ScrollStarted {
			h.ScrollBy(at, geom.Vec(0, scrollY))
			h.ScrollEnd()
		}
	}
	h.Animate(time.Now())

	var frame compositor.FrameData
	if !h.PrepareToDraw(&frame, image.Rectangle{}) {
		return nil, errors.New("nothing to draw")
	}
	if err := h.DrawLayers(&frame, time.Now()); err != nil {
		return nil, err
	}
	h.DidDrawAllLayers(&frame)
	if !h.SwapBuffers(&frame) || last == nil {
		return nil, errors.New("frame was not presented")
	}
	return last, nil
}

// buildPage lays out a tall striped page with a card that scrolls on its own.
func buildPage(tree *scene.Tree, size image.Point) {
	root := solid(tree, 1, image.Rectangle{Max: size}, gputypes.ColorWhite)
	tree.SetRootLayer(root)

	pageSize := image.Pt(size.X, size.Y*3)
	page := solid(tree, 2, image.Rectangle{Max: pageSize}, gputypes.Color{R: 0.95, G: 0.95, B: 0.97, A: 1})
	page.Scrollable = true
	root.AddChild(page)
	tree.SetRootScrollLayer(page.ID())

	stripe := size.Y / 4
	for i := 0; i*stripe < pageSize.Y; i++ {
		t := float64(i) / float64(pageSize.Y/stripe)
		c := gputypes.Color{R: 0.1 + t*0.4, G: 0.2 + t*0.3, B: 0.4 + t*0.2, A: 1}
		page.AddChild(solid(tree, 10+i, image.Rect(0, i*stripe, size.X, i*stripe+stripe/2), c))
	}

	card := solid(tree, 3, image.Rect(size.X/8, size.Y/8, size.X/2, size.Y/2), gputypes.Color{R: 1, G: 0.8, A: 1})
	card.Scrollable = true
	card.SetMaxScrollOffset(geom.Vec(0, float32(size.Y/4)))
	page.AddChild(card)
	dot := solid(tree, 4, image.Rect(20, 20, 80, 80), gputypes.Color{R: 1, G: 0.3, B: 0.3, A: 0.8})
	dot.SetOpacity(0.8)
	card.AddChild(dot)
}

func solid(tree *scene.Tree, id int, r image.Rectangle, c gputypes.Color) *scene.Layer {
	l := tree.NewLayer(id)
	l.SetBounds(r.Size())
	l.SetTransform(geom.Translate(float32(r.Min.X), float32(r.Min.Y)))
	l.SetSolidColor(c)
	return l
}

func savePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
