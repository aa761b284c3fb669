package compositor

import (
	"image"
	"testing"
	"time"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/scene"
)

func fadeOut(id int) *scene.Animation {
	return &scene.Animation{ID: id, Property: scene.AnimateOpacity, Duration: 100 * time.Millisecond, From: 1, To: 0}
}

func TestAnimateDrivesLayerOpacity(t *testing.T) {
	clock := newFakeClock()
	h, rec := newTestHost(t, DefaultSettings(), WithClock(clock.Now))
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	box := addSolid(h.ActiveTree(), root, 2, image.Rect(0, 0, 100, 100), gputypes.ColorRed)
	box.AddAnimation(fadeOut(1))
	drawFrame(t, h)

	var presented []render.Frame
	h.OutputSurface().Present = func(f render.Frame) { presented = append(presented, f) }

	h.Animate(clock.Now())
	if len(rec.animEvents) != 1 || rec.animEvents[0].Type != scene.AnimationStarted {
		t.Fatalf("events after first Animate = %v, want one Started", rec.animEvents)
	}
	if rec.animEvents[0].LayerID != 2 {
		t.Errorf("Started LayerID = %d, want 2", rec.animEvents[0].LayerID)
	}
	redraws := rec.redraws
	if redraws == 0 {
		t.Error("Animate did not ask for a redraw while an animation runs")
	}
	drawFrame(t, h)

	clock.Advance(50 * time.Millisecond)
	h.Animate(clock.Now())
	if got := box.Opacity(); got != 0.5 {
		t.Errorf("Opacity() at 50ms = %v, want 0.5", got)
	}
	if rec.redraws <= redraws {
		t.Error("Animate at 50ms did not ask for a redraw")
	}
	frame := prepareFrame(t, h)
	if frame.HasNoDamage {
		t.Fatal("HasNoDamage = true while the opacity animates")
	}
	if got, want := frame.RenderPasses.Root().DamageRect, image.Rect(0, 0, 100, 100); !want.In(got) {
		t.Errorf("root DamageRect = %v, want it to contain %v", got, want)
	}
	finishFrame(t, h, frame)
	if !h.SwapBuffers(frame) || len(presented) == 0 {
		t.Fatal("frame at 50ms not presented")
	}
	px := presented[len(presented)-1].Image.RGBAAt(50, 50)
	if px.R != 255 || px.G < 100 || px.G > 160 {
		t.Errorf("pixel (50,50) at 50ms = %v, want half red over white", px)
	}

	clock.Advance(50 * time.Millisecond)
	h.Animate(clock.Now())
	last := rec.animEvents[len(rec.animEvents)-1]
	if last.Type != scene.AnimationFinished || last.AnimationID != 1 {
		t.Errorf("last event = %+v, want Finished for animation 1", last)
	}
	if got := box.Opacity(); got != 0 {
		t.Errorf("final Opacity() = %v, want 0", got)
	}
	if n := len(box.Animations()); n != 0 {
		t.Errorf("%d animations left after finishing", n)
	}
	drawFrame(t, h)

	redraws = rec.redraws
	clock.Advance(16 * time.Millisecond)
	h.Animate(clock.Now())
	if rec.redraws != redraws {
		t.Error("Animate asked for a redraw with no animation left")
	}
}

func TestAnimateWithoutAcceleratedAnimations(t *testing.T) {
	s := DefaultSettings()
	s.AcceleratedAnimations = false
	clock := newFakeClock()
	h, rec := newTestHost(t, s, WithClock(clock.Now))
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	box := addSolid(h.ActiveTree(), root, 2, image.Rect(0, 0, 100, 100), gputypes.ColorRed)
	box.AddAnimation(fadeOut(1))

	h.Animate(clock.Now())
	clock.Advance(50 * time.Millisecond)
	h.Animate(clock.Now())
	if got := box.Opacity(); got != 1 {
		t.Errorf("Opacity() = %v, want 1 with compositor animations off", got)
	}
	if len(rec.animEvents) != 0 {
		t.Errorf("events = %v, want none", rec.animEvents)
	}
}

func TestAnimateLayersSpan(t *testing.T) {
	h, sr := newTracedHost(t)
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	addSolid(h.ActiveTree(), root, 2, image.Rect(0, 0, 100, 100), gputypes.ColorRed).AddAnimation(fadeOut(3))

	h.Animate(time.Now())
	s := endedSpan(t, sr, "compositor.AnimateLayers")
	if v, ok := spanAttr(s, "events"); !ok || v.AsInt64() != 1 {
		t.Errorf("events attribute = %v, want 1", v.AsInt64())
	}
}
