package scene

import (
	"image"
	"testing"
	"time"

	"github.com/gogpu/compositor/geom"
)

func TestLayerScrollBy(t *testing.T) {
	tests := []struct {
		name       string
		offset     geom.Vector
		delta      geom.Vector
		wantDelta  geom.Vector
		wantUnused geom.Vector
	}{
		{"within range", geom.Vec(0, 0), geom.Vec(10, 20), geom.Vec(10, 20), geom.Vector{}},
		{"past max", geom.Vec(0, 90), geom.Vec(0, 30), geom.Vec(0, 10), geom.Vec(0, 20)},
		{"past zero", geom.Vec(5, 0), geom.Vec(-15, 0), geom.Vec(-5, 0), geom.Vec(-10, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree(Active)
			l := tree.NewLayer(1)
			l.SetMaxScrollOffset(geom.Vec(100, 100))
			l.SetScrollOffset(tt.offset)

			unused := l.ScrollBy(tt.delta)
			if l.ScrollDelta() != tt.wantDelta {
				t.Errorf("ScrollDelta() = %v, want %v", l.ScrollDelta(), tt.wantDelta)
			}
			if unused != tt.wantUnused {
				t.Errorf("ScrollBy() = %v, want %v", unused, tt.wantUnused)
			}
		})
	}
}

func TestLayerTryScroll(t *testing.T) {
	tests := []struct {
		name  string
		setup func(l *Layer)
		typ   InputType
		want  ScrollStatus
	}{
		{"scrollable", func(*Layer) {}, Gesture, ScrollStarted},
		{"main thread", func(l *Layer) { l.ShouldScrollOnMainThread = true }, Gesture, ScrollOnMainThread},
		{"non fast region", func(l *Layer) {
			l.NonFastScrollableRegion = geom.RegionOf(image.Rect(0, 0, 20, 20))
		}, Gesture, ScrollOnMainThread},
		{"non fast region elsewhere", func(l *Layer) {
			l.NonFastScrollableRegion = geom.RegionOf(image.Rect(50, 50, 60, 60))
		}, Gesture, ScrollStarted},
		{"wheel handlers", func(l *Layer) { l.HaveWheelEventHandlers = true }, Wheel, ScrollOnMainThread},
		{"wheel handlers ignore gestures", func(l *Layer) { l.HaveWheelEventHandlers = true }, Gesture, ScrollStarted},
		{"not scrollable", func(l *Layer) { l.Scrollable = false }, Gesture, ScrollIgnored},
		{"no scroll range", func(l *Layer) { l.SetMaxScrollOffset(geom.Vector{}) }, Wheel, ScrollIgnored},
		{"singular transform", func(l *Layer) { l.SetTransform(geom.Scale(0, 1)) }, Gesture, ScrollIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := NewTree(Active)
			l := solidLayer(tree, nil, 1, 0, 0, 100, 100)
			tree.SetRootLayer(l)
			l.Scrollable = true
			l.SetMaxScrollOffset(geom.Vec(0, 50))
			tt.setup(l)
			tree.UpdateDrawProperties(testViewport)

			if got := l.TryScroll(geom.Pt(5, 5), tt.typ); got != tt.want {
				t.Errorf("TryScroll() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindLayerThatIsHitByPoint(t *testing.T) {
	tree := surfaceTree()
	tree.UpdateDrawProperties(testViewport)

	tests := []struct {
		p    geom.Point
		want int
	}{
		{geom.Pt(25, 25), 3},
		{geom.Pt(100, 100), 2},
		{geom.Pt(130, 130), 4},
		{geom.Pt(190, 5), 1},
		{geom.Pt(250, 250), 0},
	}
	for _, tt := range tests {
		got := 0
		if l := tree.FindLayerThatIsHitByPoint(tt.p); l != nil {
			got = l.ID()
		}
		if got != tt.want {
			t.Errorf("FindLayerThatIsHitByPoint(%v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}

func TestFindLayerThatIsHitByPoint_Clipped(t *testing.T) {
	tree := NewTree(Active)
	root := tree.NewLayer(1)
	root.SetBounds(image.Pt(200, 200))
	tree.SetRootLayer(root)
	clip := tree.NewLayer(2)
	clip.SetBounds(image.Pt(50, 50))
	clip.MasksToBounds = true
	root.AddChild(clip)
	solidLayer(tree, clip, 3, 0, 0, 100, 100)
	tree.UpdateDrawProperties(testViewport)

	if l := tree.FindLayerThatIsHitByPoint(geom.Pt(75, 75)); l != nil {
		t.Errorf("clipped point hit layer %d", l.ID())
	}
	if l := tree.FindLayerThatIsHitByPoint(geom.Pt(25, 25)); l == nil || l.ID() != 3 {
		t.Errorf("unclipped point hit %v, want layer 3", l)
	}
}

func TestFindLayerWithTouchHandlerAt(t *testing.T) {
	tree := surfaceTree()
	tree.LayerByID(2).TouchEventHandlerRegion = geom.RegionOf(image.Rect(0, 0, 30, 30))
	tree.UpdateDrawProperties(testViewport)

	if l := tree.FindLayerWithTouchHandlerAt(geom.Pt(25, 25)); l == nil || l.ID() != 2 {
		t.Errorf("FindLayerWithTouchHandlerAt inside region = %v, want layer 2", l)
	}
	if l := tree.FindLayerWithTouchHandlerAt(geom.Pt(60, 60)); l != nil {
		t.Errorf("FindLayerWithTouchHandlerAt outside region = layer %d, want nil", l.ID())
	}
}

func TestScrollbarAnimator(t *testing.T) {
	start := time.Unix(100, 0)
	a := NewScrollbarAnimator()

	a.DidScrollGestureBegin()
	if a.IsAnimating() {
		t.Fatal("animating during a gesture")
	}
	a.DidScrollGestureEnd(start)
	if got := a.DelayBeforeStart(start); got != a.FadeDelay {
		t.Errorf("DelayBeforeStart() = %v, want %v", got, a.FadeDelay)
	}
	if a.Animate(start.Add(100 * time.Millisecond)) {
		t.Error("opacity changed before the delay elapsed")
	}

	mid := start.Add(a.FadeDelay + a.FadeDuration/2)
	if !a.Animate(mid) || a.Opacity() != 0.5 {
		t.Errorf("Opacity() mid fade = %v, want 0.5", a.Opacity())
	}
	a.Animate(start.Add(a.FadeDelay + a.FadeDuration))
	if a.Opacity() != 0 || a.IsAnimating() {
		t.Errorf("after fade: Opacity() = %v, IsAnimating() = %v", a.Opacity(), a.IsAnimating())
	}

	if !a.DidMouseMoveNear(mid, 5) || a.Opacity() != 1 {
		t.Errorf("mouse near: Opacity() = %v, want 1", a.Opacity())
	}
	if a.DidMouseMoveNear(mid, 6) {
		t.Error("moving while still near requested a redraw")
	}
	if !a.DidMouseMoveNear(mid, 100) || !a.IsAnimating() {
		t.Error("moving away did not schedule a fade")
	}
}

func TestAnimateScrollbarsUpdatesLayers(t *testing.T) {
	tree := surfaceTree()
	scroller := tree.LayerByID(2)
	scroller.VerticalScrollbarID = 4
	scroller.ScrollbarAnimator = NewScrollbarAnimator()
	now := time.Unix(0, 0)
	scroller.ScrollbarAnimator.DidScrollUpdate(now)

	end := now.Add(scroller.ScrollbarAnimator.FadeDelay + scroller.ScrollbarAnimator.FadeDuration)
	if !tree.AnimateScrollbars(end) {
		t.Fatal("AnimateScrollbars() = false, want true")
	}
	if got := tree.LayerByID(4).Opacity(); got != 0 {
		t.Errorf("scrollbar opacity = %v, want 0", got)
	}
}
