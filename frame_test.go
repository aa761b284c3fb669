package compositor

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/renderpass"
)

// drawFrame runs one full frame and returns it.
func drawFrame(t *testing.T, h *Host) *FrameData {
	t.Helper()
	frame := prepareFrame(t, h)
	finishFrame(t, h, frame)
	return frame
}

// prepareFrame builds the next frame. Its passes stay readable until
// finishFrame draws them.
func prepareFrame(t *testing.T, h *Host) *FrameData {
	t.Helper()
	var frame FrameData
	if !h.PrepareToDraw(&frame, image.Rectangle{}) {
		t.Fatal("PrepareToDraw() = false")
	}
	return &frame
}

func finishFrame(t *testing.T, h *Host, frame *FrameData) {
	t.Helper()
	if err := h.DrawLayers(frame, time.Now()); err != nil {
		t.Fatalf("DrawLayers() error = %v", err)
	}
	h.DidDrawAllLayers(frame)
}

func quadsOfColor(p *renderpass.Pass, c gputypes.Color) []*renderpass.DrawQuad {
	var out []*renderpass.DrawQuad
	for _, q := range p.Quads {
		if q.Material == renderpass.MaterialSolidColor && q.Color == c {
			out = append(out, q)
		}
	}
	return out
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

func TestOpaqueChildOccludesRoot(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	addSolid(h.ActiveTree(), root, 2, image.Rect(0, 0, 800, 300), gputypes.ColorRed)

	var frame FrameData
	if !h.PrepareToDraw(&frame, image.Rectangle{}) {
		t.Fatal("PrepareToDraw() = false")
	}
	if len(frame.RenderPasses) != 1 {
		t.Fatalf("len(RenderPasses) = %d, want 1", len(frame.RenderPasses))
	}
	pass := frame.RenderPasses.Root()
	if got, want := pass.OutputRect, image.Rect(0, 0, 800, 600); got != want {
		t.Errorf("root OutputRect = %v, want %v", got, want)
	}

	covered := image.Rect(0, 0, 800, 300)
	var white image.Rectangle
	whiteArea := 0
	for _, q := range quadsOfColor(pass, gputypes.ColorWhite) {
		r := q.TargetRect()
		if r.Overlaps(covered) {
			t.Errorf("white quad %v draws under the opaque child", r)
		}
		white = white.Union(r)
		whiteArea += area(r)
	}
	if want := image.Rect(0, 300, 800, 600); white != want || whiteArea != area(want) {
		t.Errorf("white quads cover %v (area %d), want %v", white, whiteArea, want)
	}
	if len(quadsOfColor(pass, gputypes.ColorRed)) == 0 {
		t.Error("no quads for the opaque child")
	}
	if frame.CulledQuads == 0 {
		t.Error("CulledQuads = 0, want the hidden root tiles culled")
	}
	if len(frame.WillDrawLayers) != 2 {
		t.Errorf("len(WillDrawLayers) = %d, want 2", len(frame.WillDrawLayers))
	}

	if err := h.DrawLayers(&frame, time.Now()); err != nil {
		t.Fatalf("DrawLayers() error = %v", err)
	}
	h.DidDrawAllLayers(&frame)
	for _, l := range []int{1, 2} {
		if h.ActiveTree().LayerByID(l).IsDrawing() {
			t.Errorf("layer %d still drawing after DidDrawAllLayers", l)
		}
	}
}

func TestSwapPresentsSoftwareFrame(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	addSolid(h.ActiveTree(), root, 2, image.Rect(0, 0, 800, 300), gputypes.ColorRed)

	var presented []render.Frame
	h.OutputSurface().Present = func(f render.Frame) { presented = append(presented, f) }

	frame := drawFrame(t, h)
	if !h.SwapBuffers(frame) {
		t.Fatal("SwapBuffers() = false")
	}
	if len(presented) != 1 {
		t.Fatalf("presented %d frames, want 1", len(presented))
	}
	img := presented[0].Image
	if img == nil {
		t.Fatal("presented frame has no image")
	}
	if got, want := img.RGBAAt(10, 10), (color.RGBA{R: 255, A: 255}); got != want {
		t.Errorf("pixel (10,10) = %v, want %v", got, want)
	}
	if got, want := img.RGBAAt(10, 400), (color.RGBA{R: 255, G: 255, B: 255, A: 255}); got != want {
		t.Errorf("pixel (10,400) = %v, want %v", got, want)
	}
	if got := h.FrameCount(); got != 1 {
		t.Errorf("FrameCount() = %d, want 1", got)
	}
}

func TestFrameWithoutDamageIsSkipped(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	first := drawFrame(t, h)
	h.SwapBuffers(first)
	swaps := h.OutputSurface().SwapCount()

	var frame FrameData
	if !h.PrepareToDraw(&frame, image.Rectangle{}) {
		t.Fatal("PrepareToDraw() = false")
	}
	if !frame.HasNoDamage {
		t.Fatal("HasNoDamage = false for an unchanged tree")
	}
	if err := h.DrawLayers(&frame, time.Now()); err != nil {
		t.Fatalf("DrawLayers() error = %v", err)
	}
	if h.SwapBuffers(&frame) {
		t.Error("SwapBuffers() = true for a frame without damage")
	}
	if got := h.OutputSurface().SwapCount(); got != swaps {
		t.Errorf("SwapCount() = %d, want %d", got, swaps)
	}
	if got := h.FrameCount(); got != 1 {
		t.Errorf("FrameCount() = %d, want 1", got)
	}
}

func TestViewportDamageIsIdempotent(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	drawFrame(t, h)

	r := image.Rect(10, 20, 110, 220)
	h.SetViewportDamage(r)
	h.SetViewportDamage(r)

	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	if frame.HasNoDamage {
		t.Fatal("HasNoDamage = true after SetViewportDamage")
	}
	if got := frame.RenderPasses.Root().DamageRect; got != r {
		t.Errorf("root DamageRect = %v, want %v", got, r)
	}
}

func TestLayerChangeDamagesItsRect(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	child := addSolid(h.ActiveTree(), root, 2, image.Rect(50, 60, 150, 160), gputypes.ColorRed)
	drawFrame(t, h)

	child.SetSolidColor(gputypes.ColorBlue)
	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	if frame.HasNoDamage {
		t.Fatal("HasNoDamage = true after a layer change")
	}
	if got, want := frame.RenderPasses.Root().DamageRect, image.Rect(50, 60, 150, 160); !want.In(got) {
		t.Errorf("root DamageRect = %v, want it to contain %v", got, want)
	}
}

func TestDrawFullViewportEveryFrame(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	h.OutputSurface().DrawFullViewportEveryFrame = true
	drawFrame(t, h)

	var frame FrameData
	if !h.PrepareToDraw(&frame, image.Rectangle{}) {
		t.Fatal("PrepareToDraw() = false")
	}
	if frame.HasNoDamage {
		t.Error("HasNoDamage = true while drawing the full viewport every frame")
	}
}

func TestCopyRequestIsCompleted(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	drawFrame(t, h)

	var got *image.RGBA
	req := renderpass.NewCopyOutputRequest(func(img *image.RGBA) { got = img })
	root.RequestCopyOfOutput(req)

	frame := drawFrame(t, h)
	if frame.HasNoDamage {
		t.Error("a pending copy request must force a frame")
	}
	if !req.HasResult() {
		t.Fatal("copy request not completed")
	}
	if got == nil {
		t.Fatal("copy request completed without pixels")
	}
	if got.Bounds().Size() != testViewportSize {
		t.Errorf("copy size = %v, want %v", got.Bounds().Size(), testViewportSize)
	}
}

func TestCopyRequestOffscreenIsNotLeftPending(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	// Entirely outside the viewport, so it owns no drawn surface.
	off := addSolid(h.ActiveTree(), root, 2, image.Rect(2000, 2000, 2100, 2100), gputypes.ColorRed)

	called := false
	req := renderpass.NewCopyOutputRequest(func(*image.RGBA) { called = true })
	off.RequestCopyOfOutput(req)

	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	if err := h.DrawLayers(&frame, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !called || !req.HasResult() {
		t.Error("copy request was left pending")
	}
	if off.HasCopyRequest() {
		t.Error("layer still holds the copy request")
	}
}

func TestDrawLayersWithoutRenderer(t *testing.T) {
	h := NewHost(DefaultSettings(), Client{})
	defer h.Close()
	frame := FrameData{}
	if err := h.DrawLayers(&frame, time.Now()); !errors.Is(err, ErrNoRenderer) {
		t.Errorf("DrawLayers() error = %v, want %v", err, ErrNoRenderer)
	}
	if h.SwapBuffers(&frame) {
		t.Error("SwapBuffers() = true without renderer")
	}
}

func TestDrawLayersContextLost(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)

	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	h.OutputSurface().LoseContext()

	err := h.DrawLayers(&frame, time.Now())
	if !errors.Is(err, ErrContextLost) {
		t.Errorf("DrawLayers() error = %v, want %v", err, ErrContextLost)
	}
	if !errors.Is(err, render.ErrContextLost) {
		t.Errorf("DrawLayers() error = %v, want it to wrap %v", err, render.ErrContextLost)
	}
}

func TestPrepareToDrawCannotDraw(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	var frame FrameData
	if h.PrepareToDraw(&frame, image.Rectangle{}) {
		t.Error("PrepareToDraw() = true without a root layer")
	}
}

func TestBackgroundFillsUncoveredViewport(t *testing.T) {
	tests := []struct {
		name        string
		transparent bool
		wantArea    int
	}{
		{"opaque background", false, 800*600 - 400*300},
		{"transparent background", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHost(t, DefaultSettings())
			tree := h.ActiveTree()
			root := addSolid(tree, nil, 1, image.Rect(0, 0, 400, 300), gputypes.ColorRed)
			tree.SetRootLayer(root)
			tree.BackgroundColor = gputypes.ColorBlue
			tree.HasTransparentBackground = tt.transparent

			var frame FrameData
			if !h.PrepareToDraw(&frame, image.Rectangle{}) {
				t.Fatal("PrepareToDraw() = false")
			}
			got := 0
			for _, q := range quadsOfColor(frame.RenderPasses.Root(), gputypes.ColorBlue) {
				if q.Rect.Overlaps(image.Rect(0, 0, 400, 300)) {
					t.Errorf("background quad %v overlaps the root layer", q.Rect)
				}
				got += area(q.Rect)
			}
			if got != tt.wantArea {
				t.Errorf("background area = %d, want %d", got, tt.wantArea)
			}
		})
	}
}

func TestShowOccludingRects(t *testing.T) {
	s := DefaultSettings()
	s.ShowOccludingRects = true
	h, _ := newTestHost(t, s)
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)

	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	if len(frame.OccludingScreenRects) == 0 {
		t.Error("no occluding rects recorded")
	}
}

func TestOpacitySurfaceAddsPass(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	root := setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)
	group := addSolid(h.ActiveTree(), root, 2, image.Rect(100, 100, 300, 300), gputypes.ColorRed)
	group.SetOpacity(0.5)
	addSolid(h.ActiveTree(), group, 3, image.Rect(10, 10, 60, 60), gputypes.ColorGreen)

	var frame FrameData
	h.PrepareToDraw(&frame, image.Rectangle{})
	if len(frame.RenderPasses) != 2 {
		t.Fatalf("len(RenderPasses) = %d, want 2", len(frame.RenderPasses))
	}
	if frame.RenderPasses.Root().ID.LayerID != 1 {
		t.Errorf("root pass belongs to layer %d, want 1", frame.RenderPasses.Root().ID.LayerID)
	}
	found := false
	for _, q := range frame.RenderPasses.Root().Quads {
		if q.Material == renderpass.MaterialRenderPass && q.RenderPassID == frame.RenderPasses[0].ID {
			found = true
		}
	}
	if !found {
		t.Error("root pass does not draw the surface pass")
	}
}

func TestOpacitySurfaceSurvivesUndamagedFrames(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	tree := h.ActiveTree()
	root := setSolidRoot(tree, gputypes.ColorWhite)
	group := addSolid(tree, root, 2, image.Rect(100, 100, 300, 300), gputypes.ColorRed)
	group.SetOpacity(0.5)
	child := addSolid(tree, group, 3, image.Rect(10, 10, 60, 60), gputypes.ColorGreen)

	var presented []render.Frame
	h.OutputSurface().Present = func(f render.Frame) { presented = append(presented, f) }

	frame := prepareFrame(t, h)
	if len(frame.RenderPasses) != 2 {
		t.Fatalf("frame 0: len(RenderPasses) = %d, want 2", len(frame.RenderPasses))
	}
	if !group.RenderSurface().ContributesToDrawnSurface() {
		t.Fatal("frame 0: group surface does not contribute to the drawn surface")
	}
	finishFrame(t, h, frame)
	if !h.SwapBuffers(frame) || len(presented) != 1 {
		t.Fatal("frame 0 not presented")
	}
	px := presented[0].Image.RGBAAt(200, 200)
	if px.R != 255 || px.G < 100 || px.G > 160 {
		t.Errorf("frame 0: pixel (200,200) = %v, want half red over white", px)
	}

	frame = prepareFrame(t, h)
	if !frame.HasNoDamage {
		t.Error("frame 1: HasNoDamage = false for an unchanged tree")
	}
	if !group.RenderSurface().ContributesToDrawnSurface() {
		t.Error("frame 1: group surface stopped contributing")
	}
	finishFrame(t, h, frame)

	child.SetSolidColor(gputypes.ColorBlue)
	frame = prepareFrame(t, h)
	if frame.HasNoDamage {
		t.Fatal("frame 2: HasNoDamage = true after the group's child changed")
	}
	if len(frame.RenderPasses) != 2 {
		t.Errorf("frame 2: len(RenderPasses) = %d, want 2", len(frame.RenderPasses))
	}
	finishFrame(t, h, frame)
}

func TestMakeFrameMetadata(t *testing.T) {
	s := DefaultSettings()
	s.TopControlsHeight = 50
	f := newScrollFixture(t, s)
	f.h.ActiveTree().SetPageScaleFactorAndLimits(1, 0.5, 4)
	f.h.updateMaxScrollOffset()
	f.page.SetScrollDelta(geom.Vec(30, 40))
	f.h.SetOverdrawBottomHeight(10)

	got := f.h.MakeFrameMetadata()
	want := render.FrameMetadata{
		DeviceScaleFactor:    1,
		RootScrollOffset:     geom.Vec(30, 40),
		PageScaleFactor:      1,
		MinPageScaleFactor:   0.5,
		MaxPageScaleFactor:   4,
		ViewportSize:         image.Pt(800, 540),
		RootLayerSize:        image.Pt(1600, 1200),
		LocationBarOffset:    0,
		LocationBarContent:   50,
		OverdrawBottomHeight: 10,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MakeFrameMetadata() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareToDrawPanicsOnReentry(t *testing.T) {
	h, _ := newTestHost(t, DefaultSettings())
	setSolidRoot(h.ActiveTree(), gputypes.ColorWhite)

	h.inPrepare = true
	defer func() { h.inPrepare = false }()
	mustPanic(t, "nested PrepareToDraw", func() {
		var frame FrameData
		h.PrepareToDraw(&frame, image.Rectangle{})
	})
}
