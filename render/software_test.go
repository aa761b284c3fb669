// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/renderpass"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	transparent = color.RGBA{}
	viewport    = image.Rect(0, 0, 100, 100)
	rootID      = renderpass.ID{LayerID: 1}
)

type resourceMap map[uint64]*image.RGBA

func (m resourceMap) ResourceImage(id uint64) (*image.RGBA, bool) {
	img, ok := m[id]
	return img, ok
}

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newRenderer(t *testing.T, res ResourceSource) (*SoftwareRenderer, *OutputSurface) {
	t.Helper()
	surface := NewOutputSurface(nil)
	r, err := NewSoftwareRenderer(surface, res)
	if err != nil {
		t.Fatalf("NewSoftwareRenderer() error = %v", err)
	}
	return r, surface
}

func rootPass(damage image.Rectangle) *renderpass.Pass {
	return renderpass.New(rootID, viewport, damage, geom.Identity())
}

func appendSolid(p *renderpass.Pass, r image.Rectangle, c gputypes.Color, opacity float32) {
	s := p.CreateSharedQuadState()
	s.Opacity = opacity
	p.Append(renderpass.SolidColorQuad(s, r, c))
}

func draw(t *testing.T, r *SoftwareRenderer, params DrawParams, passes ...*renderpass.Pass) {
	t.Helper()
	if params.DeviceViewport.Empty() {
		params.DeviceViewport = viewport
	}
	if err := r.DrawFrame(renderpass.List(passes), params); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
}

func TestNewSoftwareRendererNilSurface(t *testing.T) {
	_, err := NewSoftwareRenderer(nil, nil)
	if !errors.Is(err, ErrNilOutputSurface) {
		t.Errorf("NewSoftwareRenderer(nil) error = %v, want %v", err, ErrNilOutputSurface)
	}
}

func TestSoftwareRendererCapabilities(t *testing.T) {
	r, _ := newRenderer(t, nil)
	caps := r.Capabilities()
	if !caps.UsingPartialSwap || caps.Delegating {
		t.Errorf("Capabilities() = %+v, want partial swap and not delegating", caps)
	}
	if caps.BestTextureFormat != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("BestTextureFormat = %v, want RGBA8Unorm", caps.BestTextureFormat)
	}
}

func TestSoftwareRendererSolidQuads(t *testing.T) {
	r, surface := newRenderer(t, nil)
	p := rootPass(viewport)
	// Quads are front to back: blue covers red where they overlap.
	appendSolid(p, image.Rect(0, 0, 30, 30), gputypes.ColorBlue, 1)
	appendSolid(p, image.Rect(0, 0, 50, 50), gputypes.ColorRed, 1)
	draw(t, r, DrawParams{}, p)

	img := surface.Target.Image()
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{10, 10, blue},
		{40, 40, red},
		{80, 80, transparent},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	if got := r.Stats().Quads; got != 2 {
		t.Errorf("Stats().Quads = %d, want 2", got)
	}
}

func TestSoftwareRendererOpacityAndClip(t *testing.T) {
	r, surface := newRenderer(t, nil)
	p := rootPass(viewport)
	s := p.CreateSharedQuadState()
	s.Opacity = 0.5
	s.IsClipped = true
	s.ClipRect = image.Rect(0, 0, 20, 100)
	p.Append(renderpass.SolidColorQuad(s, image.Rect(0, 0, 100, 100), gputypes.ColorRed))
	draw(t, r, DrawParams{}, p)

	img := surface.Target.Image()
	if a := img.RGBAAt(10, 10).A; a < 126 || a > 130 {
		t.Errorf("half-transparent alpha = %d, want about 128", a)
	}
	if got := img.RGBAAt(50, 10); got != transparent {
		t.Errorf("clipped pixel = %v, want transparent", got)
	}
}

func TestSoftwareRendererTileQuads(t *testing.T) {
	res := resourceMap{7: filled(32, 32, blue), 8: filled(10, 10, red)}
	r, surface := newRenderer(t, res)
	p := rootPass(viewport)

	s := p.CreateSharedQuadState()
	s.ContentToTargetTransform = geom.Translate(10, 10)
	p.Append(renderpass.TileQuad(s, image.Rect(0, 0, 32, 32), image.Rectangle{}, 7, geom.RF(0, 0, 1, 1)))

	scaled := p.CreateSharedQuadState()
	scaled.ContentToTargetTransform = geom.Translate(50, 50).Multiply(geom.Scale(2, 2))
	p.Append(renderpass.TextureQuad(scaled, image.Rect(0, 0, 10, 10), image.Rectangle{}, 8, geom.RF(0, 0, 1, 1)))

	missing := p.CreateSharedQuadState()
	p.Append(renderpass.TileQuad(missing, image.Rect(90, 90, 100, 100), image.Rectangle{}, 99, geom.RF(0, 0, 1, 1)))
	draw(t, r, DrawParams{}, p)

	img := surface.Target.Image()
	if got := img.RGBAAt(15, 15); got != blue {
		t.Errorf("tile pixel = %v, want %v", got, blue)
	}
	if got := img.RGBAAt(5, 5); got != transparent {
		t.Errorf("pixel outside tile = %v, want transparent", got)
	}
	if got := img.RGBAAt(60, 60); got.R < 250 || got.A < 250 {
		t.Errorf("scaled texture pixel = %v, want red", got)
	}
	if got := r.Stats().MissingResources; got != 1 {
		t.Errorf("Stats().MissingResources = %d, want 1", got)
	}
}

func TestSoftwareRendererRenderPassCache(t *testing.T) {
	r, surface := newRenderer(t, nil)
	childID := renderpass.ID{LayerID: 2}
	childRect := image.Rect(10, 10, 60, 60)

	frame := func(withChild bool) {
		child := renderpass.New(childID, childRect, childRect, geom.Identity())
		appendSolid(child, childRect, gputypes.ColorGreen, 1)
		root := rootPass(viewport)
		root.Append(renderpass.RenderPassQuad(root.CreateSharedQuadState(), childRect, childID, false, image.Rectangle{}))

		list := renderpass.List{child, root}
		r.DecideRenderPassAllocationsForFrame(list)
		if !withChild {
			list = renderpass.List{root}
		}
		draw(t, r, DrawParams{}, list...)
	}

	frame(true)
	if !r.HaveCachedResourcesForRenderPassID(childID) {
		t.Fatal("child pass not cached after drawing")
	}
	if got := surface.Target.Image().RGBAAt(20, 20); got != green {
		t.Errorf("pixel from child pass = %v, want %v", got, green)
	}

	surface.Target.Clear(color.Transparent)
	frame(false)
	if got := r.Stats().CachedPasses; got != 1 {
		t.Errorf("Stats().CachedPasses = %d, want 1", got)
	}
	if got := surface.Target.Image().RGBAAt(20, 20); got != green {
		t.Errorf("pixel from cached pass = %v, want %v", got, green)
	}

	r.DecideRenderPassAllocationsForFrame(renderpass.List{rootPass(viewport)})
	if r.HaveCachedResourcesForRenderPassID(childID) {
		t.Error("child pass still cached after a frame without it")
	}
}

func TestSoftwareRendererPartialSwap(t *testing.T) {
	r, surface := newRenderer(t, nil)
	var presented []image.Rectangle
	surface.Present = func(f Frame) { presented = append(presented, f.Damage) }

	first := rootPass(image.Rect(0, 0, 10, 10))
	appendSolid(first, viewport, gputypes.ColorRed, 1)
	// The first frame is drawn in full whatever its damage.
	draw(t, r, DrawParams{AllowPartialSwap: true}, first)
	r.SwapBuffers(FrameMetadata{})

	second := rootPass(image.Rect(0, 0, 10, 10))
	appendSolid(second, viewport, gputypes.ColorBlue, 1)
	draw(t, r, DrawParams{AllowPartialSwap: true}, second)
	r.SwapBuffers(FrameMetadata{})

	img := surface.Target.Image()
	if got := img.RGBAAt(5, 5); got != blue {
		t.Errorf("damaged pixel = %v, want %v", got, blue)
	}
	if got := img.RGBAAt(50, 50); got != red {
		t.Errorf("undamaged pixel = %v, want %v", got, red)
	}
	want := []image.Rectangle{viewport, image.Rect(0, 0, 10, 10)}
	if len(presented) != 2 || presented[0] != want[0] || presented[1] != want[1] {
		t.Errorf("presented damage = %v, want %v", presented, want)
	}
	if surface.SwapCount() != 2 {
		t.Errorf("SwapCount() = %d, want 2", surface.SwapCount())
	}
}

func TestSoftwareRendererCopyRequest(t *testing.T) {
	r, _ := newRenderer(t, nil)
	var got *image.RGBA
	p := rootPass(viewport)
	appendSolid(p, image.Rect(0, 0, 10, 10), gputypes.ColorGreen, 1)
	req := renderpass.NewCopyOutputRequest(func(img *image.RGBA) { got = img })
	p.CopyRequests = append(p.CopyRequests, req)
	draw(t, r, DrawParams{}, p)

	if !req.HasResult() || got == nil {
		t.Fatal("copy request not completed with pixels")
	}
	if c := got.RGBAAt(5, 5); c != green {
		t.Errorf("copied pixel = %v, want %v", c, green)
	}
	if len(p.CopyRequests) != 0 {
		t.Errorf("pass kept %d copy requests", len(p.CopyRequests))
	}
}

func TestSoftwareRendererContextLost(t *testing.T) {
	r, surface := newRenderer(t, nil)
	calls := 0
	surface.OnContextLost(func() { calls++ })
	surface.LoseContext()
	surface.LoseContext()

	if calls != 1 {
		t.Errorf("context lost callbacks = %d, want 1", calls)
	}
	if !r.IsContextLost() {
		t.Error("IsContextLost() = false, want true")
	}
	if err := r.DrawFrame(renderpass.List{rootPass(viewport)}, DrawParams{}); !errors.Is(err, ErrContextLost) {
		t.Errorf("DrawFrame() error = %v, want %v", err, ErrContextLost)
	}
	if r.SwapBuffers(FrameMetadata{}) {
		t.Error("SwapBuffers() = true on a lost context")
	}
}

func TestSoftwareRendererSetVisibleDropsCache(t *testing.T) {
	r, _ := newRenderer(t, nil)
	childID := renderpass.ID{LayerID: 2}
	child := renderpass.New(childID, image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), geom.Identity())
	draw(t, r, DrawParams{}, child, rootPass(viewport))
	if !r.HaveCachedResourcesForRenderPassID(childID) {
		t.Fatal("child pass not cached")
	}
	r.SetVisible(false)
	if r.HaveCachedResourcesForRenderPassID(childID) {
		t.Error("cache kept while hidden")
	}
}
