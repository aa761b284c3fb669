// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"
	"image/color"
	"log/slog"

	"github.com/chewxy/math32"
	"github.com/gogpu/gputypes"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/cache"
	"github.com/gogpu/compositor/renderpass"
)

// ResourceSource resolves the resource ids of tiled and texture quads to
// pixels. *tile.ResourcePool implements it.
type ResourceSource interface {
	ResourceImage(id uint64) (*image.RGBA, bool)
}

// DefaultPassCacheBytes bounds the memory kept for the contents of
// non-root passes between frames.
const DefaultPassCacheBytes = 32 << 20

// SoftwareRenderer composites render passes on the CPU into the output
// surface's PixmapTarget.
//
// Every non-root pass is drawn into its own image, which is kept in an
// LRU cache so that a later frame can reuse it when the pass is culled
// because its contents did not change. The root pass is drawn into the
// surface target; with partial swap only its damage rect is redrawn.
//
// Example:
//
//	surface := render.NewOutputSurface(nil)
//	r, err := render.NewSoftwareRenderer(surface, pool)
//	if err != nil {
//	    return err
//	}
//	if err := r.DrawFrame(passes, render.DrawParams{DeviceViewport: vp}); err != nil {
//	    return err
//	}
//	r.SwapBuffers(render.FrameMetadata{})
type SoftwareRenderer struct {
	surface   *OutputSurface
	resources ResourceSource

	passes     *cache.Cache[renderpass.ID, *image.RGBA]
	passIDs    map[renderpass.ID]struct{}
	cacheBytes int64

	maxTextureSize int
	visible        bool
	fullRedraw     bool
	lastDamage     image.Rectangle

	stats FrameStats
}

// FrameStats describes the last frame drawn by a SoftwareRenderer.
type FrameStats struct {
	Passes int
	Quads  int
	// CachedPasses counts render pass quads drawn from cached contents.
	CachedPasses int
	// MissingResources counts quads whose resource was not available.
	MissingResources int
	Damage           image.Rectangle
}

// SoftwareOption configures a SoftwareRenderer.
type SoftwareOption func(*SoftwareRenderer)

// WithPassCacheBytes bounds the pass cache. Zero or less means unlimited.
func WithPassCacheBytes(n int64) SoftwareOption {
	return func(r *SoftwareRenderer) { r.cacheBytes = n }
}

// WithMaxTextureSize sets the largest texture dimension reported in
// Capabilities.
func WithMaxTextureSize(n int) SoftwareOption {
	return func(r *SoftwareRenderer) { r.maxTextureSize = n }
}

// NewSoftwareRenderer creates a renderer drawing into surface and
// sampling tiles and UI resources from resources, which may be nil in
// resourceless mode.
func NewSoftwareRenderer(surface *OutputSurface, resources ResourceSource, opts ...SoftwareOption) (*SoftwareRenderer, error) {
	if surface == nil {
		return nil, ErrNilOutputSurface
	}
	r := &SoftwareRenderer{
		surface:    surface,
		resources:  resources,
		passIDs:    make(map[renderpass.ID]struct{}),
		cacheBytes: DefaultPassCacheBytes,
		visible:    true,
		fullRedraw: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.passes = cache.New[renderpass.ID, *image.RGBA](r.cacheBytes)
	r.passes.OnEvict(func(id renderpass.ID, _ *image.RGBA) {
		delete(r.passIDs, id)
	})
	slogger().Info("render: software renderer initialized",
		"mode", surface.DrawMode().String(),
		"adapter", surface.AdapterInfo().Name)
	return r, nil
}

// SetLogger sets the logger for the render package.
func (r *SoftwareRenderer) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Capabilities returns the renderer's capabilities.
func (r *SoftwareRenderer) Capabilities() Capabilities {
	return Capabilities{
		BestTextureFormat:          r.surface.Format(),
		MaxTextureSize:             r.maxTextureSize,
		UsingPartialSwap:           true,
		UsingSetVisibility:         true,
		AllowPartialTextureUpdates: true,
	}
}

// DecideRenderPassAllocationsForFrame drops cached passes that passes
// does not contain.
func (r *SoftwareRenderer) DecideRenderPassAllocationsForFrame(passes renderpass.List) {
	keep := make(map[renderpass.ID]bool, len(passes))
	for _, p := range passes {
		keep[p.ID] = true
	}
	for id := range r.passIDs {
		if !keep[id] {
			r.passes.Delete(id)
		}
	}
}

// HaveCachedResourcesForRenderPassID reports whether the contents of
// pass id from an earlier frame are cached.
func (r *SoftwareRenderer) HaveCachedResourcesForRenderPassID(id renderpass.ID) bool {
	return r.passes.Contains(id)
}

// DrawFrame draws passes leaf first. Render pass quads whose pass is not
// part of the list are drawn from the cache.
func (r *SoftwareRenderer) DrawFrame(passes renderpass.List, params DrawParams) error {
	if r.surface.IsContextLost() {
		return ErrContextLost
	}
	root := passes.Root()
	if root == nil {
		return nil
	}
	viewport := params.DeviceViewport
	if viewport.Empty() {
		viewport = root.OutputRect
	}

	r.stats = FrameStats{}
	drawn := make(map[renderpass.ID]*image.RGBA, len(passes))
	for _, p := range passes {
		var dst *image.RGBA
		var scissor image.Rectangle
		if p == root {
			dst = r.rootImage(viewport.Size())
			scissor = viewport
			if params.AllowPartialSwap && !r.fullRedraw {
				scissor = scissor.Intersect(p.DamageRect)
			}
			if !params.DeviceClip.Empty() {
				scissor = scissor.Intersect(params.DeviceClip)
			}
			r.lastDamage = geom.UnionRect(r.lastDamage, scissor)
			r.stats.Damage = scissor
		} else {
			dst = r.passImage(p)
			scissor = p.OutputRect
		}
		r.drawPass(dst, p, scissor, drawn, params)
		drawn[p.ID] = dst
		if p != root {
			r.passes.Set(p.ID, dst, int64(len(dst.Pix)))
			if r.passes.Contains(p.ID) {
				r.passIDs[p.ID] = struct{}{}
			}
		}
		sendCopies(p, dst)
	}
	r.fullRedraw = false

	slogger().Debug("render: drew frame",
		"passes", r.stats.Passes,
		"quads", r.stats.Quads,
		"cached", r.stats.CachedPasses,
		"damage", r.stats.Damage)
	return nil
}

// Stats returns the figures of the last DrawFrame.
func (r *SoftwareRenderer) Stats() FrameStats {
	return r.stats
}

// SwapBuffers presents the target with the damage accumulated since the
// previous swap.
func (r *SoftwareRenderer) SwapBuffers(meta FrameMetadata) bool {
	f := Frame{Metadata: meta, Damage: r.lastDamage}
	if r.surface.Target != nil {
		f.Image = r.surface.Target.Image()
	}
	r.lastDamage = image.Rectangle{}
	return r.surface.swap(f)
}

// Finish is a no-op; software drawing is synchronous.
func (r *SoftwareRenderer) Finish() {}

// SetVisible drops cached passes when the output is hidden.
func (r *SoftwareRenderer) SetVisible(visible bool) {
	if r.visible == visible {
		return
	}
	r.visible = visible
	if !visible {
		r.passes.Clear()
		r.fullRedraw = true
	}
}

// ViewportChanged forces the next root pass to be drawn in full.
func (r *SoftwareRenderer) ViewportChanged() {
	r.fullRedraw = true
}

// IsContextLost reports whether the output surface lost its context.
func (r *SoftwareRenderer) IsContextLost() bool {
	return r.surface.IsContextLost()
}

func (r *SoftwareRenderer) rootImage(size image.Point) *image.RGBA {
	t := r.surface.Target
	switch {
	case t == nil:
		r.surface.Target = NewPixmapTarget(size.X, size.Y)
		r.fullRedraw = true
	case t.Size() != size:
		t.Resize(size.X, size.Y)
		r.fullRedraw = true
	}
	return r.surface.Target.Image()
}

// passImage returns an image covering the output rect of p, reusing the
// cached one when it has the same bounds.
func (r *SoftwareRenderer) passImage(p *renderpass.Pass) *image.RGBA {
	if img, ok := r.passes.Get(p.ID); ok && img.Rect == p.OutputRect {
		return img
	}
	return image.NewRGBA(p.OutputRect)
}

func (r *SoftwareRenderer) drawPass(dst *image.RGBA, p *renderpass.Pass, scissor image.Rectangle,
	drawn map[renderpass.ID]*image.RGBA, params DrawParams) {
	r.stats.Passes++
	view := subImage(dst, scissor)
	if view.Rect.Empty() {
		return
	}
	xdraw.Draw(view, view.Rect, image.Transparent, image.Point{}, xdraw.Src)
	for i := len(p.Quads) - 1; i >= 0; i-- {
		r.drawQuad(view, p.Quads[i], drawn, params)
	}
}

func (r *SoftwareRenderer) drawQuad(dst *image.RGBA, q *renderpass.DrawQuad,
	drawn map[renderpass.ID]*image.RGBA, params DrawParams) {
	s := q.Shared
	if s.Opacity <= 0 || q.VisibleRect.Empty() {
		return
	}
	clip := dst.Rect
	if s.IsClipped {
		clip = clip.Intersect(s.ClipRect)
	}
	view := subImage(dst, clip)
	if view.Rect.Empty() {
		return
	}
	r.stats.Quads++

	switch q.Material {
	case renderpass.MaterialSolidColor, renderpass.MaterialCheckerboard:
		fill(view, s.ContentToTargetTransform, q.VisibleRect, q.Color, s.Opacity)

	case renderpass.MaterialTiledContent, renderpass.MaterialTexture:
		var src *image.RGBA
		ok := false
		if r.resources != nil {
			src, ok = r.resources.ResourceImage(q.ResourceID)
		}
		if !ok {
			r.stats.MissingResources++
			slogger().Debug("render: quad resource missing", "resource", q.ResourceID, "material", q.Material.String())
			return
		}
		sr, toContent, ok := sampleRect(q, src.Rect)
		if !ok {
			return
		}
		drawImage(view, s.ContentToTargetTransform.Multiply(toContent), src, sr, s.Opacity, params.DisableImageFiltering)

	case renderpass.MaterialRenderPass:
		src, ok := drawn[q.RenderPassID]
		if !ok {
			src, ok = r.passes.Get(q.RenderPassID)
			if !ok {
				slogger().Debug("render: render pass contents missing", "pass", q.RenderPassID.String())
				return
			}
			r.stats.CachedPasses++
		}
		drawImage(view, s.ContentToTargetTransform, src, q.VisibleRect.Intersect(src.Rect), s.Opacity, params.DisableImageFiltering)
	}
}

// fill paints the visible rect of a solid quad.
func fill(dst *image.RGBA, tr geom.Transform, visible image.Rectangle, c gputypes.Color, opacity float32) {
	src := image.NewUniform(toNRGBA64(c))
	if tr.PreservesAxisAlignment() {
		xdraw.DrawMask(dst, tr.MapEnclosingRect(visible), src, image.Point{}, opacityMask(opacity), image.Point{}, xdraw.Over)
		return
	}
	xdraw.NearestNeighbor.Transform(dst, aff3(tr), src, visible, xdraw.Over, maskOptions(opacity))
}

// drawImage composites sr of src onto dst through m, which maps src
// pixels to dst pixels.
func drawImage(dst *image.RGBA, m geom.Transform, src image.Image, sr image.Rectangle, opacity float32, nearest bool) {
	if sr.Empty() {
		return
	}
	if m.IsTranslation() {
		t := m.Translation()
		if t.X == math32.Round(t.X) && t.Y == math32.Round(t.Y) {
			d := image.Pt(int(t.X), int(t.Y))
			xdraw.DrawMask(dst, sr.Add(d), src, sr.Min, opacityMask(opacity), image.Point{}, xdraw.Over)
			return
		}
	}
	interp := xdraw.ApproxBiLinear
	if nearest {
		interp = xdraw.NearestNeighbor
	}
	interp.Transform(dst, aff3(m), src, sr, xdraw.Over, maskOptions(opacity))
}

// sampleRect returns the source pixels a texture or tile quad samples
// for its visible rect, and the transform from those pixels to the
// quad's content space.
func sampleRect(q *renderpass.DrawQuad, bounds image.Rectangle) (image.Rectangle, geom.Transform, bool) {
	if q.Rect.Empty() {
		return image.Rectangle{}, geom.Transform{}, false
	}
	uv := q.UV
	if uv.Empty() {
		uv = geom.RF(0, 0, 1, 1)
	}
	w, h := float32(q.Rect.Dx()), float32(q.Rect.Dy())
	vis := q.VisibleRect.Intersect(q.Rect)
	u0 := uv.Min.X + float32(vis.Min.X-q.Rect.Min.X)/w*uv.Width()
	u1 := uv.Min.X + float32(vis.Max.X-q.Rect.Min.X)/w*uv.Width()
	v0 := uv.Min.Y + float32(vis.Min.Y-q.Rect.Min.Y)/h*uv.Height()
	v1 := uv.Min.Y + float32(vis.Max.Y-q.Rect.Min.Y)/h*uv.Height()

	bw, bh := float32(bounds.Dx()), float32(bounds.Dy())
	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)
	sr := image.Rect(
		int(math32.Round(ox+u0*bw)), int(math32.Round(oy+v0*bh)),
		int(math32.Round(ox+u1*bw)), int(math32.Round(oy+v1*bh)),
	).Intersect(bounds)
	if sr.Empty() || vis.Empty() {
		return image.Rectangle{}, geom.Transform{}, false
	}
	kx := float32(vis.Dx()) / float32(sr.Dx())
	ky := float32(vis.Dy()) / float32(sr.Dy())
	toContent := geom.Translate(float32(vis.Min.X), float32(vis.Min.Y)).
		Multiply(geom.Scale(kx, ky)).
		Multiply(geom.Translate(-float32(sr.Min.X), -float32(sr.Min.Y)))
	return sr, toContent, true
}

// sendCopies completes the copy requests of p with its drawn contents.
func sendCopies(p *renderpass.Pass, img *image.RGBA) {
	for _, req := range p.CopyRequests {
		out := image.NewRGBA(img.Rect)
		copy(out.Pix, img.Pix)
		req.SendResult(out)
	}
	p.CopyRequests = nil
}

func subImage(img *image.RGBA, r image.Rectangle) *image.RGBA {
	return img.SubImage(r).(*image.RGBA)
}

func aff3(t geom.Transform) f64.Aff3 {
	return f64.Aff3{
		float64(t.A), float64(t.B), float64(t.C),
		float64(t.D), float64(t.E), float64(t.F),
	}
}

func opacityMask(opacity float32) image.Image {
	if opacity >= 1 {
		return nil
	}
	return image.NewUniform(color.Alpha16{A: uint16(clamp01(opacity)*0xffff + 0.5)})
}

func maskOptions(opacity float32) *xdraw.Options {
	m := opacityMask(opacity)
	if m == nil {
		return nil
	}
	return &xdraw.Options{SrcMask: m}
}

func toNRGBA64(c gputypes.Color) color.NRGBA64 {
	ch := func(v float64) uint16 {
		return uint16(clamp01(float32(v))*0xffff + 0.5)
	}
	return color.NRGBA64{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: ch(c.A)}
}

func clamp01(v float32) float32 {
	return math32.Max(0, math32.Min(1, v))
}
