package compositor

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/occlusion"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/renderpass"
	"github.com/gogpu/compositor/scene"
)

// FrameData is the frame under construction between PrepareToDraw and
// DidDrawAllLayers.
type FrameData struct {
	// RenderPasses is leaf first; the root pass is last.
	RenderPasses     renderpass.List
	RenderPassesByID renderpass.Map

	// WillDrawLayers are the layers that agreed to draw, in front to
	// back order.
	WillDrawLayers []*scene.Layer

	RenderSurfaceLayerList []*scene.Layer

	// HasNoDamage means nothing changed; the frame is not drawn or
	// swapped.
	HasNoDamage bool

	// ContainsIncompleteTile means some visible tile was drawn at lower
	// resolution or missing.
	ContainsIncompleteTile bool

	// CulledQuads counts quads dropped as fully occluded.
	CulledQuads int

	OccludingScreenRects    []image.Rectangle
	NonOccludingScreenRects []image.Rectangle
}

func (f *FrameData) reset() {
	*f = FrameData{RenderPassesByID: make(renderpass.Map)}
}

// PrepareToDraw builds the render passes of the next frame. It reports
// false when the frame should not be drawn, e.g. because an animating
// layer would show checkerboard.
func (h *Host) PrepareToDraw(frame *FrameData, deviceViewportDamage image.Rectangle) bool {
	if h.inPrepare {
		panic("compositor: PrepareToDraw re-entered")
	}
	h.inPrepare = true
	defer func() { h.inPrepare = false }()

	span := h.startSpan("compositor.PrepareToDraw")
	defer span.End()

	if h.needUpdateVisibleTilesBeforeDraw && h.tiles != nil && h.tiles.UpdateVisibleTiles() {
		h.didInitializeVisibleTile()
	}
	h.needUpdateVisibleTilesBeforeDraw = true

	h.active.UpdateDrawProperties(h.viewport())
	frame.reset()

	if root := h.active.RootLayer(); root != nil && root.RenderSurface() != nil {
		damage := deviceViewportDamage.Union(h.viewportDamage)
		h.viewportDamage = image.Rectangle{}
		root.RenderSurface().DamageTracker().AddDamageNextUpdate(damage)
	}

	drawFrame := h.calculateRenderPasses(frame)
	span.SetAttributes(
		attribute.Int("passes", len(frame.RenderPasses)),
		attribute.Bool("has_no_damage", frame.HasNoDamage),
		attribute.Bool("draw_frame", drawFrame))
	h.logger().Debug("compositor: prepared frame",
		"passes", len(frame.RenderPasses),
		"quads", frame.RenderPasses.QuadCount(),
		"culled", frame.CulledQuads,
		"no_damage", frame.HasNoDamage,
		"draw", drawFrame)
	return drawFrame
}

// calculateRenderPasses fills frame from the active tree. The tree's draw
// properties must be up to date.
func (h *Host) calculateRenderPasses(frame *FrameData) bool {
	root := h.active.RootLayer()
	if !h.CanDraw() || root == nil || root.RenderSurface() == nil {
		return false
	}
	rsll := h.active.RenderSurfaceLayerList()
	frame.RenderSurfaceLayerList = rsll

	// Children before parents, so a parent sees its children's damage.
	haveCopyRequest := false
	for i := len(rsll) - 1; i >= 0; i-- {
		rsll[i].RenderSurface().UpdateDamage()
		haveCopyRequest = haveCopyRequest || rsll[i].HasCopyRequest()
	}

	rootSurface := root.RenderSurface()
	fullViewport := h.surface != nil && h.surface.DrawFullViewportEveryFrame
	if len(rootSurface.LayerList()) > 0 && !haveCopyRequest && !fullViewport &&
		!rootSurface.DamageTracker().CurrentDamage().Overlaps(rootSurface.ContentRect()) {
		frame.HasNoDamage = true
		return true
	}

	for i := len(rsll) - 1; i >= 0; i-- {
		l := rsll[i]
		s := l.RenderSurface()
		if l != root && !s.ContributesToDrawnSurface() && !l.HasCopyRequest() {
			continue
		}
		for _, c := range s.LayerList() {
			c.AppendContributingPasses(&frame.RenderPasses, frame.RenderPassesByID)
		}
		s.AppendRenderPasses(&frame.RenderPasses, frame.RenderPassesByID)
	}

	tracker := occlusion.NewTracker(rootSurface.ContentRect(), h.settings.MinimumOcclusionTrackingSize)
	tracker.RecordRects = h.settings.ShowOccludingRects

	mode := h.surface.DrawMode()
	drawFrame := true
	for pos := range h.active.FrontToBack() {
		pass := frame.RenderPassesByID[pos.Target.RenderSurface().RenderPassID()]
		tracker.EnterLayer(pos)
		if pass == nil {
			tracker.LeaveLayer(pos)
			continue
		}
		data := scene.AppendQuadsData{RenderPassID: pass.ID}
		sink := occlusion.NewQuadCuller(pass, tracker, pos.Target)

		switch pos.Role {
		case scene.RoleTargetSurface:
			if len(pass.CopyRequests) > 0 {
				haveCopyRequest = true
			}
		case scene.RoleContributingSurface:
			s := pos.Layer.RenderSurface()
			if s.ContributesToDrawnSurface() {
				s.AppendQuads(sink, &data, false)
				if pos.Layer.Replica() != nil {
					s.AppendQuads(sink, &data, true)
				}
			}
		case scene.RoleItself:
			l := pos.Layer
			if l.VisibleContentRect().Empty() {
				break
			}
			if unoccluded, fromOutside := tracker.UnoccludedRect(pos.Target, layerTargetRect(l)); unoccluded.Empty() {
				if fromOutside {
					data.HadOcclusionFromOutsideTargetSurface = true
				}
				break
			}
			if l.WillDraw(mode, h) {
				frame.WillDrawLayers = append(frame.WillDrawLayers, l)
				l.AppendQuads(sink, &data, h)
			}
		}
		frame.CulledQuads += sink.Culled

		if data.HadOcclusionFromOutsideTargetSurface {
			pass.HasOcclusionFromOutsideTargetSurface = true
		}
		if data.NumMissingTiles > 0 && pos.Layer.DrawProperties().ScreenSpaceTransformIsAnimating {
			drawFrame = false
		}
		if data.HadIncompleteTile {
			frame.ContainsIncompleteTile = true
		}
		tracker.LeaveLayer(pos)
	}

	if haveCopyRequest || fullViewport {
		drawFrame = true
	}

	h.dropUndrawnDelegatedPasses(frame)

	if !h.active.HasTransparentBackground {
		frame.RenderPasses.Root().HasTransparentBackground = false
		h.appendQuadsToFillScreen(frame.RenderPasses.Root(), tracker)
	}

	if tracker.RecordRects {
		frame.OccludingScreenRects = tracker.OccludingScreenRects
		frame.NonOccludingScreenRects = tracker.NonOccludingScreenRects
	}

	var copying []*renderpass.Pass
	for _, p := range frame.RenderPasses {
		if len(p.CopyRequests) > 0 {
			copying = append(copying, p)
		}
	}
	renderpass.RemovePasses(&frame.RenderPasses, frame.RenderPassesByID,
		keepCopyRequests(renderpass.NoQuads), renderpass.Forward)
	if !h.surface.ForceResourceless {
		h.renderer.DecideRenderPassAllocationsForFrame(frame.RenderPasses)
	}
	renderpass.RemovePasses(&frame.RenderPasses, frame.RenderPassesByID,
		keepCopyRequests(renderpass.CachedTextures(h.renderer.HaveCachedResourcesForRenderPassID)),
		renderpass.Backward)

	// A removed pass can still carry copy requests when its parent was
	// served from cache.
	for _, p := range copying {
		if frame.RenderPassesByID[p.ID] != p {
			for _, r := range p.CopyRequests {
				r.SendEmptyResult()
			}
			p.CopyRequests = nil
		}
	}
	h.abortUnservicedCopyRequests()
	return drawFrame
}

// layerTargetRect returns the visible part of l in its target's space.
func layerTargetRect(l *scene.Layer) image.Rectangle {
	d := l.DrawProperties()
	r := d.ScreenSpaceTransform.MapEnclosingRect(l.VisibleContentRect())
	if d.IsClipped {
		r = r.Intersect(d.ClipRect)
	}
	return r
}

// keepCopyRequests wraps pred so passes carrying copy requests are never
// removed.
func keepCopyRequests(pred renderpass.Predicate) renderpass.Predicate {
	return func(q *renderpass.DrawQuad, passes renderpass.Map) bool {
		if p := passes[q.RenderPassID]; p != nil && len(p.CopyRequests) > 0 {
			return false
		}
		return pred(q, passes)
	}
}

// dropUndrawnDelegatedPasses removes the contributing passes of
// delegated layers that did not draw, since nothing refers to them.
func (h *Host) dropUndrawnDelegatedPasses(frame *FrameData) {
	drawn := make(map[int]bool, len(frame.WillDrawLayers))
	for _, l := range frame.WillDrawLayers {
		drawn[l.ID()] = true
	}
	frame.RenderPasses = slices.DeleteFunc(frame.RenderPasses, func(p *renderpass.Pass) bool {
		if p.ID.Index == 0 || drawn[p.ID.LayerID] {
			return false
		}
		delete(frame.RenderPassesByID, p.ID)
		return true
	})
}

// appendQuadsToFillScreen covers the part of the screen no opaque layer
// covers with the overhang texture or the background colour.
func (h *Host) appendQuadsToFillScreen(root *renderpass.Pass, tracker *occlusion.Tracker) {
	screen := root.OutputRect
	fill := geom.RegionOf(screen)
	occluded := tracker.OcclusionInTarget()
	fill.SubtractRegion(&occluded)
	if fill.IsEmpty() {
		return
	}

	overhang := h.ResourceForUIResource(h.overhangUIResource)
	size := h.overhangUIScaleSize
	useOverhang := overhang != 0 && size.X > 0 && size.Y > 0
	bg := h.active.BackgroundColor
	if !useOverhang && bg.A == 0 {
		return
	}

	shared := root.CreateSharedQuadState()
	shared.ContentBounds = screen.Size()
	shared.VisibleContentRect = screen
	shared.ClipRect = screen
	for _, r := range fill.Rects() {
		if useOverhang {
			uv := geom.RF(
				float32(r.Min.X)/float32(size.X), float32(r.Min.Y)/float32(size.Y),
				float32(r.Dx())/float32(size.X), float32(r.Dy())/float32(size.Y))
			root.Append(renderpass.TextureQuad(shared, r, image.Rectangle{}, uint64(overhang), uv))
			continue
		}
		root.Append(renderpass.SolidColorQuad(shared, r, bg))
	}
}

// abortUnservicedCopyRequests completes copy requests no pass took with
// an empty result.
func (h *Host) abortUnservicedCopyRequests() {
	n := 0
	h.active.ForEachLayer(func(l *scene.Layer) {
		for _, r := range l.TakeCopyRequests() {
			r.SendEmptyResult()
			n++
		}
	})
	if n > 0 {
		h.logger().Warn("compositor: copy requests aborted", "count", n)
	}
}

// DrawLayers draws the frame built by PrepareToDraw.
func (h *Host) DrawLayers(frame *FrameData, now time.Time) error {
	span := h.startSpan("compositor.DrawLayers",
		attribute.Int("passes", len(frame.RenderPasses)),
		attribute.Bool("has_no_damage", frame.HasNoDamage))
	defer span.End()

	if frame.HasNoDamage {
		return nil
	}
	if h.renderer == nil {
		return ErrNoRenderer
	}

	var err error
	if h.surface.ForceResourceless {
		var temp *render.SoftwareRenderer
		temp, err = render.NewSoftwareRenderer(h.surface, nil)
		if err == nil {
			err = temp.DrawFrame(frame.RenderPasses, h.drawParams(false))
		}
	} else {
		err = h.renderer.DrawFrame(frame.RenderPasses, h.drawParams(h.settings.AllowPartialSwap && !h.settings.ShowOccludingRects))
	}
	frame.RenderPasses = nil
	clear(frame.RenderPassesByID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, render.ErrContextLost) {
			return fmt.Errorf("%w: %w", ErrContextLost, err)
		}
		return fmt.Errorf("compositor: draw layers: %w", err)
	}

	h.frameCount++
	h.active.ResetAllChangeTracking()
	h.logger().Debug("compositor: drew frame", "frame", h.frameCount, "time", now)
	return nil
}

func (h *Host) drawParams(allowPartialSwap bool) render.DrawParams {
	vp := image.Rectangle{Max: h.DrawViewportSize()}
	clip := h.externalClip
	if clip.Empty() {
		clip = vp
	}
	return render.DrawParams{
		DeviceViewport:    vp,
		DeviceClip:        clip,
		DeviceScaleFactor: h.deviceScaleFactor,
		AllowPartialSwap:  allowPartialSwap,
	}
}

// DidDrawAllLayers tells every layer that drew in frame that drawing is
// over.
func (h *Host) DidDrawAllLayers(frame *FrameData) {
	for _, l := range frame.WillDrawLayers {
		l.DidDraw()
	}
}

// SwapBuffers presents the drawn frame. It reports false when there was
// nothing to present or the surface refused it.
func (h *Host) SwapBuffers(frame *FrameData) bool {
	if frame.HasNoDamage || h.renderer == nil {
		return false
	}
	return h.renderer.SwapBuffers(h.MakeFrameMetadata())
}

// FrameCount returns the number of frames drawn.
func (h *Host) FrameCount() int { return h.frameCount }

// MakeFrameMetadata describes the active tree for the embedder.
func (h *Host) MakeFrameMetadata() render.FrameMetadata {
	t := h.active
	pageScale := t.TotalPageScaleFactor()
	vp := h.UnscaledScrollableViewportSize().Scale(1 / pageScale)
	m := render.FrameMetadata{
		DeviceScaleFactor:    h.deviceScaleFactor,
		PageScaleFactor:      pageScale,
		MinPageScaleFactor:   t.MinPageScaleFactor(),
		MaxPageScaleFactor:   t.MaxPageScaleFactor(),
		ViewportSize:         vp.Round().ImagePoint(),
		OverdrawBottomHeight: h.overdrawBottomHeight,
	}
	if h.topControls != nil {
		m.LocationBarOffset = h.topControls.ControlsTopOffset()
		m.LocationBarContent = h.topControls.ContentTopOffset()
	}
	if l := t.RootScrollLayer(); l != nil {
		m.RootScrollOffset = l.TotalScrollOffset()
		m.RootLayerSize = l.Bounds()
	}
	return m
}

// Animate advances input, page scale, layer, scrollbar and top controls
// animations to now.
func (h *Host) Animate(now time.Time) {
	if h.input != nil {
		h.input.Animate(now)
	}
	h.animatePageScale(now)
	h.animateLayers(now)
	h.animateScrollbars(now)
	h.animateTopControls(now)
}

// animateLayers ticks layer property animations and keeps frames coming
// while any run.
func (h *Host) animateLayers(now time.Time) {
	if !h.settings.AcceleratedAnimations || h.active.RootLayer() == nil || !h.active.HasActiveAnimations() {
		return
	}
	span := h.startSpan("compositor.AnimateLayers")
	defer span.End()

	events := h.active.AnimateLayers(now)
	span.SetAttributes(attribute.Int("events", len(events)))
	if len(events) > 0 {
		h.client.animationEvents(events, h.now())
	}
	h.client.setNeedsRedraw()
}

func (h *Host) animateScrollbars(now time.Time) {
	if h.active.AnimateScrollbars(now) {
		h.client.setNeedsRedraw()
	}
	h.startScrollbarAnimation(now)
}

// startScrollbarAnimation asks for the next scrollbar frame: a redraw
// when a fade is running, a delayed callback when one is scheduled.
func (h *Host) startScrollbarAnimation(now time.Time) {
	var delay time.Duration
	animating := false
	h.active.ForEachLayer(func(l *scene.Layer) {
		a := l.ScrollbarAnimator
		if a == nil || !a.IsAnimating() {
			return
		}
		d := a.DelayBeforeStart(now)
		if !animating || d < delay {
			delay = d
		}
		animating = true
	})
	switch {
	case !animating:
	case delay > 0:
		h.client.requestScrollbarAnimation(delay)
	default:
		h.client.setNeedsRedraw()
	}
}
