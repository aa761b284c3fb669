package compositor

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/render"
	"github.com/gogpu/compositor/scene"
	"github.com/gogpu/compositor/tile"
)

// Errors returned by Host operations.
var (
	// ErrNoRenderer is returned when drawing before InitializeRenderer.
	ErrNoRenderer = errors.New("compositor: no renderer")

	// ErrContextLost is returned when drawing to a lost output surface.
	ErrContextLost = errors.New("compositor: context lost")
)

// Host turns the active layer tree into frames and owns the pending and
// recycle trees, the renderer, the tile manager and the input state.
//
// A Host is driven from one goroutine. ActivatePendingTree,
// PrepareToDraw and ScrollBy must not be re-entered from client
// callbacks; doing so panics.
type Host struct {
	settings Settings
	client   Client
	input    InputClient
	log      *slog.Logger
	tracer   trace.Tracer
	clock    func() time.Time

	active  *scene.Tree
	pending *scene.Tree
	recycle *scene.Tree

	surface  *render.OutputSurface
	renderer render.Renderer

	pool          *tile.ResourcePool
	owner         ResourceOwner
	tiles         *tile.Manager
	ownsTiles     bool
	rasterWorkers int

	tileState                        tile.GlobalState
	tilePrioritiesDirty              bool
	needUpdateVisibleTilesBeforeDraw bool

	visible              bool
	deviceViewportSize   image.Point
	deviceScaleFactor    float32
	overdrawBottomHeight float32
	viewportDamage       image.Rectangle

	externalTransform              geom.Transform
	externalViewport               image.Rectangle
	externalClip                   image.Rectangle
	deviceViewportValidForTileMgmt bool

	cachedPolicy         tile.ManagedMemoryPolicy
	zeroBudget           bool
	maxMemoryNeededBytes int64
	lastSentStats        MemoryStats

	uiResources         map[scene.UIResourceID]tile.ResourceID
	evictedUIResources  map[scene.UIResourceID]struct{}
	overhangUIResource  scene.UIResourceID
	overhangUIScaleSize image.Point

	rootScrollDelegate scene.RootScrollOffsetDelegate
	activationCallback func()

	scroll       scrollState
	topControls  *TopControls
	pageScaleAni *PageScaleAnimation

	frameCount int

	inActivate bool
	inPrepare  bool
	inScrollBy bool
}

// NewHost creates a host with an empty active tree. The host cannot draw
// until a renderer is initialized and the active tree has a root layer.
func NewHost(settings Settings, client Client, opts ...Option) *Host {
	h := &Host{
		settings:                       settings,
		client:                         client,
		tracer:                         defaultTracer(),
		clock:                          time.Now,
		active:                         scene.NewTree(scene.Active),
		visible:                        true,
		deviceScaleFactor:              1,
		externalTransform:              geom.Identity(),
		deviceViewportValidForTileMgmt: true,
		cachedPolicy:                   settings.MemoryPolicy,
		uiResources:                    make(map[scene.UIResourceID]tile.ResourceID),
		evictedUIResources:             make(map[scene.UIResourceID]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.tiles != nil {
		h.pool = h.tiles.Pool()
		h.tiles.SetReadyToActivate(h.notifyReadyToActivate)
	}
	if h.pool == nil {
		h.pool = tile.NewResourcePool()
	}
	if h.owner == nil {
		h.owner = h.pool
	}
	if h.tiles == nil && settings.ImplSidePainting {
		var mopts []tile.ManagerOption
		if h.rasterWorkers > 0 {
			mopts = append(mopts, tile.WithWorkers(h.rasterWorkers))
		}
		mopts = append(mopts,
			tile.WithPrepaintDistance(settings.PrepaintDistance),
			tile.WithReadyToActivate(h.notifyReadyToActivate))
		h.tiles = tile.NewManager(h.pool, mopts...)
		h.ownsTiles = true
	}
	if h.tiles != nil {
		registerLoggerSetter(h.tiles)
	}
	if settings.TopControlsHeight > 0 {
		h.topControls = NewTopControls(h, settings.TopControlsHeight,
			settings.TopControlsShowThreshold, settings.TopControlsHideThreshold)
	}
	h.updateTileManagerMemoryPolicy(h.ActualManagedMemoryPolicy())
	return h
}

// Close releases the renderer and stops raster workers the host started.
func (h *Host) Close() {
	if h.tiles != nil {
		unregisterLoggerSetter(h.tiles)
		if h.ownsTiles {
			h.tiles.Close()
		}
	}
	if h.renderer != nil {
		unregisterLoggerSetter(h.renderer)
	}
	h.ReleaseTreeResources()
}

// logger returns the host's logger.
func (h *Host) logger() *slog.Logger {
	if h.log != nil {
		return h.log
	}
	return Logger()
}

// Settings returns the settings the host was created with.
func (h *Host) Settings() Settings { return h.settings }

// BindToClient sets the input handler. Pass nil to unbind.
func (h *Host) BindToClient(c InputClient) { h.input = c }

// ResourcePool returns the pool tile and UI resources come from.
func (h *Host) ResourcePool() *tile.ResourcePool { return h.pool }

// TileManager returns the tile manager, or nil without impl-side
// painting.
func (h *Host) TileManager() *tile.Manager { return h.tiles }

// Renderer returns the current renderer, or nil.
func (h *Host) Renderer() render.Renderer { return h.renderer }

// ActiveTree returns the tree frames are drawn from.
func (h *Host) ActiveTree() *scene.Tree { return h.active }

// PendingTree returns the tree being committed to, or nil.
func (h *Host) PendingTree() *scene.Tree { return h.pending }

// RecycleTree returns the tree kept for reuse by the next commit, or nil.
func (h *Host) RecycleTree() *scene.Tree { return h.recycle }

// RootLayer returns the root of the active tree.
func (h *Host) RootLayer() *scene.Layer { return h.active.RootLayer() }

// RootScrollLayer returns the page scroll layer of the active tree.
func (h *Host) RootScrollLayer() *scene.Layer { return h.active.RootScrollLayer() }

// CurrentlyScrollingLayer returns the layer the current gesture scrolls.
func (h *Host) CurrentlyScrollingLayer() *scene.Layer {
	return h.active.CurrentlyScrollingLayer()
}

// SetRootScrollOffsetDelegate sets who observes the root scroll offset.
// It follows the active tree across activations.
func (h *Host) SetRootScrollOffsetDelegate(d scene.RootScrollOffsetDelegate) {
	h.rootScrollDelegate = d
	h.active.SetRootScrollOffsetDelegate(d)
}

// SetTreeActivationCallback sets fn to run after every activation. Only
// meaningful with impl-side painting.
func (h *Host) SetTreeActivationCallback(fn func()) {
	if fn != nil && !h.settings.ImplSidePainting {
		panic("compositor: tree activation callback requires impl-side painting")
	}
	h.activationCallback = fn
}

// InitializeRenderer creates the renderer for surface: a delegating
// renderer for hardware surfaces, the software renderer otherwise.
func (h *Host) InitializeRenderer(surface *render.OutputSurface) error {
	if surface == nil {
		return fmt.Errorf("compositor: initialize renderer: %w", render.ErrNilOutputSurface)
	}
	var (
		r   render.Renderer
		err error
	)
	if surface.DrawMode() == render.DrawModeHardware {
		r, err = render.NewDelegatingRenderer(surface)
	} else {
		r, err = render.NewSoftwareRenderer(surface, h.pool)
	}
	if err != nil {
		return fmt.Errorf("compositor: initialize renderer: %w", err)
	}
	return h.SetRenderer(surface, r)
}

// SetRenderer installs r, drawing to surface, as the host's renderer.
func (h *Host) SetRenderer(surface *render.OutputSurface, r render.Renderer) error {
	if surface == nil {
		return fmt.Errorf("compositor: set renderer: %w", render.ErrNilOutputSurface)
	}
	if r == nil {
		return fmt.Errorf("compositor: set renderer: %w", ErrNoRenderer)
	}
	if h.renderer != nil {
		unregisterLoggerSetter(h.renderer)
		h.ReleaseTreeResources()
	}
	h.surface, h.renderer = surface, r
	registerLoggerSetter(r)
	r.SetVisible(h.visible)
	surface.OnContextLost(h.DidLoseOutputSurface)

	h.logger().Info("compositor: renderer initialized",
		"mode", surface.DrawMode().String(),
		"adapter", surface.AdapterInfo().Name,
		"delegating", r.Capabilities().Delegating)

	h.SetFullRootLayerDamage()
	h.client.onCanDrawStateChanged(h.CanDraw())
	return nil
}

// OutputSurface returns the surface frames are drawn to, or nil.
func (h *Host) OutputSurface() *render.OutputSurface { return h.surface }

// IsContextLost reports whether the renderer lost its context.
func (h *Host) IsContextLost() bool {
	return h.renderer != nil && h.renderer.IsContextLost()
}

// DidLoseOutputSurface forwards a context loss to the client.
func (h *Host) DidLoseOutputSurface() {
	h.logger().Warn("compositor: output surface lost")
	h.client.didLoseOutputSurface()
}

// FinishAllRendering blocks until the renderer is idle.
func (h *Host) FinishAllRendering() {
	if h.renderer != nil {
		h.renderer.Finish()
	}
}

// CanDraw reports whether a frame can be produced now.
func (h *Host) CanDraw() bool {
	if h.renderer == nil || h.active.RootLayer() == nil {
		return false
	}
	if h.surface != nil && h.surface.DrawFullViewportEveryFrame {
		return true
	}
	switch {
	case h.deviceViewportSize.X <= 0 || h.deviceViewportSize.Y <= 0:
		return false
	case h.active.ViewportSizeInvalid:
		return false
	case h.active.ContentsTexturesPurged:
		return false
	case h.EvictedUIResourcesExist():
		return false
	}
	return true
}

// BeginCommit returns the tree the producer commits into: the pending
// tree with impl-side painting, creating it when needed, else the active
// tree.
func (h *Host) BeginCommit() *scene.Tree {
	if !h.settings.ImplSidePainting {
		return h.active
	}
	if h.pending == nil {
		h.CreatePendingTree()
	}
	return h.pending
}

// CommitComplete finishes a commit. With impl-side painting the pending
// tree's draw properties are computed and its tiles managed; activation
// is signalled once they are ready.
func (h *Host) CommitComplete() {
	if h.settings.ImplSidePainting && h.pending != nil {
		h.pending.SetNeedsUpdateDrawProperties()
		h.pending.UpdateDrawProperties(h.viewport())
		if h.hasTiledLayers(h.pending) {
			h.DidModifyTilePriorities()
		}
		if h.tiles == nil || !h.tilePrioritiesDirty {
			h.client.notifyReadyToActivate()
		} else {
			h.ManageTiles()
		}
	} else {
		h.active.SetNeedsUpdateDrawProperties()
	}
	h.sendManagedMemoryStats()
}

// CreatePendingTree starts a new pending tree, reusing the recycle tree
// when there is one. It panics if a pending tree already exists.
func (h *Host) CreatePendingTree() {
	if h.pending != nil {
		panic("compositor: pending tree already exists")
	}
	if h.recycle != nil {
		h.pending, h.recycle = h.recycle, nil
		h.pending.ResetTransientState()
		h.pending.SetGeneration(scene.Pending)
	} else {
		h.pending = scene.NewTree(scene.Pending)
	}
	h.client.onCanDrawStateChanged(h.CanDraw())
}

// ActivatePendingTree makes the pending tree active. The previous active
// tree's layers are updated in place to mirror the pending tree, and the
// pending tree becomes the recycle tree. It panics without a pending
// tree.
func (h *Host) ActivatePendingTree() {
	if h.pending == nil {
		panic("compositor: ActivatePendingTree without a pending tree")
	}
	if h.inActivate {
		panic("compositor: ActivatePendingTree re-entered")
	}
	h.inActivate = true
	defer func() { h.inActivate = false }()

	span := h.startSpan("compositor.ActivatePendingTree",
		attribute.Int("source_frame", h.pending.SourceFrameNumber),
		attribute.Int("layers", h.pending.NumLayers()))
	defer span.End()

	h.needUpdateVisibleTilesBeforeDraw = true

	h.active.SetRootScrollOffsetDelegate(nil)
	h.active.PushPersistedState(h.pending)
	if err := h.pending.ProcessUIResourceRequestQueue(h); err != nil {
		h.logger().Warn("compositor: ui resource requests failed", "err", err)
	}
	fullSync := h.pending.NeedsFullTreeSync()
	if fullSync {
		scene.SynchronizeTrees(h.pending, h.active)
	}
	h.pending.PushPropertiesTo(h.active)

	h.pending.SetGeneration(scene.Recycle)
	h.recycle, h.pending = h.pending, nil
	h.active.SetRootScrollOffsetDelegate(h.rootScrollDelegate)

	if r, ok := h.owner.(wastedMemoryReducer); ok {
		r.ReduceWastedMemory()
	}
	h.client.reduceWastedContentsTextureMemory()
	h.client.onCanDrawStateChanged(h.CanDraw())
	h.client.setNeedsRedraw()
	h.client.renewTreePriority()
	h.DidModifyTilePriorities()

	h.logger().Info("compositor: pending tree activated",
		"source_frame", h.active.SourceFrameNumber,
		"full_sync", fullSync)
	span.SetAttributes(attribute.Bool("full_sync", fullSync))

	h.client.didActivatePendingTree()
	if h.activationCallback != nil {
		h.activationCallback()
	}
}

// ReleaseTreeResources drops rastered content and surfaces of every tree
// and evicts the UI resources.
func (h *Host) ReleaseTreeResources() {
	for _, t := range []*scene.Tree{h.active, h.pending, h.recycle} {
		if t != nil {
			t.ReleaseResources()
		}
	}
	h.EvictAllUIResources()
}

// notifyReadyToActivate is the tile manager's activation callback.
func (h *Host) notifyReadyToActivate() {
	if h.pending == nil {
		return
	}
	h.client.notifyReadyToActivate()
}

// SetVisible shows or hides the output. Hiding applies the hidden memory
// budget and evicts UI resources.
func (h *Host) SetVisible(visible bool) {
	if h.visible == visible {
		return
	}
	h.visible = visible
	h.EnforceManagedMemoryPolicy(h.ActualManagedMemoryPolicy())
	if !visible {
		h.EvictAllUIResources()
		h.ManageTiles()
	}
	if h.renderer != nil {
		h.renderer.SetVisible(visible)
	}
}

// Visible reports whether the output is shown.
func (h *Host) Visible() bool { return h.visible }

// SetViewportSize sets the device viewport size in device pixels.
func (h *Host) SetViewportSize(size image.Point) {
	if size == h.deviceViewportSize {
		return
	}
	if h.pending != nil {
		h.active.ViewportSizeInvalid = true
	}
	h.deviceViewportSize = size
	h.updateMaxScrollOffset()
	if h.renderer != nil {
		h.renderer.ViewportChanged()
	}
	h.client.onCanDrawStateChanged(h.CanDraw())
	h.SetFullRootLayerDamage()
}

// DeviceViewportSize returns the viewport size in device pixels.
func (h *Host) DeviceViewportSize() image.Point { return h.deviceViewportSize }

// SetDeviceScaleFactor sets the ratio of device to layout pixels.
func (h *Host) SetDeviceScaleFactor(f float32) {
	if f == h.deviceScaleFactor || f <= 0 {
		return
	}
	h.deviceScaleFactor = f
	h.active.SetNeedsUpdateDrawProperties()
	if h.pending != nil {
		h.pending.SetNeedsUpdateDrawProperties()
	}
	h.updateMaxScrollOffset()
	h.SetFullRootLayerDamage()
}

// DeviceScaleFactor returns the ratio of device to layout pixels.
func (h *Host) DeviceScaleFactor() float32 { return h.deviceScaleFactor }

// SetOverdrawBottomHeight sets the height of the area at the bottom of
// the viewport covered by other UI.
func (h *Host) SetOverdrawBottomHeight(height float32) {
	if height == h.overdrawBottomHeight {
		return
	}
	h.overdrawBottomHeight = height
	h.updateMaxScrollOffset()
	h.SetFullRootLayerDamage()
}

// SetExternalDrawConstraints overrides the draw viewport and clip set by
// an embedder that draws the output itself.
func (h *Host) SetExternalDrawConstraints(transform geom.Transform, viewport, clip image.Rectangle, validForTileManagement bool) {
	h.externalTransform = transform
	h.externalViewport = viewport
	h.externalClip = clip
	h.deviceViewportValidForTileMgmt = validForTileManagement
}

// DrawViewportSize returns the size frames are drawn at.
func (h *Host) DrawViewportSize() image.Point {
	if !h.externalViewport.Empty() {
		return h.externalViewport.Size()
	}
	return h.deviceViewportSize
}

// viewport returns the draw property inputs.
func (h *Host) viewport() scene.Viewport {
	return scene.Viewport{DeviceSize: h.DrawViewportSize(), DeviceScaleFactor: h.deviceScaleFactor}
}

// UnscaledScrollableViewportSize returns the viewport in layout pixels,
// less the area covered by top controls and the overdraw at the bottom.
func (h *Host) UnscaledScrollableViewportSize() geom.Vector {
	v := geom.Vec(float32(h.deviceViewportSize.X), float32(h.deviceViewportSize.Y)).Scale(1 / h.deviceScaleFactor)
	top := float32(0)
	if h.topControls != nil {
		top = h.topControls.ContentTopOffset()
	}
	v.Y -= top + h.overdrawBottomHeight
	return v
}

// updateMaxScrollOffset recomputes active draw properties, including the
// root scroll range.
func (h *Host) updateMaxScrollOffset() {
	h.active.SetNeedsUpdateDrawProperties()
	h.active.UpdateDrawProperties(h.viewport())
}

// ensureRenderSurfaceLayerList updates draw properties and reports
// whether anything can be hit or drawn.
func (h *Host) ensureRenderSurfaceLayerList() bool {
	h.active.UpdateDrawProperties(h.viewport())
	return len(h.active.RenderSurfaceLayerList()) > 0
}

// SetNeedsRedrawRect asks the client to redraw damage.
func (h *Host) SetNeedsRedrawRect(damage image.Rectangle) {
	h.client.setNeedsRedrawRect(damage)
}

// SetNeedsRedraw asks the client for a new frame.
func (h *Host) SetNeedsRedraw() {
	h.client.setNeedsRedraw()
}

// SetViewportDamage adds damage in device pixels to the next frame.
func (h *Host) SetViewportDamage(damage image.Rectangle) {
	h.viewportDamage = h.viewportDamage.Union(damage)
}

// SetFullRootLayerDamage damages the whole viewport.
func (h *Host) SetFullRootLayerDamage() {
	h.SetViewportDamage(image.Rectangle{Max: h.DrawViewportSize()})
}
