package compositor

import (
	"image"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gogpu/compositor/scene"
	"github.com/gogpu/compositor/tile"
)

// SetManagedMemoryPolicy installs the embedder's budget. zeroBudget
// forces both limits to zero, e.g. while the output is backgrounded.
func (h *Host) SetManagedMemoryPolicy(policy tile.ManagedMemoryPolicy, zeroBudget bool) {
	if h.cachedPolicy == policy && h.zeroBudget == zeroBudget {
		return
	}
	old := h.ActualManagedMemoryPolicy()
	h.cachedPolicy = policy
	h.zeroBudget = zeroBudget
	actual := h.ActualManagedMemoryPolicy()
	if old == actual {
		return
	}
	h.EnforceManagedMemoryPolicy(actual)

	// A commit is needed unless visible content already fit the old
	// budget and still fits the new one.
	needsCommit := true
	if h.visible &&
		actual.BytesLimitWhenVisible >= h.maxMemoryNeededBytes &&
		old.BytesLimitWhenVisible >= h.maxMemoryNeededBytes &&
		actual.PriorityCutoffWhenVisible == old.PriorityCutoffWhenVisible {
		needsCommit = false
	}
	if needsCommit {
		h.client.setNeedsCommit()
	}
}

// SetMemoryPolicy installs policy, keeping the current zero budget state.
func (h *Host) SetMemoryPolicy(policy tile.ManagedMemoryPolicy) {
	h.SetManagedMemoryPolicy(policy, h.zeroBudget)
}

// SetMaxMemoryNeededBytes records how much memory the producer's content
// needs in total. It decides whether budget changes need a commit.
func (h *Host) SetMaxMemoryNeededBytes(n int64) {
	h.maxMemoryNeededBytes = n
}

// ActualManagedMemoryPolicy returns the embedder's policy adjusted for
// the zero budget flag and RasterizeOnlyVisibleContent.
func (h *Host) ActualManagedMemoryPolicy() tile.ManagedMemoryPolicy {
	p := h.cachedPolicy
	if h.settings.RasterizeOnlyVisibleContent {
		p.PriorityCutoffWhenNotVisible = tile.CutoffAllowNothing
		p.PriorityCutoffWhenVisible = tile.CutoffAllowRequiredOnly
	}
	if h.zeroBudget {
		p.BytesLimitWhenVisible = 0
		p.BytesLimitWhenNotVisible = 0
	}
	return p
}

// EnforceManagedMemoryPolicy evicts content down to policy for the
// current visibility. When content in use had to go, both trees are
// marked purged and cannot draw until the producer commits again.
func (h *Host) EnforceManagedMemoryPolicy(policy tile.ManagedMemoryPolicy) {
	limit, cutoff := policy.Limit(h.visible), policy.Cutoff(h.visible)
	evicted := h.owner.ReduceMemory(limit, cutoff)

	span := h.startSpan("compositor.EnforceManagedMemoryPolicy",
		attribute.Int64("limit", limit),
		attribute.String("cutoff", cutoff.String()),
		attribute.Bool("evicted", evicted))
	defer span.End()

	if evicted {
		h.logger().Warn("compositor: content evicted for memory policy",
			"limit", limit, "cutoff", cutoff.String(), "visible", h.visible)
		h.active.ContentsTexturesPurged = true
		if h.pending != nil {
			h.pending.ContentsTexturesPurged = true
		}
		h.client.setNeedsCommit()
		h.client.onCanDrawStateChanged(h.CanDraw())
		h.client.renewTreePriority()
	}
	h.sendManagedMemoryStats()
	h.updateTileManagerMemoryPolicy(policy)
}

// updateTileManagerMemoryPolicy hands the budget to the tile manager.
func (h *Host) updateTileManagerMemoryPolicy(policy tile.ManagedMemoryPolicy) {
	limit := policy.Limit(h.visible)
	h.tileState.MemoryLimitBytes = limit
	h.tileState.UnusedMemoryLimitBytes = limit * h.settings.MaxUnusedResourceMemoryPercentage / 100
	h.tileState.MemoryLimitPolicy = policy.Cutoff(h.visible).LimitPolicy()
	h.tileState.NumResourcesLimit = policy.NumResourcesLimit
	h.DidModifyTilePriorities()
}

// SetTreePriority says whether smoothness or new content wins when the
// active and pending trees compete for tiles.
func (h *Host) SetTreePriority(p tile.TreePriority) {
	if h.tileState.TreePriority == p {
		return
	}
	h.tileState.TreePriority = p
	h.DidModifyTilePriorities()
}

// TreePriority returns the current tree priority.
func (h *Host) TreePriority() tile.TreePriority { return h.tileState.TreePriority }

// DidModifyTilePriorities marks tile priorities dirty and asks for
// ManageTiles.
func (h *Host) DidModifyTilePriorities() {
	if h.tiles == nil {
		return
	}
	h.tilePrioritiesDirty = true
	h.client.setNeedsManageTiles()
}

// ManageTiles reprioritizes tiles of both trees, assigns memory and
// schedules raster. It does nothing unless priorities changed.
func (h *Host) ManageTiles() {
	if h.tiles == nil || !h.tilePrioritiesDirty || !h.deviceViewportValidForTileMgmt {
		return
	}
	h.tilePrioritiesDirty = false

	reqs := h.tileRequests()
	span := h.startSpan("compositor.ManageTiles", attribute.Int("tilings", len(reqs)))
	defer span.End()

	h.tiles.SetGlobalState(h.tileState)
	h.tiles.ManageTiles(reqs)

	st := h.tiles.MemoryStats()
	h.maxMemoryNeededBytes = st.NiceToHaveBytes
	h.sendMemoryStats(MemoryStats{
		RequiredBytes:   st.RequiredBytes,
		NiceToHaveBytes: st.NiceToHaveBytes,
		UsedBytes:       st.UsedBytes,
	})
	span.SetAttributes(
		attribute.Int64("required_bytes", st.RequiredBytes),
		attribute.Int64("allocated_bytes", st.AllocatedBytes))
}

// tileRequests collects the tilings of the active and pending trees.
// A tiling shared by both trees is visible where either shows it.
func (h *Host) tileRequests() []tile.Request {
	byTiling := make(map[*tile.Tiling]int)
	var reqs []tile.Request
	add := func(t *scene.Tree, required bool) {
		if t == nil {
			return
		}
		t.ForEachLayer(func(l *scene.Layer) {
			tl := l.Tiling()
			if tl == nil || l.Content() != scene.ContentTiled {
				return
			}
			visible := l.VisibleContentRect()
			if i, ok := byTiling[tl]; ok {
				reqs[i].Visible = reqs[i].Visible.Union(visible)
				reqs[i].RequiredForActivation = reqs[i].RequiredForActivation || required
				return
			}
			byTiling[tl] = len(reqs)
			reqs = append(reqs, tile.Request{Tiling: tl, Visible: visible, RequiredForActivation: required})
		})
	}
	add(h.active, false)
	add(h.pending, true)
	return reqs
}

func (h *Host) hasTiledLayers(t *scene.Tree) bool {
	found := false
	t.ForEachLayer(func(l *scene.Layer) {
		found = found || (l.Tiling() != nil && l.Content() == scene.ContentTiled)
	})
	return found
}

// UpdateVisibleTiles installs finished raster work.
func (h *Host) UpdateVisibleTiles() {
	if h.tiles != nil && h.tiles.UpdateVisibleTiles() {
		h.didInitializeVisibleTile()
	}
	h.needUpdateVisibleTilesBeforeDraw = false
}

// didInitializeVisibleTile redraws after a visible tile got content.
func (h *Host) didInitializeVisibleTile() {
	h.SetFullRootLayerDamage()
	if !h.client.isInsideDraw() {
		h.client.didInitializeVisibleTile()
	}
}

// sendManagedMemoryStats reports the memory held by the resource pool,
// or the tile manager's figures when there is one.
func (h *Host) sendManagedMemoryStats() {
	if h.tiles != nil {
		st := h.tiles.MemoryStats()
		h.sendMemoryStats(MemoryStats{
			RequiredBytes:   st.RequiredBytes,
			NiceToHaveBytes: st.NiceToHaveBytes,
			UsedBytes:       st.UsedBytes,
		})
		return
	}
	used := h.pool.TotalBytes()
	h.sendMemoryStats(MemoryStats{RequiredBytes: used, NiceToHaveBytes: used, UsedBytes: used})
}

// sendMemoryStats rounds s up and sends it if it differs from the last
// report. Nothing is sent before a renderer exists.
func (h *Host) sendMemoryStats(s MemoryStats) {
	if h.renderer == nil {
		return
	}
	s = MemoryStats{
		RequiredBytes:   roundUp(s.RequiredBytes, h.settings.MemoryStatsRounding),
		NiceToHaveBytes: roundUp(s.NiceToHaveBytes, h.settings.MemoryStatsRounding),
		UsedBytes:       roundUp(s.UsedBytes, h.settings.MemoryStatsRounding),
	}
	if s == h.lastSentStats {
		return
	}
	h.lastSentStats = s
	h.client.sendManagedMemoryStats(s)
}

func roundUp(n, multiple int64) int64 {
	if multiple <= 0 {
		return n
	}
	return (n + multiple - 1) / multiple * multiple
}

// MemoryAllocationLimit returns the byte limit for the current
// visibility.
func (h *Host) MemoryAllocationLimit() int64 {
	return h.ActualManagedMemoryPolicy().Limit(h.visible)
}

// ViewportRect returns the device viewport rect.
func (h *Host) ViewportRect() image.Rectangle {
	return image.Rectangle{Max: h.deviceViewportSize}
}
