package compositor

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/compositor/scene"
	"github.com/gogpu/compositor/tile"
)

// CreateUIResource uploads bitmap as UI resource uid, replacing any
// resource with the same id. UI resources are pinned: memory policy
// never evicts them.
func (h *Host) CreateUIResource(uid scene.UIResourceID, bitmap *image.RGBA) error {
	if uid <= 0 {
		return fmt.Errorf("compositor: invalid ui resource id %d", uid)
	}
	if bitmap == nil || bitmap.Bounds().Empty() {
		return fmt.Errorf("compositor: ui resource %d has no pixels", uid)
	}
	if _, ok := h.uiResources[uid]; ok {
		h.DeleteUIResource(uid)
	}
	r, err := h.pool.Acquire(bitmap.Bounds().Size(), tile.ClassRequired, true)
	if err != nil {
		return fmt.Errorf("compositor: create ui resource %d: %w", uid, err)
	}
	xdraw.Copy(r.Image, r.Image.Bounds().Min, bitmap, bitmap.Bounds(), xdraw.Src, nil)
	h.uiResources[uid] = r.ID
	h.markUIResourceNotEvicted(uid)
	return nil
}

// DeleteUIResource frees UI resource uid.
func (h *Host) DeleteUIResource(uid scene.UIResourceID) {
	if id, ok := h.uiResources[uid]; ok {
		h.pool.Delete(id)
		delete(h.uiResources, uid)
	}
	h.markUIResourceNotEvicted(uid)
}

// EvictAllUIResources frees every UI resource. The host cannot draw
// until the producer recreates them.
func (h *Host) EvictAllUIResources() {
	if len(h.uiResources) == 0 {
		return
	}
	for uid, id := range h.uiResources {
		h.evictedUIResources[uid] = struct{}{}
		h.pool.Delete(id)
	}
	clear(h.uiResources)
	h.logger().Warn("compositor: ui resources evicted", "count", len(h.evictedUIResources))

	h.client.setNeedsCommit()
	h.client.onCanDrawStateChanged(h.CanDraw())
	h.client.renewTreePriority()
}

// EvictedUIResourcesExist reports whether evicted UI resources still
// wait to be recreated.
func (h *Host) EvictedUIResourcesExist() bool {
	return len(h.evictedUIResources) > 0
}

func (h *Host) markUIResourceNotEvicted(uid scene.UIResourceID) {
	if _, ok := h.evictedUIResources[uid]; !ok {
		return
	}
	delete(h.evictedUIResources, uid)
	if len(h.evictedUIResources) == 0 {
		h.client.onCanDrawStateChanged(h.CanDraw())
	}
}

// ResourceForUIResource returns the texture holding UI resource uid, or
// 0.
func (h *Host) ResourceForUIResource(uid scene.UIResourceID) tile.ResourceID {
	return h.uiResources[uid]
}

// Contains reports whether resource id is live.
func (h *Host) Contains(id tile.ResourceID) bool {
	return h.pool.Contains(id)
}

// SetOverhangUIResource sets the texture tiled over the screen outside
// the content. size is the texture size in device pixels.
func (h *Host) SetOverhangUIResource(uid scene.UIResourceID, size image.Point) {
	h.overhangUIResource = uid
	h.overhangUIScaleSize = size
}

var (
	_ scene.ResourceLookup    = (*Host)(nil)
	_ scene.UIResourceHandler = (*Host)(nil)
)
