package renderpass

// Predicate decides whether the pass consumed by a render pass quad can
// be dropped from the frame.
type Predicate func(q *DrawQuad, passes Map) bool

// Direction selects the order in which RemovePasses visits the list.
type Direction int

const (
	// Forward visits leaf passes first.
	Forward Direction = iota
	// Backward visits the root pass first.
	Backward
)

// RemovePasses walks the pass list and, for every render pass quad whose
// input pass satisfies pred, removes that pass and every pass it
// transitively consumes. Removing a pass never invalidates the pass
// being visited, because consumed passes always precede their consumer.
func RemovePasses(list *List, passes Map, pred Predicate, dir Direction) {
	it := 0
	if dir == Backward {
		it = len(*list) - 1
	}
	for it >= 0 && it < len(*list) {
		pass := (*list)[it]
		for i := len(pass.Quads) - 1; i >= 0; i-- {
			q := pass.Quads[i]
			if q.Material != MaterialRenderPass || !pred(q, passes) {
				continue
			}
			fromEnd := len(*list) - it
			removeRecursive(list, passes, q.RenderPassID)
			it = len(*list) - fromEnd
		}
		if dir == Backward {
			it--
		} else {
			it++
		}
	}
}

func removeRecursive(list *List, passes Map, id ID) {
	idx := list.Index(id)
	if idx < 0 {
		// Already removed through another quad, e.g. the replica.
		return
	}
	removed := (*list)[idx]
	*list = append((*list)[:idx], (*list)[idx+1:]...)
	delete(passes, id)

	for _, q := range removed.Quads {
		if q.Material == MaterialRenderPass {
			removeRecursive(list, passes, q.RenderPassID)
		}
	}
}

// NoQuads matches passes that draw nothing: every quad they hold is a
// render pass quad whose input has already been removed.
func NoQuads(q *DrawQuad, passes Map) bool {
	pass, ok := passes[q.RenderPassID]
	if !ok {
		return false
	}
	for _, child := range pass.Quads {
		if child.Material != MaterialRenderPass {
			return false
		}
		if _, ok := passes[child.RenderPassID]; ok {
			return false
		}
	}
	return true
}

// CachedTextures matches passes whose contents did not change and whose
// previous output is still cached by the renderer.
func CachedTextures(haveCached func(ID) bool) Predicate {
	return func(q *DrawQuad, _ Map) bool {
		if !q.ContentsChangedSinceLastFrame.Empty() {
			return false
		}
		return haveCached(q.RenderPassID)
	}
}
