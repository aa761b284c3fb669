// Package compositor produces frames from a retained tree of layers.
//
// A Host owns up to three generations of scene.Tree. The producer commits
// into the pending tree; once its tiles are ready the pending tree is
// activated and becomes the tree frames are drawn from. The old active
// tree is kept as the recycle tree so the next commit can reuse its
// layers.
//
// # Frame flow
//
//	Animate(now)
//	PrepareToDraw(frame, damage)  // damage, render passes, occlusion culling
//	DrawLayers(frame, now)        // renderer draws the passes
//	DidDrawAllLayers(frame)
//	SwapBuffers(frame)            // present, with FrameMetadata
//
// PrepareToDraw walks the active tree front to back with an
// occlusion.Tracker, asks every visible layer for its quads and builds
// one renderpass.Pass per render surface that contributes to the frame.
// Passes without quads and passes the renderer still has cached are
// removed before drawing.
//
// # Input
//
// ScrollBegin hit-tests the viewport point and picks the layer that
// scrolls. ScrollBy applies deltas to it, bubbling unused deltas to
// scrollable ancestors. Pinch gestures change the page scale around an
// anchor. InputDispatcher adapts gpucontext scroll, gesture and pointer
// events to these calls.
//
// # Memory
//
// Tile and UI resources live in a tile.ResourcePool. A
// tile.ManagedMemoryPolicy sets the byte budget; EnforceManagedMemoryPolicy
// evicts down to it and marks the trees as purged when content had to go.
//
// # Thread Safety
//
// A Host is NOT thread-safe. It is driven from a single goroutine; only
// rasterization runs elsewhere, on the tile manager's workers.
package compositor
