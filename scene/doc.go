// Package scene holds the compositor's layer trees.
//
// A Tree owns its layers through an id-keyed arena. Producers build the
// pending tree, the host promotes it to active with SynchronizeTrees and
// PushPropertiesTo, and the previous pending tree is kept for reuse.
//
// Before drawing, UpdateDrawProperties derives screen transforms, clips,
// visible rects and render surfaces, and builds the render surface layer
// list. FrontToBack then walks that list topmost first, which is the
// order occlusion tracking needs:
//
//	tree.UpdateDrawProperties(scene.Viewport{DeviceSize: image.Pt(800, 600), DeviceScaleFactor: 1})
//	for pos := range tree.FrontToBack() {
//		switch pos.Role {
//		case scene.RoleItself:
//			pos.Layer.AppendQuads(sink, &data, resources)
//		case scene.RoleContributingSurface:
//			pos.Layer.RenderSurface().AppendQuads(sink, &data, false)
//		}
//	}
package scene
