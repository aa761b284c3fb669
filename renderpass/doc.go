// Package renderpass defines the per-frame output of the compositor:
// render passes, the quads drawn into them and the requests to read a
// pass back.
//
// A frame is a List ordered leaf first. A pass consumes another pass
// through a MaterialRenderPass quad, so the passes form an acyclic graph
// whose root is the last element of the list. RemovePasses prunes the
// graph with a Predicate such as NoQuads or CachedTextures.
package renderpass
