// Package geom provides the 2D geometry used by the compositor.
//
// Layer-space values are float32 (points, vectors, rectangles, affine
// transforms). Pixel-aligned values such as content rects, damage and
// occlusion use image.Rectangle, and Region stores a set of disjoint
// integer rectangles.
//
// Transform follows the row-major 2x3 convention:
//
//	| a  b  c |
//	| d  e  f |
//
// so that x' = a*x + b*y + c and y' = d*x + e*y + f. Transforms compose
// right to left: t.Multiply(u) maps a point through u first, then t.
package geom
