package parallel

import (
	"image"
	"math/bits"
	"sync/atomic"
)

// DirtyBitmap records which tiles of a tiling were invalidated since the
// last raster pass. One bit per tile, packed into atomic uint64 words, so
// invalidation may come from any goroutine while raster workers drain it.
type DirtyBitmap struct {
	// Bit index = ty*tilesX + tx.
	words    []atomic.Uint64
	tilesX   int
	tilesY   int
	tileSize int
}

// NewDirtyBitmap creates a bitmap for a tilesX x tilesY grid of square
// tiles of tileSize pixels. All tiles start clean.
// Returns nil if any dimension is zero or negative.
func NewDirtyBitmap(tilesX, tilesY, tileSize int) *DirtyBitmap {
	if tilesX <= 0 || tilesY <= 0 || tileSize <= 0 {
		return nil
	}
	n := tilesX * tilesY
	return &DirtyBitmap{
		words:    make([]atomic.Uint64, (n+63)/64),
		tilesX:   tilesX,
		tilesY:   tilesY,
		tileSize: tileSize,
	}
}

func (d *DirtyBitmap) index(tx, ty int) (int, bool) {
	if tx < 0 || tx >= d.tilesX || ty < 0 || ty >= d.tilesY {
		return 0, false
	}
	return ty*d.tilesX + tx, true
}

// Mark flags one tile. Out-of-range coordinates are ignored.
func (d *DirtyBitmap) Mark(tx, ty int) {
	idx, ok := d.index(tx, ty)
	if !ok {
		return
	}
	d.words[idx/64].Or(1 << (idx & 63))
}

// MarkRect flags every tile intersecting r, given in content pixels.
func (d *DirtyBitmap) MarkRect(r image.Rectangle) {
	if r.Empty() {
		return
	}
	tx1 := max(r.Min.X/d.tileSize, 0)
	ty1 := max(r.Min.Y/d.tileSize, 0)
	tx2 := min((r.Max.X-1)/d.tileSize, d.tilesX-1)
	ty2 := min((r.Max.Y-1)/d.tileSize, d.tilesY-1)
	for ty := ty1; ty <= ty2; ty++ {
		for tx := tx1; tx <= tx2; tx++ {
			d.Mark(tx, ty)
		}
	}
}

// MarkAll flags every tile.
func (d *DirtyBitmap) MarkAll() {
	n := d.tilesX * d.tilesY
	full := n / 64
	for i := 0; i < full; i++ {
		d.words[i].Store(^uint64(0))
	}
	if rem := n % 64; rem > 0 {
		d.words[full].Store((uint64(1) << rem) - 1)
	}
}

// Clear resets every tile to clean.
func (d *DirtyBitmap) Clear() {
	for i := range d.words {
		d.words[i].Store(0)
	}
}

// IsDirty reports whether tile (tx, ty) is flagged.
func (d *DirtyBitmap) IsDirty(tx, ty int) bool {
	idx, ok := d.index(tx, ty)
	if !ok {
		return false
	}
	return d.words[idx/64].Load()&(1<<(idx&63)) != 0
}

// IsEmpty reports whether no tile is flagged.
func (d *DirtyBitmap) IsEmpty() bool {
	for i := range d.words {
		if d.words[i].Load() != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of flagged tiles.
func (d *DirtyBitmap) Count() int {
	count := 0
	for i := range d.words {
		count += bits.OnesCount64(d.words[i].Load())
	}
	return count
}

// Drain atomically clears the bitmap and calls fn for each tile that was
// flagged, in row-major order.
func (d *DirtyBitmap) Drain(fn func(tx, ty int)) {
	for w := range d.words {
		d.visit(w, d.words[w].Swap(0), fn)
	}
}

// ForEach calls fn for each flagged tile without clearing it.
func (d *DirtyBitmap) ForEach(fn func(tx, ty int)) {
	for w := range d.words {
		d.visit(w, d.words[w].Load(), fn)
	}
}

func (d *DirtyBitmap) visit(w int, word uint64, fn func(tx, ty int)) {
	n := d.tilesX * d.tilesY
	for word != 0 {
		b := bits.TrailingZeros64(word)
		idx := w*64 + b
		if idx >= n {
			return
		}
		fn(idx%d.tilesX, idx/d.tilesX)
		word &^= 1 << b
	}
}

// TilesX returns the number of tile columns.
func (d *DirtyBitmap) TilesX() int { return d.tilesX }

// TilesY returns the number of tile rows.
func (d *DirtyBitmap) TilesY() int { return d.tilesY }

// TileSize returns the tile edge in pixels.
func (d *DirtyBitmap) TileSize() int { return d.tileSize }
