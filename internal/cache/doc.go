// Package cache provides the recency list and byte-budgeted LRU cache
// shared by the tile resource pool and the software renderer.
//
// # List[K]
//
// An intrusive doubly-linked recency list. Owners keep the returned
// *Node next to their own entry and move it to the front on every use.
//
// # Cache[K, V]
//
// A thread-safe LRU cache where every entry has a cost in bytes:
//
//	c := cache.New[renderpass.ID, *image.RGBA](64 << 20)
//	c.Set(id, img, int64(len(img.Pix)))
//	img, ok := c.Get(id)
//
// # Thread Safety
//
// Cache is safe for concurrent use and must not be copied after creation.
// List is not synchronized.
package cache
