package renderpass

import (
	"image"
	"sync"
)

// CopyOutputRequest asks for the pixels of a render surface once it has
// been drawn. Every request is completed exactly once, either with the
// rendered image or with an empty result.
type CopyOutputRequest struct {
	once     sync.Once
	callback func(*image.RGBA)
	done     bool
}

// NewCopyOutputRequest creates a request that calls fn with the result.
// fn receives nil for an empty result.
func NewCopyOutputRequest(fn func(img *image.RGBA)) *CopyOutputRequest {
	return &CopyOutputRequest{callback: fn}
}

// SendResult completes the request with img.
func (r *CopyOutputRequest) SendResult(img *image.RGBA) {
	r.once.Do(func() {
		r.done = true
		if r.callback != nil {
			r.callback(img)
		}
	})
}

// SendEmptyResult completes the request without pixels.
func (r *CopyOutputRequest) SendEmptyResult() {
	r.SendResult(nil)
}

// HasResult reports whether the request was completed.
func (r *CopyOutputRequest) HasResult() bool {
	return r.done
}
