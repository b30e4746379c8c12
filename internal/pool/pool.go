// Package pool keeps RGBA pictures for reuse, one pool per size.
package pool

import (
	"image"
	"sync"
)

var m = struct {
	sync.Mutex
	pools map[image.Point]*sync.Pool
}{
	pools: map[image.Point]*sync.Pool{},
}

func get(size image.Point) *sync.Pool {
	m.Lock()
	defer m.Unlock()
	if p, ok := m.pools[size]; ok {
		return p
	}

	p := &sync.Pool{
		New: func() interface{} {
			return image.NewRGBA(image.Rectangle{Max: size})
		},
	}
	m.pools[size] = p
	return p
}

// Get returns a picture of w x h. Its content is undefined.
func Get(w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	return get(image.Pt(w, h)).Get().(*image.RGBA)
}

// Put releases the picture for reuse. Pictures not starting at the origin
// are dropped.
func Put(rgba *image.RGBA) {
	if rgba == nil || rgba.Rect.Min != (image.Point{}) || rgba.Rect.Empty() {
		return
	}
	get(rgba.Rect.Max).Put(rgba)
}
