package montage

import (
	"sync/atomic"
)

// PixelFormat tags the memory layout of an image.
type PixelFormat string

// Supported pixel formats.
const (
	RGBA    PixelFormat = "rgba"
	RGB24   PixelFormat = "rgb24"
	YUV420P PixelFormat = "yuv420p"
	YUV422P PixelFormat = "yuv422p"
	YUV444P PixelFormat = "yuv444p"
	Gray8   PixelFormat = "gray8"
)

// Valid reports whether the format is known.
func (pf PixelFormat) Valid() bool {
	switch pf {
	case RGBA, RGB24, YUV420P, YUV422P, YUV444P, Gray8:
		return true
	}
	return false
}

// Planar reports whether components are stored in separate planes.
func (pf PixelFormat) Planar() bool {
	switch pf {
	case YUV420P, YUV422P, YUV444P:
		return true
	}
	return false
}

// HasAlpha reports whether the format carries an alpha channel.
func (pf PixelFormat) HasAlpha() bool {
	return pf == RGBA
}

// NumPlanes returns the number of planes the format uses.
func (pf PixelFormat) NumPlanes() int {
	if pf.Planar() {
		return 3
	}
	if pf.Valid() {
		return 1
	}
	return 0
}

// bytesPerPixel of packed formats and of each plane of planar formats.
func (pf PixelFormat) bytesPerPixel() int {
	switch pf {
	case RGBA:
		return 4
	case RGB24:
		return 3
	}
	return 1
}

// Subsampling returns chroma shifts applied to width and height of planes 1 and 2.
func (pf PixelFormat) Subsampling() (wShift, hShift uint) {
	switch pf {
	case YUV420P:
		return 1, 1
	case YUV422P:
		return 1, 0
	}
	return 0, 0
}

// FieldOrder describes interlacing of an image.
type FieldOrder int

// Field orders.
const (
	Progressive FieldOrder = iota
	TopFieldFirst
	BottomFieldFirst
)

// Plane is one component plane of an image.
type Plane struct {
	Data   []byte
	Pitch  int // bytes between the starts of two lines
	Width  int // meaningful bytes in a line
	Height int
}

// Image is a pixel buffer. Once frozen it must not be modified: use Clone to
// obtain a writable copy.
type Image struct {
	format PixelFormat
	width  int
	height int
	planes []Plane
	field  FieldOrder
	sarNum int
	sarDen int
	frozen atomic.Bool
}

// NewImage allocates a zeroed image. Nil is returned for unknown formats or
// non-positive dimensions.
func NewImage(pf PixelFormat, width, height int) *Image {
	if !pf.Valid() || width <= 0 || height <= 0 {
		return nil
	}
	img := &Image{
		format: pf,
		width:  width,
		height: height,
		planes: make([]Plane, pf.NumPlanes()),
	}
	wShift, hShift := pf.Subsampling()
	for i := range img.planes {
		w, h := width*pf.bytesPerPixel(), height
		if i > 0 {
			w = (width + (1 << wShift) - 1) >> wShift
			h = (height + (1 << hShift) - 1) >> hShift
		}
		img.planes[i] = Plane{
			Data:   make([]byte, w*h),
			Pitch:  w,
			Width:  w,
			Height: h,
		}
	}
	return img
}

// Format returns pixel format.
func (img *Image) Format() PixelFormat {
	return img.format
}

// Width returns width in pixels.
func (img *Image) Width() int {
	return img.width
}

// Height returns height in pixels.
func (img *Image) Height() int {
	return img.height
}

// NumPlanes returns number of planes.
func (img *Image) NumPlanes() int {
	return len(img.planes)
}

// Plane returns plane i.
func (img *Image) Plane(i int) Plane {
	return img.planes[i]
}

// HasAlpha reports whether the image carries an alpha channel.
func (img *Image) HasAlpha() bool {
	return img.format.HasAlpha()
}

// Field returns field order.
func (img *Image) Field() FieldOrder {
	return img.field
}

// SetField sets field order.
func (img *Image) SetField(f FieldOrder) {
	img.field = f
}

// SAR returns sample aspect ratio. 0/0 means unknown.
func (img *Image) SAR() (num, den int) {
	return img.sarNum, img.sarDen
}

// SetSAR sets sample aspect ratio.
func (img *Image) SetSAR(num, den int) {
	img.sarNum, img.sarDen = num, den
}

// Freeze marks the image read-only.
func (img *Image) Freeze() {
	img.frozen.Store(true)
}

// Frozen reports whether the image is read-only.
func (img *Image) Frozen() bool {
	return img.frozen.Load()
}

// Clone returns a writable deep copy.
func (img *Image) Clone() *Image {
	c := &Image{
		format: img.format,
		width:  img.width,
		height: img.height,
		planes: make([]Plane, len(img.planes)),
		field:  img.field,
		sarNum: img.sarNum,
		sarDen: img.sarDen,
	}
	for i, p := range img.planes {
		c.planes[i] = Plane{
			Data:   make([]byte, len(p.Data)),
			Pitch:  p.Pitch,
			Width:  p.Width,
			Height: p.Height,
		}
		copy(c.planes[i].Data, p.Data)
	}
	return c
}

// Equal reports whether two images have identical format, size and pixels.
func (img *Image) Equal(o *Image) bool {
	if img == nil || o == nil {
		return img == o
	}
	if img.format != o.format || img.width != o.width || img.height != o.height {
		return false
	}
	for i := range img.planes {
		a, b := img.planes[i], o.planes[i]
		for y := 0; y < a.Height; y++ {
			la := a.Data[y*a.Pitch : y*a.Pitch+a.Width]
			lb := b.Data[y*b.Pitch : y*b.Pitch+b.Width]
			if string(la) != string(lb) {
				return false
			}
		}
	}
	return true
}
