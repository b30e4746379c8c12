package compositor

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/dudk/montage"
	"github.com/dudk/montage/internal/pool"
	"github.com/dudk/montage/picture"
)

// scaler returns the resampling kernel for the interp attribute.
func scaler(interp string) draw.Scaler {
	switch interp {
	case "point", "nearest":
		return draw.NearestNeighbor
	case "approx":
		return draw.ApproxBiLinear
	case "bicubic":
		return draw.CatmullRom
	}
	return draw.BiLinear
}

// canvas is the working picture of one compositing pass. Background is
// converted to RGBA once, overlays are blended onto it back to front and
// the result is converted back to the background format. Working pictures
// come from the pool and must be returned with release.
type canvas struct {
	rgba       *image.RGBA
	background *montage.Image
	scaler     draw.Scaler
}

func newCanvas(background *montage.Image, s draw.Scaler) (*canvas, error) {
	rgba, err := pooled(background)
	if err != nil {
		return nil, err
	}
	return &canvas{
		rgba:       rgba,
		background: background,
		scaler:     s,
	}, nil
}

func (c *canvas) dims(sarNum, sarDen int) dims {
	return dims{
		w:      c.rgba.Rect.Dx(),
		h:      c.rgba.Rect.Dy(),
		sarNum: sarNum,
		sarDen: sarDen,
	}
}

// blend draws src into the area of g with the given mix level.
func (c *canvas) blend(src *montage.Image, g geometry, mix float64) error {
	if mix <= 0 || g.w <= 0 || g.h <= 0 || g.cw <= 0 || g.ch <= 0 {
		return nil
	}
	if mix > 1 {
		mix = 1
	}
	fg, err := pooled(src)
	if err != nil {
		return err
	}
	defer pool.Put(fg)
	sr := image.Rect(g.cx, g.cy, g.cx+g.cw, g.cy+g.ch)
	dr := image.Rect(g.x, g.y, g.x+g.w, g.y+g.h)
	same := sr.Dx() == dr.Dx() && sr.Dy() == dr.Dy()

	if mix == 1 {
		if same {
			draw.Draw(c.rgba, dr, fg, sr.Min, draw.Over)
		} else {
			c.scaler.Scale(c.rgba, dr, fg, sr, draw.Over, nil)
		}
		return nil
	}

	var layer image.Image = fg
	origin := sr.Min
	if !same {
		scaled := pool.Get(dr.Dx(), dr.Dy())
		defer pool.Put(scaled)
		c.scaler.Scale(scaled, scaled.Rect, fg, sr, draw.Src, nil)
		layer, origin = scaled, image.Point{}
	}
	mask := image.NewUniform(color.Alpha16{A: uint16(mix * 0xffff)})
	draw.DrawMask(c.rgba, dr, layer, origin, mask, image.Point{}, draw.Over)
	return nil
}

// release returns the working picture to the pool.
func (c *canvas) release() {
	pool.Put(c.rgba)
	c.rgba = nil
}

// pooled converts img into a picture taken from the pool.
func pooled(img *montage.Image) (*image.RGBA, error) {
	if img == nil || img.Width() <= 0 || img.Height() <= 0 {
		return picture.ToRGBA(img)
	}
	rgba := pool.Get(img.Width(), img.Height())
	if err := picture.DrawRGBA(rgba, img); err != nil {
		pool.Put(rgba)
		return nil, err
	}
	return rgba, nil
}

// image returns the composited picture in the background format.
func (c *canvas) image() (*montage.Image, error) {
	img, err := picture.FromImage(c.rgba, c.background.Format())
	if err != nil {
		return nil, err
	}
	img.SetField(c.background.Field())
	img.SetSAR(c.background.SAR())
	return img, nil
}
