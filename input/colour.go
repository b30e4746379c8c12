// Package input provides generated sources: solid colour pictures, tones,
// silence and a pusher fed by the application.
package input

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/picture"
)

// Attribute keys shared by generated inputs.
const (
	OutKey    = "out"
	FPSNumKey = "fps_num"
	FPSDenKey = "fps_den"
)

// Attribute keys of colour.
const (
	WidthKey       = "width"
	HeightKey      = "height"
	ColourspaceKey = "colourspace"
	RKey           = "r"
	GKey           = "g"
	BKey           = "b"
	AKey           = "a"
	SARNumKey      = "sar_num"
	SARDenKey      = "sar_den"
	ShapeKey       = "shape"
)

// Shapes of colour.
const (
	Rectangle = "rectangle"
	// Ellipse is inscribed in the picture, outside is transparent.
	Ellipse = "ellipse"
)

const defaultOut = 250

// pictures are shared by colour inputs producing the same picture.
var pictures = struct {
	sync.Mutex
	*lru.Cache
}{
	Cache: lru.New(32),
}

func init() {
	montage.Register("colour", func(resource string) (montage.Node, error) {
		return NewColour(resource)
	})
}

// Colour generates frames of a solid colour picture.
type Colour struct {
	*montage.Base
}

// NewColour returns a colour input. Resource can be empty or a colour in
// #rrggbb or #rrggbbaa notation.
func NewColour(resource string) (*Colour, error) {
	c := &Colour{Base: montage.NewBase("colour", 0)}
	c.Bind(c)
	var r, g, b, a int = 0, 0, 0, 0xff
	switch s := strings.TrimPrefix(resource, "#"); len(s) {
	case 0:
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return nil, errors.Wrapf(err, "colour %q", resource)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x%02x", &r, &g, &b, &a); err != nil {
			return nil, errors.Wrapf(err, "colour %q", resource)
		}
	default:
		return nil, errors.Errorf("colour %q: expected #rrggbb", resource)
	}
	c.Attributes().
		Declare(WidthKey, attr.IntValue(720)).
		Declare(HeightKey, attr.IntValue(576)).
		Declare(ColourspaceKey, attr.StringValue(string(montage.YUV420P))).
		Declare(RKey, attr.IntValue(r)).
		Declare(GKey, attr.IntValue(g)).
		Declare(BKey, attr.IntValue(b)).
		Declare(AKey, attr.IntValue(a)).
		Declare(OutKey, attr.IntValue(defaultOut)).
		Declare(FPSNumKey, attr.IntValue(25)).
		Declare(FPSDenKey, attr.IntValue(1)).
		Declare(SARNumKey, attr.IntValue(1)).
		Declare(SARDenKey, attr.IntValue(1)).
		Declare(ShapeKey, attr.StringValue(Rectangle))
	return c, nil
}

// Frames returns the out attribute.
func (c *Colour) Frames() int {
	return c.Attributes().IntOr(OutKey, defaultOut)
}

// Fetch returns a frame with the colour picture. Frozen picture is shared
// between frames and inputs until attributes change.
func (c *Colour) Fetch() (*montage.Frame, error) {
	p := c.Position()
	f := montage.NewFrame(p)
	if p >= c.Frames() {
		return f, nil
	}
	attrs := c.Attributes()
	f.SetFPS(attrs.IntOr(FPSNumKey, 25), attrs.IntOr(FPSDenKey, 1))
	img, err := c.picture()
	if err != nil {
		return nil, err
	}
	f.SetImage(img)
	return f, nil
}

func (c *Colour) picture() (*montage.Image, error) {
	attrs := c.Attributes()
	w, h := attrs.IntOr(WidthKey, 720), attrs.IntOr(HeightKey, 576)
	pf := montage.PixelFormat(attrs.StringOr(ColourspaceKey, string(montage.YUV420P)))
	col := color.NRGBA{
		R: channel(attrs.IntOr(RKey, 0)),
		G: channel(attrs.IntOr(GKey, 0)),
		B: channel(attrs.IntOr(BKey, 0)),
		A: channel(attrs.IntOr(AKey, 0xff)),
	}
	sarNum, sarDen := attrs.IntOr(SARNumKey, 1), attrs.IntOr(SARDenKey, 1)
	shape := attrs.StringOr(ShapeKey, Rectangle)
	key := fmt.Sprintf("%dx%d %s %v %d:%d %s", w, h, pf, col, sarNum, sarDen, shape)

	pictures.Lock()
	defer pictures.Unlock()
	if img, ok := pictures.Get(key); ok {
		return img.(*montage.Image), nil
	}
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("colour: invalid size %dx%d", w, h)
	}
	var src image.Image
	switch shape {
	case Rectangle:
		rect := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rect, rect.Rect, image.NewUniform(col), image.Point{}, draw.Src)
		src = rect
	case Ellipse:
		dc := gg.NewContext(w, h)
		dc.SetColor(col)
		dc.DrawEllipse(float64(w)/2, float64(h)/2, float64(w)/2, float64(h)/2)
		dc.Fill()
		src = dc.Image()
	default:
		return nil, errors.Errorf("colour: unknown shape '%s'", shape)
	}
	img, err := picture.FromImage(src, pf)
	if err != nil {
		return nil, errors.Wrap(err, "colour")
	}
	img.SetSAR(sarNum, sarDen)
	img.Freeze()
	pictures.Add(key, img)
	return img, nil
}

func channel(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 0xff:
		return 0xff
	}
	return uint8(v)
}
