// Package picture converts images between pixel formats and reads and writes
// image files.
//
// Conversions go through *image.RGBA, which is also the working format of
// compositing. RGBA images are stored with straight alpha, YUV formats use
// BT.601 full range as implemented by image/color.
package picture

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/dudk/montage"
)

// ErrUnsupportedFormat is returned for unknown pixel or file formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ToRGBA returns a premultiplied copy of img.
func ToRGBA(img *montage.Image) (*image.RGBA, error) {
	if img == nil {
		return nil, errors.Wrap(ErrUnsupportedFormat, "nil image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Width(), img.Height()))
	if err := DrawRGBA(dst, img); err != nil {
		return nil, err
	}
	return dst, nil
}

// DrawRGBA overwrites dst with img. Both must be of the same size and dst
// must start at the origin.
func DrawRGBA(dst *image.RGBA, img *montage.Image) error {
	if img == nil {
		return errors.Wrap(ErrUnsupportedFormat, "nil image")
	}
	w, h := img.Width(), img.Height()
	if dst.Rect != image.Rect(0, 0, w, h) {
		return errors.Errorf("draw %dx%d image into %v", w, h, dst.Rect)
	}
	switch img.Format() {
	case montage.RGBA:
		p := img.Plane(0)
		src := &image.NRGBA{Pix: p.Data, Stride: p.Pitch, Rect: dst.Rect}
		draw.Draw(dst, dst.Rect, src, image.Point{}, draw.Src)
	case montage.RGB24:
		p := img.Plane(0)
		for y := 0; y < h; y++ {
			line := p.Data[y*p.Pitch:]
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				out[x*4] = line[x*3]
				out[x*4+1] = line[x*3+1]
				out[x*4+2] = line[x*3+2]
				out[x*4+3] = 0xff
			}
		}
	case montage.Gray8:
		p := img.Plane(0)
		src := &image.Gray{Pix: p.Data, Stride: p.Pitch, Rect: dst.Rect}
		draw.Draw(dst, dst.Rect, src, image.Point{}, draw.Src)
	case montage.YUV420P, montage.YUV422P, montage.YUV444P:
		draw.Draw(dst, dst.Rect, asYCbCr(img), image.Point{}, draw.Src)
	default:
		return errors.Wrapf(ErrUnsupportedFormat, "pixel format '%s'", img.Format())
	}
	return nil
}

// FromImage converts any image to a new image of format pf.
func FromImage(src image.Image, pf montage.PixelFormat) (*montage.Image, error) {
	b := src.Bounds()
	img := montage.NewImage(pf, b.Dx(), b.Dy())
	if img == nil {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "pixel format '%s' %dx%d", pf, b.Dx(), b.Dy())
	}
	w, h := img.Width(), img.Height()
	rect := image.Rect(0, 0, w, h)
	switch pf {
	case montage.RGBA:
		p := img.Plane(0)
		dst := &image.NRGBA{Pix: p.Data, Stride: p.Pitch, Rect: rect}
		draw.Draw(dst, rect, src, b.Min, draw.Src)
	case montage.Gray8:
		p := img.Plane(0)
		dst := &image.Gray{Pix: p.Data, Stride: p.Pitch, Rect: rect}
		draw.Draw(dst, rect, src, b.Min, draw.Src)
	case montage.RGB24:
		rgba := asRGBA(src)
		p := img.Plane(0)
		for y := 0; y < h; y++ {
			in := rgba.Pix[y*rgba.Stride:]
			line := p.Data[y*p.Pitch:]
			for x := 0; x < w; x++ {
				line[x*3] = in[x*4]
				line[x*3+1] = in[x*4+1]
				line[x*3+2] = in[x*4+2]
			}
		}
	case montage.YUV420P, montage.YUV422P, montage.YUV444P:
		fillYUV(img, asRGBA(src))
	}
	return img, nil
}

// Convert returns img in format pf. Image is returned as is if it's
// already in that format.
func Convert(img *montage.Image, pf montage.PixelFormat) (*montage.Image, error) {
	if img == nil {
		return nil, errors.Wrap(ErrUnsupportedFormat, "nil image")
	}
	if img.Format() == pf {
		return img, nil
	}
	rgba, err := ToRGBA(img)
	if err != nil {
		return nil, err
	}
	result, err := FromImage(rgba, pf)
	if err != nil {
		return nil, err
	}
	result.SetField(img.Field())
	result.SetSAR(img.SAR())
	return result, nil
}

func asRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, src, b.Min, draw.Src)
	return rgba
}

func asYCbCr(img *montage.Image) *image.YCbCr {
	ratio := image.YCbCrSubsampleRatio444
	switch img.Format() {
	case montage.YUV420P:
		ratio = image.YCbCrSubsampleRatio420
	case montage.YUV422P:
		ratio = image.YCbCrSubsampleRatio422
	}
	return &image.YCbCr{
		Y:              img.Plane(0).Data,
		Cb:             img.Plane(1).Data,
		Cr:             img.Plane(2).Data,
		YStride:        img.Plane(0).Pitch,
		CStride:        img.Plane(1).Pitch,
		SubsampleRatio: ratio,
		Rect:           image.Rect(0, 0, img.Width(), img.Height()),
	}
}

// fillYUV writes luma per pixel and chroma averaged over each subsampled block.
func fillYUV(img *montage.Image, rgba *image.RGBA) {
	wShift, hShift := img.Format().Subsampling()
	yp, up, vp := img.Plane(0), img.Plane(1), img.Plane(2)
	for cy := 0; cy < up.Height; cy++ {
		for cx := 0; cx < up.Width; cx++ {
			var cb, cr, n int
			for y := cy << hShift; y < (cy+1)<<hShift && y < img.Height(); y++ {
				for x := cx << wShift; x < (cx+1)<<wShift && x < img.Width(); x++ {
					i := y*rgba.Stride + x*4
					yy, u, v := color.RGBToYCbCr(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2])
					yp.Data[y*yp.Pitch+x] = yy
					cb += int(u)
					cr += int(v)
					n++
				}
			}
			up.Data[cy*up.Pitch+cx] = uint8((cb + n/2) / n)
			vp.Data[cy*vp.Pitch+cx] = uint8((cr + n/2) / n)
		}
	}
}
