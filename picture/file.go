package picture

import (
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/dudk/montage"
)

// plugin reads and writes one file format.
type plugin struct {
	decode func(io.Reader) (image.Image, error)
	encode func(io.Writer, image.Image) error
}

var plugins = map[string]plugin{
	".png": {
		decode: png.Decode,
		encode: png.Encode,
	},
	".bmp": {
		decode: bmp.Decode,
		encode: bmp.Encode,
	},
	".tif": {
		decode: tiff.Decode,
		encode: encodeTIFF,
	},
	".tiff": {
		decode: tiff.Decode,
		encode: encodeTIFF,
	},
}

func encodeTIFF(w io.Writer, m image.Image) error {
	return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
}

// Extensions returns supported file extensions.
func Extensions() []string {
	return []string{".bmp", ".png", ".tif", ".tiff"}
}

func pluginFor(path string) (plugin, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := plugins[ext]
	if !ok {
		return plugin{}, errors.Wrapf(ErrUnsupportedFormat, "file '%s'", path)
	}
	return p, nil
}

// Load reads an image file. Opaque images are loaded as rgb24, others as
// rgba.
func Load(path string) (*montage.Image, error) {
	p, err := pluginFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load image")
	}
	defer f.Close()

	src, err := p.decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode '%s'", path)
	}
	pf := montage.RGBA
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		pf = montage.RGB24
	}
	return FromImage(src, pf)
}

// Store writes an image file.
func Store(path string, img *montage.Image) error {
	p, err := pluginFor(path)
	if err != nil {
		return err
	}
	var m image.Image
	if img.Format() == montage.RGBA {
		pl := img.Plane(0)
		m = &image.NRGBA{Pix: pl.Data, Stride: pl.Pitch, Rect: image.Rect(0, 0, img.Width(), img.Height())}
	} else {
		if m, err = ToRGBA(img); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "store image")
	}
	if err := p.encode(f, m); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode '%s'", path)
	}
	return f.Close()
}
