package compositor

// Mode tells how an overlay is fitted into its relative geometry.
type Mode string

// Geometry modes.
const (
	// Fill scales to fit inside the area keeping aspect ratio.
	Fill Mode = "fill"
	// Smart scales and crops to use the whole area keeping aspect ratio.
	Smart Mode = "smart"
	// Letter fits the width, height may be cropped.
	Letter Mode = "letter"
	// Pillar fits the height, width may be cropped.
	Pillar Mode = "pillar"
	// Native keeps the source size.
	Native Mode = "native"
	// Distort stretches to the area ignoring aspect ratio.
	Distort Mode = "distort"
)

// Compatible reports whether two modes produce the same placement for an
// overlay that exactly matches the background. Fill and smart are
// equivalent, any other pair must be equal.
func Compatible(a, b Mode) bool {
	if a == b {
		return true
	}
	return (a == Fill || a == Smart) && (b == Fill || b == Smart)
}

// rect is a relative area of the destination, fractions of its size.
type rect struct {
	x, y, w, h float64
}

// full reports whether r covers the whole destination.
func (r rect) full() bool {
	return r.x == 0 && r.y == 0 && r.w == 1 && r.h == 1
}

// picture dimensions with sample aspect ratio.
type dims struct {
	w, h           int
	sarNum, sarDen int
}

func (d dims) sar() (float64, float64) {
	num, den := float64(d.sarNum), float64(d.sarDen)
	if num == 0 {
		num = 1
	}
	if den == 0 {
		den = 1
	}
	return num, den
}

// geometry is the placement of a source image on a destination: the
// destination area x, y, w, h and the source crop cx, cy, cw, ch, all in
// pixels.
type geometry struct {
	x, y, w, h     int
	cx, cy, cw, ch int
}

// place computes where src lands on dst for relative area r in mode m.
// Placement is centred inside the area, overflow is cropped from the
// source symmetrically.
func place(dst, src dims, r rect, m Mode) geometry {
	srcNum, srcDen := src.sar()
	dstNum, dstDen := dst.sar()

	g := geometry{
		x:  int(float64(dst.w) * r.x),
		y:  int(float64(dst.h) * r.y),
		w:  int(float64(dst.w) * r.w),
		h:  int(float64(dst.h) * r.h),
		cw: src.w,
		ch: src.h,
	}
	areaW, areaH := g.w, g.h
	if src.w == 0 || src.h == 0 {
		return g
	}

	letterH := int(0.5 + (float64(g.w)*float64(src.h)*srcDen*dstNum)/(float64(src.w)*srcNum*dstDen))
	pillarW := int(0.5 + (float64(g.h)*float64(src.w)*srcNum*dstDen)/(float64(src.h)*srcDen*dstNum))

	switch m {
	case Fill:
		g.h, g.w = areaH, pillarW
		if g.w > areaW {
			g.w, g.h = areaW, letterH
		}
	case Smart:
		g.h, g.w = areaH, pillarW
		if g.w < areaW {
			g.w, g.h = areaW, letterH
		}
	case Letter:
		g.w, g.h = areaW, letterH
	case Pillar:
		g.h, g.w = areaH, pillarW
	case Native:
		g.w, g.h = src.w, src.h
	}

	if areaW >= g.w {
		g.x += (areaW - g.w) / 2
	} else {
		diff := float64(g.w-areaW) / float64(g.w)
		g.cx = int(float64(g.cw) * diff / 2)
		g.cw = int(float64(g.cw) * (1 - diff))
		g.w = areaW
	}
	if areaH >= g.h {
		g.y += (areaH - g.h) / 2
	} else {
		diff := float64(g.h-areaH) / float64(g.h)
		g.cy = int(float64(g.ch) * diff / 2)
		g.ch = int(float64(g.ch) * (1 - diff))
		g.h = areaH
	}
	return g
}
