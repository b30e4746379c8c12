package filter

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
)

// Prefix marks lerp attributes that are copied to frames.
const Prefix = "@"

func init() {
	montage.Register("lerp", func(string) (montage.Node, error) {
		return NewLerp(), nil
	})
}

// Lerp stamps its prefixed attributes on every frame passing through, with
// the prefix removed. A pair of numbers is interpolated linearly from the
// first to the last frame of the clip:
//
//	l := filter.NewLerp()
//	l.Attributes().SetFloat("@x", 0.5)
//	l.Attributes().SetNumbers("@mix", 0, 1) // fade in
type Lerp struct {
	*montage.Base
}

// NewLerp returns a lerp filter.
func NewLerp() *Lerp {
	return &Lerp{Base: montage.NewBase("lerp", 1)}
}

// Fetch returns the upstream frame with the attributes applied.
func (l *Lerp) Fetch() (*montage.Frame, error) {
	n := l.Slot(0)
	if n == nil {
		return nil, errors.Wrap(montage.ErrNotConnected, "lerp")
	}
	p := l.Position()
	f, err := montage.FetchAt(n, p)
	if err != nil {
		return nil, err
	}
	frames := n.Frames()
	attrs := f.Attributes()
	l.Attributes().Each(func(key string, v attr.Value) {
		if !strings.HasPrefix(key, Prefix) || len(key) == len(Prefix) {
			return
		}
		if ramp, err := v.Numbers(); err == nil && len(ramp) == 2 {
			v = attr.FloatValue(interpolate(ramp[0], ramp[1], p, frames))
		}
		if err := attrs.Set(key[len(Prefix):], v); err != nil {
			l.Log().Warnf("frame %d: %v", p, err)
		}
	})
	return f, nil
}

func interpolate(from, to float64, p, frames int) float64 {
	if frames <= 1 {
		return from
	}
	if p >= frames-1 {
		return to
	}
	return from + (to-from)*float64(p)/float64(frames-1)
}
