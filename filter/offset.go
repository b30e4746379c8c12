// Package filter provides small filters used to lay clips out on a
// timeline.
package filter

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
)

// InKey is the position at which the clip of an offset starts.
const InKey = "in"

func init() {
	montage.Register("offset", func(resource string) (montage.Node, error) {
		in := 0
		if resource != "" {
			var err error
			if in, err = strconv.Atoi(resource); err != nil {
				return nil, errors.Wrapf(err, "offset %q", resource)
			}
		}
		return NewOffset(in), nil
	})
}

// Offset places the clip connected to its slot at the in point. Positions
// before the in point are empty.
type Offset struct {
	*montage.Base
}

// NewOffset returns an offset with the in point.
func NewOffset(in int) *Offset {
	o := &Offset{Base: montage.NewBase("offset", 1)}
	o.Bind(o)
	o.Attributes().Declare(InKey, attr.IntValue(in))
	return o
}

// In returns the in point.
func (o *Offset) In() int {
	return o.Attributes().IntOr(InKey, 0)
}

// Frames returns the end of the clip.
func (o *Offset) Frames() int {
	n := o.Slot(0)
	if n == nil {
		return 0
	}
	frames := n.Frames() + o.In()
	if frames < 0 {
		return 0
	}
	return frames
}

// Fetch returns the frame of the clip at position minus in point.
func (o *Offset) Fetch() (*montage.Frame, error) {
	n := o.Slot(0)
	if n == nil {
		return nil, errors.Wrap(montage.ErrNotConnected, "offset")
	}
	p := o.Position()
	local := p - o.In()
	if frames := n.Frames(); local < 0 || (frames > 0 && local >= frames) {
		return montage.NewFrame(p), nil
	}
	f, err := montage.FetchAt(n, local)
	if err != nil {
		return nil, err
	}
	f.SetPosition(p)
	return f, nil
}
