// Package track provides a node which plays clips one after another.
package track

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
)

// ErrInvalidClip is returned when a clip can't be placed on a track.
var ErrInvalidClip = errors.New("invalid clip")

func init() {
	montage.Register("track", func(string) (montage.Node, error) {
		return New(), nil
	})
}

// Track is a sequence of clips which don't overlap. Clip added over
// others trims them; if it lands inside a clip, that clip is split around
// it. Positions between clips are empty.
type Track struct {
	*montage.Base
	mu    sync.Mutex
	start *clip
	end   *clip
}

// Clip describes a part of a node placed on a track.
type Clip struct {
	At     int
	In     int
	Length int
	Node   montage.Node
}

// clip uses double-linked list structure.
type clip struct {
	Clip
	next *clip
	prev *clip
}

// End returns the position after the last frame of clip.
func (c *clip) End() int {
	if c == nil {
		return -1
	}
	return c.At + c.Length
}

// New returns an empty track.
func New() *Track {
	t := &Track{Base: montage.NewBase("track", 0)}
	t.Bind(t)
	return t
}

// AddClip places length frames of n starting from frame in at position at.
func (t *Track) AddClip(at int, n montage.Node, in, length int) error {
	if n == nil || at < 0 || in < 0 || length <= 0 {
		return errors.Wrapf(ErrInvalidClip, "at %d in %d length %d", at, in, length)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(&clip{Clip: Clip{At: at, In: in, Length: length, Node: n}})
	return nil
}

// Reset removes all clips.
func (t *Track) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start, t.end = nil, nil
}

// Clips returns clips in order.
func (t *Track) Clips() []Clip {
	t.mu.Lock()
	defer t.mu.Unlock()
	var result []Clip
	for c := t.start; c != nil; c = c.next {
		result = append(result, c.Clip)
	}
	return result
}

// Frames returns the end of the last clip.
func (t *Track) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.end == nil {
		return 0
	}
	return t.end.End()
}

// SlotCount returns the number of clips.
func (t *Track) SlotCount() int {
	return len(t.Clips())
}

// Slot returns the node of clip i.
func (t *Track) Slot(i int) montage.Node {
	clips := t.Clips()
	if i < 0 || i >= len(clips) {
		return nil
	}
	return clips[i].Node
}

// Sync refreshes the nodes of the clips.
func (t *Track) Sync() (int, error) {
	synced := make(map[string]struct{})
	for _, c := range t.Clips() {
		if _, ok := synced[c.Node.UID()]; ok {
			continue
		}
		if _, err := c.Node.Sync(); err != nil {
			return 0, err
		}
		synced[c.Node.UID()] = struct{}{}
	}
	return t.Frames(), nil
}

// Fetch returns the frame of the clip playing at current position.
func (t *Track) Fetch() (*montage.Frame, error) {
	p := t.Position()
	t.mu.Lock()
	c := t.clipAt(p)
	t.mu.Unlock()
	if c == nil {
		return montage.NewFrame(p), nil
	}
	f, err := montage.FetchAt(c.Node, c.In+p-c.At)
	if err != nil {
		return nil, errors.Wrapf(err, "clip at %d", c.At)
	}
	f.SetPosition(p)
	return f, nil
}

func (t *Track) clipAt(p int) *clip {
	for c := t.start; c != nil && c.At <= p; c = c.next {
		if p < c.End() {
			return c
		}
	}
	return nil
}

// clipAfter searches for a first clip starting at or after position.
func (t *Track) clipAfter(p int) *clip {
	for c := t.start; c != nil; c = c.next {
		if c.At >= p {
			return c
		}
	}
	return nil
}

func (t *Track) add(c *clip) {
	if t.start == nil {
		t.start = c
		t.end = c
		return
	}

	var next, prev *clip
	if next = t.clipAfter(c.At); next != nil {
		prev = next.prev
		next.prev = c
	} else {
		prev = t.end
		t.end = c
	}

	if prev != nil {
		prev.next = c
	} else {
		t.start = c
	}
	c.next = next
	c.prev = prev

	t.alignNext(c)
	t.alignPrev(c)
}

// alignNext shortens or removes clips covered by c.
func (t *Track) alignNext(c *clip) {
	next := c.next
	if next == nil {
		return
	}
	overlap := c.End() - next.At
	if overlap <= 0 {
		return
	}
	if next.Length > overlap {
		next.In += overlap
		next.Length -= overlap
		next.At += overlap
		return
	}
	c.next = next.next
	if c.next != nil {
		c.next.prev = c
	} else {
		t.end = c
	}
	t.alignNext(c)
}

// alignPrev cuts the clip before c. If c lands inside it, the remainder is
// placed after c.
func (t *Track) alignPrev(c *clip) {
	prev := c.prev
	if prev == nil {
		return
	}
	overlap := prev.End() - c.At
	if overlap <= 0 {
		return
	}
	prev.Length -= overlap
	if overlap > c.Length {
		t.add(&clip{Clip: Clip{
			At:     c.End(),
			In:     prev.In + c.End() - prev.At,
			Length: overlap - c.Length,
			Node:   prev.Node,
		}})
	}
}
