package montage

import (
	"github.com/pkg/errors"

	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/log"
)

// Framer reports the number of addressable frames.
type Framer interface {
	Frames() int
}

// Base implements the default behaviour shared by nodes. Concrete nodes
// embed it and provide Fetch:
//
//	type Colour struct {
//		*montage.Base
//	}
//
//	func NewColour() *Colour {
//		c := &Colour{Base: montage.NewBase("colour", 0)}
//		c.Bind(c)
//		return c
//	}
//
// Bind is required when the node overrides Frames, so that Seek clamps to
// the node's own length.
type Base struct {
	uri      string
	uid      string
	attrs    *attr.Store
	slots    []Node
	position int
	self     Framer
	log      log.Logger
}

// NewBase returns a base with the given number of slots.
func NewBase(uri string, slots int) *Base {
	if slots < 0 {
		slots = 0
	}
	b := &Base{
		uri:   uri,
		uid:   NewUID(),
		attrs: attr.New(),
		slots: make([]Node, slots),
	}
	b.log = log.Node(log.GetLogger(), uri, b.uid)
	return b
}

// Bind sets the node used to resolve Frames.
func (b *Base) Bind(self Framer) {
	b.self = self
}

// URI returns the resource the node was created for.
func (b *Base) URI() string {
	return b.uri
}

// UID returns unique id of the node.
func (b *Base) UID() string {
	return b.uid
}

// Attributes returns the attributes of the node.
func (b *Base) Attributes() *attr.Store {
	return b.attrs
}

// Log returns the node logger.
func (b *Base) Log() log.Logger {
	return b.log
}

// SetLogger replaces the node logger.
func (b *Base) SetLogger(l log.Logger) {
	b.log = log.Node(l, b.uri, b.uid)
}

// Init verifies that every slot is connected.
func (b *Base) Init() error {
	for i, n := range b.slots {
		if n == nil {
			return errors.Wrapf(ErrNotConnected, "%s slot %d", b.uri, i)
		}
	}
	return nil
}

// SlotCount returns the size of the slot table.
func (b *Base) SlotCount() int {
	return len(b.slots)
}

// SetSlotCount resizes the slot table. Connected nodes in remaining slots
// are kept.
func (b *Base) SetSlotCount(n int) {
	if n < 0 {
		n = 0
	}
	slots := make([]Node, n)
	copy(slots, b.slots)
	b.slots = slots
}

// Connect attaches n to slot.
func (b *Base) Connect(n Node, slot int) error {
	if slot < 0 || slot >= len(b.slots) {
		return errors.Wrapf(ErrSlotOutOfRange, "%s slot %d of %d", b.uri, slot, len(b.slots))
	}
	b.slots[slot] = n
	return nil
}

// Slot returns the node connected to slot or nil.
func (b *Base) Slot(slot int) Node {
	if slot < 0 || slot >= len(b.slots) {
		return nil
	}
	return b.slots[slot]
}

// Seek sets the position served by the next fetch. It's clamped to
// [0, Frames()-1]; nodes of unknown length only clamp negatives.
func (b *Base) Seek(position int, relative bool) {
	if relative {
		position += b.position
	}
	if frames := b.frames(); frames > 0 && position >= frames {
		position = frames - 1
	}
	if position < 0 {
		position = 0
	}
	b.position = position
}

// Position returns the position set by the last seek.
func (b *Base) Position() int {
	return b.position
}

// Frames returns the length of the node connected to slot 0.
func (b *Base) Frames() int {
	if len(b.slots) > 0 && b.slots[0] != nil {
		return b.slots[0].Frames()
	}
	return 0
}

// Sync refreshes connected nodes and returns the updated length.
func (b *Base) Sync() (int, error) {
	for _, n := range b.slots {
		if n == nil {
			continue
		}
		if _, err := n.Sync(); err != nil {
			return 0, err
		}
	}
	return b.frames(), nil
}

// RequiresImage reports true by default.
func (b *Base) RequiresImage() bool {
	return true
}

// EmptyFrame returns an empty frame at the current position.
func (b *Base) EmptyFrame() *Frame {
	return NewFrame(b.position)
}

func (b *Base) frames() int {
	if b.self != nil {
		return b.self.Frames()
	}
	return b.Frames()
}
