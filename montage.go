package montage

import (
	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/dudk/montage/attr"
)

var (
	// ErrSlotOutOfRange is returned when a slot index is not in the slot table.
	ErrSlotOutOfRange = errors.New("slot out of range")
	// ErrNotConnected is returned when a required slot has no node.
	ErrNotConnected = errors.New("slot not connected")
	// ErrShrinkingSource is returned when a source reports fewer frames than
	// it did before.
	ErrShrinkingSource = errors.New("source is shrinking")
	// ErrUnknownFactory is returned when no factory is registered for a tag.
	ErrUnknownFactory = errors.New("unknown factory")
)

// Node is a participant of the graph. Inputs have no slots, filters pull
// from the nodes connected to their slots.
//
// Fetch returns the frame for the position set by the last Seek. If there is
// no data at that position an empty frame stamped with the position is
// returned, errors are reserved for broken graphs.
type Node interface {
	URI() string
	UID() string
	Attributes() *attr.Store
	Init() error
	SlotCount() int
	Connect(n Node, slot int) error
	Slot(slot int) Node
	Seek(position int, relative bool)
	Position() int
	Fetch() (*Frame, error)
	Frames() int
	Sync() (int, error)
	RequiresImage() bool
}

// Store is a terminal consumer of frames.
type Store interface {
	Push(*Frame) error
	Flush() (*Frame, error)
	Complete() error
}

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}

// FetchAt seeks the node to position p and fetches a frame.
func FetchAt(n Node, p int) (*Frame, error) {
	n.Seek(p, false)
	return n.Fetch()
}
