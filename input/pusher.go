package input

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
)

// LengthKey is the length a pusher reports. Zero means unknown.
const LengthKey = "length"

// ErrCompleted is returned when frames are pushed after Complete.
var ErrCompleted = errors.New("pusher is completed")

func init() {
	montage.Register("pusher", func(string) (montage.Node, error) {
		return NewPusher(), nil
	})
}

// Pusher is an input fed by the application. Every fetch pops the oldest
// pushed frame and stamps it with the requested position. A fetch from an
// empty queue returns an empty frame.
//
// Pusher is also a montage.Store so the output of one graph can feed
// another.
type Pusher struct {
	*montage.Base
	mu        sync.Mutex
	queue     []*montage.Frame
	completed bool
}

// NewPusher returns an empty pusher.
func NewPusher() *Pusher {
	p := &Pusher{Base: montage.NewBase("pusher", 0)}
	p.Bind(p)
	p.Attributes().Declare(LengthKey, attr.IntValue(0))
	return p
}

// Frames returns the length attribute.
func (p *Pusher) Frames() int {
	return p.Attributes().IntOr(LengthKey, 0)
}

// Push appends a frame to the queue.
func (p *Pusher) Push(f *montage.Frame) error {
	if f == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.completed {
		return ErrCompleted
	}
	p.queue = append(p.queue, f)
	return nil
}

// Flush returns nothing: pushed frames are only consumed by fetches.
func (p *Pusher) Flush() (*montage.Frame, error) {
	return nil, nil
}

// Complete rejects further pushes. Queued frames can still be fetched.
func (p *Pusher) Complete() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = true
	return nil
}

// Len returns the number of queued frames.
func (p *Pusher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Fetch pops the oldest frame.
func (p *Pusher) Fetch() (*montage.Frame, error) {
	position := p.Position()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return montage.NewFrame(position), nil
	}
	f := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	f.SetPosition(position)
	return f, nil
}

// RequiresImage reports false: frames are served as pushed.
func (p *Pusher) RequiresImage() bool {
	return false
}
