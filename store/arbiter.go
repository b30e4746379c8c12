package store

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var (
	// ErrDeviceBusy is returned when the device is owned by someone else.
	ErrDeviceBusy = errors.New("audio device is busy")
	// ErrNotOwner is returned when a release or handover is requested by a
	// party that doesn't own the device.
	ErrNotOwner = errors.New("not the device owner")
)

// Arbiter guards exclusive use of an audio device. Stores that want the
// device share one arbiter and identify themselves by uid. Ownership is
// passed explicitly: a new consumer either waits for a release or takes
// the device over from the current owner.
type Arbiter struct {
	mu       sync.Mutex
	owner    string
	released chan struct{}
}

// NewArbiter returns an arbiter of a free device.
func NewArbiter() *Arbiter {
	return &Arbiter{released: make(chan struct{})}
}

// Owner returns uid of the current owner or empty string.
func (a *Arbiter) Owner() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

// Acquire takes the device. Acquiring an owned device again is allowed.
func (a *Arbiter) Acquire(uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.owner {
	case "", uid:
		a.owner = uid
		return nil
	}
	return errors.Wrapf(ErrDeviceBusy, "owned by %s", a.owner)
}

// Wait blocks until the device is acquired by uid or ctx is done.
func (a *Arbiter) Wait(ctx context.Context, uid string) error {
	for {
		a.mu.Lock()
		if a.owner == "" || a.owner == uid {
			a.owner = uid
			a.mu.Unlock()
			return nil
		}
		released := a.released
		a.mu.Unlock()

		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Release frees the device.
func (a *Arbiter) Release(uid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner != uid {
		return errors.Wrapf(ErrNotOwner, "%s releasing device of %s", uid, a.owner)
	}
	a.owner = ""
	close(a.released)
	a.released = make(chan struct{})
	return nil
}

// Handover passes the device from the current owner to another party
// without releasing it.
func (a *Arbiter) Handover(from, to string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.owner != from {
		return errors.Wrapf(ErrNotOwner, "%s handing over device of %s", from, a.owner)
	}
	a.owner = to
	return nil
}
