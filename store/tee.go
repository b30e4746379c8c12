package store

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dudk/montage"
)

// Tee pushes every frame to several stores. Each store receives its own
// shallow copy and stores are served concurrently.
type Tee struct {
	mu     sync.Mutex
	stores []montage.Store
}

// NewTee returns a tee over the stores.
func NewTee(stores ...montage.Store) *Tee {
	return &Tee{stores: stores}
}

// Add attaches one more store.
func (t *Tee) Add(s montage.Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stores = append(t.stores, s)
}

// Len returns the number of attached stores.
func (t *Tee) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stores)
}

// Push returns when every store accepted the frame. The first error is
// returned. Nil frames are dropped.
func (t *Tee) Push(f *montage.Frame) error {
	if f == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var g errgroup.Group
	for _, s := range t.stores {
		s, dup := s, f.Shallow()
		g.Go(func() error {
			return s.Push(dup)
		})
	}
	return g.Wait()
}

// Flush flushes every store and returns the first non-nil frame.
func (t *Tee) Flush() (*montage.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var last *montage.Frame
	for _, s := range t.stores {
		f, err := s.Flush()
		if err != nil {
			return nil, err
		}
		if last == nil {
			last = f
		}
	}
	return last, nil
}

// Complete completes every store, even if some of them fail.
func (t *Tee) Complete() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var g errgroup.Group
	for _, s := range t.stores {
		s := s
		g.Go(s.Complete)
	}
	return g.Wait()
}
