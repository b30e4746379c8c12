// Package store provides frame sinks.
package store

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/signal"
)

// ErrCompleted is returned when frames are pushed to a completed store.
var ErrCompleted = errors.New("store is completed")

// Monitor is a sink which keeps pushed frames in memory. Audio of the
// frames is appended to a single buffer.
type Monitor struct {
	uid     string
	mu      sync.Mutex
	frames  []*montage.Frame
	audio   signal.Float64
	last    *montage.Frame
	done    bool
	arbiter *Arbiter
	device  bool
}

// MonitorOption configures a monitor.
type MonitorOption func(*Monitor)

// WithArbiter makes the monitor hold the audio device while it receives
// audio.
func WithArbiter(a *Arbiter) MonitorOption {
	return func(m *Monitor) {
		m.arbiter = a
	}
}

// NewMonitor returns an empty monitor.
func NewMonitor(options ...MonitorOption) *Monitor {
	m := &Monitor{uid: montage.NewUID()}
	for _, option := range options {
		option(m)
	}
	return m
}

// UID returns unique id of the monitor.
func (m *Monitor) UID() string {
	return m.uid
}

// Push keeps a frozen duplicate of the frame.
func (m *Monitor) Push(f *montage.Frame) error {
	if f == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return ErrCompleted
	}
	if f.HasAudio() && m.arbiter != nil && !m.device {
		if err := m.arbiter.Acquire(m.uid); err != nil {
			return errors.Wrap(err, "monitor")
		}
		m.device = true
	}
	d := f.Shallow()
	m.frames = append(m.frames, d)
	if d.HasAudio() {
		m.audio = m.audio.Append(d.Audio().Data())
	}
	m.last = d
	return nil
}

// Flush returns the last pushed frame.
func (m *Monitor) Flush() (*montage.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last, nil
}

// Complete rejects further pushes and releases the audio device.
func (m *Monitor) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return ErrCompleted
	}
	m.done = true
	if m.device {
		m.device = false
		return m.arbiter.Release(m.uid)
	}
	return nil
}

// Frames returns pushed frames in order.
func (m *Monitor) Frames() []*montage.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*montage.Frame, len(m.frames))
	copy(result, m.frames)
	return result
}

// Audio returns all pushed samples.
func (m *Monitor) Audio() signal.Float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio.Clone()
}

// Positions returns positions of pushed frames.
func (m *Monitor) Positions() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]int, 0, len(m.frames))
	for _, f := range m.frames {
		result = append(result, f.Position())
	}
	return result
}
