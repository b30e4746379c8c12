// Package state manages the lifecycle of a background worker.
//
// A worker is in one of three states: Dead (no goroutine), Paused (goroutine
// alive, waiting for events) or Running (goroutine calls WorkFunc). Only the
// worker goroutine changes the state, it does so when it receives an event
// from Eventc. The event's feedback channel is closed once the transition is
// done, so the caller can block until it's acknowledged.
package state

import (
	"errors"
	"sync"
	"time"
)

// ErrInvalidState is returned if an event cannot be sent at this moment.
var ErrInvalidState = errors.New("invalid state")

// State identifies one of the possible states worker can be in. Values
// match the "active" attribute of nodes running a worker.
type State int

// states
const (
	Dead    State = 0 // Dead means there is no worker goroutine.
	Running State = 1 // Running means that worker is doing work.
	Paused  State = 2 // Paused means that worker is waiting for events.
)

func (s State) String() string {
	switch s {
	case Dead:
		return "dead"
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	return s == Dead || s == Running || s == Paused
}

// WorkFunc does a unit of work. It's called repeatedly while the worker is
// running. Idle reports that there is nothing to do until worker is woken up
// or the idle interval elapses. Returned error kills the worker.
type WorkFunc func() (idle bool, err error)

// Event triggers the state change.
// Use imperative verbs for implementations.
//
// Target identifies which state is expected after event is handled.
// Errc is closed when the transition is done.
type Event interface {
	Target() State
	Errc() chan error
}

// Feedback is a wrapper for error channels. It's used to give feedback
// about state change.
type Feedback chan error

// Errc exposes error channel and used to satisfy Event interface.
func (f Feedback) Errc() chan error {
	return f
}

// dismiss closes feedback channel.
func (f Feedback) dismiss() {
	if f != nil {
		close(f)
	}
}

// Run event is sent to start the work.
type Run struct {
	Feedback
}

// Target state of the Run event is Running.
func (Run) Target() State {
	return Running
}

// Pause event is sent to pause the work.
type Pause struct {
	Feedback
}

// Target state of the Pause event is Paused.
func (Pause) Target() State {
	return Paused
}

// Close event is sent to stop the worker.
type Close struct {
	Feedback
}

// Target state of the Close event is Dead.
func (Close) Target() State {
	return Dead
}

// EventOf returns a new event with target s.
func EventOf(s State) Event {
	switch s {
	case Running:
		return Run{Feedback: make(chan error)}
	case Paused:
		return Pause{Feedback: make(chan error)}
	}
	return Close{Feedback: make(chan error)}
}

// Handle is a single worker goroutine lifetime. Once the worker is dead, a
// new handle must be created to start a new one.
type Handle struct {
	// Event channel used to handle new events for state machine.
	// created in constructor, never closed.
	Eventc chan Event
	// wakec interrupts idle waiting of running worker.
	wakec chan struct{}
	// done is closed when worker goroutine exits.
	done     chan struct{}
	work     WorkFunc
	interval time.Duration

	mu    sync.Mutex
	state State
	err   error
}

// NewHandle returns a handle in Paused state. Worker goroutine is not
// started until Loop is called.
func NewHandle(work WorkFunc, interval time.Duration) *Handle {
	return &Handle{
		Eventc:   make(chan Event, 1),
		wakec:    make(chan struct{}, 1),
		done:     make(chan struct{}),
		work:     work,
		interval: interval,
		state:    Paused,
	}
}

// Start spawns the worker goroutine and returns its handle.
func Start(work WorkFunc, interval time.Duration) *Handle {
	h := NewHandle(work, interval)
	go Loop(h)
	return h
}

// Loop listens until worker is dead.
func Loop(h *Handle) {
	defer close(h.done)
	s := h.State()
	for s != Dead {
		switch s {
		case Running:
			s = h.active()
		default:
			s = h.idle()
		}
	}
}

// idle is used to listen to events while paused.
func (h *Handle) idle() State {
	for {
		e := <-h.Eventc
		if s := h.transition(e); s != Paused {
			return s
		}
	}
}

// active calls work function and checks for events between calls.
func (h *Handle) active() State {
	timer := time.NewTimer(h.interval)
	defer timer.Stop()
	for {
		select {
		case e := <-h.Eventc:
			if s := h.transition(e); s != Running {
				return s
			}
			continue
		default:
		}

		idle, err := h.work()
		if err != nil {
			h.fail(err)
			return Dead
		}
		if !idle {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(h.interval)
		select {
		case e := <-h.Eventc:
			if s := h.transition(e); s != Running {
				return s
			}
		case <-h.wakec:
		case <-timer.C:
		}
	}
}

// transition applies the event and acknowledges it.
func (h *Handle) transition(e Event) State {
	t := e.Target()
	h.mu.Lock()
	h.state = t
	h.mu.Unlock()
	Feedback(e.Errc()).dismiss()
	return t
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.state = Dead
	h.err = err
	h.mu.Unlock()
}

// Request sends the event and blocks until worker acknowledges it. If
// the target is Dead, it also waits for the worker goroutine to exit. If
// worker dies before acknowledgement, its error is returned.
func (h *Handle) Request(e Event) error {
	select {
	case h.Eventc <- e:
	case <-h.done:
		if err := h.Err(); err != nil {
			return err
		}
		return ErrInvalidState
	}
	select {
	case <-e.Errc():
	case <-h.done:
		if err := h.Err(); err != nil {
			return err
		}
		if e.Target() != Dead {
			return ErrInvalidState
		}
	}
	if e.Target() == Dead {
		<-h.done
	}
	return nil
}

// Wake interrupts idle waiting of running worker.
func (h *Handle) Wake() {
	select {
	case h.wakec <- struct{}{}:
	default:
	}
}

// State returns current state of the worker.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error which killed the worker.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when worker goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
