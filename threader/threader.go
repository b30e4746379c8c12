// Package threader provides a filter that reads ahead of the caller.
//
// Threader wraps a sub-graph connected to its only slot. While it's
// running, a single worker goroutine fetches upcoming positions into a
// bounded cache and the caller is served from that cache. While it's paused
// or dead, the caller fetches from the sub-graph itself. The sub-graph is
// never used by both at the same time.
//
// Attributes:
//
//	active           0 dead, 1 running, 2 paused
//	queue            cache capacity, 25 by default
//	audio_direction  1 reverses audio of frames served while playing backwards
package threader

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/internal/state"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/metric"
)

// Attribute keys.
const (
	ActiveKey         = "active"
	QueueKey          = "queue"
	AudioDirectionKey = "audio_direction"
	// AudioReversedKey is set on served frames when audio direction is handled.
	AudioReversedKey = "audio_reversed"
)

const (
	defaultQueue        = 25
	defaultSyncInterval = time.Second
	defaultTimeout      = 5 * time.Second
	defaultRetries      = 3
	// scrubSpeed is the frame delta above which requests are treated as
	// random access.
	scrubSpeed = 16
)

func init() {
	montage.Register("threader", func(string) (montage.Node, error) {
		return New(), nil
	})
}

// Threader is a read-ahead cache filter.
type Threader struct {
	*montage.Base
	// ctl serializes state transitions.
	ctl sync.Mutex
	// mu guards everything below and the slot table.
	mu     sync.Mutex
	handle *state.Handle
	// announced is the state being written to the active attribute by
	// the threader itself, -1 otherwise.
	announced atomic.Int64

	cache        map[int]*montage.Frame
	gen          int
	frames       int
	position     int
	lastPosition int
	speed        int
	lastFrame    *montage.Frame
	pending      error
	arrived      chan struct{}
	lastSync     time.Time

	syncInterval time.Duration
	timeout      time.Duration
	retries      int
	measure      *metric.Measure
}

// Option configures a threader.
type Option func(*Threader)

// WithQueue sets cache capacity.
func WithQueue(n int) Option {
	return func(t *Threader) {
		t.Attributes().SetInt(QueueKey, n)
	}
}

// WithSyncInterval sets how often worker refreshes the length of the
// sub-graph.
func WithSyncInterval(d time.Duration) Option {
	return func(t *Threader) {
		t.syncInterval = d
	}
}

// WithTimeout sets how long the caller waits for a frame before an empty
// frame is served.
func WithTimeout(d time.Duration) Option {
	return func(t *Threader) {
		t.timeout = d
	}
}

// WithRetries sets how many times worker attempts a failing fetch.
func WithRetries(n int) Option {
	return func(t *Threader) {
		if n < 1 {
			n = 1
		}
		t.retries = n
	}
}

// WithLogger sets logger.
func WithLogger(l log.Logger) Option {
	return func(t *Threader) {
		t.SetLogger(l)
	}
}

// WithMetric enables counters.
func WithMetric() Option {
	return func(t *Threader) {
		t.measure = metric.Meter(t)
	}
}

// New returns a dead threader with one slot.
func New(options ...Option) *Threader {
	t := &Threader{
		Base:         montage.NewBase("threader", 1),
		cache:        make(map[int]*montage.Frame),
		lastPosition: -1,
		speed:        1,
		arrived:      make(chan struct{}),
		syncInterval: defaultSyncInterval,
		timeout:      defaultTimeout,
		retries:      defaultRetries,
	}
	t.announced.Store(-1)
	t.Attributes().
		Declare(ActiveKey, attr.IntValue(int(state.Dead))).
		Declare(QueueKey, attr.IntValue(defaultQueue)).
		Declare(AudioDirectionKey, attr.IntValue(1))
	for _, option := range options {
		option(t)
	}
	t.Attributes().Subscribe(ActiveKey, t.updateActive)
	return t
}

// updateActive drives the state machine from the active attribute.
func (t *Threader) updateActive(key string, v attr.Value) {
	i, _ := v.Int()
	if int64(i) == t.announced.Load() {
		return
	}
	s := state.State(i)
	if !s.Valid() {
		t.Log().Warnf("invalid %s value %d", key, i)
		return
	}
	if err := t.transition(s); err != nil {
		t.mu.Lock()
		t.pending = err
		t.mu.Unlock()
	}
}

// Start starts the worker.
func (t *Threader) Start() error {
	return t.transition(state.Running)
}

// Pause pauses the worker.
func (t *Threader) Pause() error {
	return t.transition(state.Paused)
}

// Stop stops the worker and waits for it to exit.
func (t *Threader) Stop() error {
	return t.transition(state.Dead)
}

// Close stops the worker. Threader can't be used after it's closed.
func (t *Threader) Close() error {
	return t.Stop()
}

// State returns current state of the worker.
func (t *Threader) State() state.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == nil {
		return state.Dead
	}
	return t.handle.State()
}

func (t *Threader) transition(target state.State) error {
	t.ctl.Lock()
	defer t.ctl.Unlock()

	t.mu.Lock()
	t.reap()
	current := state.Dead
	if t.handle != nil {
		current = t.handle.State()
	}
	if current == target {
		t.mu.Unlock()
		return nil
	}
	h := t.handle
	if h == nil {
		if t.Base.Slot(0) == nil {
			t.mu.Unlock()
			return errors.Wrap(montage.ErrNotConnected, "threader")
		}
		h = state.Start(t.step, t.syncInterval)
		t.handle = h
	}
	// sub-graph is touched only while worker doesn't own it
	if target == state.Running {
		t.clear()
	}
	t.mu.Unlock()

	t.Log().Debugf("%v to %v", current, target)
	err := h.Request(state.EventOf(target))

	t.mu.Lock()
	defer t.mu.Unlock()
	if target == state.Dead && t.handle == h {
		t.handle = nil
	}
	if target != state.Running {
		t.clear()
	}
	if err != nil {
		t.reap()
		t.pending = nil
		return err
	}
	t.setActive(target)
	return nil
}

// setActive updates the active attribute without triggering transitions.
// Concurrent writes of other values are still applied.
func (t *Threader) setActive(s state.State) {
	t.announced.Store(int64(s))
	t.Attributes().SetInt(ActiveKey, int(s))
	t.announced.Store(-1)
}

// reap collects a dead worker and keeps its error pending. Frames cached
// by the worker are dropped.
func (t *Threader) reap() {
	h := t.handle
	if h == nil || h.State() != state.Dead {
		return
	}
	<-h.Done()
	t.handle = nil
	if err := h.Err(); err != nil {
		t.Log().Errorf("worker failed: %v", err)
		t.pending = err
	}
	t.setActive(state.Dead)
	t.clear()
}

// takePending returns and clears the error of the last failed worker.
func (t *Threader) takePending() error {
	t.reap()
	err := t.pending
	t.pending = nil
	return err
}

// running reports whether worker owns the sub-graph.
func (t *Threader) running() bool {
	return t.handle != nil && t.handle.State() == state.Running
}

// clear drops cached frames. In-flight fetches of the worker are discarded.
func (t *Threader) clear() {
	t.measure.Evict(len(t.cache))
	t.cache = make(map[int]*montage.Frame)
	t.gen++
	t.lastFrame = nil
	if n := t.Base.Slot(0); n != nil {
		t.frames = n.Frames()
	}
	t.notify()
}

// notify wakes up callers waiting for frames.
func (t *Threader) notify() {
	close(t.arrived)
	t.arrived = make(chan struct{})
}

// Connect attaches the sub-graph. Cache is cleared.
func (t *Threader) Connect(n montage.Node, slot int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Base.Connect(n, slot); err != nil {
		return err
	}
	t.clear()
	if n == nil {
		t.frames = 0
	}
	return nil
}

// Slot returns the connected sub-graph.
func (t *Threader) Slot(slot int) montage.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Base.Slot(slot)
}

// Frames returns the last known length of the sub-graph.
func (t *Threader) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

// Sync refreshes the length. While running the worker does it instead and
// the last known length is returned.
func (t *Threader) Sync() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.takePending(); err != nil {
		return 0, err
	}
	n := t.Base.Slot(0)
	if n == nil || t.running() {
		return t.frames, nil
	}
	frames, err := n.Sync()
	if err != nil {
		return 0, err
	}
	if frames < t.frames {
		return 0, errors.Wrapf(montage.ErrShrinkingSource, "%d frames, had %d", frames, t.frames)
	}
	t.frames = frames
	return frames, nil
}

// Seek sets the position of the next fetch.
func (t *Threader) Seek(position int, relative bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if relative {
		position += t.position
	}
	if position >= t.frames {
		position = t.frames - 1
	}
	if position < 0 {
		position = 0
	}
	t.position = position
}

// Position returns the position of the next fetch.
func (t *Threader) Position() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// RequiresImage reports whether the worker is enabled.
func (t *Threader) RequiresImage() bool {
	return t.Attributes().IntOr(ActiveKey, 0) != int(state.Dead)
}

// Cached returns sorted positions currently in the cache.
func (t *Threader) Cached() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	positions := make([]int, 0, len(t.cache))
	for p := range t.cache {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions
}

// Fetch returns the frame for the current position.
func (t *Threader) Fetch() (*montage.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.takePending(); err != nil {
		return nil, err
	}
	upstream := t.Base.Slot(0)
	if upstream == nil {
		return nil, errors.Wrap(montage.ErrNotConnected, "threader")
	}
	p := t.position
	if t.frames <= 0 {
		return montage.NewFrame(p), nil
	}

	changed := p != t.lastPosition
	oldSpeed := t.speed
	if changed {
		t.speed = p - t.lastPosition
		t.lastPosition = p
	}

	var (
		frame *montage.Frame
		hit   bool
		err   error
	)
	switch {
	case !changed && t.lastFrame != nil && t.lastFrame.Position() == p:
		t.Log().Debugf("last frame repeat %d", p)
		frame, hit = t.lastFrame, true
	case t.running():
		if changed && (t.speed != oldSpeed || abs(t.speed) > scrubSpeed) {
			t.flush(p, t.speed)
		}
		t.handle.Wake()
		frame, hit, err = t.wait(upstream, p)
	default:
		if frame, hit = t.cache[p]; !hit {
			frame, err = t.direct(upstream, p)
		}
	}
	if err != nil {
		return nil, err
	}
	t.measure.Fetch(hit)
	switch {
	case frame != nil:
		t.lastFrame = frame
	case p >= t.frames:
		frame = montage.NewFrame(p)
	default:
		frame = t.placeholder(p)
	}

	result := frame.Shallow()
	t.handleAudioDirection(result)
	return result, nil
}

// direct fetches from the sub-graph on the caller's goroutine. Paused
// threader keeps the frame.
func (t *Threader) direct(upstream montage.Node, p int) (*montage.Frame, error) {
	t.Log().Debugf("requesting %d directly", p)
	start := time.Now()
	frame, err := montage.FetchAt(upstream, p)
	t.measure.Upstream(time.Since(start))
	if err != nil {
		return nil, err
	}
	frame = stamp(frame, p)
	if t.handle != nil && t.handle.State() == state.Paused {
		t.cache[p] = frame
		t.evict()
	}
	return frame, nil
}

// wait blocks until worker delivers position p. Lock is released while
// waiting. Nil frame is returned if p has no data or time is out.
func (t *Threader) wait(upstream montage.Node, p int) (*montage.Frame, bool, error) {
	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	for {
		if f, ok := t.cache[p]; ok {
			return f, true, nil
		}
		if p >= t.frames {
			// no more data will come for p
			return nil, false, nil
		}
		h := t.handle
		if h == nil || h.State() != state.Running {
			if err := t.takePending(); err != nil {
				return nil, false, err
			}
			f, err := t.direct(upstream, p)
			return f, false, err
		}
		arrived := t.arrived
		t.mu.Unlock()
		timedOut := false
		select {
		case <-arrived:
		case <-h.Done():
		case <-timer.C:
			timedOut = true
		}
		t.mu.Lock()
		if timedOut {
			t.Log().Warnf("timeout waiting for %d", p)
			return nil, false, nil
		}
	}
}

// placeholder is served when worker didn't deliver p in time: the last
// served frame with silent audio, or an empty frame. It's never repeated.
func (t *Threader) placeholder(p int) *montage.Frame {
	if t.lastFrame == nil {
		return montage.NewFrame(p)
	}
	f := t.lastFrame.Shallow()
	f.SetPosition(p)
	if a := f.Audio(); a != nil {
		f.SetAudio(montage.NewAudio(a.Format(), a.Frequency(), a.Channels(), a.Samples()))
	}
	return f
}

// handleAudioDirection reverses audio of frames served while playing
// backwards and marks them with audio_reversed.
func (t *Threader) handleAudioDirection(f *montage.Frame) {
	if t.Attributes().IntOr(AudioDirectionKey, 1) == 0 {
		return
	}
	attrs := f.Attributes()
	backwards := t.speed < 0
	if attrs.Valid(AudioReversedKey) {
		reversed := attrs.IntOr(AudioReversedKey, 0) != 0
		if reversed != backwards {
			if f.HasAudio() {
				f.SetAudio(f.Audio().Reverse())
			}
			attrs.SetInt(AudioReversedKey, boolInt(backwards))
		}
		return
	}
	if backwards && f.HasAudio() {
		f.SetAudio(f.Audio().Reverse())
	}
	attrs.SetInt(AudioReversedKey, boolInt(backwards))
}

// stamp ensures frame is not nil, carries position p and is read-only.
func stamp(f *montage.Frame, p int) *montage.Frame {
	if f == nil {
		f = montage.NewFrame(p)
	}
	f.SetPosition(p)
	f.Freeze()
	return f
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
