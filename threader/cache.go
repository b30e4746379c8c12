package threader

import (
	"time"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
)

// window returns the range of positions required for playback from p at
// speed s, clipped to the known length. It spans the queue and a head
// margin ahead of it.
func (t *Threader) window(p, s int) (lo, hi int) {
	if s == 0 {
		s = 1
	}
	lo, hi = p, p+(t.ahead()-1)*s
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < 0 {
		lo = 0
	}
	if hi > t.frames-1 {
		hi = t.frames - 1
	}
	return lo, hi
}

// queue returns cache capacity.
func (t *Threader) queue() int {
	if q := t.Attributes().IntOr(QueueKey, defaultQueue); q > 0 {
		return q
	}
	return 1
}

// margin is the size of the head and the tail around the queue.
func (t *Threader) margin() int {
	return t.queue() / 4
}

// ahead is the number of positions read ahead: the queue and its head.
func (t *Threader) ahead() int {
	return t.queue() + t.margin()
}

// capacity is the window extended by a tail tolerating small jumps back.
func (t *Threader) capacity() int {
	return t.ahead() + t.margin()
}

// next returns the first position from p in direction of s that is not
// cached yet.
func (t *Threader) next(p, s int) (int, bool) {
	if s == 0 {
		s = 1
	}
	for k := 0; k < t.ahead(); k++ {
		q := p + k*s
		if q < 0 || q >= t.frames {
			break
		}
		if _, ok := t.cache[q]; !ok {
			return q, true
		}
	}
	return 0, false
}

// distance of q outside the required window, 0 if inside.
func (t *Threader) distance(q int) int {
	lo, hi := t.window(t.lastPosition, t.speed)
	switch {
	case q < lo:
		return lo - q
	case q > hi:
		return q - hi
	}
	return 0
}

// evict removes entries furthest outside the required window until the
// cache fits its capacity. Entries inside the window are never evicted.
func (t *Threader) evict() {
	evicted := 0
	for len(t.cache) > t.capacity() {
		furthest, max := 0, 0
		for q := range t.cache {
			if d := t.distance(q); d > max {
				furthest, max = q, d
			}
		}
		if max == 0 {
			break
		}
		delete(t.cache, furthest)
		evicted++
	}
	if evicted > 0 {
		t.Log().Debugf("evicted %d frames", evicted)
		t.measure.Evict(evicted)
	}
}

// flush drops entries that are not on the progression from p at speed s.
// It's called when the caller jumps.
func (t *Threader) flush(p, s int) {
	lo, hi := t.window(p, s)
	flushed := 0
	for q := range t.cache {
		if q < lo || q > hi || (s != 0 && (q-p)%s != 0) {
			delete(t.cache, q)
			flushed++
		}
	}
	t.Log().Debugf("jump to %d at speed %d, flushed %d frames", p, s, flushed)
	t.measure.Evict(flushed)
}

// step is the work function of the worker. It fetches one frame per call.
func (t *Threader) step() (bool, error) {
	t.mu.Lock()
	upstream := t.Base.Slot(0)
	if upstream == nil {
		t.mu.Unlock()
		return true, nil
	}

	if time.Since(t.lastSync) >= t.syncInterval {
		known := t.frames
		t.mu.Unlock()
		frames, err := upstream.Sync()
		if err != nil {
			return false, errors.Wrap(err, "sync")
		}
		if frames < known {
			return false, errors.Wrapf(montage.ErrShrinkingSource, "%d frames, had %d", frames, known)
		}
		t.mu.Lock()
		t.lastSync = time.Now()
		if frames != t.frames {
			t.frames = frames
			t.notify()
		}
	}

	p, s := t.lastPosition, t.speed
	if p < 0 {
		p = t.position
	}
	target, ok := t.next(p, s)
	if !ok {
		t.mu.Unlock()
		return true, nil
	}
	gen := t.gen
	t.mu.Unlock()

	var (
		frame *montage.Frame
		err   error
	)
	start := time.Now()
	for attempt := 1; attempt <= t.retries; attempt++ {
		if frame, err = montage.FetchAt(upstream, target); err == nil {
			break
		}
		t.Log().Debugf("fetch %d attempt %d: %v", target, attempt, err)
	}
	t.measure.Upstream(time.Since(start))
	if err != nil {
		return false, errors.Wrapf(err, "fetch %d", target)
	}
	frame = stamp(frame, target)

	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false, nil
	}
	lo, hi := t.window(t.lastPosition, t.speed)
	if t.lastPosition < 0 {
		lo, hi = t.window(t.position, t.speed)
	}
	if target < lo || target > hi {
		t.Log().Debugf("dropping %d outside %d..%d", target, lo, hi)
		return false, nil
	}
	t.cache[target] = frame
	t.evict()
	t.notify()
	return false, nil
}
