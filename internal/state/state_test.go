package state_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/montage/internal/state"
)

const interval = 5 * time.Millisecond

type workMock struct {
	calls int64
	fail  atomic.Value
}

func (m *workMock) fn() state.WorkFunc {
	return func() (bool, error) {
		atomic.AddInt64(&m.calls, 1)
		if err, ok := m.fail.Load().(error); ok && err != nil {
			return false, err
		}
		return true, nil
	}
}

func (m *workMock) count() int64 {
	return atomic.LoadInt64(&m.calls)
}

func TestStates(t *testing.T) {
	defer goleak.VerifyNone(t)
	cases := []struct {
		events   []state.State
		expected state.State
		works    bool
	}{
		{
			events:   []state.State{state.Paused},
			expected: state.Paused,
		},
		{
			events:   []state.State{state.Running},
			expected: state.Running,
			works:    true,
		},
		{
			// repeated requests are no-op
			events:   []state.State{state.Running, state.Running},
			expected: state.Running,
			works:    true,
		},
		{
			events:   []state.State{state.Running, state.Paused, state.Running},
			expected: state.Running,
			works:    true,
		},
		{
			events:   []state.State{state.Paused, state.Paused},
			expected: state.Paused,
		},
	}

	for _, c := range cases {
		m := &workMock{}
		h := state.Start(m.fn(), interval)
		for _, s := range c.events {
			assert.Nil(t, h.Request(state.EventOf(s)))
		}
		assert.Equal(t, c.expected, h.State())
		if c.works {
			// work is called at least once per interval
			time.Sleep(4 * interval)
			assert.True(t, m.count() > 0)
		} else {
			assert.Equal(t, int64(0), m.count())
		}
		// any state can be closed
		assert.Nil(t, h.Request(state.EventOf(state.Dead)))
		assert.Equal(t, state.Dead, h.State())
		<-h.Done()
	}
}

func TestPausedDoesNoWork(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := &workMock{}
	h := state.Start(m.fn(), interval)
	assert.Nil(t, h.Request(state.EventOf(state.Running)))
	assert.Nil(t, h.Request(state.EventOf(state.Paused)))
	calls := m.count()
	time.Sleep(4 * interval)
	assert.Equal(t, calls, m.count())
	assert.Nil(t, h.Request(state.EventOf(state.Dead)))
}

func TestWake(t *testing.T) {
	defer goleak.VerifyNone(t)
	m := &workMock{}
	h := state.Start(m.fn(), time.Hour)
	assert.Nil(t, h.Request(state.EventOf(state.Running)))
	// first call happens right after start, then worker waits for wake up
	for m.count() == 0 {
		time.Sleep(time.Millisecond)
	}
	h.Wake()
	for m.count() < 2 {
		time.Sleep(time.Millisecond)
	}
	assert.Nil(t, h.Request(state.EventOf(state.Dead)))
	assert.Equal(t, state.Dead, h.State())
}

func TestWorkError(t *testing.T) {
	defer goleak.VerifyNone(t)
	failure := errors.New("upstream failure")
	m := &workMock{}
	m.fail.Store(failure)
	h := state.Start(m.fn(), interval)
	err := h.Request(state.EventOf(state.Running))
	// error may arrive before or after the acknowledgement
	if err != nil {
		assert.Equal(t, failure, err)
	}
	<-h.Done()
	assert.Equal(t, state.Dead, h.State())
	assert.Equal(t, failure, h.Err())

	// dead worker doesn't accept events
	assert.Equal(t, failure, h.Request(state.EventOf(state.Running)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "dead", state.Dead.String())
	assert.Equal(t, "running", state.Running.String())
	assert.Equal(t, "paused", state.Paused.String())
	assert.Equal(t, "unknown", state.State(7).String())
	assert.False(t, state.State(7).Valid())
}
