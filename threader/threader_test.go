package threader_test

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/internal/state"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/mock"
	"github.com/dudk/montage/threader"
)

func newThreader(t *testing.T, src montage.Node, options ...threader.Option) *threader.Threader {
	options = append([]threader.Option{threader.WithLogger(log.Silent())}, options...)
	th := threader.New(options...)
	assert.Nil(t, th.Connect(src, 0))
	assert.Nil(t, th.Init())
	return th
}

// waitFor polls the condition for up to a second.
func waitFor(condition func() bool) bool {
	for i := 0; i < 1000; i++ {
		if condition() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestSequential(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(100)
	th := newThreader(t, src, threader.WithQueue(10), threader.WithMetric())
	assert.Nil(t, th.Start())
	assert.Equal(t, 100, th.Frames())

	for p := 0; p < 100; p++ {
		f, err := montage.FetchAt(th, p)
		assert.Nil(t, err)
		assert.Equal(t, p, f.Position())
		assert.True(t, f.HasImage())
		assert.True(t, len(th.Cached()) <= 14)
	}
	for p := 0; p < 100; p++ {
		assert.Equal(t, 1, src.Fetches(p), "position %d", p)
	}
	assert.Nil(t, th.Stop())
	assert.Equal(t, state.Dead, th.State())
}

func TestJumpFlushesCache(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(100)
	th := newThreader(t, src, threader.WithQueue(10))
	assert.Nil(t, th.Start())
	for p := 0; p <= 50; p++ {
		_, err := montage.FetchAt(th, p)
		assert.Nil(t, err)
	}
	// worker reads the queue and its head ahead of 50
	assert.True(t, waitFor(func() bool {
		cached := th.Cached()
		return len(cached) > 0 && cached[len(cached)-1] == 61
	}))
	assert.NotContains(t, th.Cached(), 62)

	f, err := montage.FetchAt(th, 0)
	assert.Nil(t, err)
	assert.Equal(t, 0, f.Position())
	for _, p := range th.Cached() {
		assert.True(t, p < 10, "position %d outside window", p)
	}

	// playback continues from the new position
	for p := 1; p < 20; p++ {
		f, err := montage.FetchAt(th, p)
		assert.Nil(t, err)
		assert.Equal(t, p, f.Position())
	}
	assert.Nil(t, th.Stop())
}

func TestReversePlayback(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(100)
	th := newThreader(t, src, threader.WithQueue(10))
	assert.Nil(t, th.Start())

	for p := 99; p >= 0; p-- {
		f, err := montage.FetchAt(th, p)
		assert.Nil(t, err)
		assert.Equal(t, p, f.Position())
		assert.False(t, f.Empty(), "position %d", p)
		if p < 99 {
			assert.Equal(t, 1, f.Attributes().IntOr(threader.AudioReversedKey, -1), "position %d", p)
		}
		assert.True(t, len(th.Cached()) <= 14)
	}
	assert.Nil(t, th.Stop())

	// positions read ahead on start are fetched again after the jump to 99
	ahead := 12
	for p := 0; p < 100; p++ {
		if p < ahead {
			assert.True(t, src.Fetches(p) <= 2, "position %d", p)
			continue
		}
		assert.Equal(t, 1, src.Fetches(p), "position %d", p)
	}
}

func TestCacheCorrectness(t *testing.T) {
	defer goleak.VerifyNone(t)
	options := []mock.Option{
		mock.WithValue(3),
		mock.WithLevel(0.25),
		mock.WithImage(montage.YUV420P, 8, 4),
	}
	src := mock.New(30, options...)
	direct := mock.New(30, options...)
	th := newThreader(t, src, threader.WithQueue(5))
	assert.Nil(t, th.Start())

	for _, p := range []int{5, 5, 6, 3, 3, 29, 0, 7} {
		expected, err := montage.FetchAt(direct, p)
		assert.Nil(t, err)
		f, err := montage.FetchAt(th, p)
		assert.Nil(t, err)
		assert.Equal(t, p, f.Position())
		assert.True(t, expected.Image().Equal(f.Image()), "position %d", p)
		assert.Equal(t, expected.Audio().Data(), f.Audio().Data())
	}
	assert.Nil(t, th.Stop())
}

func TestServedFramesAreIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(10)
	th := newThreader(t, src)
	assert.Nil(t, th.Start())

	f, err := montage.FetchAt(th, 2)
	assert.Nil(t, err)
	assert.Nil(t, f.Attributes().SetInt("z", 7))
	f.MutableImage().Plane(0).Data[0] = 0xff

	again, err := montage.FetchAt(th, 2)
	assert.Nil(t, err)
	assert.False(t, again.Attributes().Valid("z"))
	assert.Equal(t, byte(2), again.Image().Plane(0).Data[0])
	assert.Nil(t, th.Stop())
}

func TestStates(t *testing.T) {
	defer goleak.VerifyNone(t)
	err := threader.New().Start()
	assert.Equal(t, montage.ErrNotConnected, errors.Cause(err))

	src := mock.New(10)
	th := newThreader(t, src)
	assert.Equal(t, state.Dead, th.State())
	assert.False(t, th.RequiresImage())

	tests := []struct {
		transition func() error
		expected   state.State
	}{
		{transition: th.Start, expected: state.Running},
		{transition: th.Start, expected: state.Running},
		{transition: th.Pause, expected: state.Paused},
		{transition: th.Pause, expected: state.Paused},
		{transition: th.Start, expected: state.Running},
		{transition: th.Stop, expected: state.Dead},
		{transition: th.Stop, expected: state.Dead},
		{transition: th.Pause, expected: state.Paused},
		{transition: th.Stop, expected: state.Dead},
	}
	for i, test := range tests {
		assert.Nil(t, test.transition(), "step %d", i)
		assert.Equal(t, test.expected, th.State(), "step %d", i)
		assert.Equal(t, int(test.expected), th.Attributes().IntOr(threader.ActiveKey, -1), "step %d", i)
	}
}

func TestActiveAttribute(t *testing.T) {
	defer goleak.VerifyNone(t)
	th := newThreader(t, mock.New(10))

	assert.Nil(t, th.Attributes().SetInt(threader.ActiveKey, int(state.Running)))
	assert.Equal(t, state.Running, th.State())
	assert.True(t, th.RequiresImage())

	assert.Nil(t, th.Attributes().SetInt(threader.ActiveKey, int(state.Paused)))
	assert.Equal(t, state.Paused, th.State())

	assert.Nil(t, th.Attributes().SetInt(threader.ActiveKey, int(state.Dead)))
	assert.Equal(t, state.Dead, th.State())
}

func TestActiveWrittenDuringTransition(t *testing.T) {
	defer goleak.VerifyNone(t)
	th := newThreader(t, mock.New(10))

	var (
		once sync.Once
		wg   sync.WaitGroup
	)
	cancel := th.Attributes().Subscribe(threader.ActiveKey, func(_ string, v attr.Value) {
		if i, _ := v.Int(); i != int(state.Running) {
			return
		}
		// another writer while Running is being announced
		once.Do(func() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				th.Attributes().SetInt(threader.ActiveKey, int(state.Paused))
			}()
			time.Sleep(20 * time.Millisecond)
		})
	})
	defer cancel()

	assert.Nil(t, th.Start())
	assert.True(t, waitFor(func() bool { return th.State() == state.Paused }))
	wg.Wait()
	assert.Equal(t, int(state.Paused), th.Attributes().IntOr(threader.ActiveKey, -1))
	assert.Nil(t, th.Stop())
}

func TestPausedFetchesDirectly(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(10)
	th := newThreader(t, src)
	assert.Nil(t, th.Pause())

	f, err := montage.FetchAt(th, 4)
	assert.Nil(t, err)
	assert.Equal(t, 4, f.Position())
	assert.Equal(t, 1, src.Fetches(4))
	assert.Equal(t, []int{4}, th.Cached())

	// resuming clears the cache
	assert.Nil(t, th.Start())
	assert.True(t, waitFor(func() bool { return src.Fetches(4) == 2 }))
	assert.Nil(t, th.Stop())
	assert.Empty(t, th.Cached())
}

func TestLastFrameRepeat(t *testing.T) {
	src := mock.New(10)
	th := newThreader(t, src)
	for i := 0; i < 3; i++ {
		f, err := montage.FetchAt(th, 6)
		assert.Nil(t, err)
		assert.Equal(t, 6, f.Position())
	}
	assert.Equal(t, 1, src.Fetches(6))
}

func TestTimeoutNotRepeated(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(10, mock.WithDelay(200*time.Millisecond), mock.WithLevel(0.5))
	th := newThreader(t, src, threader.WithTimeout(50*time.Millisecond))
	assert.Nil(t, th.Start())

	// nothing was served yet, empty frame
	f, err := montage.FetchAt(th, 0)
	assert.Nil(t, err)
	assert.Equal(t, 0, f.Position())
	assert.True(t, f.Empty())

	assert.True(t, waitFor(func() bool { return contains(th.Cached(), 0) }))
	f, err = montage.FetchAt(th, 0)
	assert.Nil(t, err)
	assert.False(t, f.Empty())
	assert.True(t, f.HasImage())

	// last frame is served with silent audio
	f, err = montage.FetchAt(th, 5)
	assert.Nil(t, err)
	assert.Equal(t, 5, f.Position())
	if assert.True(t, f.HasImage()) {
		assert.Equal(t, byte(0), f.Image().Plane(0).Data[0])
	}
	if assert.True(t, f.HasAudio()) {
		for _, channel := range f.Audio().Data() {
			for _, v := range channel {
				assert.Equal(t, 0.0, v)
			}
		}
	}

	assert.True(t, waitFor(func() bool { return contains(th.Cached(), 5) }))
	f, err = montage.FetchAt(th, 5)
	assert.Nil(t, err)
	if assert.True(t, f.HasImage()) {
		assert.Equal(t, byte(5), f.Image().Plane(0).Data[0])
	}
	assert.Equal(t, 0.5, f.Audio().Data()[0][0])
	assert.Nil(t, th.Stop())
}

func contains(positions []int, p int) bool {
	for _, v := range positions {
		if v == p {
			return true
		}
	}
	return false
}

func TestShrinkingSource(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := mock.New(20)
	th := newThreader(t, src, threader.WithSyncInterval(time.Millisecond))
	assert.Nil(t, th.Start())
	_, err := montage.FetchAt(th, 0)
	assert.Nil(t, err)

	// growth is picked up
	src.SetFrames(30)
	assert.True(t, waitFor(func() bool { return th.Frames() == 30 }))

	src.SetFrames(10)
	assert.True(t, waitFor(func() bool { return th.State() == state.Dead }))
	_, err = montage.FetchAt(th, 1)
	assert.Equal(t, montage.ErrShrinkingSource, errors.Cause(err))
	assert.Equal(t, 0, th.Attributes().IntOr(threader.ActiveKey, -1))

	// error is raised once, worker can be restarted
	assert.Nil(t, th.Start())
	f, err := montage.FetchAt(th, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, f.Position())
	assert.Equal(t, 10, th.Frames())
	assert.Nil(t, th.Stop())
}

func TestWorkerFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	failure := errors.New("decode failure")
	src := mock.New(20)
	// transient failure is retried
	src.FailAt(1, failure, 2)
	// persistent failure kills the worker
	src.FailAt(3, failure, 10)

	th := newThreader(t, src, threader.WithRetries(3))
	assert.Nil(t, th.Start())
	assert.True(t, waitFor(func() bool { return th.State() == state.Dead }))
	assert.Equal(t, 3, src.Fetches(1))

	_, err := montage.FetchAt(th, 0)
	assert.Equal(t, failure, errors.Cause(err))

	// dead threader fetches directly
	f, err := montage.FetchAt(th, 1)
	assert.Nil(t, err)
	assert.Equal(t, 1, f.Position())
}

func TestAudioDirection(t *testing.T) {
	tests := []struct {
		direction int
		positions []int
		expected  []int
	}{
		{
			direction: 1,
			positions: []int{5, 4, 3, 4},
			expected:  []int{0, 1, 1, 0},
		},
		{
			direction: 0,
			positions: []int{5, 4},
			expected:  []int{-1, -1},
		},
	}
	for _, test := range tests {
		th := newThreader(t, mock.New(10))
		assert.Nil(t, th.Attributes().SetInt(threader.AudioDirectionKey, test.direction))
		for i, p := range test.positions {
			f, err := montage.FetchAt(th, p)
			assert.Nil(t, err)
			assert.Equal(t, test.expected[i], f.Attributes().IntOr(threader.AudioReversedKey, -1))
		}
	}
}

func TestEmptyAndUnconnected(t *testing.T) {
	th := threader.New(threader.WithLogger(log.Silent()))
	_, err := th.Fetch()
	assert.Equal(t, montage.ErrNotConnected, errors.Cause(err))

	assert.Nil(t, th.Connect(mock.New(0), 0))
	f, err := th.Fetch()
	assert.Nil(t, err)
	assert.True(t, f.Empty())

	err = th.Connect(mock.New(1), 1)
	assert.Equal(t, montage.ErrSlotOutOfRange, errors.Cause(err))
}
