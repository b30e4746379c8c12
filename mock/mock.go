// Package mock provides deterministic nodes for tests.
package mock

import (
	"sync"
	"time"

	"github.com/dudk/montage"
	"github.com/dudk/montage/signal"
)

const (
	defaultFrequency = 48000
	defaultChannels  = 2
)

// Source is an input with counters. Frame at position p carries an image
// with every byte set to Value+p and audio with every sample set to Level.
// It's safe to use from several goroutines.
type Source struct {
	*montage.Base
	mu sync.Mutex

	frames    int
	position  int
	format    montage.PixelFormat
	width     int
	height    int
	frequency int
	channels  int
	value     byte
	level     float64
	delay     time.Duration

	fetches  map[int]int
	total    int
	failures map[int]failure
}

type failure struct {
	err   error
	times int
}

// Option configures a source.
type Option func(*Source)

// WithImage sets image format and size. Zero size disables images.
func WithImage(pf montage.PixelFormat, width, height int) Option {
	return func(s *Source) {
		s.format, s.width, s.height = pf, width, height
	}
}

// WithAudio sets frequency and channels. Zero channels disable audio.
func WithAudio(frequency, channels int) Option {
	return func(s *Source) {
		s.frequency, s.channels = frequency, channels
	}
}

// WithValue sets the base byte value of images.
func WithValue(v byte) Option {
	return func(s *Source) {
		s.value = v
	}
}

// WithLevel sets the audio sample value.
func WithLevel(l float64) Option {
	return func(s *Source) {
		s.level = l
	}
}

// WithDelay makes every fetch take at least d.
func WithDelay(d time.Duration) Option {
	return func(s *Source) {
		s.delay = d
	}
}

// New returns a source of n frames with 4x4 rgb24 images and stereo audio.
func New(frames int, options ...Option) *Source {
	s := &Source{
		Base:      montage.NewBase("mock:", 0),
		frames:    frames,
		format:    montage.RGB24,
		width:     4,
		height:    4,
		frequency: defaultFrequency,
		channels:  defaultChannels,
		fetches:   make(map[int]int),
		failures:  make(map[int]failure),
	}
	for _, option := range options {
		option(s)
	}
	s.Bind(s)
	return s
}

// Frames returns current length.
func (s *Source) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// SetFrames grows or shrinks the source.
func (s *Source) SetFrames(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = n
}

// Sync returns current length.
func (s *Source) Sync() (int, error) {
	return s.Frames(), nil
}

// FailAt makes the next times fetches of position p fail with err.
func (s *Source) FailAt(p int, err error, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[p] = failure{err: err, times: times}
}

// Seek sets position. Unlike other nodes it doesn't clamp so that tests
// can observe requests past the end.
func (s *Source) Seek(position int, relative bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if relative {
		position += s.position
	}
	if position < 0 {
		position = 0
	}
	s.position = position
}

// Position returns the position set by the last seek.
func (s *Source) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Fetch returns frame for current position.
func (s *Source) Fetch() (*montage.Frame, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.position
	s.fetches[p]++
	s.total++
	if f, ok := s.failures[p]; ok && f.times > 0 {
		f.times--
		s.failures[p] = f
		return nil, f.err
	}
	frame := montage.NewFrame(p)
	if p >= s.frames {
		return frame, nil
	}
	if img := montage.NewImage(s.format, s.width, s.height); img != nil {
		for i := 0; i < img.NumPlanes(); i++ {
			data := img.Plane(i).Data
			for j := range data {
				data[j] = s.value + byte(p)
			}
		}
		frame.SetImage(img)
	}
	if s.channels > 0 {
		samples := signal.SamplesPerFrame(s.frequency, 25, 1)
		data := signal.EmptyFloat64(s.channels, samples)
		for c := range data {
			for i := range data[c] {
				data[c][i] = s.level
			}
		}
		frame.SetAudio(montage.AudioFrom(montage.PCM16, s.frequency, data))
	}
	return frame, nil
}

// Fetches returns how many times position p was fetched.
func (s *Source) Fetches(p int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[p]
}

// TotalFetches returns how many fetches were served.
func (s *Source) TotalFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Reset clears counters.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = make(map[int]int)
	s.total = 0
}
