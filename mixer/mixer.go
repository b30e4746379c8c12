// Package mixer sums audio blocks of several layers into one.
package mixer

import (
	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/signal"
)

// ErrFrequencyMismatch is returned when a block can't be converted to the
// mix sample rate.
var ErrFrequencyMismatch = errors.New("frequency mismatch")

// Mixer accumulates blocks additively. The first added block defines
// format, frequency, channels and length of the result. Later blocks are
// resampled to the mix frequency. Narrower blocks are spread over all
// channels, channels of wider blocks are folded onto the mix channels.
// Samples beyond the mix length are dropped, shorter blocks are mixed as
// far as they go.
type Mixer struct {
	format    montage.SampleFormat
	frequency int
	base      *montage.Audio
	sum       signal.Float64
	inputs    int
}

// New returns an empty mixer.
func New() *Mixer {
	return &Mixer{}
}

// Inputs returns number of mixed blocks.
func (m *Mixer) Inputs() int {
	return m.inputs
}

// Add mixes a block in. Nil blocks are ignored.
func (m *Mixer) Add(a *montage.Audio) error {
	if a == nil {
		return nil
	}
	if m.inputs == 0 {
		m.format = a.Format()
		m.frequency = a.Frequency()
		m.base = a
		m.inputs++
		return nil
	}
	if a.Frequency() <= 0 {
		return errors.Wrapf(ErrFrequencyMismatch, "got %d, mixing at %d", a.Frequency(), m.frequency)
	}
	if m.sum == nil {
		m.sum = m.base.Data().Clone()
	}
	data := a.Data()
	if a.Frequency() != m.frequency {
		data = data.Resample(a.Frequency(), m.frequency)
	}
	channels := len(m.sum)
	if channels > 0 && len(data) > 0 {
		n := channels
		if len(data) > n {
			n = len(data)
		}
		for c := 0; c < n; c++ {
			dst, src := m.sum[c%channels], data[c%len(data)]
			for i := 0; i < len(dst) && i < len(src); i++ {
				dst[i] += src[i]
			}
		}
	}
	m.inputs++
	return nil
}

// Audio returns the mix clamped to [-1, 1]. A single input is returned as
// is. Nil is returned if nothing was added.
func (m *Mixer) Audio() *montage.Audio {
	switch {
	case m.inputs == 0:
		return nil
	case m.sum == nil:
		return m.base
	}
	result := m.sum.Clone()
	for c := range result {
		for i, v := range result[c] {
			switch {
			case v > 1:
				result[c][i] = 1
			case v < -1:
				result[c][i] = -1
			}
		}
	}
	return montage.AudioFrom(m.format, m.frequency, result)
}

// Mix sums blocks. Blocks with invalid frequency are skipped and reported in
// the returned error slice.
func Mix(blocks ...*montage.Audio) (*montage.Audio, []error) {
	m := New()
	var errs []error
	for _, b := range blocks {
		if err := m.Add(b); err != nil {
			errs = append(errs, err)
		}
	}
	return m.Audio(), errs
}
