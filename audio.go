package montage

import (
	"sync/atomic"

	"github.com/go-audio/audio"

	"github.com/dudk/montage/signal"
)

// SampleFormat tags the storage format an audio block originates from.
type SampleFormat string

// Supported sample formats.
const (
	PCM16 SampleFormat = "pcm16"
	PCM24 SampleFormat = "pcm24"
	PCM32 SampleFormat = "pcm32"
	Float SampleFormat = "float"
)

// BitDepth returns the integer bit depth of the format. Float reports 32.
func (sf SampleFormat) BitDepth() signal.BitDepth {
	switch sf {
	case PCM16:
		return signal.BitDepth16
	case PCM24:
		return signal.BitDepth24
	}
	return signal.BitDepth32
}

// Audio is a block of samples. Data is kept non-interleaved in float64
// regardless of the sample format. Frozen blocks must not be modified.
type Audio struct {
	format    SampleFormat
	frequency int
	data      signal.Float64
	frozen    atomic.Bool
}

// NewAudio returns a silent block.
func NewAudio(sf SampleFormat, frequency, channels, samples int) *Audio {
	return &Audio{
		format:    sf,
		frequency: frequency,
		data:      signal.EmptyFloat64(channels, samples),
	}
}

// AudioFrom wraps existing samples. The block takes ownership of data.
func AudioFrom(sf SampleFormat, frequency int, data signal.Float64) *Audio {
	return &Audio{
		format:    sf,
		frequency: frequency,
		data:      data,
	}
}

// AudioFromBuffer converts a go-audio buffer.
func AudioFromBuffer(b audio.Buffer) *Audio {
	if b == nil || b.PCMFormat() == nil {
		return nil
	}
	f := b.PCMFormat()
	sf := Float
	if ib, ok := b.(*audio.IntBuffer); ok {
		switch ib.SourceBitDepth {
		case 16:
			sf = PCM16
		case 24:
			sf = PCM24
		default:
			sf = PCM32
		}
		ints := signal.InterInt{
			Data:        ib.Data,
			NumChannels: f.NumChannels,
			BitDepth:    signal.BitDepth(ib.SourceBitDepth),
		}
		return AudioFrom(sf, f.SampleRate, ints.AsFloat64())
	}
	fb := b.AsFloatBuffer()
	return AudioFrom(sf, f.SampleRate, signal.FromInterleaved(fb.Data, f.NumChannels))
}

// Format returns sample format.
func (a *Audio) Format() SampleFormat {
	return a.format
}

// Frequency returns sample rate.
func (a *Audio) Frequency() int {
	return a.frequency
}

// Channels returns number of channels.
func (a *Audio) Channels() int {
	return a.data.NumChannels()
}

// Samples returns number of samples per channel.
func (a *Audio) Samples() int {
	return a.data.Size()
}

// Data returns the samples. The slice is shared: callers must not write to
// it unless they own an unfrozen block.
func (a *Audio) Data() signal.Float64 {
	return a.data
}

// Freeze marks the block read-only.
func (a *Audio) Freeze() {
	a.frozen.Store(true)
}

// Frozen reports whether the block is read-only.
func (a *Audio) Frozen() bool {
	return a.frozen.Load()
}

// Clone returns a writable deep copy.
func (a *Audio) Clone() *Audio {
	return AudioFrom(a.format, a.frequency, a.data.Clone())
}

// Reverse returns a writable copy with samples in reverse order.
func (a *Audio) Reverse() *Audio {
	return AudioFrom(a.format, a.frequency, a.data.Reverse())
}

// AsBuffer returns interleaved samples as go-audio buffer.
func (a *Audio) AsBuffer() *audio.FloatBuffer {
	return &audio.FloatBuffer{
		Format: &audio.Format{
			NumChannels: a.Channels(),
			SampleRate:  a.frequency,
		},
		Data: a.data.AsInterleaved(),
	}
}

// AsIntBuffer returns interleaved samples scaled to the format bit depth.
func (a *Audio) AsIntBuffer() *audio.IntBuffer {
	bd := a.format.BitDepth()
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: a.Channels(),
			SampleRate:  a.frequency,
		},
		Data:           a.data.AsInterInt(bd),
		SourceBitDepth: int(bd),
	}
}
