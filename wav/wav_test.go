package wav_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/montage"
	"github.com/dudk/montage/mock"
	"github.com/dudk/montage/signal"
	"github.com/dudk/montage/wav"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth signal.BitDepth
		frames   int
		level    float64
	}{
		{bitDepth: signal.BitDepth16, frames: 3, level: 0.5},
		{bitDepth: signal.BitDepth24, frames: 2, level: -0.25},
		{bitDepth: signal.BitDepth32, frames: 1, level: 0.125},
	}
	for _, test := range tests {
		path := filepath.Join(t.TempDir(), "out.wav")
		src := mock.New(test.frames, mock.WithLevel(test.level), mock.WithAudio(48000, 2))
		store, err := wav.NewStore(path, test.bitDepth)
		assert.Nil(t, err)
		for p := 0; p < test.frames; p++ {
			f, err := montage.FetchAt(src, p)
			assert.Nil(t, err)
			assert.Nil(t, store.Push(f))
		}
		// frames without audio are skipped
		assert.Nil(t, store.Push(montage.NewFrame(test.frames)))
		assert.Equal(t, int64(test.frames*1920), store.Samples())
		assert.Nil(t, store.Complete())

		in := wav.NewInput(path)
		assert.Nil(t, in.Init())
		assert.Equal(t, test.frames, in.Frames())
		for p := 0; p < test.frames; p++ {
			f, err := montage.FetchAt(in, p)
			assert.Nil(t, err)
			assert.Equal(t, p, f.Position())
			assert.Equal(t, 1920, f.Audio().Samples())
			assert.Equal(t, 2, f.Audio().Channels())
			assert.Equal(t, 48000, f.Audio().Frequency())
			assert.InDelta(t, test.level, f.Audio().Data()[1][100], 1e-3)
		}
		// past the end
		in.Seek(test.frames+5, false)
		assert.Equal(t, test.frames-1, in.Position())
	}
}

func TestFrameRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ntsc.wav")
	src := mock.New(2, mock.WithLevel(0.1), mock.WithAudio(48000, 1))
	store, err := wav.NewStore(path, signal.BitDepth16)
	assert.Nil(t, err)
	for p := 0; p < 2; p++ {
		f, err := montage.FetchAt(src, p)
		assert.Nil(t, err)
		assert.Nil(t, store.Push(f))
	}
	assert.Nil(t, store.Complete())

	in, ok := montage.Create("wav:" + path).(*wav.Input)
	assert.True(t, ok)
	assert.Nil(t, in.Attributes().SetInt(wav.FPSNumKey, 30000))
	assert.Nil(t, in.Attributes().SetInt(wav.FPSDenKey, 1001))
	assert.Nil(t, in.Init())
	// 3840 samples at 1601.6 samples per frame
	assert.Equal(t, 3, in.Frames())
	sizes := []int{1601, 1602, 637}
	for p, size := range sizes {
		f, err := montage.FetchAt(in, p)
		assert.Nil(t, err)
		assert.Equal(t, size, f.Audio().Samples())
		num, den := f.FPS()
		assert.Equal(t, 30000, num)
		assert.Equal(t, 1001, den)
	}
}

func TestErrors(t *testing.T) {
	_, err := wav.NewStore("out.wav", signal.BitDepth8)
	assert.Equal(t, wav.ErrUnsupportedBitDepth, errors.Cause(err))

	path := filepath.Join(t.TempDir(), "bad.wav")
	assert.Nil(t, os.WriteFile(path, []byte("not a wav file"), 0644))
	err = wav.NewInput(path).Init()
	assert.Equal(t, wav.ErrInvalidFile, errors.Cause(err))

	err = wav.NewInput(filepath.Join(t.TempDir(), "missing.wav")).Init()
	assert.NotNil(t, err)

	path = filepath.Join(t.TempDir(), "changed.wav")
	store, err := wav.NewStore(path, signal.BitDepth16)
	assert.Nil(t, err)
	f := montage.NewFrame(0)
	f.SetAudio(montage.NewAudio(montage.PCM16, 48000, 2, 10))
	assert.Nil(t, store.Push(f))
	f.SetAudio(montage.NewAudio(montage.PCM16, 44100, 2, 10))
	assert.Equal(t, wav.ErrFormatChanged, errors.Cause(store.Push(f)))
	assert.Nil(t, store.Complete())
}
