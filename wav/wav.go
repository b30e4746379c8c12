// Package wav reads and writes wav files.
package wav

import (
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/signal"
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when file is not a valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
	// ErrFormatChanged is returned when pushed audio doesn't match the
	// format of the file being written.
	ErrFormatChanged = errors.New("audio format changed")
)

// Attribute keys.
const (
	FPSNumKey = "fps_num"
	FPSDenKey = "fps_den"
)

func init() {
	montage.Register("wav", func(resource string) (montage.Node, error) {
		return NewInput(resource), nil
	})
}

// Input serves audio of a wav file split into frames. File is decoded at
// Init.
type Input struct {
	*montage.Base
	path  string
	audio *montage.Audio
}

// NewInput returns an input for the file at path.
func NewInput(path string) *Input {
	in := &Input{
		Base: montage.NewBase("wav:"+path, 0),
		path: path,
	}
	in.Bind(in)
	in.Attributes().
		Declare(FPSNumKey, attr.IntValue(25)).
		Declare(FPSDenKey, attr.IntValue(1))
	return in
}

// Init decodes the file.
func (in *Input) Init() error {
	if in.audio != nil {
		return nil
	}
	file, err := os.Open(in.path)
	if err != nil {
		return errors.Wrap(err, "wav")
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return errors.Wrap(ErrInvalidFile, in.path)
	}
	if !supported(signal.BitDepth(decoder.BitDepth)) {
		return errors.Wrapf(ErrUnsupportedBitDepth, "%s has %d bits", in.path, decoder.BitDepth)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return errors.Wrapf(err, "decode %s", in.path)
	}
	in.audio = montage.AudioFromBuffer(buf)
	in.audio.Freeze()
	in.Log().Debugf("%d samples at %d Hz, %d channels", in.audio.Samples(), in.audio.Frequency(), in.audio.Channels())
	return nil
}

func (in *Input) fps() (int, int) {
	attrs := in.Attributes()
	return attrs.IntOr(FPSNumKey, 25), attrs.IntOr(FPSDenKey, 1)
}

// Frames returns the number of frames needed to carry the file.
func (in *Input) Frames() int {
	if in.audio == nil {
		return 0
	}
	num, den := in.fps()
	return signal.FramesOf(int64(in.audio.Samples()), in.audio.Frequency(), num, den)
}

// Fetch returns audio of the current position.
func (in *Input) Fetch() (*montage.Frame, error) {
	if err := in.Init(); err != nil {
		return nil, err
	}
	p := in.Position()
	num, den := in.fps()
	f := montage.NewFrame(p)
	f.SetFPS(num, den)

	frequency := in.audio.Frequency()
	start := signal.FrameOffset(p, frequency, num, den)
	end := signal.FrameOffset(p+1, frequency, num, den)
	data := in.audio.Data().Slice(int(start), int(end-start))
	if data == nil {
		return f, nil
	}
	f.SetAudio(montage.AudioFrom(in.audio.Format(), frequency, data))
	f.SetPTS(float64(start) / float64(frequency))
	f.SetDuration(float64(data.Size()) / float64(frequency))
	return f, nil
}

// Store writes audio of pushed frames. Format of the file is taken from
// the first frame with audio.
type Store struct {
	path     string
	bitDepth signal.BitDepth
	file     *os.File
	encoder  *wav.Encoder
	buffer   *audio.IntBuffer
	samples  int64
	log      log.Logger
}

// NewStore creates new wav store.
func NewStore(path string, bitDepth signal.BitDepth) (*Store, error) {
	if !supported(bitDepth) {
		return nil, errors.Wrapf(ErrUnsupportedBitDepth, "%d bits", bitDepth)
	}
	return &Store{
		path:     path,
		bitDepth: bitDepth,
		log:      log.Node(log.GetLogger(), "wav:"+path, montage.NewUID()),
	}, nil
}

// Push encodes audio of the frame. Frames without audio are skipped.
func (s *Store) Push(f *montage.Frame) error {
	if !f.HasAudio() || f.Audio().Channels() == 0 {
		return nil
	}
	a := f.Audio()
	if s.encoder == nil {
		file, err := os.Create(s.path)
		if err != nil {
			return errors.Wrap(err, "wav")
		}
		s.file = file
		s.encoder = wav.NewEncoder(file, a.Frequency(), int(s.bitDepth), a.Channels(), 1)
		s.buffer = &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: a.Channels(),
				SampleRate:  a.Frequency(),
			},
			SourceBitDepth: int(s.bitDepth),
		}
	}
	if a.Frequency() != s.buffer.Format.SampleRate || a.Channels() != s.buffer.Format.NumChannels {
		return errors.Wrapf(ErrFormatChanged, "frame %d: %d Hz %d channels, writing %d Hz %d channels",
			f.Position(), a.Frequency(), a.Channels(), s.buffer.Format.SampleRate, s.buffer.Format.NumChannels)
	}
	s.buffer.Data = a.Data().AsInterInt(s.bitDepth)
	if err := s.encoder.Write(s.buffer); err != nil {
		return errors.Wrapf(err, "frame %d", f.Position())
	}
	s.samples += int64(a.Samples())
	return nil
}

// Flush has nothing to return, samples are written as they're pushed.
func (s *Store) Flush() (*montage.Frame, error) {
	return nil, nil
}

// Complete finalizes the header and closes the file.
func (s *Store) Complete() error {
	if s.encoder == nil {
		return nil
	}
	s.log.Debugf("wrote %d samples", s.samples)
	err := s.encoder.Close()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.encoder, s.file = nil, nil
	return err
}

// Samples returns number of samples written per channel.
func (s *Store) Samples() int64 {
	return s.samples
}

func supported(bitDepth signal.BitDepth) bool {
	switch bitDepth {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}
