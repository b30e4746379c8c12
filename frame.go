package montage

import (
	"github.com/dudk/montage/attr"
)

// Frame is the unit of media exchanged between nodes. Payloads are shared
// between duplicates, attributes are not.
type Frame struct {
	position int
	image    *Image
	audio    *Audio
	stream   *Stream
	fpsNum   int
	fpsDen   int
	sarNum   int
	sarDen   int
	duration float64
	pts      float64
	attrs    *attr.Store
	children []*Frame
}

// NewFrame returns an empty frame at position p with 25 fps.
func NewFrame(p int) *Frame {
	return &Frame{
		position: p,
		fpsNum:   25,
		fpsDen:   1,
		attrs:    attr.New(),
	}
}

// Position returns the position frame was produced for.
func (f *Frame) Position() int {
	return f.position
}

// SetPosition restamps a frame pulled from elsewhere.
func (f *Frame) SetPosition(p int) {
	f.position = p
}

// Image returns the image payload or nil.
func (f *Frame) Image() *Image {
	return f.image
}

// SetImage replaces the image payload. The frame takes the image SAR when
// the image declares one.
func (f *Frame) SetImage(img *Image) {
	f.image = img
	if img != nil {
		if num, den := img.SAR(); num > 0 && den > 0 {
			f.sarNum, f.sarDen = num, den
		}
	}
}

// Audio returns the audio payload or nil.
func (f *Frame) Audio() *Audio {
	return f.audio
}

// SetAudio replaces the audio payload.
func (f *Frame) SetAudio(a *Audio) {
	f.audio = a
}

// Stream returns the encoded packet or nil.
func (f *Frame) Stream() *Stream {
	return f.stream
}

// SetStream attaches an encoded packet.
func (f *Frame) SetStream(s *Stream) {
	f.stream = s
}

// HasImage reports whether the frame carries an image.
func (f *Frame) HasImage() bool {
	return f != nil && f.image != nil
}

// HasAudio reports whether the frame carries audio.
func (f *Frame) HasAudio() bool {
	return f != nil && f.audio != nil
}

// Empty reports whether the frame carries no payload at all.
func (f *Frame) Empty() bool {
	return f == nil || (f.image == nil && f.audio == nil && f.stream == nil)
}

// FPS returns frame rate.
func (f *Frame) FPS() (num, den int) {
	return f.fpsNum, f.fpsDen
}

// SetFPS sets frame rate.
func (f *Frame) SetFPS(num, den int) {
	f.fpsNum, f.fpsDen = num, den
}

// SAR returns sample aspect ratio. 0/0 means unknown.
func (f *Frame) SAR() (num, den int) {
	return f.sarNum, f.sarDen
}

// SetSAR sets sample aspect ratio.
func (f *Frame) SetSAR(num, den int) {
	f.sarNum, f.sarDen = num, den
}

// Duration returns frame duration in seconds.
func (f *Frame) Duration() float64 {
	return f.duration
}

// SetDuration sets frame duration in seconds.
func (f *Frame) SetDuration(d float64) {
	f.duration = d
}

// PTS returns presentation time stamp in seconds.
func (f *Frame) PTS() float64 {
	return f.pts
}

// SetPTS sets presentation time stamp in seconds.
func (f *Frame) SetPTS(pts float64) {
	f.pts = pts
}

// Attributes returns the attributes of this frame.
func (f *Frame) Attributes() *attr.Store {
	return f.attrs
}

// Children returns frames attached by deferred compositing.
func (f *Frame) Children() []*Frame {
	return f.children
}

// Push appends a child frame.
func (f *Frame) Push(child *Frame) {
	f.children = append(f.children, child)
}

// Pop removes and returns the last child. Nil is returned if there are none.
func (f *Frame) Pop() *Frame {
	if len(f.children) == 0 {
		return nil
	}
	last := f.children[len(f.children)-1]
	f.children = f.children[:len(f.children)-1]
	return last
}

// Unfold returns this frame followed by all descendants, depth first.
// Children of the returned frames are detached.
func (f *Frame) Unfold() []*Frame {
	result := []*Frame{}
	var walk func(*Frame)
	walk = func(fr *Frame) {
		children := fr.children
		fr.children = nil
		result = append(result, fr)
		for _, c := range children {
			walk(c)
		}
	}
	walk(f)
	return result
}

// Fold attaches frames[1:] as children of frames[0] and returns it.
func Fold(frames []*Frame) *Frame {
	if len(frames) == 0 {
		return nil
	}
	head := frames[0]
	for _, c := range frames[1:] {
		head.Push(c)
	}
	return head
}

// Freeze marks payloads read-only. Frames handed to other goroutines or
// duplicated must be frozen.
func (f *Frame) Freeze() {
	if f.image != nil {
		f.image.Freeze()
	}
	if f.audio != nil {
		f.audio.Freeze()
	}
	for _, c := range f.children {
		c.Freeze()
	}
}

// Shallow returns a copy that shares payloads and owns a copy of the
// attributes. Payloads become read-only.
func (f *Frame) Shallow() *Frame {
	f.Freeze()
	c := *f
	c.attrs = f.attrs.Clone()
	if f.children != nil {
		c.children = make([]*Frame, len(f.children))
		for i, child := range f.children {
			c.children[i] = child.Shallow()
		}
	}
	return &c
}

// Deep returns a copy detached from the source that produced it: encoded
// packets are dropped, decoded payloads are still shared read-only.
func (f *Frame) Deep() *Frame {
	c := f.Shallow()
	c.stream = nil
	for i, child := range c.children {
		c.children[i] = child.Deep()
	}
	return c
}

// MutableImage returns an image the caller may write to, cloning the
// payload if it is shared.
func (f *Frame) MutableImage() *Image {
	if f.image != nil && f.image.Frozen() {
		f.image = f.image.Clone()
	}
	return f.image
}

// MutableAudio returns audio the caller may write to, cloning the payload if
// it is shared.
func (f *Frame) MutableAudio() *Audio {
	if f.audio != nil && f.audio.Frozen() {
		f.audio = f.audio.Clone()
	}
	return f.audio
}
