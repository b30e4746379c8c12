// Package compositor provides an n-ary compositing, mixing and muxing
// filter.
//
// Slot 0 holds the background. It dictates resolution and sample aspect
// ratio of the output, frames of the other slots are overlaid on it in z
// order. Overlay frames can carry:
//
//	x, y, w, h  relative geometry, 0, 0, 1, 1 by default
//	z           compositing order, 0 by default
//	mix         video mix level, 1 by default
//	mode        fill, smart, letter, pillar, native or distort
//
// Audio of all layers is mixed, including the layers hidden by others.
//
// Attributes of the compositor:
//
//	enable    0 passes slot mono through
//	slots     number of slots, 2 by default
//	track     1 means there is no background slot
//	deferred  1 attaches overlays as children instead of blending pixels
//	interp    point, approx, bilinear or bicubic scaling
package compositor

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/dudk/montage"
	"github.com/dudk/montage/attr"
	"github.com/dudk/montage/log"
	"github.com/dudk/montage/metric"
	"github.com/dudk/montage/mixer"
)

// Attribute keys of the compositor.
const (
	EnableKey      = "enable"
	SlotsKey       = "slots"
	MonoKey        = "mono"
	TrackKey       = "track"
	DeferredKey    = "deferred"
	EventsKey      = "events"
	UpdateStateKey = "update_state"
	InterpKey      = "interp"
)

// Attribute keys of overlay frames.
const (
	XKey    = "x"
	YKey    = "y"
	ZKey    = "z"
	WKey    = "w"
	HKey    = "h"
	MixKey  = "mix"
	ModeKey = "mode"
	// BackgroundKey and BackgroundSlotsKey mark output of deferred
	// compositing.
	BackgroundKey      = "background"
	BackgroundSlotsKey = "slots"
)

// consumed attributes are never relayed from overlays to the output.
var consumed = map[string]struct{}{
	XKey:               {},
	YKey:               {},
	ZKey:               {},
	WKey:               {},
	HKey:               {},
	MixKey:             {},
	ModeKey:            {},
	BackgroundKey:      {},
	BackgroundSlotsKey: {},
}

func init() {
	montage.Register("compositor", func(string) (montage.Node, error) {
		return New(), nil
	})
}

// span is the active range of a slot: in <= p < out.
type span struct {
	in, out int
}

var (
	always = span{-1, -1}
	never  = span{0, 0}
)

func (s span) contains(p int) bool {
	if s == always {
		return true
	}
	return p >= s.in && p < s.out
}

// Compositor merges frames of its slots.
type Compositor struct {
	*montage.Base
	ranges   []span
	frames   int
	priority *priorityList
	blends   int
	measure  *metric.Measure
}

// Option configures a compositor.
type Option func(*Compositor)

// WithSlots sets the number of slots.
func WithSlots(n int) Option {
	return func(c *Compositor) {
		c.Attributes().SetInt(SlotsKey, n)
	}
}

// WithLogger sets logger.
func WithLogger(l log.Logger) Option {
	return func(c *Compositor) {
		c.SetLogger(l)
	}
}

// WithMetric enables counters.
func WithMetric() Option {
	return func(c *Compositor) {
		c.measure = metric.Meter(c)
	}
}

// New returns a compositor with two slots.
func New(options ...Option) *Compositor {
	c := &Compositor{
		Base:     montage.NewBase("compositor", 2),
		priority: newPriorityList(),
	}
	c.Bind(c)
	c.Attributes().
		Declare(EnableKey, attr.IntValue(1)).
		Declare(SlotsKey, attr.IntValue(2)).
		Declare(MonoKey, attr.IntValue(0)).
		Declare(TrackKey, attr.IntValue(0)).
		Declare(DeferredKey, attr.IntValue(0)).
		Declare(EventsKey, attr.NumbersValue()).
		Declare(UpdateStateKey, attr.IntValue(0)).
		Declare(InterpKey, attr.StringValue("bilinear"))
	c.Attributes().Subscribe(SlotsKey, c.updateSlots)
	c.Attributes().Subscribe(UpdateStateKey, func(string, attr.Value) {
		c.UpdateState()
	})
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Compositor) updateSlots(key string, v attr.Value) {
	n, err := v.Int()
	if err != nil || n < 0 {
		c.Log().Warnf("invalid %s value %v", key, v)
		return
	}
	c.SetSlotCount(n)
	c.ranges = nil
}

// UpdateState rebuilds the priority index from the connected sub-graphs
// and publishes in points of the slots as events.
func (c *Compositor) UpdateState() {
	events := c.priority.register(c)
	c.Attributes().SetNumbers(EventsKey, events...)
}

// Init verifies that the background is connected and builds the active
// range table. Overlay slots may be left empty.
func (c *Compositor) Init() error {
	if !c.track() && c.Slot(0) == nil {
		return errors.Wrap(montage.ErrNotConnected, "compositor background")
	}
	c.updateRanges()
	c.frames = c.Frames()
	c.UpdateState()
	return nil
}

// Connect attaches n to slot.
func (c *Compositor) Connect(n montage.Node, slot int) error {
	if err := c.Base.Connect(n, slot); err != nil {
		return err
	}
	c.ranges = nil
	return nil
}

// Frames returns the longest length of the connected slots.
func (c *Compositor) Frames() int {
	result := 0
	for i := 0; i < c.SlotCount(); i++ {
		if n := c.Slot(i); n != nil && n.Frames() > result {
			result = n.Frames()
		}
	}
	return result
}

// Sync refreshes the slots and the active range table. Length of the
// compositor must not decrease.
func (c *Compositor) Sync() (int, error) {
	frames, err := c.Base.Sync()
	if err != nil {
		return 0, err
	}
	if frames < c.frames {
		return 0, errors.Wrapf(montage.ErrShrinkingSource, "compositor %d frames, had %d", frames, c.frames)
	}
	c.frames = frames
	c.updateRanges()
	return frames, nil
}

// Seek sets the position and issues priority requests for it.
func (c *Compositor) Seek(position int, relative bool) {
	c.Base.Seek(position, relative)
	c.priority.seek(c.Position(), c.Log())
}

// RequiresImage reports whether pixels are blended by the compositor.
func (c *Compositor) RequiresImage() bool {
	attrs := c.Attributes()
	return attrs.IntOr(EnableKey, 1) == 1 && attrs.IntOr(DeferredKey, 0) == 0
}

// Blends returns the number of overlay images blended so far.
func (c *Compositor) Blends() int {
	return c.blends
}

func (c *Compositor) track() bool {
	return c.Attributes().IntOr(TrackKey, 0) != 0
}

// updateRanges computes the active range of every slot. Slots placed with
// an offset are active from its in point to their end, other connected
// slots are always active.
func (c *Compositor) updateRanges() {
	ranges := make([]span, c.SlotCount())
	for i := range ranges {
		n := c.Slot(i)
		if n == nil {
			ranges[i] = never
			continue
		}
		in, placed := 0, false
		analyse(n, nil, &in, &placed)
		if !placed {
			ranges[i] = always
			continue
		}
		ranges[i] = span{in: in, out: n.Frames()}
	}
	c.ranges = ranges
}

func (c *Compositor) active(slot, p int) bool {
	if len(c.ranges) != c.SlotCount() {
		c.updateRanges()
	}
	return c.ranges[slot].contains(p)
}

// Fetch returns the composited frame for the current position.
func (c *Compositor) Fetch() (*montage.Frame, error) {
	p := c.Position()
	attrs := c.Attributes()
	if attrs.IntOr(EnableKey, 1) == 0 {
		return c.mono(p)
	}

	first := 1
	if c.track() {
		first = 0
	}
	var overlays []*montage.Frame
	for i := first; i < c.SlotCount(); i++ {
		n := c.Slot(i)
		if n == nil || !c.active(i, p) {
			continue
		}
		f, err := c.pull(n, p)
		if err != nil {
			return nil, errors.Wrapf(err, "slot %d", i)
		}
		if f.HasImage() || f.HasAudio() {
			overlays = append(overlays, f)
		}
	}
	sort.SliceStable(overlays, func(i, j int) bool {
		return z(overlays[i]) < z(overlays[j])
	})

	var result *montage.Frame
	promoted := false
	if !c.track() {
		if n := c.Slot(0); n != nil {
			f, err := c.pull(n, p)
			if err != nil {
				return nil, errors.Wrap(err, "background")
			}
			result = f
		}
	} else if len(overlays) > 0 {
		result, overlays = overlays[0], overlays[1:]
		promoted = true
	}
	if result == nil {
		result = montage.NewFrame(p)
	}

	audio := c.mix(result, overlays)

	if num, _ := result.SAR(); num == 0 {
		for _, o := range overlays {
			if num, den := o.SAR(); num != 0 {
				result.SetSAR(num, den)
				break
			}
		}
	}

	if top, rest := c.occlude(result, overlays); top != nil {
		relay(top, result)
		result, overlays = top, rest
		promoted = true
	}
	if promoted {
		strip(result)
	}

	if attrs.IntOr(DeferredKey, 0) != 0 {
		c.attach(result, overlays)
	} else if err := c.composite(result, overlays); err != nil {
		return nil, err
	}
	for _, o := range overlays {
		relay(result, o)
	}
	if audio != nil {
		result.SetAudio(audio)
	}
	result.SetPosition(p)
	return result, nil
}

func (c *Compositor) pull(n montage.Node, p int) (*montage.Frame, error) {
	start := time.Now()
	defer func() {
		c.measure.Upstream(time.Since(start))
	}()
	return montage.FetchAt(n, p)
}

// mono passes the frame of the mono slot through.
func (c *Compositor) mono(p int) (*montage.Frame, error) {
	n := c.Slot(c.Attributes().IntOr(MonoKey, 0))
	if n == nil {
		return montage.NewFrame(p), nil
	}
	f, err := montage.FetchAt(n, p)
	if err != nil {
		return nil, err
	}
	f.SetPosition(p)
	return f, nil
}

// mix sums audio of the background and all overlays.
func (c *Compositor) mix(background *montage.Frame, overlays []*montage.Frame) *montage.Audio {
	blocks := make([]*montage.Audio, 0, len(overlays)+1)
	blocks = append(blocks, background.Audio())
	for _, o := range overlays {
		blocks = append(blocks, o.Audio())
	}
	audio, errs := mixer.Mix(blocks...)
	for _, err := range errs {
		c.Log().Warnf("audio dropped: %v", err)
	}
	return audio
}

// occlude looks for the highest overlay that hides everything below it.
// It returns that overlay and the overlays above it.
func (c *Compositor) occlude(background *montage.Frame, overlays []*montage.Frame) (*montage.Frame, []*montage.Frame) {
	for i := len(overlays) - 1; i >= 0; i-- {
		if covers(background, overlays[i], i == len(overlays)-1) {
			c.Log().Debugf("layer %d of %d covers background", i+1, len(overlays))
			return overlays[i], overlays[i+1:]
		}
	}
	return nil, overlays
}

// covers reports whether o fully replaces the picture of background.
func covers(background, o *montage.Frame, top bool) bool {
	if !background.HasImage() || !o.HasImage() {
		return false
	}
	bg, img := background.Image(), o.Image()
	if bg.Width() != img.Width() || bg.Height() != img.Height() {
		return false
	}
	bgNum, bgDen := background.SAR()
	num, den := o.SAR()
	if bgNum != num || bgDen != den {
		return false
	}
	attrs := o.Attributes()
	if !area(attrs).full() || attrs.FloatOr(MixKey, 1) != 1 {
		return false
	}
	if !Compatible(mode(attrs), mode(background.Attributes())) {
		return false
	}
	return !img.HasAlpha() || top
}

// attach adds overlays to the result for a downstream consumer.
func (c *Compositor) attach(result *montage.Frame, overlays []*montage.Frame) {
	for _, o := range overlays {
		result.Push(o)
	}
	if len(overlays) == 0 || c.track() {
		return
	}
	attrs := result.Attributes()
	if !attrs.Valid(BackgroundKey) {
		attrs.SetInt(BackgroundKey, 1)
		attrs.SetInt(BackgroundSlotsKey, 1+len(overlays))
		return
	}
	attrs.SetInt(BackgroundSlotsKey, attrs.IntOr(BackgroundSlotsKey, 1)+len(overlays))
}

// composite blends overlay pictures onto the result back to front.
func (c *Compositor) composite(result *montage.Frame, overlays []*montage.Frame) error {
	if !result.HasImage() {
		return nil
	}
	var cv *canvas
	for _, o := range overlays {
		if !o.HasImage() {
			continue
		}
		if cv == nil {
			var err error
			if cv, err = newCanvas(result.Image(), scaler(c.Attributes().StringOr(InterpKey, "bilinear"))); err != nil {
				return errors.Wrap(err, "background")
			}
			defer cv.release()
		}
		attrs := o.Attributes()
		num, den := result.SAR()
		srcNum, srcDen := o.SAR()
		img := o.Image()
		g := place(cv.dims(num, den), dims{w: img.Width(), h: img.Height(), sarNum: srcNum, sarDen: srcDen}, area(attrs), mode(attrs))
		if err := cv.blend(img, g, attrs.FloatOr(MixKey, 1)); err != nil {
			return errors.Wrapf(err, "overlay z=%v", z(o))
		}
		c.blends++
	}
	if cv == nil {
		return nil
	}
	img, err := cv.image()
	if err != nil {
		return err
	}
	result.SetImage(img)
	if result.Attributes().IntOr(BackgroundKey, 0) == 1 {
		result.Attributes().SetInt(BackgroundKey, 0)
	}
	return nil
}

// relay copies attributes of src that compositing doesn't consume. Keys
// present on dst are kept, except for handles which are replaced.
func relay(dst, src *montage.Frame) {
	to := dst.Attributes()
	src.Attributes().Each(func(key string, v attr.Value) {
		if _, ok := consumed[key]; ok {
			return
		}
		if to.Valid(key) && v.Kind() != attr.Handle {
			return
		}
		to.Set(key, v)
	})
}

// strip removes consumed attributes of an overlay used as background.
func strip(f *montage.Frame) {
	attrs := f.Attributes()
	for key := range consumed {
		attrs.Delete(key)
	}
}

func z(f *montage.Frame) float64 {
	return f.Attributes().FloatOr(ZKey, 0)
}

func area(attrs *attr.Store) rect {
	return rect{
		x: attrs.FloatOr(XKey, 0),
		y: attrs.FloatOr(YKey, 0),
		w: attrs.FloatOr(WKey, 1),
		h: attrs.FloatOr(HKey, 1),
	}
}

func mode(attrs *attr.Store) Mode {
	return Mode(attrs.StringOr(ModeKey, string(Fill)))
}
