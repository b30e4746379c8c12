// Package signal provides the sample buffers carried by audio payloads. It allows to:
// 	- convert interleaved int data to non-interleaved floats and back
//	- slice, clone, reverse and append non-interleaved buffers
package signal

import (
	"math"
	"time"
)

// Float64 is a non-interleaved float64 signal. First dimension is channels.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// SamplesPerFrame returns the number of samples a frame at fps num/den
// carries at sample rate.
func SamplesPerFrame(sampleRate, fpsNum, fpsDen int) int {
	if fpsNum <= 0 || fpsDen <= 0 {
		return 0
	}
	return int(math.Round(float64(sampleRate) * float64(fpsDen) / float64(fpsNum)))
}

// FrameOffset returns the index of the first sample of frame p at fps
// num/den. Frames of 48000 Hz audio at 30000/1001 fps alternate between
// 1601 and 1602 samples.
func FrameOffset(p, sampleRate, fpsNum, fpsDen int) int64 {
	if fpsNum <= 0 || fpsDen <= 0 {
		return 0
	}
	return int64(p) * int64(sampleRate) * int64(fpsDen) / int64(fpsNum)
}

// FramesOf returns the number of frames needed to carry samples.
func FramesOf(samples int64, sampleRate, fpsNum, fpsDen int) int {
	if sampleRate <= 0 || fpsDen <= 0 || samples <= 0 {
		return 0
	}
	per := int64(sampleRate) * int64(fpsDen)
	return int((samples*int64(fpsNum) + per - 1) / per)
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	devider := float64(ints.BitDepth.devider())

	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / devider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := float64(bitDepth.multiplier())

	ints := make([]int, len(floats[0])*numChannels)

	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(clamp(floats[j][i]) * multiplier)
		}
	}
	return ints
}

// EmptyFloat64 returns a silent buffer of specified dimensions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single channel.
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Append buffers set to existing one.
// New buffer is returned if floats is nil.
func (floats Float64) Append(source Float64) Float64 {
	if floats == nil {
		floats = make([][]float64, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float64, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}

// Slice creates a new copy of buffer from start position with defined length.
// If buffer doesn't have enough samples - shorten block is returned.
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (floats Float64) Slice(start int, len int) Float64 {
	if floats == nil || start >= floats.Size() || start < 0 {
		return nil
	}
	end := start + len
	if end > floats.Size() {
		end = floats.Size()
	}
	result := make([][]float64, floats.NumChannels())
	for i := range floats {
		result[i] = append(result[i], floats[i][start:end]...)
	}
	return result
}

// Clone returns a deep copy of the buffer.
func (floats Float64) Clone() Float64 {
	if floats == nil {
		return nil
	}
	result := make([][]float64, len(floats))
	for i := range floats {
		result[i] = make([]float64, len(floats[i]))
		copy(result[i], floats[i])
	}
	return result
}

// Reverse returns a copy of the buffer with samples in reverse order.
func (floats Float64) Reverse() Float64 {
	if floats == nil {
		return nil
	}
	result := make([][]float64, len(floats))
	for i := range floats {
		n := len(floats[i])
		result[i] = make([]float64, n)
		for j := range floats[i] {
			result[i][n-1-j] = floats[i][j]
		}
	}
	return result
}

// Resample converts the buffer from one sample rate to another with linear
// interpolation. Nil is returned if either rate is not positive.
func (floats Float64) Resample(from, to int) Float64 {
	if floats == nil || from <= 0 || to <= 0 {
		return nil
	}
	if from == to {
		return floats.Clone()
	}
	size := int(int64(floats.Size()) * int64(to) / int64(from))
	result := EmptyFloat64(floats.NumChannels(), size)
	ratio := float64(from) / float64(to)
	for c, in := range floats {
		if len(in) == 0 {
			continue
		}
		for i := range result[c] {
			pos := float64(i) * ratio
			j := int(pos)
			if j >= len(in)-1 {
				result[c][i] = in[len(in)-1]
				continue
			}
			result[c][i] = in[j] + (in[j+1]-in[j])*(pos-float64(j))
		}
	}
	return result
}

// AsInterleaved returns samples interleaved by channel.
func (floats Float64) AsInterleaved() []float64 {
	numChannels := floats.NumChannels()
	if numChannels == 0 {
		return nil
	}
	result := make([]float64, floats.Size()*numChannels)
	for j := range floats {
		for i, v := range floats[j] {
			result[i*numChannels+j] = v
		}
	}
	return result
}

// FromInterleaved splits interleaved samples into channels.
func FromInterleaved(data []float64, numChannels int) Float64 {
	if numChannels <= 0 || len(data) == 0 {
		return nil
	}
	size := len(data) / numChannels
	result := EmptyFloat64(numChannels, size)
	for i := 0; i < size; i++ {
		for j := 0; j < numChannels; j++ {
			result[j][i] = data[i*numChannels+j]
		}
	}
	return result
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
