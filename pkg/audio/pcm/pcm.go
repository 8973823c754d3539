package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Waveform is a mono sequence of normalised samples at a fixed rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// Duration returns the playback duration of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Empty reports whether the waveform has no samples.
func (w Waveform) Empty() bool { return len(w.Samples) == 0 }

// Peak returns the largest absolute sample value.
func (w Waveform) Peak() float32 {
	var peak float32
	for _, s := range w.Samples {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// FromInt16LE converts interleaved 16-bit little-endian PCM with the given
// channel count into mono samples in [-1, 1]. Trailing partial frames are
// dropped.
func FromInt16LE(b []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	n := len(b) / 2
	interleaved := make([]float32, n)
	for i := range interleaved {
		s := int16(binary.LittleEndian.Uint16(b[i*2:]))
		interleaved[i] = float32(s) / 32768
	}
	return Downmix(interleaved, channels)
}

// FromFloat32LE converts interleaved 32-bit float little-endian PCM into mono
// samples.
func FromFloat32LE(b []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	n := len(b) / 4
	interleaved := make([]float32, n)
	for i := range interleaved {
		interleaved[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return Downmix(interleaved, channels)
}

// FromInts converts integer samples of the given bit depth into mono samples
// in [-1, 1].
func FromInts(data []int, bitDepth, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))
	interleaved := make([]float32, len(data))
	for i, v := range data {
		if bitDepth == 8 {
			// 8-bit PCM is unsigned.
			v -= 128
		}
		interleaved[i] = float32(v) / scale
	}
	return Downmix(interleaved, channels)
}

// Downmix averages interleaved channels into a single channel. A channel
// count of one returns the input unchanged.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// ToInt16 converts normalised samples to clipped 16-bit integers.
func ToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := int(s * 32767)
		if s > 1 {
			v = 32767
		} else if s < -1 {
			v = -32768
		}
		out[i] = v
	}
	return out
}
