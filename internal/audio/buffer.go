package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// Common errors for decoding.
var (
	// ErrEmptyAudio is returned for zero-length input.
	ErrEmptyAudio = errors.New("empty audio data")

	// ErrMisalignedPCM is returned when PCM input is not a whole number of samples.
	ErrMisalignedPCM = errors.New("PCM data is not aligned to 16-bit samples")
)

// pcmScale maps signed 16-bit samples onto [-1, 1).
const pcmScale = 32768

// Buffer is decoded audio as interleaved float32 samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns how long the buffer plays.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// DecodePCM decodes signed 16-bit little-endian mono PCM at sampleRate.
func DecodePCM(data []byte, sampleRate int) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrMisalignedPCM, len(data))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / pcmScale
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate, Channels: 1}, nil
}

// Mono mixes all channels down to one by averaging.
func (b *Buffer) Mono() *Buffer {
	if b.Channels <= 1 {
		return b
	}
	frames := b.Frames()
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for ch := 0; ch < b.Channels; ch++ {
			sum += b.Samples[f*b.Channels+ch]
		}
		out[f] = sum / float32(b.Channels)
	}
	return &Buffer{Samples: out, SampleRate: b.SampleRate, Channels: 1}
}

// Resample converts the buffer to rate with linear interpolation.
func (b *Buffer) Resample(rate int) *Buffer {
	if rate <= 0 || rate == b.SampleRate || b.Frames() == 0 {
		return b
	}

	ratio := float64(rate) / float64(b.SampleRate)
	inFrames := b.Frames()
	outFrames := int(float64(inFrames) * ratio)
	out := make([]float32, outFrames*b.Channels)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		for ch := 0; ch < b.Channels; ch++ {
			if idx >= inFrames-1 {
				out[i*b.Channels+ch] = b.Samples[(inFrames-1)*b.Channels+ch]
				continue
			}
			s1 := b.Samples[idx*b.Channels+ch]
			s2 := b.Samples[(idx+1)*b.Channels+ch]
			out[i*b.Channels+ch] = s1*(1-frac) + s2*frac
		}
	}
	return &Buffer{Samples: out, SampleRate: rate, Channels: b.Channels}
}

// Reader returns the samples encoded as float32 little-endian bytes, the
// format the output context is opened with.
func (b *Buffer) Reader() io.Reader {
	data := make([]byte, len(b.Samples)*4)
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return bytes.NewReader(data)
}
