package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// Decode turns speech audio into a mono buffer at targetRate. MP3 input is
// detected by its header; anything else is read as raw 16-bit PCM at
// pcmRate.
func Decode(data []byte, pcmRate, targetRate int) (*Buffer, error) {
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	if looksLikeMP3(data) {
		buf, err := decodeMP3(data)
		if err == nil {
			return buf.Mono().Resample(targetRate), nil
		}
		// frame-sync false positive on raw PCM; fall through
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
	}

	buf, err := DecodePCM(data, pcmRate)
	if err != nil {
		return nil, err
	}
	return buf.Resample(targetRate), nil
}

func looksLikeMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// decodeMP3 decodes to interleaved stereo; go-mp3 always emits two
// 16-bit channels.
func decodeMP3(data []byte) (*Buffer, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, err
	}
	if len(pcm) < 4 {
		return nil, ErrEmptyAudio
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / pcmScale
	}
	return &Buffer{Samples: samples, SampleRate: d.SampleRate(), Channels: 2}, nil
}
