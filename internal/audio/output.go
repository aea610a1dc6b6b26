package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Output is the device side of the engine: one per process.
type Output interface {
	NewVoice(r io.Reader) Voice
	Suspend() error
	Resume() error
}

// Voice is one connected source.
type Voice interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// OutputFactory opens the Output. The engine calls it at most once.
type OutputFactory func(cfg Config) (Output, error)

// otoOutput adapts an oto context.
type otoOutput struct {
	ctx *oto.Context
}

// NewOtoOutput opens the oto context as float32 little-endian at the
// configured rate and channel count. oto allows one context per process.
func NewOtoOutput(cfg Config) (Output, error) {
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.BufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(cfg.ReadyTimeout):
		return nil, errors.New("timeout waiting for audio device")
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("audio device error: %w", err)
	}
	return &otoOutput{ctx: ctx}, nil
}

func (o *otoOutput) NewVoice(r io.Reader) Voice {
	return o.ctx.NewPlayer(r)
}

func (o *otoOutput) Suspend() error {
	return o.ctx.Suspend()
}

func (o *otoOutput) Resume() error {
	return o.ctx.Resume()
}
