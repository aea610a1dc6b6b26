package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// ErrNothingToPlay is returned by Play for an empty buffer.
var ErrNothingToPlay = errors.New("no audio to play")

// PlayerState represents the current state of the engine's source.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Config contains configuration for the engine.
type Config struct {
	SampleRate   int           // output rate; buffers are resampled to it
	Channels     int           // 1 = mono
	BufferSize   time.Duration // device buffer, 0 lets oto pick
	ReadyTimeout time.Duration // how long to wait for the device
	PollInterval time.Duration // end-of-track check period
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:   24000, // speech back-end PCM rate
		Channels:     1,
		ReadyTimeout: 5 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}
}

func validateConfig(cfg Config) error {
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		return fmt.Errorf("sample rate must be between 8000 and 192000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", cfg.Channels)
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Engine plays one buffer at a time on a lazily opened output.
type Engine struct {
	cfg       Config
	newOutput OutputFactory
	now       func() time.Time
	logger    *log.Logger

	mu        sync.Mutex
	out       Output
	clock     *Clock
	suspended bool
	voice     Voice
	source    uint64 // bumped whenever a source is connected or dropped
	start     time.Duration
	duration  time.Duration
	volume    float64

	state atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutputFactory replaces the oto output, mainly for tests.
func WithOutputFactory(f OutputFactory) Option {
	return func(e *Engine) { e.newOutput = f }
}

// WithNow replaces the wall clock the output clock reads from.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine. The output is not opened until Unlock or
// the first Play.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		newOutput: NewOtoOutput,
		now:       time.Now,
		logger:    log.Default(),
		volume:    1.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.state.Store(int32(StateStopped))
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Unlock opens the output if it is not open yet. It needs to follow a user
// action on platforms that gate audio behind one.
func (e *Engine) Unlock() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unlockLocked()
}

func (e *Engine) unlockLocked() error {
	if e.out != nil {
		return nil
	}
	out, err := e.newOutput(e.cfg)
	if err != nil {
		return fmt.Errorf("failed to open audio output: %w", err)
	}
	e.out = out
	e.clock = NewClock(e.now)
	e.logger.Debug("Audio output opened", "rate", e.cfg.SampleRate, "channels", e.cfg.Channels)
	return nil
}

// Unlocked reports whether the output is open.
func (e *Engine) Unlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out != nil
}

// Play stops whatever is connected, connects buf and starts it. onEnded
// runs once, on its own goroutine, when buf finishes on its own; it does
// not run after Stop or after another Play replaces the source.
func (e *Engine) Play(buf *Buffer, onEnded func()) error {
	if buf.Frames() == 0 {
		return ErrNothingToPlay
	}
	buf = e.conform(buf)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.unlockLocked(); err != nil {
		return err
	}

	e.stopLocked()

	if e.suspended {
		if err := e.out.Resume(); err != nil {
			return fmt.Errorf("failed to resume output: %w", err)
		}
		e.clock.Resume()
		e.suspended = false
	}

	voice := e.out.NewVoice(buf.Reader())
	if voice == nil {
		return errors.New("failed to create voice")
	}
	voice.SetVolume(e.volume)

	e.source++
	e.voice = voice
	e.start = e.clock.Now()
	e.duration = buf.Duration()

	voice.Play()
	e.state.Store(int32(StatePlaying))

	go e.watch(e.source, voice, onEnded)
	return nil
}

// conform matches the buffer to the output format.
func (e *Engine) conform(buf *Buffer) *Buffer {
	if e.cfg.Channels == 1 {
		buf = buf.Mono()
	}
	return buf.Resample(e.cfg.SampleRate)
}

// watch fires onEnded when voice drains while it is still the current
// source.
func (e *Engine) watch(source uint64, voice Voice, onEnded func()) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if e.source != source {
			e.mu.Unlock()
			return
		}
		ended := !e.suspended && !voice.IsPlaying()
		if ended {
			e.source++
			e.voice = nil
			_ = voice.Close()
			e.state.Store(int32(StateStopped))
		}
		e.mu.Unlock()

		if ended {
			if onEnded != nil {
				onEnded()
			}
			return
		}
	}
}

// Pause suspends the output clock. The connected source keeps its place.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil || e.suspended {
		return nil
	}
	if err := e.out.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend output: %w", err)
	}
	e.clock.Suspend()
	e.suspended = true
	if PlayerState(e.state.Load()) == StatePlaying {
		e.state.Store(int32(StatePaused))
	}
	return nil
}

// ResumeContext resumes a suspended output clock.
func (e *Engine) ResumeContext() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.out == nil || !e.suspended {
		return nil
	}
	if err := e.out.Resume(); err != nil {
		return fmt.Errorf("failed to resume output: %w", err)
	}
	e.clock.Resume()
	e.suspended = false
	if PlayerState(e.state.Load()) == StatePaused {
		e.state.Store(int32(StatePlaying))
	}
	return nil
}

// Stop disconnects and drops the current source. Stopping with nothing
// connected does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.voice == nil {
		return
	}
	e.source++
	e.voice.Pause()
	_ = e.voice.Close()
	e.voice = nil
	e.start = 0
	e.duration = 0
	e.state.Store(int32(StateStopped))
}

// CurrentTime reads the output clock. It is zero before Unlock.
func (e *Engine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.clock == nil {
		return 0
	}
	return e.clock.Now()
}

// StartTime is the output clock reading when the current source started.
func (e *Engine) StartTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.start
}

// Duration is the length of the current source.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// State returns the current state.
func (e *Engine) State() PlayerState {
	return PlayerState(e.state.Load())
}

// Suspended reports whether the output clock is suspended.
func (e *Engine) Suspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suspended
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (e *Engine) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
	if e.voice != nil {
		e.voice.SetVolume(volume)
	}
	return nil
}
