// Package feed drives playback of a trend feed: which track is loaded,
// when it plays, and what happens when it ends or the listener skips.
//
// All Controller methods must be called from the Scheduler's goroutine.
// Slow work (speech synthesis, decoding) runs through Scheduler.Go and
// comes back tagged with the load's token; results for a superseded token
// are dropped.
package feed

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/audio"
	"github.com/dgnsrekt/trendcast/internal/trend"
)

// Player is the audio side of the controller.
type Player interface {
	Play(buf *audio.Buffer, onEnded func()) error
	Pause() error
	ResumeContext() error
	Stop()
	CurrentTime() time.Duration
	StartTime() time.Duration
}

// Track is a loaded item: its text and, when speech worked, its audio.
type Track struct {
	Item   trend.Item
	Text   string
	Buffer *audio.Buffer
	Cached bool
}

// Loader prepares a track for an item. On failure it still returns
// whatever text it has, with an error wrapping ErrNoAudio or
// trend.ErrNoText.
type Loader interface {
	Load(ctx context.Context, item trend.Item) (Track, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, item trend.Item) (Track, error)

// Load calls f(ctx, item).
func (f LoaderFunc) Load(ctx context.Context, item trend.Item) (Track, error) {
	return f(ctx, item)
}

// Snapshot is what a listener sees after each change.
type Snapshot struct {
	State    State
	Index    int
	Total    int
	Item     trend.Item
	Text     string
	Position time.Duration
	Duration time.Duration
	Percent  float64
	Err      *Error
	Cached   bool
}

// AudioUnavailable reports whether the track is showing text only.
func (s Snapshot) AudioUnavailable() bool {
	return s.Err != nil && s.Err.AudioUnavailable()
}

// Config contains controller settings.
type Config struct {
	ProgressInterval time.Duration // sampler period
	LoadTimeout      time.Duration // per-track load deadline
	AutoPlay         bool          // start the first track on Mount
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		ProgressInterval: 250 * time.Millisecond,
		LoadTimeout:      90 * time.Second,
	}
}

// Controller owns the playback session for one feed.
type Controller struct {
	cfg      Config
	sched    Scheduler
	player   Player
	loader   Loader
	logger   *log.Logger
	listener func(Snapshot)

	sm    *StateMachine
	items []trend.Item
	index int

	// token identifies the newest load; continuations carrying an older
	// token are discarded
	token      uint64
	autoPlay   bool
	suppressed bool
	discarded  int

	track       *Track
	err         *Error
	position    time.Duration
	duration    time.Duration
	percent     float64
	stopSampler func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithListener registers the snapshot listener. It runs on the loop.
func WithListener(fn func(Snapshot)) Option {
	return func(c *Controller) { c.listener = fn }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// NewController creates an idle controller.
func NewController(sched Scheduler, player Player, loader Loader, opts ...Option) *Controller {
	c := &Controller{
		cfg:    DefaultConfig(),
		sched:  sched,
		player: player,
		loader: loader,
		logger: log.Default(),
		sm:     NewStateMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mount replaces the feed and loads its first item.
func (c *Controller) Mount(items []trend.Item) {
	c.items = append([]trend.Item(nil), items...)
	c.index = 0
	c.suppressed = false

	if len(c.items) == 0 {
		c.teardown()
		c.err = NewError(ErrEmptyFeed, "mount", "")
		c.notify()
		return
	}
	c.load(c.cfg.AutoPlay)
}

// Unmount stops playback and drops the session.
func (c *Controller) Unmount() {
	c.teardown()
	c.items = nil
	c.index = 0
	c.notify()
}

func (c *Controller) teardown() {
	c.token++
	c.stopProgress()
	c.player.Stop()
	c.track = nil
	c.err = nil
	c.resetProgress()
	c.transition(StateIdle)
}

// Next moves to the following item, wrapping to the first.
func (c *Controller) Next() {
	c.skipTo(c.index + 1)
}

// Prev moves to the previous item, wrapping to the last.
func (c *Controller) Prev() {
	c.skipTo(c.index - 1)
}

// Select moves to item i (taken modulo the feed length).
func (c *Controller) Select(i int) {
	c.skipTo(i)
}

func (c *Controller) skipTo(i int) {
	n := len(c.items)
	if n == 0 {
		return
	}

	autoPlay := true
	switch c.sm.Current() {
	case StatePlaying:
	case StateLoading:
		autoPlay = c.autoPlay
	default:
		// skipping while stopped must not start the next track
		c.suppressed = true
	}

	c.index = ((i % n) + n) % n
	c.load(autoPlay)
}

// Toggle plays or pauses the current track.
func (c *Controller) Toggle() {
	switch c.sm.Current() {
	case StatePlaying:
		if err := c.player.Pause(); err != nil {
			c.logger.Warn("Could not pause output", "err", err)
			return
		}
		c.stopProgress()
		c.sampleProgress()
		c.transition(StatePaused)
		c.notify()

	case StatePaused:
		if err := c.player.ResumeContext(); err != nil {
			c.logger.Warn("Could not resume output", "err", err)
			return
		}
		c.transition(StatePlaying)
		c.startProgress()
		c.notify()

	case StateReady:
		c.play()

	case StateLoading:
		// explicit play request while loading wins over suppression
		c.autoPlay = true
		c.suppressed = false

	case StateIdle, StateError:
		// retry
		if len(c.items) > 0 {
			c.load(true)
		}
	}
}

// load stops the current track and starts preparing items[index].
func (c *Controller) load(autoPlay bool) {
	c.stopProgress()
	c.player.Stop()

	c.token++
	token := c.token
	item := c.items[c.index]

	c.autoPlay = autoPlay
	c.track = &Track{Item: item, Text: item.DisplayText()}
	c.err = nil
	c.resetProgress()
	c.transition(StateLoading)
	c.notify()

	timeout := c.cfg.LoadTimeout
	c.sched.Go(func() func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		track, err := c.loader.Load(ctx, item)
		return func() { c.applyLoad(token, item, track, err) }
	})
}

func (c *Controller) applyLoad(token uint64, item trend.Item, track Track, err error) {
	if token != c.token {
		c.discarded++
		c.logger.Debug("Discarding superseded load", "item", item.ID, "token", token, "current", c.token)
		return
	}

	play := c.autoPlay && !c.suppressed
	c.suppressed = false

	track.Item = item
	if track.Text == "" {
		track.Text = item.DisplayText()
	}
	c.track = &track
	c.duration = track.Buffer.Duration()

	if err == nil && track.Buffer.Frames() == 0 {
		err = ErrNoAudio
	}
	if err != nil {
		c.fail(err, "load")
		return
	}

	c.transition(StateReady)
	c.notify()

	if play {
		c.play()
	}
}

func (c *Controller) play() {
	if c.track == nil || c.track.Buffer.Frames() == 0 {
		return
	}

	token := c.token
	err := c.player.Play(c.track.Buffer, func() {
		c.sched.Post(func() { c.handleEnded(token) })
	})
	if err != nil {
		c.fail(err, "play")
		return
	}

	c.resetProgress()
	c.duration = c.track.Buffer.Duration()
	c.transition(StatePlaying)
	c.startProgress()
	c.notify()
}

// handleEnded advances after the track finishes on its own.
func (c *Controller) handleEnded(token uint64) {
	if token != c.token || c.sm.Current() != StatePlaying {
		return
	}

	c.stopProgress()
	c.position = c.duration
	c.percent = 100
	c.notify()

	c.suppressed = false
	c.index = (c.index + 1) % len(c.items)
	c.load(true)
}

func (c *Controller) fail(err error, action string) {
	c.err = NewError(err, action, c.track.Item.ID)
	c.logger.Warn("Track failed", "item", c.track.Item.ID, "action", action, "err", err)
	c.transition(StateError)
	c.notify()
}

func (c *Controller) startProgress() {
	c.stopProgress()
	c.stopSampler = c.sched.Every(c.cfg.ProgressInterval, c.sampleProgress)
}

func (c *Controller) stopProgress() {
	if c.stopSampler != nil {
		c.stopSampler()
		c.stopSampler = nil
	}
}

func (c *Controller) sampleProgress() {
	if c.sm.Current() != StatePlaying {
		return
	}
	c.position, c.percent = Progress(c.player.CurrentTime(), c.player.StartTime(), c.duration)
	c.notify()
}

func (c *Controller) resetProgress() {
	c.position = 0
	c.percent = 0
	c.duration = 0
}

func (c *Controller) transition(to State) {
	from := c.sm.Current()
	if from == to && to != StateLoading {
		return
	}
	if !c.sm.Transition(to) {
		c.logger.Debug("Ignoring transition", "from", from, "to", to, "err", ErrStateTransition)
	}
}

func (c *Controller) notify() {
	if c.listener != nil {
		c.listener(c.Snapshot())
	}
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:    c.sm.Current(),
		Index:    c.index,
		Total:    len(c.items),
		Position: c.position,
		Duration: c.duration,
		Percent:  c.percent,
		Err:      c.err,
	}
	if c.track != nil {
		s.Item = c.track.Item
		s.Text = c.track.Text
		s.Cached = c.track.Cached
	}
	return s
}

// Index returns the current track index.
func (c *Controller) Index() int { return c.index }

// State returns the current state.
func (c *Controller) State() State { return c.sm.Current() }

// Discarded returns how many superseded loads were dropped.
func (c *Controller) Discarded() int { return c.discarded }

// Progress computes elapsed time from output clock readings, clamped to
// [0, duration], and the matching percentage.
func Progress(now, start, duration time.Duration) (time.Duration, float64) {
	elapsed := now - start
	if elapsed < 0 {
		elapsed = 0
	}
	if duration <= 0 {
		return 0, 0
	}
	if elapsed > duration {
		elapsed = duration
	}
	return elapsed, float64(elapsed) / float64(duration) * 100
}
