package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/audio"
	"github.com/dgnsrekt/trendcast/internal/trend"
)

// manualScheduler runs nothing until the test says so.
type manualScheduler struct {
	pending []func() func()
	posted  []func()
	tickers map[int]func()
	nextID  int
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tickers: make(map[int]func())}
}

func (s *manualScheduler) Go(work func() func()) { s.pending = append(s.pending, work) }
func (s *manualScheduler) Post(fn func())        { s.posted = append(s.posted, fn) }

func (s *manualScheduler) Every(_ time.Duration, fn func()) func() {
	id := s.nextID
	s.nextID++
	s.tickers[id] = fn
	return func() { delete(s.tickers, id) }
}

// complete runs pending work i and its continuation.
func (s *manualScheduler) complete(i int) {
	work := s.pending[i]
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	if resume := work(); resume != nil {
		resume()
	}
}

func (s *manualScheduler) completeAll() {
	for len(s.pending) > 0 {
		s.complete(0)
	}
}

func (s *manualScheduler) drain() {
	for len(s.posted) > 0 {
		fn := s.posted[0]
		s.posted = s.posted[1:]
		fn()
	}
}

func (s *manualScheduler) tick() {
	for _, fn := range s.tickers {
		fn()
	}
}

type fakePlayer struct {
	plays   []*audio.Buffer
	onEnded []func()
	pauses  int
	resumes int
	stops   int
	now     time.Duration
	start   time.Duration
	playErr error
}

func (p *fakePlayer) Play(buf *audio.Buffer, onEnded func()) error {
	if p.playErr != nil {
		return p.playErr
	}
	p.plays = append(p.plays, buf)
	p.onEnded = append(p.onEnded, onEnded)
	p.start = p.now
	return nil
}

func (p *fakePlayer) Pause() error               { p.pauses++; return nil }
func (p *fakePlayer) ResumeContext() error       { p.resumes++; return nil }
func (p *fakePlayer) Stop()                      { p.stops++ }
func (p *fakePlayer) CurrentTime() time.Duration { return p.now }
func (p *fakePlayer) StartTime() time.Duration   { return p.start }

// end fires the most recent onEnded.
func (p *fakePlayer) end() {
	p.onEnded[len(p.onEnded)-1]()
}

type fakeLoader struct {
	buffers map[string]*audio.Buffer
	fail    map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{buffers: map[string]*audio.Buffer{}, fail: map[string]error{}}
}

func (l *fakeLoader) Load(_ context.Context, item trend.Item) (Track, error) {
	if err := l.fail[item.ID]; err != nil {
		return Track{Text: item.SpeechText()}, err
	}
	buf, ok := l.buffers[item.ID]
	if !ok {
		buf = &audio.Buffer{Samples: make([]float32, 24000*2), SampleRate: 24000, Channels: 1}
		l.buffers[item.ID] = buf
	}
	return Track{Text: item.SpeechText(), Buffer: buf}, nil
}

func feedItems(n int) []trend.Item {
	items := make([]trend.Item, n)
	for i := range items {
		items[i] = trend.Item{ID: fmt.Sprintf("item-%d", i), Topic: "ai", Title: "t", Script: fmt.Sprintf("script %d", i)}
	}
	return items
}

type harness struct {
	c      *Controller
	sched  *manualScheduler
	player *fakePlayer
	loader *fakeLoader
	snaps  []Snapshot
}

func newHarness(t *testing.T, autoPlay bool) *harness {
	t.Helper()
	h := &harness{sched: newManualScheduler(), player: &fakePlayer{}, loader: newFakeLoader()}
	cfg := DefaultConfig()
	cfg.AutoPlay = autoPlay
	logger := log.New(io.Discard)
	h.c = NewController(h.sched, h.player, h.loader,
		WithConfig(cfg),
		WithLogger(logger),
		WithListener(func(s Snapshot) { h.snaps = append(h.snaps, s) }),
	)
	return h
}

func (h *harness) lastPlayedID() string {
	last := h.player.plays[len(h.player.plays)-1]
	for id, buf := range h.loader.buffers {
		if buf == last {
			return id
		}
	}
	return ""
}

func TestMountLoadsFirstTrack(t *testing.T) {
	h := newHarness(t, false)
	h.c.Mount(feedItems(3))

	if h.c.State() != StateLoading {
		t.Fatalf("state = %v, want loading", h.c.State())
	}
	if snap := h.c.Snapshot(); snap.Text != "script 0" {
		t.Errorf("text while loading = %q", snap.Text)
	}

	h.sched.completeAll()
	if h.c.State() != StateReady {
		t.Errorf("state = %v, want ready", h.c.State())
	}
	if len(h.player.plays) != 0 {
		t.Error("mount without autoplay should not start playback")
	}

	h.c.Toggle()
	if h.c.State() != StatePlaying || len(h.player.plays) != 1 {
		t.Errorf("after toggle state=%v plays=%d", h.c.State(), len(h.player.plays))
	}
}

func TestNextWrapsAround(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(4))
	h.sched.completeAll()

	h.c.Select(3)
	h.sched.completeAll()
	if h.c.Index() != 3 {
		t.Fatalf("index = %d, want 3", h.c.Index())
	}

	h.c.Next()
	h.sched.completeAll()
	if h.c.Index() != 0 {
		t.Errorf("next from last: index = %d, want 0", h.c.Index())
	}

	h.c.Prev()
	h.sched.completeAll()
	if h.c.Index() != 3 {
		t.Errorf("prev from first: index = %d, want 3", h.c.Index())
	}
}

func TestSkipWhilePausedDoesNotAutoPlay(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(3))
	h.sched.completeAll()
	if h.c.State() != StatePlaying {
		t.Fatalf("state = %v, want playing", h.c.State())
	}

	h.c.Toggle()
	if h.c.State() != StatePaused || h.player.pauses != 1 {
		t.Fatalf("state = %v pauses = %d", h.c.State(), h.player.pauses)
	}

	h.c.Next()
	h.sched.completeAll()
	if h.c.State() != StateReady {
		t.Errorf("state = %v, want ready", h.c.State())
	}
	if len(h.player.plays) != 1 {
		t.Fatalf("skip while paused started playback (%d plays)", len(h.player.plays))
	}

	h.c.Toggle()
	if h.c.State() != StatePlaying || len(h.player.plays) != 2 {
		t.Errorf("explicit toggle: state=%v plays=%d", h.c.State(), len(h.player.plays))
	}
	if got := h.lastPlayedID(); got != "item-1" {
		t.Errorf("played %s, want item-1", got)
	}
}

func TestSuppressionIsOneShot(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(3))
	h.sched.completeAll()
	h.c.Toggle() // pause

	h.c.Next()
	h.sched.completeAll()
	h.c.Toggle() // play item-1
	h.c.Next()   // skip while playing
	h.sched.completeAll()

	if h.c.State() != StatePlaying {
		t.Errorf("state = %v, want playing after skip while playing", h.c.State())
	}
}

func TestSkipWhilePlayingAutoPlays(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(3))
	h.sched.completeAll()

	h.c.Next()
	h.sched.completeAll()
	if h.c.State() != StatePlaying || len(h.player.plays) != 2 {
		t.Errorf("state=%v plays=%d", h.c.State(), len(h.player.plays))
	}
}

func TestNaturalEndAdvancesAndPlays(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(2))
	h.sched.completeAll()

	for want := 1; want <= 3; want++ {
		before := len(h.player.plays)
		h.player.end()
		h.sched.drain()

		var sawFull bool
		for _, s := range h.snaps {
			if s.Percent == 100 {
				sawFull = true
			}
		}
		if !sawFull {
			t.Error("natural end should report 100% progress")
		}

		h.sched.completeAll()
		if h.c.Index() != want%2 {
			t.Errorf("after end %d: index = %d, want %d", want, h.c.Index(), want%2)
		}
		if len(h.player.plays) != before+1 || h.c.State() != StatePlaying {
			t.Errorf("after end %d: plays=%d state=%v", want, len(h.player.plays), h.c.State())
		}
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(3)) // pending[0]: item-0
	h.c.Next()              // pending[1]: item-1

	h.sched.complete(1)
	if got := h.lastPlayedID(); got != "item-1" {
		t.Fatalf("played %s, want item-1", got)
	}

	h.sched.complete(0)
	if h.c.Discarded() != 1 {
		t.Errorf("discarded = %d, want 1", h.c.Discarded())
	}
	if len(h.player.plays) != 1 || h.lastPlayedID() != "item-1" {
		t.Error("stale load must not replace the current track")
	}
	if snap := h.c.Snapshot(); snap.Item.ID != "item-1" {
		t.Errorf("snapshot item = %s", snap.Item.ID)
	}
}

func TestStaleEndedIsIgnored(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(3))
	h.sched.completeAll()
	firstEnded := h.player.onEnded[0]

	h.c.Next()
	h.sched.completeAll()

	firstEnded()
	h.sched.drain()
	if h.c.Index() != 1 || h.c.State() != StatePlaying {
		t.Errorf("stale end moved the feed: index=%d state=%v", h.c.Index(), h.c.State())
	}
}

func TestLoadFailureKeepsText(t *testing.T) {
	h := newHarness(t, true)
	items := feedItems(2)
	h.loader.fail["item-0"] = fmt.Errorf("synthesize: %w", ErrNoAudio)

	h.c.Mount(items)
	h.sched.completeAll()

	snap := h.c.Snapshot()
	if snap.State != StateError {
		t.Fatalf("state = %v, want error", snap.State)
	}
	if snap.Text != "script 0" {
		t.Errorf("text = %q, want the script", snap.Text)
	}
	if !snap.AudioUnavailable() {
		t.Error("expected audio unavailable")
	}
	if !errors.Is(snap.Err, ErrNoAudio) {
		t.Errorf("err = %v", snap.Err)
	}

	h.c.Next()
	h.sched.completeAll()
	if h.c.Index() != 1 || h.c.State() != StateReady {
		t.Errorf("navigation after failure: index=%d state=%v", h.c.Index(), h.c.State())
	}
}

func TestPlayFailureSurfacesError(t *testing.T) {
	h := newHarness(t, true)
	h.player.playErr = errors.New("device gone")
	h.c.Mount(feedItems(1))
	h.sched.completeAll()

	if h.c.State() != StateError {
		t.Errorf("state = %v, want error", h.c.State())
	}
}

func TestProgressSampling(t *testing.T) {
	h := newHarness(t, true)
	h.player.now = 500 * time.Millisecond
	h.c.Mount(feedItems(1))
	h.sched.completeAll()

	h.player.now = 1500 * time.Millisecond
	h.sched.tick()
	snap := h.c.Snapshot()
	if snap.Position != time.Second || snap.Percent != 50 {
		t.Errorf("position=%v percent=%v, want 1s 50%%", snap.Position, snap.Percent)
	}

	h.player.now = 10 * time.Second
	h.sched.tick()
	snap = h.c.Snapshot()
	if snap.Position != 2*time.Second || snap.Percent != 100 {
		t.Errorf("clamped position=%v percent=%v", snap.Position, snap.Percent)
	}

	h.c.Toggle()
	if len(h.sched.tickers) != 0 {
		t.Error("sampler should stop on pause")
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name            string
		now, start, dur time.Duration
		wantPos         time.Duration
		wantPct         float64
	}{
		{name: "start", now: time.Second, start: time.Second, dur: 2 * time.Second, wantPos: 0, wantPct: 0},
		{name: "half", now: 2 * time.Second, start: time.Second, dur: 2 * time.Second, wantPos: time.Second, wantPct: 50},
		{name: "clamped", now: 9 * time.Second, start: time.Second, dur: 2 * time.Second, wantPos: 2 * time.Second, wantPct: 100},
		{name: "before start", now: 0, start: time.Second, dur: 2 * time.Second, wantPos: 0, wantPct: 0},
		{name: "no duration", now: time.Second, start: 0, dur: 0, wantPos: 0, wantPct: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, pct := Progress(tt.now, tt.start, tt.dur)
			if pos != tt.wantPos || pct != tt.wantPct {
				t.Errorf("Progress() = %v, %v; want %v, %v", pos, pct, tt.wantPos, tt.wantPct)
			}
		})
	}
}

func TestUnmountStops(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(feedItems(2))
	h.sched.completeAll()

	stops := h.player.stops
	h.c.Unmount()
	if h.c.State() != StateIdle || h.player.stops != stops+1 {
		t.Errorf("state=%v stops=%d", h.c.State(), h.player.stops)
	}
	h.c.Next() // no feed: no-op
	if len(h.sched.pending) != 0 {
		t.Error("next on an unmounted feed should not load")
	}
}

func TestMountEmptyFeed(t *testing.T) {
	h := newHarness(t, true)
	h.c.Mount(nil)

	snap := h.c.Snapshot()
	if snap.State != StateIdle || !errors.Is(snap.Err, ErrEmptyFeed) {
		t.Errorf("snapshot = %+v", snap)
	}
}
