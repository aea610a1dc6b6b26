// Package speech prepares feed items for listening: it picks the text,
// obtains audio (a pre-rendered clip when the item has one, synthesized
// speech otherwise), caches the raw bytes and decodes them for the engine.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/audio"
	"github.com/dgnsrekt/trendcast/internal/cache"
	"github.com/dgnsrekt/trendcast/internal/feed"
	"github.com/dgnsrekt/trendcast/internal/trend"
)

// maxClipBytes bounds a downloaded clip.
const maxClipBytes = 32 << 20

// Speaker synthesizes speech.
type Speaker interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Voice() Voice
}

// ClipCache stores raw clip bytes.
type ClipCache interface {
	Get(key string) ([]byte, cache.Level, bool)
	Put(key string, data []byte) error
}

// HTTPClient fetches pre-rendered clips.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Narrator loads feed tracks. It implements feed.Loader.
type Narrator struct {
	speaker    Speaker
	cache      ClipCache
	httpClient HTTPClient
	outputRate int
	logger     *log.Logger
}

// NarratorOption configures a Narrator.
type NarratorOption func(*Narrator)

// WithCache enables clip caching.
func WithCache(c ClipCache) NarratorOption {
	return func(n *Narrator) { n.cache = c }
}

// WithHTTPClient sets the client used for pre-rendered clips.
func WithHTTPClient(c HTTPClient) NarratorOption {
	return func(n *Narrator) { n.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) NarratorOption {
	return func(n *Narrator) { n.logger = l }
}

// NewNarrator creates a narrator producing buffers at outputRate. A nil
// speaker limits it to items with pre-rendered audio.
func NewNarrator(speaker Speaker, outputRate int, opts ...NarratorOption) *Narrator {
	n := &Narrator{
		speaker:    speaker,
		httpClient: http.DefaultClient,
		outputRate: outputRate,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ feed.Loader = (*Narrator)(nil)

// Load prepares item. On failure the returned track still carries the
// text to display and the error wraps feed.ErrNoAudio.
func (n *Narrator) Load(ctx context.Context, item trend.Item) (feed.Track, error) {
	track := feed.Track{Item: item, Text: item.DisplayText()}

	spoken := PlainText(item.SpeechText())
	if spoken == "" && item.AudioURL == "" {
		return track, fmt.Errorf("%w: %w", feed.ErrNoAudio, trend.ErrNoText)
	}

	if item.AudioURL != "" {
		buf, cached, err := n.prerendered(ctx, item.AudioURL)
		if err == nil {
			track.Buffer, track.Cached = buf, cached
			return track, nil
		}
		if spoken == "" || errors.Is(err, context.Canceled) {
			return track, fmt.Errorf("%w: %w", feed.ErrNoAudio, err)
		}
		n.logger.Warn("Pre-rendered audio failed, synthesizing", "item", item.ID, "err", err)
	}

	buf, cached, err := n.synthesized(ctx, spoken)
	if err != nil {
		return track, fmt.Errorf("%w: %w", feed.ErrNoAudio, err)
	}
	track.Buffer, track.Cached = buf, cached
	return track, nil
}

func (n *Narrator) prerendered(ctx context.Context, url string) (*audio.Buffer, bool, error) {
	key := cache.URLKey(url)
	if data, ok := n.cached(key); ok {
		buf, err := audio.Decode(data, SampleRate, n.outputRate)
		return buf, true, err
	}

	data, err := n.download(ctx, url)
	if err != nil {
		return nil, false, err
	}
	buf, err := audio.Decode(data, SampleRate, n.outputRate)
	if err != nil {
		return nil, false, err
	}
	n.store(key, data)
	return buf, false, nil
}

func (n *Narrator) synthesized(ctx context.Context, text string) (*audio.Buffer, bool, error) {
	if n.speaker == nil {
		return nil, false, errors.New("no speech back-end configured")
	}

	v := n.speaker.Voice()
	key := cache.ClipKey(text, v.Name, v.Model, v.Speed)
	if data, ok := n.cached(key); ok {
		buf, err := audio.DecodePCM(data, SampleRate)
		if err == nil {
			return buf.Resample(n.outputRate), true, nil
		}
		n.logger.Debug("Ignoring undecodable cached clip", "key", key, "err", err)
	}

	data, err := n.speaker.Synthesize(ctx, text)
	if err != nil {
		return nil, false, err
	}
	buf, err := audio.DecodePCM(data, SampleRate)
	if err != nil {
		return nil, false, err
	}
	n.store(key, data)
	return buf.Resample(n.outputRate), false, nil
}

func (n *Narrator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch audio: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio request failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxClipBytes))
}

func (n *Narrator) cached(key string) ([]byte, bool) {
	if n.cache == nil {
		return nil, false
	}
	data, level, ok := n.cache.Get(key)
	if ok {
		n.logger.Debug("Clip cache hit", "key", key, "level", level)
	}
	return data, ok
}

func (n *Narrator) store(key string, data []byte) {
	if n.cache == nil {
		return
	}
	if err := n.cache.Put(key, data); err != nil {
		n.logger.Warn("Could not cache clip", "key", key, "err", err)
	}
}
