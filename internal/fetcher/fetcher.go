// Package fetcher resolves what to play by walking the content tiers in
// order: the remote endpoint, the local store, then live generation.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/interest"
	"github.com/dgnsrekt/trendcast/internal/metrics"
	"github.com/dgnsrekt/trendcast/internal/remote"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"golang.org/x/time/rate"
)

// ErrNoContent is returned when every tier came up empty.
var ErrNoContent = errors.New("no content available")

// Tier names one retrieval strategy.
type Tier string

// Tiers, in the order they are attempted.
const (
	TierNone     Tier = ""
	TierRemote   Tier = "remote"
	TierStore    Tier = "store"
	TierGenerate Tier = "generate"
)

// Status distinguishes content from the two kinds of nothing.
type Status int

const (
	// StatusOK means Items holds content.
	StatusOK Status = iota
	// StatusPopulating means a cache tier answered but has nothing yet.
	StatusPopulating
	// StatusUnavailable means no tier could produce content.
	StatusUnavailable
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPopulating:
		return "populating"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Fetch.
type Result struct {
	Items       []trend.Item
	Tier        Tier
	Status      Status
	Cached      bool
	Stale       bool
	FellBack    bool
	Refreshing  bool
	GeneratedAt time.Time
}

// Remote is the network cache tier.
type Remote interface {
	Trending(ctx context.Context, interests []string) (*remote.TrendingResponse, error)
}

// Store is the direct store tier and the sink for generated batches.
type Store interface {
	ReadLatestBatch(ctx context.Context) (*trend.Batch, error)
	WriteBatch(ctx context.Context, items []trend.Item) (trend.Batch, error)
}

// Generator produces a fresh batch scoped to interests.
type Generator interface {
	Generate(ctx context.Context, interests []string) ([]trend.Item, error)
}

// Refresher asks for the cache to be regenerated.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f(ctx).
func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithRemote enables the remote tier.
func WithRemote(r Remote) Option { return func(f *Fetcher) { f.remote = r } }

// WithStore enables the store tier.
func WithStore(s Store) Option { return func(f *Fetcher) { f.store = s } }

// WithGenerator enables the live generation tier.
func WithGenerator(g Generator) Option { return func(f *Fetcher) { f.generator = g } }

// WithRefresher sets the background refresh target for stale hits.
func WithRefresher(r Refresher) Option { return func(f *Fetcher) { f.refresher = r } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithMetrics records tier outcomes.
func WithMetrics(m *metrics.Metrics) Option { return func(f *Fetcher) { f.metrics = m } }

// WithRefreshLimit throttles background refreshes.
func WithRefreshLimit(every time.Duration, burst int) Option {
	return func(f *Fetcher) { f.limiter = rate.NewLimiter(rate.Every(every), burst) }
}

// Fetcher walks the tiers. It is safe for concurrent use.
type Fetcher struct {
	remote    Remote
	store     Store
	generator Generator
	refresher Refresher
	logger    *log.Logger
	metrics   *metrics.Metrics
	limiter   *rate.Limiter

	refreshTimeout time.Duration
	wg             sync.WaitGroup
}

// New creates a Fetcher. Tiers without a backing option are skipped.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		logger:         log.Default(),
		limiter:        rate.NewLimiter(rate.Every(time.Minute), 1),
		refreshTimeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns content for interests from the first tier that has any.
// A cache tier that answers "populating" ends the walk. When every tier
// fails the result has StatusUnavailable and the error wraps ErrNoContent.
func (f *Fetcher) Fetch(ctx context.Context, interests []string) (Result, error) {
	interests = interest.Clean(interests)
	var errs []error

	if f.remote != nil {
		res, err := f.fromRemote(ctx, interests)
		switch {
		case err != nil:
			errs = append(errs, err)
		case res.Status == StatusPopulating:
			return res, nil
		default:
			return f.finish(res), nil
		}
	}

	if f.store != nil {
		res, err := f.fromStore(ctx, interests)
		if err == nil {
			return f.finish(res), nil
		}
		errs = append(errs, err)
	}

	if f.generator != nil {
		res, err := f.fromGenerator(ctx, interests)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
	}

	f.logger.Warn("All content tiers exhausted", "interests", interests, "err", errors.Join(errs...))
	return Result{Status: StatusUnavailable}, errors.Join(append([]error{ErrNoContent}, errs...)...)
}

// Wait blocks until background refreshes started by Fetch have finished.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

func (f *Fetcher) fromRemote(ctx context.Context, interests []string) (Result, error) {
	resp, err := f.remote.Trending(ctx, interests)
	if err != nil {
		f.record(TierRemote, "error")
		f.logger.Debug("Remote tier unavailable", "err", err)
		return Result{}, fmt.Errorf("%s: %w", TierRemote, err)
	}
	if resp.Empty {
		f.record(TierRemote, "populating")
		return Result{Tier: TierRemote, Status: StatusPopulating, Cached: true}, nil
	}

	items := validItems(resp.Tweets, f.logger)
	if len(items) == 0 {
		f.record(TierRemote, "empty")
		return Result{}, fmt.Errorf("%s: no items", TierRemote)
	}

	f.record(TierRemote, "hit")
	return Result{
		Items:    items,
		Tier:     TierRemote,
		Cached:     resp.Cached,
		Stale:      resp.Stale || resp.FellBack,
		FellBack:   resp.FellBack,
		Refreshing: resp.Stale,
	}, nil
}

func (f *Fetcher) fromStore(ctx context.Context, interests []string) (Result, error) {
	batch, err := f.store.ReadLatestBatch(ctx)
	if err != nil {
		f.record(TierStore, "error")
		f.logger.Debug("Store tier unavailable", "err", err)
		return Result{}, fmt.Errorf("%s: %w", TierStore, err)
	}
	if batch.Len() == 0 {
		f.record(TierStore, "empty")
		return Result{}, fmt.Errorf("%s: no batch", TierStore)
	}

	items, fellBack := interest.FilterWithFallback(batch.Items, interests)
	if fellBack {
		f.logger.Warn("No items matched interests, serving unfiltered batch", "interests", interests)
	}

	f.record(TierStore, "hit")
	return Result{
		Items:       items,
		Tier:        TierStore,
		Cached:      true,
		Stale:       batch.Stale || fellBack,
		FellBack:    fellBack,
		GeneratedAt: batch.GeneratedAt,
		// only a genuinely expired batch asks for a refresh
		Refreshing: batch.Stale,
	}, nil
}

func (f *Fetcher) fromGenerator(ctx context.Context, interests []string) (Result, error) {
	generated, err := f.generator.Generate(ctx, interests)
	if err != nil {
		f.record(TierGenerate, "error")
		f.logger.Warn("Live generation failed", "err", err)
		return Result{}, fmt.Errorf("%s: %w", TierGenerate, err)
	}

	items := validItems(generated, f.logger)
	if len(items) == 0 {
		f.record(TierGenerate, "empty")
		return Result{}, fmt.Errorf("%s: no items", TierGenerate)
	}

	res := Result{Items: items, Tier: TierGenerate, GeneratedAt: time.Now()}
	if f.store != nil {
		batch, err := f.store.WriteBatch(ctx, items)
		if err != nil {
			f.logger.Warn("Could not cache generated batch", "err", err)
		}
		if !batch.GeneratedAt.IsZero() {
			res.GeneratedAt = batch.GeneratedAt
		}
	}

	f.record(TierGenerate, "hit")
	return res, nil
}

// finish fires the background refresh for stale results.
func (f *Fetcher) finish(res Result) Result {
	if res.Refreshing {
		res.Refreshing = f.refreshInBackground()
	}
	return res
}

func (f *Fetcher) refreshInBackground() bool {
	if f.refresher == nil {
		return false
	}
	if !f.limiter.Allow() {
		f.logger.Debug("Background refresh throttled")
		f.metrics.Refresh("throttled")
		return false
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		// detached from the caller; the refresh may outlive the fetch
		ctx, cancel := context.WithTimeout(context.Background(), f.refreshTimeout)
		defer cancel()

		if err := f.refresher.Refresh(ctx); err != nil {
			f.logger.Warn("Background refresh failed", "err", err)
			f.metrics.Refresh("error")
			return
		}
		f.logger.Debug("Background refresh done")
		f.metrics.Refresh("ok")
	}()
	return true
}

func (f *Fetcher) record(t Tier, outcome string) {
	f.metrics.TierAttempt(string(t), outcome)
}

func validItems(items []trend.Item, logger *log.Logger) []trend.Item {
	out := make([]trend.Item, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			logger.Debug("Dropping invalid item", "id", item.ID, "err", err)
			continue
		}
		out = append(out, item)
	}
	return out
}
