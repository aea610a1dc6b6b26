package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/cache"
	"github.com/dgnsrekt/trendcast/internal/config"
	"github.com/dgnsrekt/trendcast/internal/fetcher"
	"github.com/dgnsrekt/trendcast/internal/generate"
	"github.com/dgnsrekt/trendcast/internal/metrics"
	"github.com/dgnsrekt/trendcast/internal/remote"
	"github.com/dgnsrekt/trendcast/internal/speech"
	"github.com/dgnsrekt/trendcast/internal/store"
	"github.com/sashabaranov/go-openai"
)

// app holds the components shared by the commands. Fields are nil when
// the config does not enable them.
type app struct {
	cfg       config.Config
	store     *store.Store
	remote    *remote.Client
	openai    *openai.Client
	generator *generate.Generator
	metrics   *metrics.Metrics
}

func newApp(cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	st, err := store.Open(cfg.Store.Path,
		store.WithTTL(cfg.Store.TTL),
		store.WithLogger(log.WithPrefix("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open content store: %w", err)
	}
	a.store = st

	if cfg.Remote.URL != "" {
		a.remote = remote.NewClient(
			remote.WithBaseURL(cfg.Remote.URL),
			remote.WithSecret(cfg.Secrets.RefreshSecret),
			remote.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		)
	}

	if cfg.Secrets.OpenAIKey != "" {
		a.openai = speech.NewOpenAIClient(cfg.Secrets.OpenAIKey, cfg.Secrets.OpenAIBaseURL)

		gcfg := generate.DefaultConfig()
		if cfg.Generate.Model != "" {
			gcfg.Model = cfg.Generate.Model
		}
		if cfg.Generate.Persona != "" {
			gcfg.Persona = cfg.Generate.Persona
		}
		gcfg.Count = cfg.Generate.Count

		opts := []generate.Option{
			generate.WithConfig(gcfg),
			generate.WithLogger(log.WithPrefix("generate")),
		}
		if len(cfg.Generate.Feeds) > 0 {
			opts = append(opts, generate.WithHeadlines(generate.NewFeedHeadlines(cfg.Generate.Feeds, 5)))
		}
		a.generator = generate.New(a.openai, opts...)
	}
	return a, nil
}

// fetcher builds the tiered fetcher. The refresh goes to the remote
// endpoint when there is one, otherwise straight to generation.
func (a *app) fetcher() *fetcher.Fetcher {
	opts := []fetcher.Option{
		fetcher.WithStore(a.store),
		fetcher.WithMetrics(a.metrics),
		fetcher.WithLogger(log.WithPrefix("fetcher")),
	}
	if a.remote != nil {
		opts = append(opts,
			fetcher.WithRemote(a.remote),
			fetcher.WithRefresher(a.remote),
		)
	}
	if a.generator != nil {
		opts = append(opts, fetcher.WithGenerator(a.generator))
		if a.remote == nil {
			opts = append(opts, fetcher.WithRefresher(fetcher.RefresherFunc(a.regenerate)))
		}
	}
	return fetcher.New(opts...)
}

func (a *app) regenerate(ctx context.Context) error {
	items, err := a.generator.Generate(ctx, nil)
	if err != nil {
		return err
	}
	_, err = a.store.WriteBatch(ctx, items)
	return err
}

// clipCache opens the speech clip cache.
func (a *app) clipCache() (*cache.Manager, error) {
	ccfg := cache.DefaultConfig()
	ccfg.DiskPath = a.cfg.Cache.Dir
	ccfg.MemoryCapacity = int64(a.cfg.Cache.MemoryMB) << 20
	ccfg.DiskCapacity = int64(a.cfg.Cache.DiskMB) << 20
	ccfg.TTL = a.cfg.Cache.TTL
	return cache.NewManager(ccfg, cache.WithLogger(log.WithPrefix("cache")))
}

// speaker returns the speech synthesizer, or nil without an API key.
func (a *app) speaker() speech.Speaker {
	if a.openai == nil {
		return nil
	}
	return speech.NewSynthesizer(a.openai, speech.Voice{
		Model: a.cfg.Speech.Model,
		Name:  a.cfg.Speech.Voice,
		Speed: a.cfg.Speech.Speed,
	})
}

func (a *app) Close() error {
	return a.store.Close()
}
