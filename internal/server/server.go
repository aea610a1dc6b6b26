// Package server exposes the content store over HTTP: GET /trending for
// clients and POST /refresh for whoever regenerates the batch.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/interest"
	"github.com/dgnsrekt/trendcast/internal/metrics"
	"github.com/dgnsrekt/trendcast/internal/remote"
	"github.com/dgnsrekt/trendcast/internal/store"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// ErrNoGenerator is returned by Refresh when no generator is configured.
var ErrNoGenerator = errors.New("no generator configured")

// Store is the part of the content store the server uses.
type Store interface {
	ReadLatestBatch(ctx context.Context) (*trend.Batch, error)
	WriteBatch(ctx context.Context, items []trend.Item) (trend.Batch, error)
	PurgeExpired(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Generator produces a fresh batch.
type Generator interface {
	Generate(ctx context.Context, interests []string) ([]trend.Item, error)
}

// Config contains server settings.
type Config struct {
	Addr            string
	Secret          string        // required by POST /refresh when set
	MemoTTL         time.Duration // per-interest response memo
	RefreshTimeout  time.Duration
	PurgeSchedule   string // cron spec; empty disables
	PrewarmSchedule string // cron spec; empty disables
	Location        *time.Location
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8787",
		MemoTTL:        5 * time.Second,
		RefreshTimeout: 2 * time.Minute,
		PurgeSchedule:  "@every 10m",
	}
}

// Server serves the content endpoint.
type Server struct {
	cfg     Config
	store   Store
	gen     Generator
	logger  *log.Logger
	metrics *metrics.Metrics

	memo    *gocache.Cache
	flight  singleflight.Group
	cron    *cron.Cron
	engine  *gin.Engine
	pending sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option { return func(s *Server) { s.cfg = cfg } }

// WithGenerator enables refresh and background population.
func WithGenerator(g Generator) Option { return func(s *Server) { s.gen = g } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics enables Prometheus collection and the /metrics route.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Server) { s.metrics = m } }

// New creates a server over st.
func New(st Store, opts ...Option) *Server {
	s := &Server{
		cfg:    DefaultConfig(),
		store:  st,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	memoTTL := s.cfg.MemoTTL
	if memoTTL <= 0 {
		memoTTL = gocache.NoExpiration
	}
	s.memo = gocache.New(memoTTL, time.Minute)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.metrics.Middleware(), s.requestLogger())

	r.GET("/trending", s.handleTrending)
	r.POST("/refresh", s.handleRefresh)
	r.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "took", time.Since(start))
	}
}

func (s *Server) handleTrending(c *gin.Context) {
	interests := interest.Parse(c.Query("interests"))
	key := "trending|" + strings.Join(interests, ",")
	if v, ok := s.memo.Get(key); ok {
		c.JSON(http.StatusOK, v)
		return
	}

	batch, err := s.store.ReadLatestBatch(c.Request.Context())
	if err != nil {
		s.logger.Error("Store read failed", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}

	if batch.Len() == 0 {
		s.refreshInBackground("empty")
		c.JSON(http.StatusOK, remote.TrendingResponse{Tweets: []trend.Item{}, Empty: true})
		return
	}

	items, fellBack := interest.FilterWithFallback(batch.Items, interests)
	if fellBack {
		s.logger.Warn("No items matched interests, serving the full batch", "interests", interests)
	}
	resp := remote.TrendingResponse{
		Tweets:   items,
		Cached:   true,
		Stale:    batch.Stale,
		FellBack: fellBack,
	}
	if batch.Stale {
		s.refreshInBackground("stale")
	} else {
		s.memo.SetDefault(key, resp)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRefresh(c *gin.Context) {
	if !s.authorized(c.GetHeader(remote.SecretHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh secret"})
		return
	}
	if s.gen == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": ErrNoGenerator.Error()})
		return
	}

	s.refreshInBackground("request")
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func (s *Server) authorized(got string) bool {
	if s.cfg.Secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Secret)) == 1
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	s.metrics.StoreRows(stats.Rows)

	body := gin.H{"status": "healthy", "rows": stats.Rows, "batches": stats.Batches}
	if !stats.Newest.IsZero() {
		body["newest"] = stats.Newest.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// Refresh generates and stores a new batch. Concurrent calls share one
// generation.
func (s *Server) Refresh(ctx context.Context) error {
	if s.gen == nil {
		return ErrNoGenerator
	}

	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		n, err := s.regenerate(ctx)
		if err != nil {
			s.metrics.Refresh("error")
			s.logger.Error("Refresh failed", "err", err)
			return nil, err
		}
		s.metrics.Refresh("ok")
		s.logger.Info("Refreshed batch", "items", n)
		return n, nil
	})
	return err
}

func (s *Server) regenerate(ctx context.Context) (int, error) {
	items, err := s.gen.Generate(ctx, nil)
	if err != nil {
		return 0, err
	}

	batch, err := s.store.WriteBatch(ctx, items)
	if batch.Len() == 0 {
		if err == nil {
			err = errors.New("generated batch stored no rows")
		}
		return 0, err
	}
	if err != nil {
		s.logger.Warn("Refresh stored a partial batch", "stored", batch.Len(), "err", err)
	}
	s.memo.Flush()
	return batch.Len(), nil
}

func (s *Server) refreshInBackground(reason string) {
	if s.gen == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTimeout)
		defer cancel()

		s.logger.Info("Refreshing batch", "reason", reason)
		_ = s.Refresh(ctx)
	}()
}

// Purge removes expired rows.
func (s *Server) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Purged expired rows", "rows", n)
	}
	if stats, err := s.store.Stats(ctx); err == nil {
		s.metrics.StoreRows(stats.Rows)
	}
	return n, nil
}

// Wait blocks until background refreshes finish.
func (s *Server) Wait() { s.pending.Wait() }
