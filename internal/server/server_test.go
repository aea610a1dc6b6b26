package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/metrics"
	"github.com/dgnsrekt/trendcast/internal/remote"
	"github.com/dgnsrekt/trendcast/internal/store"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeGenerator struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, _ []string) ([]trend.Item, error) {
	n := g.calls.Add(1)
	if g.gate != nil {
		<-g.gate
	}
	if g.err != nil {
		return nil, g.err
	}
	return []trend.Item{
		{ID: fmt.Sprintf("gen-%d-a", n), Topic: "ai", Title: "a", Script: "script a"},
		{ID: fmt.Sprintf("gen-%d-b", n), Topic: "sports", Title: "b", Script: "script b"},
	}, nil
}

type fixture struct {
	srv   *Server
	store *store.Store
	clock *clock
	gen   *fakeGenerator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"), store.WithClock(clk.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	gen := &fakeGenerator{}
	srv := New(st,
		WithConfig(cfg),
		WithGenerator(gen),
		WithMetrics(metrics.New()),
		WithLogger(log.New(io.Discard)),
	)
	return &fixture{srv: srv, store: st, clock: clk, gen: gen}
}

func (f *fixture) seed(t *testing.T, items ...trend.Item) {
	t.Helper()
	_, err := f.store.WriteBatch(context.Background(), items)
	require.NoError(t, err)
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, remote.TrendingResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body remote.TrendingResponse
	if strings.HasPrefix(path, "/trending") && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (f *fixture) scrape(t *testing.T) string {
	t.Helper()
	rec, _ := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestTrendingEmptyStoreStartsPopulation(t *testing.T) {
	f := newFixture(t, DefaultConfig())

	rec, body := f.get(t, "/trending")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Empty)
	assert.False(t, body.Cached)
	assert.Empty(t, body.Tweets)
	assert.Contains(t, rec.Body.String(), `"tweets":[]`)

	f.srv.Wait()
	assert.Equal(t, int32(1), f.gen.calls.Load())

	_, body = f.get(t, "/trending")
	assert.False(t, body.Empty)
	assert.True(t, body.Cached)
	assert.Len(t, body.Tweets, 2)
}

func TestTrendingFiltersByInterest(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seed(t,
		trend.Item{ID: "1", Topic: "AI", Title: "t", Script: "s"},
		trend.Item{ID: "2", Topic: "football", Title: "t", Script: "s"},
		trend.Item{ID: "3", Topic: "machine learning", Title: "t", Script: "s"},
	)

	_, body := f.get(t, "/trending?interests=ai")
	require.Len(t, body.Tweets, 2)
	assert.Equal(t, "1", body.Tweets[0].ID)
	assert.Equal(t, "3", body.Tweets[1].ID)
	assert.False(t, body.FellBack)

	_, body = f.get(t, "/trending?interests=Sports,%20nba")
	require.Len(t, body.Tweets, 1)
	assert.Equal(t, "2", body.Tweets[0].ID)

	_, body = f.get(t, "/trending?interests=cooking")
	assert.Len(t, body.Tweets, 3)
	assert.True(t, body.FellBack)

	assert.Zero(t, f.gen.calls.Load())
}

func TestTrendingStaleTriggersRefresh(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seed(t,
		trend.Item{ID: "1", Topic: "ai", Title: "t", Script: "s"},
		trend.Item{ID: "2", Topic: "ai", Title: "t", Script: "s"},
		trend.Item{ID: "3", Topic: "ai", Title: "t", Script: "s"},
	)

	f.clock.Advance(10 * time.Minute)
	_, body := f.get(t, "/trending")
	assert.Len(t, body.Tweets, 3)
	assert.True(t, body.Cached)
	assert.False(t, body.Stale)

	f.clock.Advance(30 * time.Minute)
	_, body = f.get(t, "/trending?interests=ai")
	assert.Len(t, body.Tweets, 3)
	assert.True(t, body.Stale)

	f.srv.Wait()
	assert.Equal(t, int32(1), f.gen.calls.Load())
	assert.Contains(t, f.scrape(t), `trendcast_refresh_total{outcome="ok"} 1`)
}

func TestTrendingMemoizesFreshResponses(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seed(t, trend.Item{ID: "1", Topic: "ai", Title: "t", Script: "s"})

	_, first := f.get(t, "/trending")
	f.clock.Advance(time.Millisecond)
	f.seed(t, trend.Item{ID: "2", Topic: "ai", Title: "t", Script: "s"})

	_, second := f.get(t, "/trending")
	assert.Equal(t, first.Tweets, second.Tweets, "memo should serve the first response")

	require.NoError(t, f.srv.Refresh(context.Background()))
	_, third := f.get(t, "/trending")
	assert.NotEqual(t, first.Tweets[0].ID, third.Tweets[0].ID, "refresh should clear the memo")
}

func TestTrendingStoreFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	require.NoError(t, f.store.Close())

	rec, _ := f.get(t, "/trending")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRefreshRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Secret = "s3cret"
	f := newFixture(t, cfg)

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{name: "missing", secret: "", want: http.StatusUnauthorized},
		{name: "wrong", secret: "guess", want: http.StatusUnauthorized},
		{name: "correct", secret: "s3cret", want: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
			if tt.secret != "" {
				req.Header.Set(remote.SecretHeader, tt.secret)
			}
			rec := httptest.NewRecorder()
			f.srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	f.srv.Wait()
	assert.Equal(t, int32(1), f.gen.calls.Load())
}

func TestRefreshSharesConcurrentCalls(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.gen.gate = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.srv.Refresh(context.Background()))
		}()
	}

	// let both callers reach the flight before releasing the generator
	require.Eventually(t, func() bool { return f.gen.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gen.gate)
	wg.Wait()

	assert.Equal(t, int32(1), f.gen.calls.Load())
}

func TestRefreshFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.gen.err = errors.New("model overloaded")

	err := f.srv.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, f.scrape(t), `trendcast_refresh_total{outcome="error"} 1`)
}

func TestRefreshWithoutGenerator(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	srv := New(st, WithLogger(log.New(io.Discard)))
	assert.ErrorIs(t, srv.Refresh(context.Background()), ErrNoGenerator)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refresh", nil))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seed(t, trend.Item{ID: "1", Topic: "ai", Title: "t", Script: "s"})

	rec, _ := f.get(t, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 1, health["rows"])

	rec, _ = f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "trendcast_store_rows 1")
	assert.Contains(t, rec.Body.String(), `trendcast_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
}

func TestPurge(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seed(t, trend.Item{ID: "1", Topic: "ai", Title: "t", Script: "s"})
	f.clock.Advance(time.Hour)

	n, err := f.srv.Purge(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Contains(t, f.scrape(t), "trendcast_store_rows 0")
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PurgeSchedule = "every now and then"
	f := newFixture(t, cfg)

	_, err := f.srv.Schedule()
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.PrewarmSchedule = "@hourly"
	f = newFixture(t, cfg)
	c, err := f.srv.Schedule()
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}
