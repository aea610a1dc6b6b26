// Package store provides the SQLite-backed content cache.
//
// Each trend item is one row in tweet_cache. Rows written together share
// generated_at (the batch key) and expires_at. Reads prefer the newest
// unexpired batch and fall back to the newest batch flagged stale.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/trend"

	_ "modernc.org/sqlite"
)

// DefaultTTL is how long a batch is served before it is considered stale.
const DefaultTTL = 30 * time.Minute

// Store is the content cache. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	now    func() time.Time
	ttl    time.Duration
	logger *log.Logger

	// last batch key handed out, so two writes in the same millisecond
	// never share a key
	lastKey int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for batch keys and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithTTL sets the batch lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for skipped rows.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open creates a Store with the given database path and creates the schema
// if needed. Use ":memory:" for a throwaway database.
func Open(dbPath string, opts ...Option) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{
		db:     db,
		now:    time.Now,
		ttl:    DefaultTTL,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tweet_cache (
		tweet_id     TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		expires_at   INTEGER NOT NULL,
		tweet_data   TEXT NOT NULL,
		version      INTEGER NOT NULL DEFAULT 1,
		UNIQUE (tweet_id, generated_at)
	);
	CREATE INDEX IF NOT EXISTS idx_tweet_cache_generated ON tweet_cache(generated_at);
	CREATE INDEX IF NOT EXISTS idx_tweet_cache_expires ON tweet_cache(expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// TTL returns the configured batch lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// ReadLatestBatch returns the newest unexpired batch with its items in
// insertion order. When every batch has expired it returns the newest one
// with Stale set. It returns nil, nil when the store is empty.
func (s *Store) ReadLatestBatch(ctx context.Context) (*trend.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key, stale, ok, err := s.latestKey(ctx, tx, "")
	if err != nil || !ok {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT tweet_id, expires_at, tweet_data, version
		FROM tweet_cache
		WHERE generated_at = ?
		ORDER BY rowid ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()

	batch := &trend.Batch{
		GeneratedAt: time.UnixMilli(key),
		Stale:       stale,
	}
	for rows.Next() {
		var (
			id      string
			expires int64
			data    string
			version int
		)
		if err := rows.Scan(&id, &expires, &data, &version); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		item, err := decodeItem(id, data)
		if err != nil {
			s.logger.Warn("Skipping unreadable cache row", "id", id, "err", err)
			continue
		}
		batch.ExpiresAt = time.UnixMilli(expires)
		batch.Version = version
		batch.Items = append(batch.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch: %w", err)
	}

	if len(batch.Items) == 0 {
		return nil, nil
	}
	return batch, nil
}

// ReadItem returns one item by id using the same recency policy as
// ReadLatestBatch. The second result reports whether the item is stale.
func (s *Store) ReadItem(ctx context.Context, id string) (*trend.Item, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	key, stale, ok, err := s.latestKey(ctx, tx, id)
	if err != nil || !ok {
		return nil, false, err
	}

	var data string
	err = tx.QueryRowContext(ctx, `
		SELECT tweet_data FROM tweet_cache
		WHERE tweet_id = ? AND generated_at = ?
	`, id, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query item: %w", err)
	}

	item, err := decodeItem(id, data)
	if err != nil {
		return nil, false, err
	}
	return &item, stale, nil
}

// latestKey finds the newest batch key, optionally scoped to one item id.
// Unexpired batches win; otherwise the newest key is returned as stale.
func (s *Store) latestKey(ctx context.Context, tx *sql.Tx, id string) (key int64, stale, ok bool, err error) {
	now := s.now().UnixMilli()

	scope, args := "", []any{now}
	if id != "" {
		scope = " AND tweet_id = ?"
		args = append(args, id)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT generated_at FROM tweet_cache WHERE expires_at > ?`+scope+
			` ORDER BY generated_at DESC LIMIT 1`, args...).Scan(&key)
	switch {
	case err == nil:
		return key, false, true, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, false, false, fmt.Errorf("query latest batch: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT generated_at FROM tweet_cache WHERE 1 = 1`+scope+
			` ORDER BY generated_at DESC LIMIT 1`, args[1:]...).Scan(&key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, false, nil
	case err != nil:
		return 0, false, false, fmt.Errorf("query stale batch: %w", err)
	}
	return key, true, true, nil
}

// WriteBatch stores items as one batch keyed by the current time. Rows are
// inserted one at a time; rows that fail are reported in the joined error
// while the rest stay written.
func (s *Store) WriteBatch(ctx context.Context, items []trend.Item) (trend.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.now().UnixMilli()
	if key <= s.lastKey {
		key = s.lastKey + 1
	}
	s.lastKey = key

	generated := time.UnixMilli(key)
	batch := trend.Batch{
		GeneratedAt: generated,
		ExpiresAt:   generated.Add(s.ttl),
		Version:     trend.SchemaVersion,
	}

	var errs []error
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", item.ID, err))
			continue
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO tweet_cache (tweet_id, generated_at, expires_at, tweet_data, version)
			VALUES (?, ?, ?, ?, ?)
		`, item.ID, key, batch.ExpiresAt.UnixMilli(), string(data), trend.SchemaVersion)
		if err != nil {
			errs = append(errs, fmt.Errorf("insert %s: %w", item.ID, err))
			continue
		}
		batch.Items = append(batch.Items, item)
	}

	return batch, errors.Join(errs...)
}

// PurgeExpired deletes rows past their expiry and returns how many went.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tweet_cache WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	return res.RowsAffected()
}

// Stats summarizes what the store holds.
type Stats struct {
	Rows    int64
	Batches int64
	Newest  time.Time
}

// Stats returns row and batch counts and the newest batch key.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		st     Stats
		newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT generated_at), MAX(generated_at)
		FROM tweet_cache
	`).Scan(&st.Rows, &st.Batches, &newest)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if newest.Valid {
		st.Newest = time.UnixMilli(newest.Int64)
	}
	return st, nil
}

func decodeItem(id, data string) (trend.Item, error) {
	var item trend.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return trend.Item{}, fmt.Errorf("decode item: %w", err)
	}
	if item.ID == "" {
		item.ID = id
	}
	return item, nil
}
