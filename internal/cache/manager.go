package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager chains the memory and disk levels.
type Manager struct {
	l1     *MemoryCache
	l2     *DiskCache
	cfg    Config
	logger *log.Logger
	now    func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu    sync.Mutex
	stats struct {
		promotions  int64
		cleanupRuns int64
		lastCleanup time.Time
	}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock replaces time.Now for both levels.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager opens both levels and starts the cleanup loop when
// cfg.CleanupInterval is positive.
func NewManager(cfg Config, opts ...ManagerOption) (*Manager, error) {
	if cfg.DiskPath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
		cfg.DiskPath = filepath.Join(dir, "trendcast", "audio")
	}

	m := &Manager{
		cfg:    cfg,
		logger: log.Default(),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	l1, err := NewMemoryCache(cfg.MemoryEntries, cfg.MemoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	l2, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}
	l1.now = m.now
	l2.now = m.now
	m.l1, m.l2 = l1, l2

	if cfg.CleanupInterval > 0 {
		m.startCleanup()
	}
	return m, nil
}

// Get looks in memory, then on disk. Disk hits are promoted to memory.
func (m *Manager) Get(key string) ([]byte, Level, bool) {
	if data, ok := m.l1.Get(key); ok {
		return data, LevelMemory, true
	}

	data, ok := m.l2.Get(key)
	if !ok {
		return nil, LevelNone, false
	}

	// best effort: a clip too large for L1 is still served from L2
	if err := m.l1.Put(key, data); err == nil {
		m.mu.Lock()
		m.stats.promotions++
		m.mu.Unlock()
	}
	return data, LevelDisk, true
}

// Put stores a clip in both levels. A clip too large for memory is still
// written to disk.
func (m *Manager) Put(key string, data []byte) error {
	if err := m.l1.Put(key, data); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("L1 cache error: %w", err)
	}
	if err := m.l2.Put(key, data); err != nil {
		return fmt.Errorf("L2 cache error: %w", err)
	}
	return nil
}

// Delete removes a clip from both levels.
func (m *Manager) Delete(key string) {
	m.l1.Delete(key)
	m.l2.Delete(key)
}

// Cleanup drops clips older than the TTL from both levels.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	m.stats.cleanupRuns++
	m.stats.lastCleanup = m.now()
	m.mu.Unlock()

	if m.cfg.TTL <= 0 {
		return 0
	}
	removed := m.l2.RemoveOlderThan(m.now().Add(-m.cfg.TTL))
	m.l1.Prune(m.cfg.TTL)
	if removed > 0 {
		m.logger.Debug("Removed expired clips", "count", removed)
	}
	return removed
}

// Stats reports both levels.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return ManagerStats{
		Memory:      m.l1.Stats(),
		Disk:        m.l2.Stats(),
		Promotions:  m.stats.promotions,
		CleanupRuns: m.stats.cleanupRuns,
		LastCleanup: m.stats.lastCleanup,
	}
}

// ManagerStats aggregates both levels.
type ManagerStats struct {
	Memory      Stats
	Disk        Stats
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time
}

// Close stops the cleanup loop and saves the disk index.
func (m *Manager) Close() error {
	m.once.Do(func() { close(m.stop) })
	m.wg.Wait()

	if err := m.l2.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Cleanup()
			case <-m.stop:
				return
			}
		}
	}()
}
