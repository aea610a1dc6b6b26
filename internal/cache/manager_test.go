package cache

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestManager(t *testing.T, cfg Config, opts ...ManagerOption) *Manager {
	t.Helper()
	cfg.DiskPath = t.TempDir()
	cfg.CleanupInterval = 0
	opts = append(opts, WithLogger(log.New(io.Discard)))

	m, err := NewManager(cfg, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManager_PutGet(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	key := ClipKey("hello world", "alloy", "tts-1", 1.0)
	if err := m.Put(key, []byte("pcm")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, level, ok := m.Get(key)
	if !ok || level != LevelMemory || string(data) != "pcm" {
		t.Errorf("Get = %q, %v, %v", data, level, ok)
	}

	m.Delete(key)
	if _, level, ok := m.Get(key); ok || level != LevelNone {
		t.Error("clip still present after delete")
	}
}

func TestManager_PromotesDiskHits(t *testing.T) {
	m := newTestManager(t, DefaultConfig())

	_ = m.Put("k", []byte("clip"))
	m.l1.Delete("k")

	if _, level, ok := m.Get("k"); !ok || level != LevelDisk {
		t.Fatalf("first get: level=%v ok=%v, want disk", level, ok)
	}
	if _, level, _ := m.Get("k"); level != LevelMemory {
		t.Errorf("second get: level=%v, want memory", level)
	}
	if m.Stats().Promotions != 1 {
		t.Errorf("promotions = %d, want 1", m.Stats().Promotions)
	}
}

func TestManager_LargeClipGoesToDiskOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemoryCapacity = 8
	m := newTestManager(t, cfg)

	clip := bytes.Repeat([]byte("x"), 64)
	if err := m.Put("big", clip); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, level, ok := m.Get("big")
	if !ok || level != LevelDisk || !bytes.Equal(data, clip) {
		t.Errorf("Get = level %v ok %v", level, ok)
	}
}

func TestManager_CleanupHonorsTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cfg := DefaultConfig()
	cfg.TTL = time.Hour
	m := newTestManager(t, cfg, WithClock(func() time.Time { return now }))

	_ = m.Put("old", []byte("a"))
	now = now.Add(2 * time.Hour)
	_ = m.Put("new", []byte("b"))

	if removed := m.Cleanup(); removed != 1 {
		t.Errorf("removed %d, want 1", removed)
	}
	if _, _, ok := m.Get("old"); ok {
		t.Error("expired clip still served")
	}
	if _, _, ok := m.Get("new"); !ok {
		t.Error("fresh clip removed")
	}
	if m.Stats().CleanupRuns != 1 {
		t.Errorf("cleanup runs = %d", m.Stats().CleanupRuns)
	}
}

func TestClipKeyIsStable(t *testing.T) {
	a := ClipKey("text", "alloy", "tts-1", 1)
	if a != ClipKey("text", "alloy", "tts-1", 1) {
		t.Error("same inputs produced different keys")
	}
	if a == ClipKey("text", "nova", "tts-1", 1) {
		t.Error("voice should change the key")
	}
	if URLKey("https://x/a.mp3") == URLKey("https://x/b.mp3") {
		t.Error("urls should produce different keys")
	}
}
