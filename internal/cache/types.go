package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when a clip exceeds a level's capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when a stored clip cannot be decoded
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Level is the cache tier a clip was served from.
type Level int

const (
	// LevelNone means the clip was not found.
	LevelNone Level = iota
	// LevelMemory is the in-process LRU.
	LevelMemory
	// LevelDisk is the compressed on-disk store.
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "none"
	}
}

// Stats holds counters for one level.
type Stats struct {
	Capacity  int64 // Maximum capacity in bytes
	Size      int64 // Current size in bytes
	Items     int   // Number of clips
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Config holds configuration for the clip cache.
type Config struct {
	MemoryCapacity   int64         // L1 bytes
	MemoryEntries    int           // L1 entry bound
	DiskCapacity     int64         // L2 bytes
	DiskPath         string        // L2 directory
	CompressionLevel int           // zstd level (1-22)
	TTL              time.Duration // clips older than this are dropped
	CleanupInterval  time.Duration // 0 disables the cleanup loop
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,
		MemoryEntries:    256,
		DiskCapacity:     512 * 1024 * 1024,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// ClipKey derives the key for synthesized speech. The same text spoken
// with the same voice and model maps to the same clip.
func ClipKey(text, voice, model string, speed float64) string {
	data := fmt.Sprintf("tts|%s|%s|%.2f|%s", voice, model, speed, text)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// URLKey derives the key for audio downloaded from a pre-rendered URL.
func URLKey(url string) string {
	hash := sha256.Sum256([]byte("url|" + url))
	return hex.EncodeToString(hash[:16])
}
