// Package cache stores speech clips so a track replays without another
// round trip to the speech back-end. An in-memory LRU (L1) sits in front
// of a zstd-compressed disk cache (L2); L2 hits are promoted to L1 and a
// background loop drops clips older than the configured TTL.
package cache
