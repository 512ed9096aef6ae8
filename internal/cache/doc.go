// Package cache provides a content-addressed result cache for block
// conversions.
//
// Entries are keyed by the SHA-256 of the source image bytes joined with the
// SHA-256 of the canonical JSON form of the processing parameters, so the same
// image converted with different parameters is cached separately. Payloads
// are opaque byte slices; callers decide how results are serialized.
//
// # Expiry and Eviction
//
// An entry is valid for a fixed TTL after it was written. Expired entries are
// deleted when looked up and when the cache is opened. After each write the
// oldest entries are evicted until the entry cap is met.
//
// # Persistence
//
// With a directory configured, each payload is compressed with zstd and
// written to <key>.zst; the file's modification time records the write time.
// Persisted entries are reloaded by New. Without a directory the cache lives
// in memory only.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package cache
