package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 50
)

// fileExt is the suffix of persisted entries.
const fileExt = ".zst"

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}_[0-9a-f]{64}$`)

// WriteError reports a failure to persist an entry. The entry is still held
// in memory, so callers may treat it as non-fatal.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write cache entry %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Options configures a ResultCache.
type Options struct {
	// Dir is where entries are persisted. Empty means memory only.
	Dir string

	// TTL is how long an entry stays valid after it was written.
	TTL time.Duration

	// MaxEntries caps the number of entries; the oldest are evicted first.
	MaxEntries int

	// Logger receives load and eviction messages. Nil uses log.Default().
	Logger *log.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries   int    `json:"entries"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	Dir       string `json:"dir,omitempty"`
}

type entry struct {
	payload []byte
	written time.Time
}

// ResultCache is a content-addressed store of conversion payloads keyed by
// the source image and the parameters used to process it.
type ResultCache struct {
	mu         sync.Mutex
	dir        string
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *log.Logger
	entries    map[string]*entry
	hits       int64
	misses     int64
	evictions  int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New creates a cache and, when a directory is configured, loads the entries
// persisted there. Expired or unreadable files are removed. Problems reading
// the directory are logged; the cache then starts empty.
func New(opts Options) (*ResultCache, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	c := &ResultCache{
		dir:        opts.Dir,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		logger:     opts.Logger,
		entries:    make(map[string]*entry),
		encoder:    encoder,
		decoder:    decoder,
	}

	if c.dir != "" {
		c.load()
		c.mu.Lock()
		c.evictLocked()
		c.mu.Unlock()
	}
	return c, nil
}

// Key returns the cache key for an image and its parameters:
// sha256(image) + "_" + sha256(canonical JSON of params). Canonical JSON has
// object keys sorted at every level.
func Key(image []byte, params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("failed to serialize parameters: %w", err)
	}

	imageSum := sha256.Sum256(image)
	paramSum := sha256.Sum256(canonical)
	return hex.EncodeToString(imageSum[:]) + "_" + hex.EncodeToString(paramSum[:]), nil
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Get returns the payload stored for image and params. Expired entries are
// deleted and reported as absent.
func (c *ResultCache) Get(image []byte, params any) ([]byte, bool) {
	key, err := Key(image, params)
	if err != nil {
		c.logger.Printf("Cache lookup skipped: %v", err)
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.expired(e) {
		c.removeLocked(key)
		c.misses++
		return nil, false
	}

	c.hits++
	return append([]byte(nil), e.payload...), true
}

// Set stores payload for image and params, then evicts the oldest entries
// above the cap.
//
// # Errors
//
// Returns *WriteError if the entry could not be persisted to disk. The entry
// is still cached in memory.
func (c *ResultCache) Set(image []byte, params any, payload []byte) error {
	key, err := Key(image, params)
	if err != nil {
		return &WriteError{Key: "", Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	written := c.now()
	c.entries[key] = &entry{payload: append([]byte(nil), payload...), written: written}

	var writeErr error
	if c.dir != "" {
		if err := c.writeFile(key, payload, written); err != nil {
			writeErr = &WriteError{Key: key, Err: err}
		}
	}

	c.evictLocked()
	return writeErr
}

// Stats returns a snapshot of cache activity.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:   len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Dir:       c.dir,
	}
}

// Clear removes every entry from memory and disk.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		c.removeLocked(key)
	}
}

// Close releases the compression resources. The cache must not be used
// afterwards.
func (c *ResultCache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

func (c *ResultCache) expired(e *entry) bool {
	return c.now().Sub(e.written) > c.ttl
}

// evictLocked drops entries, oldest write first and ties broken by key, until
// the cap is met.
func (c *ResultCache) evictLocked() {
	excess := len(c.entries) - c.maxEntries
	if excess <= 0 {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		wi, wj := c.entries[keys[i]].written, c.entries[keys[j]].written
		if !wi.Equal(wj) {
			return wi.Before(wj)
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys[:excess] {
		c.removeLocked(key)
		c.evictions++
	}
}

func (c *ResultCache) removeLocked(key string) {
	delete(c.entries, key)
	if c.dir == "" {
		return
	}
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.Printf("Failed to remove cache file for %s: %v", key, err)
	}
}

func (c *ResultCache) path(key string) string {
	return filepath.Join(c.dir, key+fileExt)
}

// writeFile persists a compressed payload atomically and stamps it with the
// write time.
func (c *ResultCache) writeFile(key string, payload []byte, written time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(c.encoder.EncodeAll(payload, nil))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chtimes(tmpName, written, written)
	}
	if err == nil {
		err = os.Rename(tmpName, c.path(key))
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// load reads persisted entries, removing those that are expired or corrupt.
func (c *ResultCache) load() {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Printf("Failed to read cache directory %s: %v", c.dir, err)
		}
		return
	}

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key := strings.TrimSuffix(name, fileExt)
		if !keyPattern.MatchString(key) {
			continue
		}

		path := filepath.Join(c.dir, name)
		info, err := f.Info()
		if err != nil {
			continue
		}

		e := &entry{written: info.ModTime()}
		if c.expired(e) {
			os.Remove(path)
			continue
		}

		compressed, err := os.ReadFile(path)
		if err == nil {
			e.payload, err = c.decoder.DecodeAll(compressed, nil)
		}
		if err != nil {
			c.logger.Printf("Discarding unreadable cache file %s: %v", name, err)
			os.Remove(path)
			continue
		}

		c.entries[key] = e
	}
}
