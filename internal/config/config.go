// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvLogLevel        = "BLOCK_ART_LOG_LEVEL"
	EnvCacheDir        = "BLOCK_ART_CACHE_DIR"
	EnvCacheTTL        = "BLOCK_ART_CACHE_TTL"
	EnvCacheMaxEntries = "BLOCK_ART_CACHE_MAX_ENTRIES"
	EnvMaxWorkers      = "BLOCK_ART_MAX_WORKERS"
	EnvMaxImageSize    = "BLOCK_ART_MAX_IMAGE_SIZE"
	EnvMaxGridSize     = "BLOCK_ART_MAX_GRID_SIZE"
	EnvSeed            = "BLOCK_ART_SEED"
	EnvCatalog         = "BLOCK_ART_CATALOG"
	EnvMatchMemoLimit  = "BLOCK_ART_MATCH_MEMO_LIMIT"
)

// CacheDirOff disables the on-disk cache when used as BLOCK_ART_CACHE_DIR.
const CacheDirOff = "off"

// Config holds the server settings.
type Config struct {
	// Debug enables verbose logging.
	Debug bool

	// CacheDir is where cached results are persisted. Empty means memory only.
	CacheDir string

	// CacheTTL is how long a cached result stays valid.
	CacheTTL time.Duration

	// CacheMaxEntries caps the number of cached results.
	CacheMaxEntries int

	// MaxWorkers caps the number of concurrent matching bands.
	MaxWorkers int

	// MaxImageSize is the largest accepted source width or height in pixels.
	MaxImageSize int

	// MaxGridSize is the largest accepted grid size in cells.
	MaxGridSize int

	// Seed drives color quantization.
	Seed uint64

	// CatalogPath optionally replaces the embedded block catalog.
	CatalogPath string

	// MatchMemoLimit bounds how many colors the matcher remembers.
	MatchMemoLimit int
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		CacheDir:        filepath.Join(os.TempDir(), "block-art-cache"),
		CacheTTL:        24 * time.Hour,
		CacheMaxEntries: 50,
		MaxWorkers:      8,
		MaxImageSize:    2000,
		MaxGridSize:     200,
		Seed:            42,
		MatchMemoLimit:  1 << 18,
	}
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a configuration from lookup, which has the signature of
// os.LookupEnv. Unset variables keep their defaults.
//
// # Errors
//
// Returns an error naming the variable if any value is malformed or out of
// range.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Debug = strings.EqualFold(strings.TrimSpace(v), "debug")
	}

	if v, ok := lookup(EnvCacheDir); ok {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, CacheDirOff) {
			cfg.CacheDir = ""
		} else {
			cfg.CacheDir = v
		}
	}

	if v, ok := lookup(EnvCacheTTL); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCacheTTL, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive, got %s", EnvCacheTTL, v)
		}
		cfg.CacheTTL = d
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvCacheMaxEntries, &cfg.CacheMaxEntries},
		{EnvMaxWorkers, &cfg.MaxWorkers},
		{EnvMaxImageSize, &cfg.MaxImageSize},
		{EnvMaxGridSize, &cfg.MaxGridSize},
		{EnvMatchMemoLimit, &cfg.MatchMemoLimit},
	}
	for _, f := range ints {
		v, ok := lookup(f.name)
		if !ok {
			continue
		}
		n, err := positiveInt(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = n
	}

	if v, ok := lookup(EnvSeed); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvSeed, err)
		}
		cfg.Seed = seed
	}

	if v, ok := lookup(EnvCatalog); ok {
		cfg.CatalogPath = strings.TrimSpace(v)
	}

	return cfg, nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", n)
	}
	return n, nil
}
