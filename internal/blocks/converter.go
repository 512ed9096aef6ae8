package blocks

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ironsheep/block-art-mcp/internal/imaging"
	"github.com/ironsheep/block-art-mcp/internal/palette"
)

// DefaultMaxImageSize is the largest accepted source width or height.
const DefaultMaxImageSize = 2000

// Cache stores serialized results keyed by source bytes and parameters.
// The cache package's ResultCache satisfies it.
type Cache interface {
	Get(image []byte, params any) ([]byte, bool)
	Set(image []byte, params any, payload []byte) error
}

// cacheKey is the parameter half of a cache key. The catalog fingerprint
// keeps results from different catalogs apart.
type cacheKey struct {
	Params
	Catalog string `json:"catalog"`
}

// Options configures a Converter.
type Options struct {
	// Matcher maps colors to blocks. Nil uses a matcher over the default
	// catalog.
	Matcher *palette.Matcher

	// Cache fronts the pipeline. Nil disables caching.
	Cache Cache

	// Scheduler controls band parallelism.
	Scheduler Scheduler

	// MaxImageSize bounds source width and height. Zero means
	// DefaultMaxImageSize.
	MaxImageSize int

	// MaxGridSize bounds Params.GridSize. Zero means DefaultMaxGridSize.
	MaxGridSize int

	// Seed replaces a zero Params.Seed. Zero means DefaultSeed.
	Seed uint64

	// Logger receives cache warnings and, with Debug set, per-stage timing.
	// Nil uses log.Default().
	Logger *log.Logger

	// Debug enables verbose logging.
	Debug bool
}

// Converter turns encoded images into block grids.
type Converter struct {
	matcher      *palette.Matcher
	cache        Cache
	scheduler    Scheduler
	maxImageSize int
	maxGridSize  int
	seed         uint64
	logger       *log.Logger
	debug        bool
	catalogID    string
}

// NewConverter creates a converter.
func NewConverter(opts Options) *Converter {
	if opts.Matcher == nil {
		opts.Matcher = palette.NewMatcher(palette.Default())
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = DefaultMaxImageSize
	}
	if opts.MaxGridSize <= 0 {
		opts.MaxGridSize = DefaultMaxGridSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Converter{
		matcher:      opts.Matcher,
		cache:        opts.Cache,
		scheduler:    opts.Scheduler,
		maxImageSize: opts.MaxImageSize,
		maxGridSize:  opts.MaxGridSize,
		seed:         opts.Seed,
		logger:       opts.Logger,
		debug:        opts.Debug,
		catalogID:    opts.Matcher.Catalog().Fingerprint(),
	}
}

// Matcher returns the converter's palette matcher.
func (c *Converter) Matcher() *palette.Matcher {
	return c.matcher
}

// Convert runs the full pipeline on encoded image bytes.
//
// A GridSize above the converter's limit is clamped to it.
//
// The cache is consulted first; a hit returns the stored result with
// FromCache set. Otherwise the image is decoded, fit into a
// GridSize x GridSize footprint, color-quantized, matched band by band
// against the catalog and rendered as a PNG preview. Successful results are
// stored in the cache; a failure to store is logged and does not fail the
// call.
//
// Every call gets a fresh ID.
//
// # Errors
//
//   - *ParamError for invalid parameters
//   - *imaging.DecodeError if the bytes are not a supported image
//   - *imaging.InvalidDimensionsError for zero width or height
//   - *imaging.TooLargeError if the source exceeds the size limit
//
// No partial result is returned and nothing is cached on failure.
func (c *Converter) Convert(data []byte, p Params) (*Result, error) {
	start := time.Now()

	if p.Seed == 0 {
		p.Seed = c.seed
	}
	p = p.WithDefaults()
	if p.GridSize > c.maxGridSize {
		p.GridSize = c.maxGridSize
	}
	if err := p.Validate(c.maxGridSize); err != nil {
		return nil, err
	}

	if res, ok := c.lookup(data, p); ok {
		res.ID = newID()
		if c.debug {
			c.logger.Printf("Cache hit for %dx%d grid", res.GridSize.Width, res.GridSize.Height)
		}
		return res, nil
	}

	res, err := c.process(data, p)
	if err != nil {
		return nil, err
	}
	res.ProcessingTime = math.Round(time.Since(start).Seconds()*100) / 100

	if c.cache != nil {
		if err := c.store(data, p, res); err != nil {
			c.logger.Printf("Warning: %v", err)
		}
	}

	res.ID = newID()
	return res, nil
}

func (c *Converter) process(data []byte, p Params) (*Result, error) {
	stage := time.Now()
	img, info, err := imaging.Decode(data, c.maxImageSize)
	if err != nil {
		return nil, err
	}
	c.trace("decode", stage, "%s %dx%d", info.Format, info.Width, info.Height)

	stage = time.Now()
	normalized, err := imaging.Normalize(img, p.GridSize, p.GridSize)
	if err != nil {
		return nil, err
	}
	b := normalized.Bounds()
	c.trace("normalize", stage, "%dx%d", b.Dx(), b.Dy())

	stage = time.Now()
	quantized := imaging.Quantize(normalized, imaging.QuantizeOptions{Colors: p.Colors, Seed: p.Seed})
	c.trace("quantize", stage, "%s tier, %d colors", quantized.Tier, quantized.Centroids)

	stage = time.Now()
	grid, counts := c.scheduler.Run(quantized.Image, c.matcher)
	c.trace("match", stage, "%d blocks", len(counts))

	stage = time.Now()
	preview, err := imaging.EncodePNG(Render(grid, p.Scale))
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	c.trace("render", stage, "%d bytes", len(preview))

	return &Result{
		ImageData:  preview,
		BlockCount: counts,
		GridSize:   Dimensions{Width: grid.Width(), Height: grid.Height()},
		BlockGrid:  grid,
	}, nil
}

func (c *Converter) lookup(data []byte, p Params) (*Result, bool) {
	if c.cache == nil {
		return nil, false
	}

	payload, ok := c.cache.Get(data, cacheKey{Params: p, Catalog: c.catalogID})
	if !ok {
		return nil, false
	}

	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		c.logger.Printf("Warning: discarding unreadable cached result: %v", err)
		return nil, false
	}
	res.FromCache = true
	return &res, true
}

func (c *Converter) store(data []byte, p Params, res *Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	if err := c.cache.Set(data, cacheKey{Params: p, Catalog: c.catalogID}, payload); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

func (c *Converter) trace(stage string, start time.Time, format string, args ...any) {
	if !c.debug {
		return
	}
	c.logger.Printf("%s: %s (%v)", stage, fmt.Sprintf(format, args...), time.Since(start).Round(time.Microsecond))
}

func newID() string {
	return rand.Text()
}
