package blocks

import (
	"fmt"

	"github.com/ironsheep/block-art-mcp/internal/imaging"
	"github.com/ironsheep/block-art-mcp/internal/palette"
)

// Parameter defaults and limits.
const (
	DefaultGridSize    = 100
	DefaultColors      = imaging.DefaultColors
	DefaultScale       = 4
	DefaultSeed        = imaging.DefaultSeed
	DefaultMaxGridSize = 200
	MaxScale           = 64
)

// Cell is one grid position: the matched block and its catalog color.
type Cell struct {
	Name  string      `json:"name"`
	Color palette.RGB `json:"color"`
}

// Grid is a row-major block grid addressed as grid[y][x].
type Grid [][]Cell

// Width returns the number of columns.
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Height returns the number of rows.
func (g Grid) Height() int {
	return len(g)
}

// Counts maps block names to the number of cells using them.
type Counts map[string]int

// Total returns the sum of all counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Dimensions is a grid size in cells.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is the output of a conversion.
type Result struct {
	// ImageData is the PNG preview. It serializes as base64.
	ImageData []byte `json:"imageData"`

	// BlockCount maps each used block name to its cell count.
	BlockCount Counts `json:"blockCount"`

	// GridSize is the grid width and height in cells.
	GridSize Dimensions `json:"gridSize"`

	// BlockGrid holds the matched cell for every position.
	BlockGrid Grid `json:"blockGrid"`

	// ProcessingTime is the wall time of the run in seconds.
	ProcessingTime float64 `json:"processingTime"`

	// ID identifies this conversion call.
	ID string `json:"id"`

	// FromCache reports that the result was served from the cache.
	FromCache bool `json:"-"`
}

// Params controls a conversion. Zero fields take their defaults.
type Params struct {
	// GridSize bounds the grid width and height in cells.
	GridSize int `json:"grid_size"`

	// Colors is the quantization centroid count for large images.
	Colors int `json:"num_colors"`

	// Scale is the preview pixel size of one cell.
	Scale int `json:"output_scale"`

	// Seed drives quantization.
	Seed uint64 `json:"seed"`
}

// WithDefaults returns p with zero fields replaced by defaults.
func (p Params) WithDefaults() Params {
	if p.GridSize == 0 {
		p.GridSize = DefaultGridSize
	}
	if p.Colors == 0 {
		p.Colors = DefaultColors
	}
	if p.Scale == 0 {
		p.Scale = DefaultScale
	}
	if p.Seed == 0 {
		p.Seed = DefaultSeed
	}
	return p
}

// Validate checks p against the limits. maxGridSize <= 0 means
// DefaultMaxGridSize.
func (p Params) Validate(maxGridSize int) error {
	if maxGridSize <= 0 {
		maxGridSize = DefaultMaxGridSize
	}

	switch {
	case p.GridSize <= 0:
		return &ParamError{Field: "grid_size", Value: p.GridSize, Reason: "must be positive"}
	case p.GridSize > maxGridSize:
		return &ParamError{Field: "grid_size", Value: p.GridSize, Reason: fmt.Sprintf("must be at most %d", maxGridSize)}
	case p.Colors <= 0:
		return &ParamError{Field: "num_colors", Value: p.Colors, Reason: "must be positive"}
	case p.Scale <= 0:
		return &ParamError{Field: "output_scale", Value: p.Scale, Reason: "must be positive"}
	case p.Scale > MaxScale:
		return &ParamError{Field: "output_scale", Value: p.Scale, Reason: fmt.Sprintf("must be at most %d", MaxScale)}
	}
	return nil
}

// ParamError reports an invalid conversion parameter.
type ParamError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Field, e.Value, e.Reason)
}
