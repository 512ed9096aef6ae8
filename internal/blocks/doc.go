// Package blocks converts images into grids of catalog blocks.
//
// A Converter runs the pipeline: decode, fit to the grid, quantize, match
// every cell against the palette, and render a preview. Matching is split
// into horizontal bands that run concurrently; the merged output is always
// identical to a single-threaded scan because each band writes only its own
// rows and counts.
//
// # Grid Layout
//
// Grids are row-major and addressed as grid[y][x]. Width is the number of
// columns, height the number of rows. Every cell stores the matched block's
// name and its catalog color, so a grid can be rendered without consulting
// the matcher again.
//
// # Preview Rendering
//
// Each cell becomes a scale x scale square of its color. When cells are
// larger than three pixels, 1-pixel black lines separate neighbours.
//
// # Caching
//
// Converters accept any Cache. Results are stored as JSON keyed by the
// source bytes, the effective parameters and the catalog fingerprint. Cache
// hits skip the pipeline and report FromCache.
package blocks
