package blocks

import (
	"image"
	"runtime"
	"sync"

	"github.com/ironsheep/block-art-mcp/internal/palette"
)

// Scheduler defaults.
const (
	DefaultThreshold  = 5000
	DefaultMaxWorkers = 8
)

// Band is a horizontal strip of rows [Y0, Y1).
type Band struct {
	Y0 int
	Y1 int
}

// BandResult is the matched output of one band.
type BandResult struct {
	Band   Band
	Rows   Grid
	Counts Counts
}

// Scheduler splits an image into horizontal bands and matches them
// concurrently. The zero value uses the defaults.
type Scheduler struct {
	// MaxWorkers caps the number of bands.
	MaxWorkers int

	// Parallelism is the available CPU count. Zero means runtime.NumCPU().
	Parallelism int

	// Threshold is the pixel count below which a single band is used.
	Threshold int
}

func (s Scheduler) withDefaults() Scheduler {
	if s.MaxWorkers <= 0 {
		s.MaxWorkers = DefaultMaxWorkers
	}
	if s.Parallelism <= 0 {
		s.Parallelism = runtime.NumCPU()
	}
	if s.Threshold <= 0 {
		s.Threshold = DefaultThreshold
	}
	return s
}

// Plan partitions height rows into bands.
//
// Images below the threshold get one band. Otherwise the band count is
// max(1, min(MaxWorkers, Parallelism-1)), capped at height. Every band is
// floor(height/bands) rows tall except the last, which takes the remainder.
// Bands are contiguous, disjoint and cover every row.
func (s Scheduler) Plan(width, height int) []Band {
	s = s.withDefaults()
	if height <= 0 {
		return nil
	}
	if width*height < s.Threshold {
		return []Band{{Y0: 0, Y1: height}}
	}

	n := max(1, min(s.MaxWorkers, s.Parallelism-1))
	if n > height {
		n = height
	}

	step := height / n
	bands := make([]Band, n)
	for i := range bands {
		bands[i] = Band{Y0: i * step, Y1: (i + 1) * step}
	}
	bands[n-1].Y1 = height
	return bands
}

// Run matches every pixel of img against the catalog and returns the merged
// grid and counts. The result is identical to a single-threaded scan.
func (s Scheduler) Run(img *image.NRGBA, m *palette.Matcher) (Grid, Counts) {
	b := img.Bounds()
	bands := s.Plan(b.Dx(), b.Dy())

	results := runBands(bands, func(band Band) BandResult {
		return matchBand(img, band, m)
	})
	return Merge(results)
}

// runBands runs fn for every band on its own goroutine and returns the
// results in band order.
func runBands(bands []Band, fn func(Band) BandResult) []BandResult {
	results := make([]BandResult, len(bands))
	if len(bands) == 1 {
		results[0] = fn(bands[0])
		return results
	}

	var wg sync.WaitGroup
	for i, band := range bands {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fn(band)
		}()
	}
	wg.Wait()
	return results
}

// matchBand maps each pixel in the band's rows to its nearest block.
func matchBand(img *image.NRGBA, band Band, m *palette.Matcher) BandResult {
	b := img.Bounds()
	width := b.Dx()

	rows := make(Grid, 0, band.Y1-band.Y0)
	counts := make(Counts)
	for y := band.Y0; y < band.Y1; y++ {
		row := make([]Cell, width)
		for x := 0; x < width; x++ {
			p := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			match := m.Match(palette.RGB{p.R, p.G, p.B})
			row[x] = Cell{Name: match.Name, Color: match.Color}
			counts[match.Name]++
		}
		rows = append(rows, row)
	}

	return BandResult{Band: band, Rows: rows, Counts: counts}
}
