package blocks

import (
	"image"
	"image/color"

	"github.com/ironsheep/block-art-mcp/internal/imaging"
)

var boundaryColor = color.NRGBA{0, 0, 0, 255}

// Merge concatenates band rows in band order and sums their counts.
func Merge(results []BandResult) (Grid, Counts) {
	height := 0
	for _, r := range results {
		height += len(r.Rows)
	}

	grid := make(Grid, 0, height)
	counts := make(Counts)
	for _, r := range results {
		grid = append(grid, r.Rows...)
		for name, n := range r.Counts {
			counts[name] += n
		}
	}
	return grid, counts
}

// Render draws the grid as a preview image with scale x scale pixels per
// cell, filled with each cell's stored color. Cells larger than three
// pixels get 1-pixel black boundaries between neighbours.
func Render(grid Grid, scale int) *image.NRGBA {
	width, height := grid.Width(), grid.Height()
	img := image.NewNRGBA(image.Rect(0, 0, width*scale, height*scale))

	for y, row := range grid {
		for x, cell := range row {
			c := color.NRGBA{R: cell.Color[0], G: cell.Color[1], B: cell.Color[2], A: 255}
			fillCell(img, x*scale, y*scale, scale, c)
		}
	}

	imaging.DrawCellBoundaries(img, scale, boundaryColor)
	return img
}

func fillCell(img *image.NRGBA, x0, y0, size int, c color.NRGBA) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}
