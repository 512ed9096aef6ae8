package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
)

// MinBoundaryCellSize is the smallest cell size that gets boundary lines.
// Smaller cells would be mostly line.
const MinBoundaryCellSize = 4

// DrawCellBoundaries draws 1-pixel lines between adjacent cells of size
// cell x cell, in place.
//
// A line occupies the last pixel column (or row) of every cell that has a
// neighbour to its right (or below): vertical lines at x = k*cell - 1 for
// k = 1..cols-1 and horizontal lines at y = k*cell - 1 for k = 1..rows-1.
// The outer border is left untouched. Nothing is drawn when cell is below
// MinBoundaryCellSize.
func DrawCellBoundaries(img *image.NRGBA, cell int, c color.NRGBA) {
	if cell < MinBoundaryCellSize {
		return
	}

	b := img.Bounds()
	cols := b.Dx() / cell
	rows := b.Dy() / cell

	// Draw vertical lines
	for k := 1; k < cols; k++ {
		x := b.Min.X + k*cell - 1
		for y := b.Min.Y; y < b.Max.Y; y++ {
			img.SetNRGBA(x, y, c)
		}
	}

	// Draw horizontal lines
	for k := 1; k < rows; k++ {
		y := b.Min.Y + k*cell - 1
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

// EncodePNG encodes img as PNG with maximum compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
