package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// FitDimensions computes the output size for a source of srcW x srcH that
// must fit within maxW x maxH while preserving aspect ratio.
//
// The scale factor is min(maxW/srcW, maxH/srcH) and each output dimension is
// round(src * factor), clamped to [1, max]. Sources smaller than the bounds
// are scaled up.
func FitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	factor := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	w := int(math.Round(float64(srcW) * factor))
	h := int(math.Round(float64(srcH) * factor))
	return clamp(w, 1, maxW), clamp(h, 1, maxH)
}

// Normalize resizes img to fit within maxW x maxH cells and flattens it onto
// an opaque white background.
//
// Parameters:
//   - img: Decoded source image. Any color model is accepted; grayscale and
//     paletted images are expanded to RGB.
//   - maxW, maxH: Grid bounds in cells. Must be positive.
//
// Returns an opaque *image.NRGBA. Resampling uses the Lanczos filter so large
// downscales do not alias. Alpha is composited per pixel as
// rgb*alpha + white*(1-alpha).
//
// # Errors
//
// Returns *InvalidDimensionsError if img has zero width or height.
func Normalize(img image.Image, maxW, maxH int) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &InvalidDimensionsError{Width: bounds.Dx(), Height: bounds.Dy()}
	}

	w, h := FitDimensions(bounds.Dx(), bounds.Dy(), maxW, maxH)

	var resized *image.NRGBA
	if w == bounds.Dx() && h == bounds.Dy() {
		resized = imaging.Clone(img)
	} else {
		resized = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	return flattenOnWhite(resized), nil
}

// flattenOnWhite composites a non-premultiplied image onto opaque white.
func flattenOnWhite(src *image.NRGBA) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			if c.A == 255 {
				dst.SetNRGBA(x, y, c)
				continue
			}
			a := uint32(c.A)
			dst.SetNRGBA(x, y, color.NRGBA{
				R: blendWhite(c.R, a),
				G: blendWhite(c.G, a),
				B: blendWhite(c.B, a),
				A: 255,
			})
		}
	}
	return dst
}

// blendWhite returns round(v*a/255 + 255*(255-a)/255).
func blendWhite(v uint8, a uint32) uint8 {
	return uint8((uint32(v)*a + 255*(255-a) + 127) / 255)
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
