// Package imaging provides the raster stages of the block conversion pipeline.
//
// This package decodes and validates source images, normalizes them to the
// requested grid footprint, reduces their color space, and draws cell
// boundaries on rendered previews. All operations work with standard Go
// image.Image types and use a coordinate system where (0,0) is at the
// top-left corner, X increases rightward, and Y increases downward.
//
// # Pipeline Stages
//
//   - Decode: bytes -> image.Image, with size and dimension checks performed
//     on the header before the full decode
//   - Normalize: Lanczos resample into the grid bounds, alpha composited over
//     white, grayscale expanded to RGB
//   - Quantize: k-means for large and medium images, median smoothing plus
//     sharpening for small ones
//
// # Thread Safety
//
// Every function is stateless and returns a new image; inputs are never
// modified. Functions can be called concurrently on different images.
//
// # Error Handling
//
// Decode returns typed errors so callers can distinguish failure kinds with
// errors.As:
//   - *DecodeError: the bytes are not a recognizable image
//   - *InvalidDimensionsError: the image has zero width or height
//   - *TooLargeError: the image exceeds the configured size limit
//
// # Supported Formats
//
// PNG, JPEG and GIF from the standard library, plus BMP, TIFF and WebP from
// golang.org/x/image.
package imaging
