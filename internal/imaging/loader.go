package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DecodeError reports bytes that cannot be interpreted as an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// InvalidDimensionsError reports an image with zero width or height.
type InvalidDimensionsError struct {
	Width  int
	Height int
}

func (e *InvalidDimensionsError) Error() string {
	return fmt.Sprintf("invalid image with zero dimensions (%dx%d)", e.Width, e.Height)
}

// TooLargeError reports an image exceeding the maximum size on either axis.
type TooLargeError struct {
	Width   int
	Height  int
	MaxSize int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("image dimensions %dx%d too large, maximum size is %dx%d pixels",
		e.Width, e.Height, e.MaxSize, e.MaxSize)
}

// ImageInfo contains metadata read from an image header.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the registered decoder name, e.g. "png" or "jpeg".
	Format string `json:"format"`

	// SizeBytes is the length of the encoded image.
	SizeBytes int `json:"size_bytes"`
}

// Inspect reads the image header and validates its dimensions without
// decoding pixel data.
//
// Parameters:
//   - data: Encoded image bytes.
//   - maxSize: Maximum allowed width and height in pixels. Zero disables the
//     check.
//
// Returns:
//   - *ImageInfo: Header metadata.
//   - error: *DecodeError, *InvalidDimensionsError or *TooLargeError.
func Inspect(data []byte, maxSize int) (*ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if err := checkDimensions(cfg.Width, cfg.Height, maxSize); err != nil {
		return nil, err
	}
	return &ImageInfo{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Format:    format,
		SizeBytes: len(data),
	}, nil
}

// Decode validates and fully decodes an image.
//
// The header is checked first so that oversized or empty images are
// rejected before any pixel data is decoded. EXIF orientation is applied,
// and the resulting dimensions are checked again.
//
// # Errors
//
//   - *DecodeError if the bytes are not a supported image
//   - *InvalidDimensionsError if either dimension is zero
//   - *TooLargeError if either dimension exceeds maxSize (when maxSize > 0)
func Decode(data []byte, maxSize int) (image.Image, *ImageInfo, error) {
	info, err := Inspect(data, maxSize)
	if err != nil {
		return nil, nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, nil, &DecodeError{Err: err}
	}

	bounds := img.Bounds()
	if err := checkDimensions(bounds.Dx(), bounds.Dy(), maxSize); err != nil {
		return nil, nil, err
	}
	info.Width = bounds.Dx()
	info.Height = bounds.Dy()

	return img, info, nil
}

func checkDimensions(width, height, maxSize int) error {
	if width <= 0 || height <= 0 {
		return &InvalidDimensionsError{Width: width, Height: height}
	}
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		return &TooLargeError{Width: width, Height: height, MaxSize: maxSize}
	}
	return nil
}
