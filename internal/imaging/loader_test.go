package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

// createInMemoryImage creates an in-memory test image filled with one color.
func createInMemoryImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createPatternImage creates an image with different colors in each quadrant.
func createPatternImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.NRGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.NRGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.NRGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.NRGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// encodeTestPNG encodes img as PNG bytes.
func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	data := encodeTestPNG(t, createInMemoryImage(200, 150, color.NRGBA{255, 128, 64, 255}))

	info, err := Inspect(data, 0)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if info.Width != 200 {
		t.Errorf("Width: got %d, want 200", info.Width)
	}
	if info.Height != 150 {
		t.Errorf("Height: got %d, want 150", info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.SizeBytes != len(data) {
		t.Errorf("SizeBytes: got %d, want %d", info.SizeBytes, len(data))
	}
}

func TestInspect_FormatDetection(t *testing.T) {
	img := createPatternImage(10, 10)

	var jpegBuf, gifBuf bytes.Buffer
	if err := jpeg.Encode(&jpegBuf, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	if err := gif.Encode(&gifBuf, img, nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}

	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{"png", encodeTestPNG(t, img), "png"},
		{"jpeg", jpegBuf.Bytes(), "jpeg"},
		{"gif", gifBuf.Bytes(), "gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Inspect(tt.data, 0)
			if err != nil {
				t.Fatalf("Inspect failed: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format: got %s, want %s", info.Format, tt.format)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	data := encodeTestPNG(t, createPatternImage(40, 20))

	img, info, err := Decode(data, 2000)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 40 || bounds.Dy() != 20 {
		t.Errorf("dimensions: got %dx%d, want 40x20", bounds.Dx(), bounds.Dy())
	}
	if info.Width != 40 || info.Height != 20 {
		t.Errorf("info dimensions: got %dx%d, want 40x20", info.Width, info.Height)
	}

	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("pixel (0,0): got (%d,%d,%d), want (255,0,0)", r>>8, g>>8, b>>8)
	}
}

func TestDecode_InvalidData(t *testing.T) {
	_, _, err := Decode([]byte("not an image"), 2000)
	if err == nil {
		t.Fatal("Decode should fail for invalid image data")
	}

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error type: got %T, want *DecodeError", err)
	}
}

func TestDecode_Empty(t *testing.T) {
	_, _, err := Decode(nil, 2000)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("error type: got %T, want *DecodeError", err)
	}
}

func TestDecode_ZeroDimensions(t *testing.T) {
	// GIF header with a 0x0 logical screen and no global color table.
	data := []byte("GIF89a\x00\x00\x00\x00\x00\x00\x00;")

	_, _, err := Decode(data, 2000)
	if err == nil {
		t.Fatal("Decode should fail for a 0x0 image")
	}

	var dimErr *InvalidDimensionsError
	if !errors.As(err, &dimErr) {
		t.Fatalf("error type: got %T (%v), want *InvalidDimensionsError", err, err)
	}
	if dimErr.Width != 0 || dimErr.Height != 0 {
		t.Errorf("reported dimensions: got %dx%d, want 0x0", dimErr.Width, dimErr.Height)
	}
}

func TestDecode_TooLarge(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		maxSize       int
		wantErr       bool
	}{
		{"within limit", 50, 40, 50, false},
		{"width over", 51, 10, 50, true},
		{"height over", 10, 51, 50, true},
		{"limit disabled", 300, 300, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encodeTestPNG(t, createInMemoryImage(tt.width, tt.height, color.White))

			_, _, err := Decode(data, tt.maxSize)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("Decode failed: %v", err)
				}
				return
			}

			var sizeErr *TooLargeError
			if !errors.As(err, &sizeErr) {
				t.Fatalf("error type: got %T, want *TooLargeError", err)
			}
			if sizeErr.Width != tt.width || sizeErr.Height != tt.height || sizeErr.MaxSize != tt.maxSize {
				t.Errorf("error fields: got %+v", sizeErr)
			}
		})
	}
}
