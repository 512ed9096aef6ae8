package blocks

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"reflect"
	"sync"
	"testing"

	"github.com/ironsheep/block-art-mcp/internal/cache"
	"github.com/ironsheep/block-art-mcp/internal/imaging"
	"github.com/ironsheep/block-art-mcp/internal/palette"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

func solidPNG(t *testing.T, width, height int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return encodeTestPNG(t, img)
}

func newMemoryCache(t *testing.T) *cache.ResultCache {
	t.Helper()
	c, err := cache.New(cache.Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// failingCache never hits and fails every write.
type failingCache struct {
	mu     sync.Mutex
	writes int
}

func (f *failingCache) Get([]byte, any) ([]byte, bool) { return nil, false }

func (f *failingCache) Set([]byte, any, []byte) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	return &cache.WriteError{Key: "k", Err: errors.New("read-only file system")}
}

func TestConvert_RedScenario(t *testing.T) {
	catalog, err := palette.New([]palette.Entry{
		{Name: "Red Wool", Color: palette.RGB{160, 39, 34}},
		{Name: "Red Concrete", Color: palette.RGB{142, 32, 32}},
	})
	if err != nil {
		t.Fatalf("palette.New failed: %v", err)
	}
	conv := NewConverter(Options{Matcher: palette.NewMatcher(catalog), Logger: quietLogger()})

	res, err := conv.Convert(solidPNG(t, 1, 1, color.NRGBA{255, 0, 0, 255}), Params{GridSize: 1})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !reflect.DeepEqual(res.BlockCount, Counts{"Red Wool": 1}) {
		t.Errorf("BlockCount: got %v, want map[Red Wool:1]", res.BlockCount)
	}
	if res.GridSize != (Dimensions{Width: 1, Height: 1}) {
		t.Errorf("GridSize: got %+v, want 1x1", res.GridSize)
	}
	want := Grid{{{Name: "Red Wool", Color: palette.RGB{160, 39, 34}}}}
	if !reflect.DeepEqual(res.BlockGrid, want) {
		t.Errorf("BlockGrid: got %v, want %v", res.BlockGrid, want)
	}

	preview, err := png.Decode(bytes.NewReader(res.ImageData))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if b := preview.Bounds(); b.Dx() != DefaultScale || b.Dy() != DefaultScale {
		t.Errorf("preview dimensions: got %dx%d, want %dx%d", b.Dx(), b.Dy(), DefaultScale, DefaultScale)
	}
	r, g, b, _ := preview.At(DefaultScale-1, DefaultScale-1).RGBA()
	if r>>8 != 160 || g>>8 != 39 || b>>8 != 34 {
		t.Errorf("preview pixel: got (%d,%d,%d), want (160,39,34)", r>>8, g>>8, b>>8)
	}
}

func TestConvert_Deterministic(t *testing.T) {
	data := encodeTestPNG(t, createGradientImage(150, 120))
	p := Params{GridSize: 100, Colors: 16}

	first, err := NewConverter(Options{Logger: quietLogger()}).Convert(data, p)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	second, err := NewConverter(Options{Logger: quietLogger()}).Convert(data, p)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !reflect.DeepEqual(first.BlockGrid, second.BlockGrid) {
		t.Error("BlockGrid differs between runs")
	}
	if !reflect.DeepEqual(first.BlockCount, second.BlockCount) {
		t.Error("BlockCount differs between runs")
	}
	if !bytes.Equal(first.ImageData, second.ImageData) {
		t.Error("preview bytes differ between runs")
	}
}

func TestConvert_WorkerCountDoesNotChangeOutput(t *testing.T) {
	data := encodeTestPNG(t, createGradientImage(200, 160))
	p := Params{GridSize: 120}

	serial, err := NewConverter(Options{Scheduler: Scheduler{Parallelism: 1}, Logger: quietLogger()}).Convert(data, p)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	parallel, err := NewConverter(Options{Scheduler: Scheduler{Parallelism: 9, MaxWorkers: 8}, Logger: quietLogger()}).Convert(data, p)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !reflect.DeepEqual(serial.BlockGrid, parallel.BlockGrid) {
		t.Error("BlockGrid depends on worker count")
	}
	if !reflect.DeepEqual(serial.BlockCount, parallel.BlockCount) {
		t.Error("BlockCount depends on worker count")
	}
	if !bytes.Equal(serial.ImageData, parallel.ImageData) {
		t.Error("preview depends on worker count")
	}
}

func TestConvert_Invariants(t *testing.T) {
	data := encodeTestPNG(t, createGradientImage(300, 150))
	conv := NewConverter(Options{Logger: quietLogger()})
	catalog := conv.Matcher().Catalog()

	res, err := conv.Convert(data, Params{GridSize: 80, Scale: 2})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	// Aspect ratio 2:1 is preserved.
	if res.GridSize != (Dimensions{Width: 80, Height: 40}) {
		t.Fatalf("GridSize: got %+v, want 80x40", res.GridSize)
	}
	if len(res.BlockGrid) != res.GridSize.Height {
		t.Fatalf("rows: got %d, want %d", len(res.BlockGrid), res.GridSize.Height)
	}

	total := 0
	for y, row := range res.BlockGrid {
		if len(row) != res.GridSize.Width {
			t.Fatalf("row %d width: got %d, want %d", y, len(row), res.GridSize.Width)
		}
		for x, cell := range row {
			i, ok := catalog.Index(cell.Name)
			if !ok {
				t.Fatalf("cell (%d,%d): unknown block %q", x, y, cell.Name)
			}
			entry := catalog.Entry(i)
			if cell.Color != entry.Color {
				t.Fatalf("cell (%d,%d) color: got %v, want %v", x, y, cell.Color, entry.Color)
			}
			total++
		}
	}
	if got := res.BlockCount.Total(); got != total || total != 80*40 {
		t.Errorf("count total: got %d, want %d", got, 80*40)
	}

	preview, err := png.Decode(bytes.NewReader(res.ImageData))
	if err != nil {
		t.Fatalf("preview is not a PNG: %v", err)
	}
	if b := preview.Bounds(); b.Dx() != 160 || b.Dy() != 80 {
		t.Errorf("preview dimensions: got %dx%d, want 160x80", b.Dx(), b.Dy())
	}
	if res.ProcessingTime < 0 {
		t.Errorf("ProcessingTime: got %v", res.ProcessingTime)
	}
	if res.ID == "" {
		t.Error("ID is empty")
	}
}

func TestConvert_ZeroDimensionsLeavesNoCacheEntry(t *testing.T) {
	rc := newMemoryCache(t)
	conv := NewConverter(Options{Cache: rc, Logger: quietLogger()})

	res, err := conv.Convert([]byte("GIF89a\x00\x00\x00\x00\x00\x00\x00;"), Params{})
	if res != nil {
		t.Error("Convert returned a result on failure")
	}

	var dimErr *imaging.InvalidDimensionsError
	if !errors.As(err, &dimErr) {
		t.Fatalf("error type: got %T (%v), want *imaging.InvalidDimensionsError", err, err)
	}
	if n := rc.Stats().Entries; n != 0 {
		t.Errorf("cache entries after failure: got %d, want 0", n)
	}
}

func TestConvert_SecondCallHitsCache(t *testing.T) {
	rc := newMemoryCache(t)
	conv := NewConverter(Options{Cache: rc, Logger: quietLogger()})
	data := encodeTestPNG(t, createGradientImage(120, 120))
	p := Params{GridSize: 60}

	first, err := conv.Convert(data, p)
	if err != nil {
		t.Fatalf("first Convert failed: %v", err)
	}
	if first.FromCache {
		t.Error("first call reported a cache hit")
	}

	second, err := conv.Convert(data, p)
	if err != nil {
		t.Fatalf("second Convert failed: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second call did not hit the cache")
	}

	if !reflect.DeepEqual(first.BlockGrid, second.BlockGrid) ||
		!reflect.DeepEqual(first.BlockCount, second.BlockCount) ||
		!bytes.Equal(first.ImageData, second.ImageData) ||
		first.GridSize != second.GridSize ||
		first.ProcessingTime != second.ProcessingTime {
		t.Error("cached result differs from the computed one")
	}
	if first.ID == second.ID {
		t.Error("cached call reused the previous ID")
	}

	if stats := rc.Stats(); stats.Hits != 1 || stats.Entries != 1 {
		t.Errorf("cache stats: got %+v, want 1 hit and 1 entry", stats)
	}

	// Different parameters miss.
	third, err := conv.Convert(data, Params{GridSize: 30})
	if err != nil {
		t.Fatalf("third Convert failed: %v", err)
	}
	if third.FromCache {
		t.Error("different parameters hit the cache")
	}
}

func TestConvert_DefaultsShareCacheEntry(t *testing.T) {
	rc := newMemoryCache(t)
	conv := NewConverter(Options{Cache: rc, Logger: quietLogger()})
	data := solidPNG(t, 10, 10, color.NRGBA{125, 125, 125, 255})

	if _, err := conv.Convert(data, Params{}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	res, err := conv.Convert(data, Params{GridSize: DefaultGridSize, Colors: DefaultColors, Scale: DefaultScale})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !res.FromCache {
		t.Error("explicit defaults did not share the cache entry of zero params")
	}
}

func TestConvert_CacheKeyIncludesCatalog(t *testing.T) {
	rc := newMemoryCache(t)
	data := solidPNG(t, 4, 4, color.NRGBA{200, 10, 10, 255})

	other, err := palette.New([]palette.Entry{{Name: "Only Block", Color: palette.RGB{0, 0, 0}}})
	if err != nil {
		t.Fatalf("palette.New failed: %v", err)
	}

	if _, err := NewConverter(Options{Cache: rc, Logger: quietLogger()}).Convert(data, Params{}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	res, err := NewConverter(Options{Cache: rc, Matcher: palette.NewMatcher(other), Logger: quietLogger()}).Convert(data, Params{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if res.FromCache {
		t.Error("a different catalog reused a cached result")
	}
	if !reflect.DeepEqual(res.BlockCount, Counts{"Only Block": res.GridSize.Width * res.GridSize.Height}) {
		t.Errorf("BlockCount: got %v", res.BlockCount)
	}
}

func TestConvert_SeedOption(t *testing.T) {
	rc := newMemoryCache(t)
	data := solidPNG(t, 6, 6, color.NRGBA{40, 90, 200, 255})

	if _, err := NewConverter(Options{Cache: rc, Seed: 7, Logger: quietLogger()}).Convert(data, Params{}); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	res, err := NewConverter(Options{Cache: rc, Logger: quietLogger()}).Convert(data, Params{Seed: 7})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !res.FromCache {
		t.Error("converter seed and explicit seed produced different cache keys")
	}

	res, err = NewConverter(Options{Cache: rc, Logger: quietLogger()}).Convert(data, Params{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.FromCache {
		t.Error("default seed reused a result made with seed 7")
	}
}

func TestConvert_CacheWriteFailureIsNotFatal(t *testing.T) {
	fc := &failingCache{}
	conv := NewConverter(Options{Cache: fc, Logger: quietLogger()})

	res, err := conv.Convert(solidPNG(t, 8, 8, color.NRGBA{10, 20, 30, 255}), Params{})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res == nil || len(res.BlockGrid) == 0 {
		t.Fatal("Convert returned no result")
	}
	if fc.writes != 1 {
		t.Errorf("cache writes: got %d, want 1", fc.writes)
	}
}

func TestConvert_InvalidParams(t *testing.T) {
	conv := NewConverter(Options{MaxGridSize: 50, Logger: quietLogger()})
	data := solidPNG(t, 4, 4, color.NRGBA{0, 0, 0, 255})

	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"negative grid", Params{GridSize: -1}, "grid_size"},
		{"negative colors", Params{Colors: -3}, "num_colors"},
		{"negative scale", Params{Scale: -1}, "output_scale"},
		{"scale over limit", Params{Scale: MaxScale + 1}, "output_scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conv.Convert(data, tt.p)

			var paramErr *ParamError
			if !errors.As(err, &paramErr) {
				t.Fatalf("error type: got %T (%v), want *ParamError", err, err)
			}
			if paramErr.Field != tt.field {
				t.Errorf("Field: got %s, want %s", paramErr.Field, tt.field)
			}
		})
	}
}

func TestConvert_ClampsGridSize(t *testing.T) {
	rc := newMemoryCache(t)
	conv := NewConverter(Options{MaxGridSize: 50, Cache: rc, Logger: quietLogger()})
	data := solidPNG(t, 100, 100, color.NRGBA{125, 125, 125, 255})

	res, err := conv.Convert(data, Params{GridSize: 500})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.GridSize != (Dimensions{Width: 50, Height: 50}) {
		t.Errorf("GridSize: got %+v, want 50x50", res.GridSize)
	}

	res, err = conv.Convert(data, Params{GridSize: 50})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if !res.FromCache {
		t.Error("clamped request and explicit limit did not share a cache entry")
	}
}

func TestConvert_SourceErrors(t *testing.T) {
	conv := NewConverter(Options{MaxImageSize: 16, Logger: quietLogger()})

	_, err := conv.Convert(solidPNG(t, 17, 4, color.NRGBA{0, 0, 0, 255}), Params{})
	var sizeErr *imaging.TooLargeError
	if !errors.As(err, &sizeErr) {
		t.Errorf("oversize: got %T (%v), want *imaging.TooLargeError", err, err)
	}

	_, err = conv.Convert([]byte("definitely not an image"), Params{})
	var decodeErr *imaging.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("garbage: got %T (%v), want *imaging.DecodeError", err, err)
	}
}

func TestParams_WithDefaults(t *testing.T) {
	got := Params{}.WithDefaults()
	want := Params{GridSize: 100, Colors: 32, Scale: 4, Seed: 42}
	if got != want {
		t.Errorf("WithDefaults: got %+v, want %+v", got, want)
	}

	custom := Params{GridSize: 10, Colors: 5, Scale: 1, Seed: 9}
	if got := custom.WithDefaults(); got != custom {
		t.Errorf("WithDefaults changed explicit values: got %+v", got)
	}
}
