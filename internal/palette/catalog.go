package palette

import (
	"bytes"
	"crypto/sha256"
	_ "embed" // catalog asset
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

//go:embed blocks.json
var defaultCatalogJSON []byte

// naturalKeywords classify an entry as "natural" when its lowercased name
// contains any of them.
var naturalKeywords = []string{
	"stone", "dirt", "grass", "sand", "gravel", "log",
	"leaves", "wood", "planks", "clay", "terracotta",
}

// RGB is an 8-bit sRGB triple. It serializes as a JSON array [r, g, b].
type RGB [3]uint8

// Hex returns the color as "#RRGGBB".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c[0], c[1], c[2])
}

// Lab converts the color to CIE Lab with the D65 white point, scaled to the
// conventional ranges (L in 0-100). go-colorful reports L in 0-1.
func (c RGB) Lab() (l, a, b float64) {
	l, a, b = colorful.Color{
		R: float64(c[0]) / 255.0,
		G: float64(c[1]) / 255.0,
		B: float64(c[2]) / 255.0,
	}.Lab()
	return l * 100, a * 100, b * 100
}

// Entry is a single block in the catalog.
type Entry struct {
	// Name is unique within a catalog.
	Name string `json:"name"`

	// Color is the block's representative color.
	Color RGB `json:"color"`

	// Transparent marks see-through blocks such as glass.
	Transparent bool `json:"transparent,omitempty"`

	// Natural is derived from the name; see IsNatural.
	Natural bool `json:"-"`

	lab [3]float64
}

// IsNatural reports whether a block name matches the natural keyword set.
func IsNatural(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range naturalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Catalog is an ordered, immutable list of entries.
type Catalog struct {
	entries []Entry
	byName  map[string]int
}

// catalogEntry mirrors the asset format, using a slice so that the
// component count can be validated.
type catalogEntry struct {
	Name        string `json:"name"`
	Color       []int  `json:"color"`
	Transparent bool   `json:"transparent"`
}

// Load parses and validates a catalog from JSON.
//
// The document must be a non-empty array of objects of the form
// {"name": "...", "color": [r, g, b], "transparent": bool}. Names must be
// non-empty and unique; each color must have exactly three components in
// 0-255.
func Load(r io.Reader) (*Catalog, error) {
	var raw []catalogEntry
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	entries := make([]Entry, 0, len(raw))
	for i, re := range raw {
		if strings.TrimSpace(re.Name) == "" {
			return nil, fmt.Errorf("catalog entry %d: empty name", i)
		}
		if len(re.Color) != 3 {
			return nil, fmt.Errorf("catalog entry %q: color must have 3 components, got %d", re.Name, len(re.Color))
		}
		var c RGB
		for j, v := range re.Color {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("catalog entry %q: component %d out of range: %d", re.Name, j, v)
			}
			c[j] = uint8(v)
		}
		entries = append(entries, Entry{
			Name:        re.Name,
			Color:       c,
			Transparent: re.Transparent,
		})
	}
	return New(entries)
}

// New builds a catalog from entries, preserving their order. Natural flags
// and Lab coordinates are derived here; values set by the caller are ignored.
func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	c := &Catalog{
		entries: make([]Entry, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		if e.Name == "" {
			return nil, fmt.Errorf("catalog entry %d: empty name", i)
		}
		if _, dup := c.byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", e.Name)
		}
		e.Natural = IsNatural(e.Name)
		l, a, b := e.Color.Lab()
		e.lab = [3]float64{l, a, b}
		c.entries[i] = e
		c.byName[e.Name] = i
	}
	return c, nil
}

// LoadFile reads a catalog from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded block catalog. It panics if the asset is
// malformed.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalogJSON))
	if err != nil {
		panic(fmt.Sprintf("palette: invalid embedded catalog: %v", err))
	}
	return c
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entry returns the entry at index i in catalog order.
func (c *Catalog) Entry(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of all entries in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Index returns the catalog position of the entry with the exact name.
func (c *Catalog) Index(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// Fingerprint returns a SHA-256 hex digest of the entries in order. Catalogs
// with equal fingerprints produce equal matches.
func (c *Catalog) Fingerprint() string {
	data, err := json.Marshal(c.entries)
	if err != nil {
		panic(fmt.Sprintf("palette: cannot serialize catalog: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
