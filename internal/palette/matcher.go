package palette

import (
	"math"
	"sync"
	"sync/atomic"
)

const (
	transparentPenalty = 1.2
	naturalPreference  = 0.9
)

// DefaultMemoLimit is the number of memoized colors a Matcher holds before
// it starts over with an empty memo.
const DefaultMemoLimit = 1 << 18

// Match is the result of a nearest-entry lookup.
type Match struct {
	// Index is the entry's position in catalog order.
	Index int `json:"index"`

	// Name is the matched entry's name.
	Name string `json:"name"`

	// Color is a copy of the matched entry's color.
	Color RGB `json:"color"`

	// Distance is the bias-adjusted CIE76 delta E that won the comparison.
	Distance float64 `json:"distance"`
}

// MatcherStats reports memo usage.
type MatcherStats struct {
	Entries int   `json:"entries"`
	Limit   int   `json:"limit"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Flushes int64 `json:"flushes"`
}

// Matcher maps colors to their nearest catalog entry and memoizes the
// answer for each exact RGB triple.
//
// The memo is owned by the Matcher; two Matchers never share state. All
// methods are safe for concurrent use.
type Matcher struct {
	catalog *Catalog

	mu    sync.RWMutex
	memo  map[RGB]Match
	limit int

	hits    atomic.Int64
	misses  atomic.Int64
	flushes atomic.Int64
}

// NewMatcher creates a matcher over catalog. The catalog must be non-nil.
func NewMatcher(catalog *Catalog) *Matcher {
	return &Matcher{
		catalog: catalog,
		memo:    make(map[RGB]Match),
		limit:   DefaultMemoLimit,
	}
}

// SetMemoLimit bounds the memo to n colors. Zero or negative means
// DefaultMemoLimit. A memo already over the new limit is dropped.
func (m *Matcher) SetMemoLimit(n int) {
	if n <= 0 {
		n = DefaultMemoLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
	if len(m.memo) > n {
		m.memo = make(map[RGB]Match)
		m.flushes.Add(1)
	}
}

// Catalog returns the catalog the matcher searches.
func (m *Matcher) Catalog() *Catalog {
	return m.catalog
}

// Match returns the catalog entry closest to c.
//
// Each entry's Lab distance to c is scaled by 1.2 when the entry is
// transparent and by 0.9 when it is natural. Entries are scanned in catalog
// order and the first strictly smallest adjusted distance wins.
func (m *Matcher) Match(c RGB) Match {
	m.mu.RLock()
	if hit, ok := m.memo[c]; ok {
		m.mu.RUnlock()
		m.hits.Add(1)
		return hit
	}
	m.mu.RUnlock()

	result := m.scan(c)

	m.mu.Lock()
	if _, ok := m.memo[c]; !ok && len(m.memo) >= m.limit {
		m.memo = make(map[RGB]Match)
		m.flushes.Add(1)
	}
	m.memo[c] = result
	m.mu.Unlock()
	m.misses.Add(1)

	return result
}

// scan performs the uncached O(catalog) search.
func (m *Matcher) scan(c RGB) Match {
	l, a, b := c.Lab()

	best := -1
	bestDist := math.Inf(1)
	for i := range m.catalog.entries {
		e := &m.catalog.entries[i]
		dl := l - e.lab[0]
		da := a - e.lab[1]
		db := b - e.lab[2]
		d := math.Sqrt(dl*dl + da*da + db*db)

		if e.Transparent {
			d *= transparentPenalty
		}
		if e.Natural {
			d *= naturalPreference
		}
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	e := m.catalog.entries[best]
	return Match{
		Index:    best,
		Name:     e.Name,
		Color:    e.Color,
		Distance: bestDist,
	}
}

// Stats returns the current memo size and hit/miss counters.
func (m *Matcher) Stats() MatcherStats {
	m.mu.RLock()
	n, limit := len(m.memo), m.limit
	m.mu.RUnlock()
	return MatcherStats{
		Entries: n,
		Limit:   limit,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Flushes: m.flushes.Load(),
	}
}

// Reset drops all memoized results.
func (m *Matcher) Reset() {
	m.mu.Lock()
	m.memo = make(map[RGB]Match)
	m.mu.Unlock()
}
