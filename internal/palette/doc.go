// Package palette holds the block catalog and the nearest-color matcher.
//
// The catalog is a fixed, ordered list of named reference colors ("blocks").
// It is loaded once at process start from an embedded JSON asset and never
// mutated afterwards. Catalog order is significant: when two entries are
// equally close to a query color, the earlier one wins.
//
// # Matching
//
// Colors are compared in CIE Lab (D65 white point) using the CIE76 delta E,
// i.e. plain Euclidean distance in Lab. Two deterministic biases are applied
// to the distance before comparison:
//   - transparent entries (glass) are multiplied by 1.2
//   - natural entries (stone, dirt, wood, ...) are multiplied by 0.9
//
// # Thread Safety
//
// Catalog is immutable and safe to share. Matcher memoizes exact-color
// lookups in a map guarded by a sync.RWMutex and is safe for concurrent use.
package palette
