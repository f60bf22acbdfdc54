package decode

import (
	"strings"

	"github.com/JonMunkholm/rowstream/internal/csv"
)

// RowDecoder converts one raw row into a T.
//
// header is the dialect's header record, or nil when the input has none.
// Implementations must not retain row or header.
type RowDecoder[T any] interface {
	Decode(row csv.Row, header csv.Row) Result[T]
}

// DecoderFunc adapts a function to RowDecoder.
type DecoderFunc[T any] func(row csv.Row, header csv.Row) Result[T]

// Decode calls f.
func (f DecoderFunc[T]) Decode(row csv.Row, header csv.Row) Result[T] {
	return f(row, header)
}

// HeaderIndex maps cleaned, lower-cased column names to their position.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
// When a name repeats, the first occurrence wins.
func MakeHeaderIndex(header csv.Row) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Lookup returns the position of name, ignoring case.
func (h HeaderIndex) Lookup(name string) (int, bool) {
	i, ok := h[strings.ToLower(strings.TrimSpace(name))]
	return i, ok
}
