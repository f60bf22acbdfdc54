package stream

import (
	"iter"

	"github.com/JonMunkholm/rowstream/internal/decode"
)

// FilterSuccess returns an Iterator that skips successful results whose value
// fails keep. Failures are always passed through. The returned Iterator owns
// it; closing one closes the other.
func FilterSuccess[T any](it Iterator[T], keep func(T) bool) Iterator[T] {
	return &filterIter[T]{src: it, keep: keep}
}

type filterIter[T any] struct {
	src  Iterator[T]
	keep func(T) bool
}

func (f *filterIter[T]) Next() (decode.Result[T], bool) {
	for {
		res, ok := f.src.Next()
		if !ok || !res.OK() || f.keep(res.Value()) {
			return res, ok
		}
	}
}

func (f *filterIter[T]) Close() error {
	return f.src.Close()
}

// MapSuccess returns an Iterator that applies fn to every successful value.
// Failures keep their error and change only their payload type.
func MapSuccess[T, U any](it Iterator[T], fn func(T) U) Iterator[U] {
	return &mapIter[T, U]{src: it, fn: fn}
}

type mapIter[T, U any] struct {
	src Iterator[T]
	fn  func(T) U
}

func (m *mapIter[T, U]) Next() (decode.Result[U], bool) {
	res, ok := m.src.Next()
	if !ok {
		var zero decode.Result[U]
		return zero, false
	}
	if !res.OK() {
		return decode.Retype[U](res), true
	}
	return decode.Success(m.fn(res.Value())), true
}

func (m *mapIter[T, U]) Close() error {
	return m.src.Close()
}

// All adapts it to a range-over-func sequence. The iterator is closed when
// the sequence ends or the loop body breaks. A resource or usage failure is
// yielded once and ends the sequence, since the iterator would repeat it.
//
// Usage:
//
//	for res := range stream.All(r) {
//	    if err := res.Err(); err != nil {
//	        log.Printf("skipping row: %v", err)
//	        continue
//	    }
//	    use(res.Value())
//	}
func All[T any](it Iterator[T]) iter.Seq[decode.Result[T]] {
	return func(yield func(decode.Result[T]) bool) {
		defer it.Close()
		for {
			res, ok := it.Next()
			if !ok || !yield(res) || terminal(res) {
				return
			}
		}
	}
}

// Collect drains it, closes it, and returns every result in order.
// A failing source yields its resource failure once and then stops.
func Collect[T any](it Iterator[T]) ([]decode.Result[T], error) {
	var out []decode.Result[T]
	for {
		res, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, res)
		if terminal(res) {
			break
		}
	}
	return out, it.Close()
}

func terminal[T any](res decode.Result[T]) bool {
	if res.OK() {
		return false
	}
	k := decode.KindOf(res.Err())
	return k == decode.KindResource || k == decode.KindUsage
}
