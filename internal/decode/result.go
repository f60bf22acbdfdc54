// Package decode defines the outcome of turning one CSV row into a value and
// the capability that performs that conversion.
package decode

// Result is the outcome of decoding one row: either a value or an error,
// never both and never neither.
type Result[T any] struct {
	value T
	err   error
}

// Success wraps a decoded value.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure wraps a decode error. It panics if err is nil.
func Failure[T any](err error) Result[T] {
	if err == nil {
		panic("decode: Failure called with nil error")
	}
	return Result[T]{err: err}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool {
	return r.err == nil
}

// Value returns the decoded value, or the zero value for a failure.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the decode error, or nil for a success.
func (r Result[T]) Err() error {
	return r.err
}

// Get returns the value and the error.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// Retype carries a failure over to another payload type.
// It panics if r is a success, since there is no value of type U to produce.
func Retype[U, T any](r Result[T]) Result[U] {
	if r.err == nil {
		panic("decode: Retype called on a success")
	}
	return Result[U]{err: r.err}
}
