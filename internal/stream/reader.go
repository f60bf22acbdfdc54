// Package stream turns a CSV source into a lazy sequence of decoded rows.
//
// A Reader pulls one record at a time from a csv.Tokenizer, hands it to an
// injected decode.RowDecoder, and yields the decode.Result. Every row position
// produces a result: structural and conversion problems are reported as
// failures and iteration carries on. The Reader owns its source and releases
// it exactly once, on Close, on exhaustion, or when the source fails.
package stream

import (
	"errors"
	"io"
	"log/slog"

	"github.com/JonMunkholm/rowstream/internal/csv"
	"github.com/JonMunkholm/rowstream/internal/decode"
)

// Iterator is a pull-based sequence of decode results.
//
// Next returns the next result and true, or a zero Result and false once the
// sequence has ended. Close releases the underlying source; it is idempotent.
// Iterators are not safe for concurrent use.
type Iterator[T any] interface {
	Next() (decode.Result[T], bool)
	Close() error
}

// State is the lifecycle stage of a Reader.
type State int

const (
	StateNew State = iota
	StateStreaming
	StateExhausted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStreaming:
		return "streaming"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Reader.
type Options struct {
	Dialect csv.Dialect
	Logger  *slog.Logger // nil selects slog.Default()
}

// Reader decodes rows of type T from a CSV source.
type Reader[T any] struct {
	src    io.ReadCloser
	tok    *csv.Tokenizer
	dec    decode.RowDecoder[T]
	logger *slog.Logger

	state    State
	fatal    error // repeated by Next once the source has failed
	released bool
	closeErr error
}

// NewReader returns a Reader over src using dec for every row.
// Nothing is read from src until the first call to Next.
func NewReader[T any](src io.ReadCloser, dec decode.RowDecoder[T], opts Options) *Reader[T] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader[T]{
		src:    src,
		tok:    csv.NewTokenizer(src, opts.Dialect),
		dec:    dec,
		logger: logger,
	}
}

// Next returns the result for the next row.
//
// After the last row it releases the source and returns false. If the source
// fails, Next returns a resource failure and keeps returning it on every later
// call. After Close, Next returns a usage failure wrapping decode.ErrClosed.
func (r *Reader[T]) Next() (decode.Result[T], bool) {
	switch r.state {
	case StateClosed:
		return decode.Failure[T](&decode.Error{Kind: decode.KindUsage, Field: -1, Err: decode.ErrClosed}), true
	case StateFailed:
		return decode.Failure[T](r.fatal), true
	case StateExhausted:
		var zero decode.Result[T]
		return zero, false
	}
	r.state = StateStreaming

	row, err := r.tok.Next()
	if err != nil {
		return r.handleTokenError(err)
	}

	res := r.dec.Decode(row, r.tok.Header())
	if !res.OK() {
		return decode.Failure[T](decode.WithLine(res.Err(), r.tok.Line())), true
	}
	return res, true
}

func (r *Reader[T]) handleTokenError(err error) (decode.Result[T], bool) {
	if errors.Is(err, io.EOF) {
		r.state = StateExhausted
		if cerr := r.release(); cerr != nil {
			r.fail(cerr)
			return decode.Failure[T](r.fatal), true
		}
		r.logger.Debug("stream exhausted", "line", r.tok.Line())
		var zero decode.Result[T]
		return zero, false
	}

	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return decode.Failure[T](&decode.Error{
			Kind:  decode.KindStructural,
			Line:  pe.Line,
			Field: -1,
			Err:   err,
		}), true
	}

	r.fail(err)
	if cerr := r.release(); cerr != nil {
		r.logger.Warn("release after read failure", "error", cerr)
	}
	return decode.Failure[T](r.fatal), true
}

func (r *Reader[T]) fail(err error) {
	r.state = StateFailed
	r.fatal = &decode.Error{Kind: decode.KindResource, Line: r.tok.Line(), Field: -1, Err: err}
	r.logger.Warn("stream failed", "error", err)
}

// release closes the source the first time it is called and returns that
// result on every call.
func (r *Reader[T]) release() error {
	if r.released {
		return r.closeErr
	}
	r.released = true
	r.closeErr = r.src.Close()
	return r.closeErr
}

// Close releases the source and ends iteration. It is safe to call more than
// once; later calls return the error from the first release.
func (r *Reader[T]) Close() error {
	r.state = StateClosed
	return r.release()
}

// Header returns the header record once the first row has been requested.
func (r *Reader[T]) Header() csv.Row {
	return r.tok.Header()
}

// Line returns the physical line on which the most recent row started.
func (r *Reader[T]) Line() int {
	return r.tok.Line()
}

// State reports the Reader's lifecycle stage.
func (r *Reader[T]) State() State {
	return r.state
}
