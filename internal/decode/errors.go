package decode

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why a row position did not produce a value.
type Kind int

const (
	// KindUnknown is reported for errors that are not *Error values.
	KindUnknown Kind = iota
	// KindStructural means the text could not be split into fields,
	// for example an unterminated quoted field.
	KindStructural
	// KindArity means the row has the wrong number of fields for the target.
	KindArity
	// KindConversion means one field's text could not become the target type.
	KindConversion
	// KindResource means the underlying source could not be read or closed.
	KindResource
	// KindUsage means the caller misused the API, such as reading after Close.
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindArity:
		return "arity"
	case KindConversion:
		return "conversion"
	case KindResource:
		return "resource"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// ErrClosed is wrapped by the usage error returned when reading a closed stream.
var ErrClosed = errors.New("stream already closed")

// Error describes a row position that failed to decode.
type Error struct {
	Kind Kind
	Line int // physical line the record started on; 0 if unknown

	// Conversion details. Field is the zero-based field index, or -1.
	Field  int
	Column string // header name, when known
	Raw    string
	Target string

	// Arity details.
	Expected int
	Got      int

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("decode: ")
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	switch e.Kind {
	case KindArity:
		if e.Column != "" {
			fmt.Fprintf(&b, "column %q not found", e.Column)
		} else {
			fmt.Fprintf(&b, "row has %d fields, expected %d", e.Got, e.Expected)
		}
	case KindConversion:
		if e.Column != "" {
			fmt.Fprintf(&b, "field %q", e.Column)
		} else {
			fmt.Fprintf(&b, "field %d", e.Field)
		}
		fmt.Fprintf(&b, ": cannot convert %q", e.Raw)
		if e.Target != "" {
			fmt.Fprintf(&b, " to %s", e.Target)
		}
	default:
		b.WriteString(e.Kind.String())
		b.WriteString(" error")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// ArityError reports a row with got fields where expected were required.
func ArityError(expected, got int) *Error {
	return &Error{Kind: KindArity, Field: -1, Expected: expected, Got: got}
}

// ConversionError reports that field index (named column, if known) holding
// raw could not be converted to target.
func ConversionError(field int, column, raw, target string, err error) *Error {
	return &Error{
		Kind:   KindConversion,
		Field:  field,
		Column: column,
		Raw:    raw,
		Target: target,
		Err:    err,
	}
}

// WithLine returns err with Line set when err is an *Error that lacks one.
// Errors of other types are wrapped as conversion failures so every decoder
// failure carries a Kind and position.
func WithLine(err error, line int) *Error {
	de, ok := err.(*Error)
	if !ok {
		return &Error{Kind: KindConversion, Line: line, Field: -1, Err: err}
	}
	if de.Line != 0 {
		return de
	}
	cp := *de
	cp.Line = line
	return &cp
}
