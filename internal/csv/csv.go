// Package csv tokenizes CSV text into raw rows.
//
// The tokenizer is a single-pass state machine over bytes. It understands
// quoted fields, doubled quotes inside quoted fields, delimiters and line
// terminators embedded in quoted fields, and final records without a trailing
// line terminator. It does not convert fields into typed values; that is the
// job of a decode.RowDecoder.
package csv

import (
	"errors"
	"fmt"
)

// DefaultComma is the field delimiter used when a Dialect leaves Comma unset.
const DefaultComma = ','

// ErrUnterminatedQuote is reported when input ends inside a quoted field.
var ErrUnterminatedQuote = errors.New("csv: unterminated quoted field")

// Row is one logical CSV record: its fields in source order.
// A Row may span several physical lines when a quoted field contains line breaks.
type Row []string

// Dialect describes the CSV variant being read.
type Dialect struct {
	// Comma is the field delimiter. Zero means DefaultComma.
	Comma rune

	// HasHeader reports whether the first record names the columns.
	// The header record is consumed by the tokenizer and never returned by Next.
	HasHeader bool
}

func (d Dialect) comma() rune {
	if d.Comma == 0 {
		return DefaultComma
	}
	return d.Comma
}

// Validate rejects delimiters that would make the grammar ambiguous.
func (d Dialect) Validate() error {
	switch d.comma() {
	case '"', '\r', '\n':
		return fmt.Errorf("csv: invalid delimiter %q", d.comma())
	}
	return nil
}

// ParseError locates a structural problem in the input.
type ParseError struct {
	Line   int // line on which the offending record or quote started
	Column int // rune column (1-based) of the offending character
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("csv: parse error on line %d, column %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
