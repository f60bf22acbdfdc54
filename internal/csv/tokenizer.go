package csv

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

type tokenState int

const (
	stateFieldStart tokenState = iota
	stateUnquoted
	stateQuoted
	stateQuoteInQuoted
)

// Tokenizer splits a byte stream into Rows.
//
// A Tokenizer is not safe for concurrent use. It performs no read until the
// first call to Next and pulls bytes from the source only as the current
// record needs them: a record ending in "\r" costs one extra byte of
// lookahead, a multi-byte delimiter up to its own length. Field bytes are
// copied as they are; invalid UTF-8 is not replaced.
type Tokenizer struct {
	r     *byteSource
	comma []byte

	hasHeader  bool
	headerRead bool
	header     Row

	line       int // physical line of the next byte
	col        int // column of the last character read on the current line
	recordLine int
	quoteLine  int
	quoteCol   int
	width      int

	field []byte
	done  bool
	err   error
}

// NewTokenizer returns a Tokenizer reading from r. When r implements
// io.ByteReader it is read through ReadByte, otherwise one byte per Read.
func NewTokenizer(r io.Reader, d Dialect) *Tokenizer {
	return &Tokenizer{
		r:         newByteSource(r),
		comma:     utf8.AppendRune(nil, d.comma()),
		hasHeader: d.HasHeader,
		line:      1,
		field:     make([]byte, 0, 64),
	}
}

// Header returns the header record, or nil if the dialect has none or it has
// not been read yet.
func (t *Tokenizer) Header() Row {
	return t.header
}

// Line returns the physical line on which the most recently returned record began.
func (t *Tokenizer) Line() int {
	return t.recordLine
}

// Next returns the next record. It returns io.EOF once the input is exhausted,
// a *ParseError for a record that cannot be tokenized, and a wrapped read
// error if the source fails. Read errors are sticky.
func (t *Tokenizer) Next() (Row, error) {
	if t.hasHeader && !t.headerRead {
		t.headerRead = true
		header, err := t.readRecord()
		if err != nil {
			return nil, err
		}
		t.header = header
	}
	return t.readRecord()
}

func (t *Tokenizer) readRecord() (Row, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.done {
		return nil, io.EOF
	}

	fields := make(Row, 0, t.width)
	t.field = t.field[:0]
	st := stateFieldStart
	started := false

	for {
		c, err := t.readByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.err = fmt.Errorf("csv: read source: %w", err)
				return nil, t.err
			}
			t.done = true
			if st == stateQuoted {
				t.recordLine = t.quoteLine
				return nil, &ParseError{Line: t.quoteLine, Column: t.quoteCol, Err: ErrUnterminatedQuote}
			}
			if !started {
				return nil, io.EOF
			}
			return t.finish(fields), nil
		}

		if !started {
			// Blank physical lines are not records.
			if isLineEnd(c) {
				t.endLine(c)
				continue
			}
			started = true
			t.recordLine = t.line
		}

		switch st {
		case stateFieldStart:
			switch {
			case c == '"':
				st = stateQuoted
				t.quoteLine, t.quoteCol = t.line, t.col
			case t.isComma(c):
				fields = t.closeField(fields)
			case isLineEnd(c):
				t.endLine(c)
				return t.finish(fields), nil
			default:
				t.field = append(t.field, c)
				st = stateUnquoted
			}

		case stateUnquoted:
			switch {
			case t.isComma(c):
				fields = t.closeField(fields)
				st = stateFieldStart
			case isLineEnd(c):
				t.endLine(c)
				return t.finish(fields), nil
			default:
				t.field = append(t.field, c)
			}

		case stateQuoted:
			if c == '"' {
				st = stateQuoteInQuoted
				continue
			}
			t.field = append(t.field, c)
			if c == '\n' || (c == '\r' && !t.peekIs('\n')) {
				t.line++
				t.col = 0
			}

		case stateQuoteInQuoted:
			switch {
			case c == '"':
				t.field = append(t.field, '"')
				st = stateQuoted
			case t.isComma(c):
				fields = t.closeField(fields)
				st = stateFieldStart
			case isLineEnd(c):
				t.endLine(c)
				return t.finish(fields), nil
			default:
				// Text after a closing quote continues the field unquoted.
				t.field = append(t.field, c)
				st = stateUnquoted
			}
		}
	}
}

func (t *Tokenizer) readByte() (byte, error) {
	c, err := t.r.readByte()
	if err != nil {
		return 0, err
	}
	if utf8.RuneStart(c) {
		t.col++
	}
	return c, nil
}

// isComma reports whether c starts the delimiter, consuming the rest of a
// multi-byte delimiter when it matches.
func (t *Tokenizer) isComma(c byte) bool {
	if c != t.comma[0] {
		return false
	}
	if len(t.comma) == 1 {
		return true
	}
	rest := make([]byte, 0, len(t.comma)-1)
	for _, want := range t.comma[1:] {
		b, err := t.r.readByte()
		if err != nil {
			break
		}
		rest = append(rest, b)
		if b != want {
			break
		}
	}
	if len(rest) == len(t.comma)-1 && rest[len(rest)-1] == t.comma[len(t.comma)-1] {
		return true
	}
	t.r.unread(rest...)
	return false
}

func (t *Tokenizer) peekIs(b byte) bool {
	next, err := t.r.readByte()
	if err != nil {
		return false
	}
	t.r.unread(next)
	return next == b
}

// endLine consumes the rest of a line terminator whose first byte was c.
func (t *Tokenizer) endLine(c byte) {
	if c == '\r' && t.peekIs('\n') {
		_, _ = t.r.readByte()
	}
	t.line++
	t.col = 0
}

func (t *Tokenizer) closeField(fields Row) Row {
	fields = append(fields, string(t.field))
	t.field = t.field[:0]
	return fields
}

func (t *Tokenizer) finish(fields Row) Row {
	fields = t.closeField(fields)
	t.width = len(fields)
	return fields
}

func isLineEnd(c byte) bool {
	return c == '\n' || c == '\r'
}

// byteSource reads one byte at a time from an io.Reader and holds bytes
// pushed back by lookahead. The first read error is kept and returned by
// every later read.
type byteSource struct {
	r       io.Reader
	br      io.ByteReader
	one     [1]byte
	pending []byte
	err     error
}

func newByteSource(r io.Reader) *byteSource {
	s := &byteSource{r: r}
	if br, ok := r.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

func (s *byteSource) readByte() (byte, error) {
	if len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		return c, nil
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.br != nil {
		c, err := s.br.ReadByte()
		if err != nil {
			s.err = err
			return 0, err
		}
		return c, nil
	}
	for {
		n, err := s.r.Read(s.one[:])
		if n == 1 {
			if err != nil {
				s.err = err
			}
			return s.one[0], nil
		}
		if err != nil {
			s.err = err
			return 0, err
		}
	}
}

// unread pushes b back so the next reads return it in order.
func (s *byteSource) unread(b ...byte) {
	if len(b) == 0 {
		return
	}
	s.pending = append(append(make([]byte, 0, len(b)+len(s.pending)), b...), s.pending...)
}
