package csv

// source.go adapts raw upload bodies and files into something the tokenizer
// can read without loading them into memory:
//
//   - Transcode: converts legacy charsets (windows-1252, latin1, ...) to UTF-8
//   - BOMSkipper: drops a leading UTF-8 byte order mark written by Excel
//   - UTF8Sanitizer: replaces invalid UTF-8 bytes with '?'
//   - CountingReader: tracks bytes consumed for progress reporting
//
// WrapSource applies all of them in that order and keeps the original handle's
// Close reachable.

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Transcode returns a reader producing UTF-8 from r, which is encoded in charset.
// An empty charset or any UTF-8 alias returns r unchanged.
func Transcode(r io.Reader, charset string) (io.Reader, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("csv: unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(r), nil
}

// BOMSkipper drops a UTF-8 byte order mark at the start of the stream.
type BOMSkipper struct {
	r       io.Reader
	checked bool
	eof     bool
	pending []byte
}

// NewBOMSkipper wraps r.
func NewBOMSkipper(r io.Reader) *BOMSkipper {
	return &BOMSkipper{r: r}
}

func (b *BOMSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		var head [3]byte
		n, err := io.ReadFull(b.r, head[:])
		if n == len(head) && bytes.Equal(head[:], utf8BOM) {
			n = 0
		}
		b.pending = append(b.pending[:0], head[:n]...)
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			b.eof = true
		case err != nil:
			return 0, err
		}
	}

	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	if b.eof {
		return 0, io.EOF
	}
	return b.r.Read(p)
}

// UTF8Sanitizer replaces bytes that are not valid UTF-8 with '?'.
// A multi-byte sequence cut short by the caller's buffer is completed with an
// exact-length read, so one-byte reads pull no more than the sequence itself.
type UTF8Sanitizer struct {
	r     io.Reader
	buf   []byte
	out   []byte // sanitized bytes not yet returned
	carry []byte // partial sequence held for the next fill
	err   error
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{r: r}
}

func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill(len(p))
		if len(s.out) == 0 {
			return 0, s.err
		}
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads up to want bytes, plus the rest of a trailing partial sequence.
// Completion reads stop after a few rounds of invalid lead bytes; whatever is
// still partial then waits for the next fill.
func (s *UTF8Sanitizer) fill(want int) {
	size := len(s.carry) + want + utf8.UTFMax*utf8.UTFMax
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	buf := s.buf[:cap(s.buf)]

	n := copy(buf, s.carry)
	s.carry = s.carry[:0]
	m, err := s.r.Read(buf[n : n+want])
	n += m

	for i := 0; err == nil && i < utf8.UTFMax; i++ {
		_, need := partialSequence(buf[:n])
		if need == 0 {
			break
		}
		m, rerr := io.ReadFull(s.r, buf[n:n+need])
		n += m
		if errors.Is(rerr, io.ErrUnexpectedEOF) {
			rerr = io.EOF
		}
		err = rerr
	}
	if err == nil {
		if have, _ := partialSequence(buf[:n]); have > 0 {
			s.carry = append(s.carry, buf[n-have:n]...)
			n -= have
		}
	}

	s.err = err
	s.out = buf[:sanitize(buf[:n])]
}

// sanitize rewrites data in place and returns the new length.
func sanitize(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}
	w := 0
	for r := 0; r < len(data); {
		c, size := utf8.DecodeRune(data[r:])
		if c == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		w += copy(data[w:], data[r:r+size])
		r += size
	}
	return w
}

// partialSequence reports how many bytes at the end of data start a
// multi-byte sequence and how many more it needs.
func partialSequence(data []byte) (have, need int) {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if b&0xC0 == 0x80 {
			continue
		}
		if b < 0xC0 {
			return 0, 0
		}
		if need := seqLen(b) - i; need > 0 {
			return i, need
		}
		return 0, 0
	}
	return 0, 0
}

func seqLen(b byte) int {
	switch {
	case b >= 0xF8:
		return 1
	case b >= 0xF0:
		return 4
	case b >= 0xE0:
		return 3
	case b >= 0xC0:
		return 2
	default:
		return 1
	}
}

// CountingReader tracks how many bytes have passed through it.
type CountingReader struct {
	r         io.Reader
	BytesRead int64
	Total     int64 // 0 when unknown
}

// NewCountingReader wraps r. total may be zero when the size is unknown.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100), or 0 if Total is unknown.
func (c *CountingReader) Progress() int {
	if c.Total <= 0 {
		return 0
	}
	pct := int(c.BytesRead * 100 / c.Total)
	if pct > 100 {
		return 100
	}
	return pct
}

// SourceOptions configures WrapSource.
type SourceOptions struct {
	Charset string // source encoding; empty means UTF-8
	Size    int64  // total size in bytes if known
}

// Source is a cleaned-up view of a raw CSV handle. Reads pass through the
// transform chain; Close closes the original handle once.
type Source struct {
	*CountingReader

	closer   io.Closer
	closed   bool
	closeErr error
}

// WrapSource builds the transform chain around rc.
// On error rc is left open and remains the caller's responsibility.
// Transcoding from a non-UTF-8 charset decodes in chunks, so it reads ahead
// of the tokenizer; the other wrappers read no more than they are asked for.
func WrapSource(rc io.ReadCloser, opts SourceOptions) (*Source, error) {
	r, err := Transcode(rc, opts.Charset)
	if err != nil {
		return nil, err
	}
	r = NewUTF8Sanitizer(NewBOMSkipper(r))
	return &Source{
		CountingReader: NewCountingReader(r, opts.Size),
		closer:         rc,
	}, nil
}

// Close closes the underlying handle. Later calls return the first result.
func (s *Source) Close() error {
	if s.closed {
		return s.closeErr
	}
	s.closed = true
	s.closeErr = s.closer.Close()
	return s.closeErr
}
