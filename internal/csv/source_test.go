package csv

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestBOMSkipper(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "short input",
			input:    []byte("ab"),
			expected: "ab",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewBOMSkipper(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("hello,world"), "hello,world"},
		{"valid multibyte", []byte("héllo,wörld"), "héllo,wörld"},
		{"invalid byte replaced", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"truncated sequence at EOF", []byte{'a', 0xE6, 0x97}, "a??"},
		{"empty input", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(NewUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitAcrossReads(t *testing.T) {
	input := "日本語,テキスト\n"
	r := NewUTF8Sanitizer(iotest.OneByteReader(strings.NewReader(input)))
	result, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("got %q, want %q", string(result), input)
	}
}

func TestUTF8Sanitizer_OneByteCaller(t *testing.T) {
	input := "é\xffa,日\n"
	src := &countingReader{r: strings.NewReader(input)}
	r := iotest.OneByteReader(NewUTF8Sanitizer(src))

	first := make([]byte, 1)
	if _, err := r.Read(first); err != nil {
		t.Fatalf("Read: %v", err)
	}
	// The first read completes the two-byte "é" and no more.
	if src.n != 2 {
		t.Errorf("pulled %d bytes for the first rune, want 2", src.n)
	}

	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got := string(first) + string(rest); got != "é?a,日\n" {
		t.Errorf("got %q", got)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestWrapSource_CountsWhatTheTokenizerConsumed(t *testing.T) {
	raw := &trackingCloser{Reader: strings.NewReader("a,b\nc,d\ne,f\n")}
	src, err := WrapSource(raw, SourceOptions{Size: 12})
	if err != nil {
		t.Fatalf("WrapSource: %v", err)
	}
	tok := NewTokenizer(src, Dialect{})
	if _, err := tok.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if src.BytesRead != 4 {
		t.Errorf("BytesRead after one record = %d, want 4", src.BytesRead)
	}
	if _, err := tok.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if src.BytesRead != 8 || src.Progress() != 66 {
		t.Errorf("BytesRead = %d, Progress = %d; want 8, 66", src.BytesRead, src.Progress())
	}
}

func TestTranscode(t *testing.T) {
	// "café" in windows-1252
	input := []byte{'c', 'a', 'f', 0xE9}

	r, err := Transcode(bytes.NewReader(input), "windows-1252")
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "café" {
		t.Errorf("got %q, want %q", got, "café")
	}

	if _, err := Transcode(bytes.NewReader(input), "no-such-charset"); err == nil {
		t.Error("expected error for unknown charset")
	}

	plain := strings.NewReader("x")
	if r, _ := Transcode(plain, "UTF-8"); r != io.Reader(plain) {
		t.Error("UTF-8 should pass the reader through")
	}
}

func TestCountingReader_Progress(t *testing.T) {
	c := NewCountingReader(strings.NewReader("0123456789"), 10)
	buf := make([]byte, 5)
	if _, err := c.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if c.BytesRead != 5 {
		t.Errorf("BytesRead = %d, want 5", c.BytesRead)
	}
	if got := c.Progress(); got != 50 {
		t.Errorf("Progress() = %d, want 50", got)
	}

	unknown := NewCountingReader(strings.NewReader("abc"), 0)
	_, _ = io.ReadAll(unknown)
	if got := unknown.Progress(); got != 0 {
		t.Errorf("Progress() with unknown total = %d, want 0", got)
	}
}

type trackingCloser struct {
	io.Reader
	closes int
	err    error
}

func (c *trackingCloser) Close() error {
	c.closes++
	return c.err
}

func TestWrapSource(t *testing.T) {
	raw := &trackingCloser{Reader: bytes.NewReader(append([]byte{0xEF, 0xBB, 0xBF}, "a,b\n"...))}
	src, err := WrapSource(raw, SourceOptions{Size: 7})
	if err != nil {
		t.Fatalf("WrapSource: %v", err)
	}

	got, err := io.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "a,b\n" {
		t.Errorf("got %q", got)
	}
	if src.BytesRead != 4 {
		t.Errorf("BytesRead = %d, want 4", src.BytesRead)
	}

	boom := errors.New("close failed")
	raw.err = boom
	if err := src.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() = %v, want %v", err, boom)
	}
	if err := src.Close(); !errors.Is(err, boom) {
		t.Errorf("second Close() = %v, want %v", err, boom)
	}
	if raw.closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", raw.closes)
	}
}

func TestWrapSource_UnknownCharset(t *testing.T) {
	raw := &trackingCloser{Reader: strings.NewReader("")}
	if _, err := WrapSource(raw, SourceOptions{Charset: "klingon"}); err == nil {
		t.Fatal("expected error")
	}
	if raw.closes != 0 {
		t.Error("WrapSource closed the handle on error")
	}
}
