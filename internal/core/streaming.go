package core

// streaming.go wraps upload readers so CSV parsing sees clean UTF-8.
//
// Spreadsheet exports on Windows often start with a UTF-8 BOM and now and then
// carry stray Latin-1 bytes. Both are handled on the fly without buffering the
// whole file:
//
//   - a leading BOM is removed
//   - invalid UTF-8 sequences become U+FFFD
//
// The counting reader sits outermost and reports bytes handed to the parser.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// NewUTF8Reader strips a leading BOM from r and replaces invalid UTF-8.
func NewUTF8Reader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		unicode.BOMOverride(unicode.UTF8.NewDecoder()),
		runes.ReplaceIllFormed(),
	))
}

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader creates a counting reader.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForParsing applies BOM stripping and UTF-8 repair, then byte counting.
func WrapForParsing(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Reader(r))
}
