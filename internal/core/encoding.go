package core

// encoding.go normalizes inbound CSV text and prepares outbound text.
//
// Spreadsheet tools disagree about byte order marks: Excel writes a UTF-8 BOM
// and needs one to open UTF-8 files correctly, some tools save UTF-16 with a
// BOM, and re-saving an export can leave more than one BOM in front of the
// header. Inbound text is decoded by BOM sniffing and then stripped of every
// leading U+FEFF; outbound text always gets exactly one.

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// BOM is the byte order mark character.
const BOM = "\uFEFF"

// StripBOM removes every leading byte order mark. It is a no-op on BOM-free
// text and idempotent.
func StripBOM(text string) string {
	return strings.TrimLeft(text, BOM)
}

// AddBOM prefixes text with exactly one byte order mark, unconditionally.
func AddBOM(text string) string {
	return BOM + text
}

// NormalizeReader wraps r so that a UTF-8, UTF-16LE or UTF-16BE byte order
// mark selects the decoding and is removed. BOM-less input is read as UTF-8
// with invalid bytes replaced by U+FFFD.
func NormalizeReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadText reads and normalizes a whole CSV payload. A positive maxBytes
// limits the raw payload size and yields ErrFileTooLarge beyond it.
func ReadText(r io.Reader, maxBytes int64) (string, error) {
	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	counter := &countingReader{r: src}

	data, err := io.ReadAll(NormalizeReader(counter))
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	if maxBytes > 0 && counter.n > maxBytes {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxBytes)
	}
	return StripBOM(string(data)), nil
}

// countingReader tracks raw bytes read before decoding.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
