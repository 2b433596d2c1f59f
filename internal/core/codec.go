package core

// codec.go converts between CSV text and ordered header/value rows.
//
// Decoding reads the whole payload before any row is reconciled so that a
// quoting error fails the batch up front. Rows keep their 1-based line number
// for error messages.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row is one decoded data row aligned to the document header.
type Row struct {
	Line   int      // 1-based CSV line number where the row starts
	Values []string // Trimmed cells, padded to the header length
	Extra  []string // Non-empty cells beyond the header
}

// Document is a decoded CSV payload.
type Document struct {
	Header []string
	Rows   []Row

	index map[string]int
}

// Get returns the cell under header. When a header repeats, the first
// occurrence wins.
func (d *Document) Get(row Row, header string) (string, bool) {
	i, ok := d.index[header]
	if !ok || i >= len(row.Values) {
		return "", false
	}
	return row.Values[i], true
}

// HasHeader reports whether the header line contains h.
func (d *Document) HasHeader(h string) bool {
	_, ok := d.index[h]
	return ok
}

// DecodeCSV parses BOM-free CSV text. The first line is the header; blank
// lines and rows whose cells are all empty are skipped.
func DecodeCSV(text string) (*Document, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = false
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}

	doc := &Document{
		Header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(StripBOM(h))
		doc.Header[i] = h
		if _, dup := doc.index[h]; !dup && h != "" {
			doc.index[h] = i
		}
	}
	if len(doc.index) == 0 {
		return nil, ErrEmptyFile
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		line, _ := r.FieldPos(0)

		row := Row{Line: line, Values: make([]string, len(doc.Header))}
		empty := true
		for i, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				empty = false
			}
			if i < len(doc.Header) {
				row.Values[i] = cell
			} else if cell != "" {
				row.Extra = append(row.Extra, cell)
			}
		}
		if empty {
			continue
		}
		doc.Rows = append(doc.Rows, row)
	}

	return doc, nil
}

// EncodeCSV writes a header line followed by rows using conventional
// double-quote escaping and LF line endings.
func EncodeCSV(header []string, rows [][]string) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return b.String(), nil
}
