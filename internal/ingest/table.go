package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrNoRows is returned when a source has a header but no data rows, or nothing at all.
var ErrNoRows = errors.New("no rows to process")

// IngestionError reports a whole-source failure. Per-field problems never produce one.
type IngestionError struct {
	Source string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("ingest %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("ingest: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Table is raw tabular input: a header row plus data rows padded to header width.
type Table struct {
	Name     string
	Encoding string
	Headers  []string
	Rows     [][]string
}

// Row returns the header->value view of row i.
func (t *Table) Row(i int) map[string]string {
	out := make(map[string]string, len(t.Headers))
	for j, h := range t.Headers {
		if j < len(t.Rows[i]) {
			out[h] = t.Rows[i][j]
		}
	}
	return out
}

// ReadOptions controls CSV reading.
type ReadOptions struct {
	// Delimiter for CSV. If 0, sniffed from the header line among ',', ';', '\t'.
	Delimiter rune
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

// ReadFile reads a CSV file from disk.
func ReadFile(path string, opt ReadOptions) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &IngestionError{Source: filepath.Base(path), Err: fmt.Errorf("open csv: %w", err)}
	}
	return ReadTable(filepath.Base(path), b, opt)
}

// ReadTable decodes and parses CSV bytes with a header row.
func ReadTable(name string, data []byte, opt ReadOptions) (*Table, error) {
	text, enc := decodeText(data)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(text)
	}
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &IngestionError{Source: name, Err: ErrNoRows}
		}
		return nil, &IngestionError{Source: name, Err: fmt.Errorf("read header: %w", err)}
	}
	headers := uniqueHeaders(header)
	if len(headers) == 0 {
		return nil, &IngestionError{Source: name, Err: ErrNoRows}
	}

	t := &Table{Name: name, Encoding: enc, Headers: headers}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &IngestionError{Source: name, Err: fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)}
		}
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(headers))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
		if opt.MaxRows > 0 && len(t.Rows) >= opt.MaxRows {
			break
		}
	}
	if len(t.Rows) == 0 {
		return nil, &IngestionError{Source: name, Err: ErrNoRows}
	}
	return t, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns UTF-8 text, falling back to Windows-1252 for legacy exports.
func decodeText(data []byte) (string, string) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), "utf-8"
	}
	if s, err := charmap.Windows1252.NewDecoder().String(string(data)); err == nil {
		return s, "windows-1252"
	}
	return strings.ToValidUTF8(string(data), "�"), "utf-8 (lossy)"
}

func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		line = text[:i]
	}
	best, bestN := ',', strings.Count(line, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(line, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

func uniqueHeaders(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := map[string]int{}
	allEmpty := true
	for i, h := range raw {
		base := strings.TrimSpace(h)
		if base != "" {
			allEmpty = false
		} else {
			base = fmt.Sprintf("column_%d", i+1)
		}
		seen[base]++
		if seen[base] > 1 {
			base = fmt.Sprintf("%s_%d", base, seen[base])
		}
		out = append(out, base)
	}
	if allEmpty {
		return nil
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
