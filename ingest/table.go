/*
Package ingest turns uploaded spreadsheet exports into engine records.

PURPOSE:
  Field offices upload two independently structured files (A and B) per
  month. They are read as CSV, outer-joined on an agent code column, and
  handed to the engine as incentive.Record values. Overlapping column
  names are kept from both sides with "_A"/"_B" suffixes; the engine's
  resolver finds whichever side holds the value.

ENCODING:
  Files are UTF-8 (BOM tolerated). Exports that are not valid UTF-8 are
  decoded as EUC-KR (CP949), the default of Korean-locale spreadsheets.
  Excel "_xHHHH_" escapes in headers and cells are decoded.

KEYS:
  CleanKey removes all whitespace, upper-cases, and strips a trailing
  ".0" float artifact, so "a12 3.0" and "A123" are the same agent.

SEE ALSO:
  - join.go: OuterJoin
  - incentive/resolver.go: suffix resolution
*/
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/warp/incentive-engine/incentive"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var (
	// ErrEmptyFile is returned for a file without a header row.
	ErrEmptyFile = errors.New("file has no header row")

	// ErrUnknownColumn is returned when a key column is not in the table.
	ErrUnknownColumn = errors.New("unknown column")
)

// Table is a rectangular, string-valued sheet.
type Table struct {
	Columns []string
	Rows    [][]string
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table carries a column.
func (t *Table) HasColumn(name string) bool { return t.ColumnIndex(name) >= 0 }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Row returns row i as a field map. Empty cells are omitted.
func (t *Table) Row(i int) incentive.Fields {
	f := make(incentive.Fields, len(t.Columns))
	for j, c := range t.Columns {
		if j < len(t.Rows[i]) && t.Rows[i][j] != "" {
			f[c] = t.Rows[i][j]
		}
	}
	return f
}

// Records converts rows to engine records keyed by the cleaned value of
// the first non-empty key column. Rows without a key are skipped.
func (t *Table) Records(keyColumns ...string) ([]incentive.Record, error) {
	idx := make([]int, 0, len(keyColumns))
	for _, c := range keyColumns {
		i := t.ColumnIndex(c)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
		idx = append(idx, i)
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: no key column", ErrUnknownColumn)
	}
	out := make([]incentive.Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		var key string
		for _, k := range idx {
			if key = CleanKey(cell(row, k)); key != "" {
				break
			}
		}
		if key == "" {
			continue
		}
		out = append(out, incentive.Record{Key: key, Fields: t.Row(i)})
	}
	return out, nil
}

// =============================================================================
// READING
// =============================================================================

// ReadCSV reads a CSV export. The first row is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode csv as EUC-KR: %w", err)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	t := &Table{Columns: uniqueHeaders(records[0])}
	for _, rec := range records[1:] {
		if blankRow(rec) {
			continue
		}
		row := make([]string, len(t.Columns))
		for j := range row {
			if j < len(rec) {
				row[j] = strings.TrimSpace(DecodeExcelEscapes(rec[j]))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// uniqueHeaders decodes headers and disambiguates repeats the way
// spreadsheet readers do: "col", "col.1", "col.2".
func uniqueHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(DecodeExcelEscapes(h))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[h]; ok {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}

func blankRow(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// NORMALIZATION
// =============================================================================

var excelEscape = regexp.MustCompile(`_x([0-9A-Fa-f]{4})_`)

// DecodeExcelEscapes replaces "_xHHHH_" sequences with the code point.
func DecodeExcelEscapes(s string) string {
	if !strings.Contains(s, "_x") {
		return s
	}
	return excelEscape.ReplaceAllStringFunc(s, func(m string) string {
		n, err := strconv.ParseUint(m[2:6], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(n))
	})
}

// CleanKey normalizes an agent or manager code.
func CleanKey(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	switch strings.ToLower(s) {
	case "nan", "none":
		return ""
	}
	s = strings.TrimSuffix(s, ".0")
	return strings.ToUpper(s)
}
