// Package reader loads tabular bank-statement exports (xlsx, xls, csv) into
// a uniform row-oriented table, resolving sheet selection, text encodings and
// bank-specific header/footer skip counts.
package reader

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

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrUnsupportedFormat is returned for file extensions outside xlsx/xls/csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptySource is returned when the resolved table has no data rows.
	ErrEmptySource = errors.New("source contains no data rows")
	// ErrUndecodableSource is returned when no supported text encoding decodes the file.
	ErrUndecodableSource = errors.New("source not decodable with any supported encoding")
)

// Table is a row-oriented view of one sheet or delimited-text file.
// Headers are kept verbatim; column lookup normalizes case and whitespace.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Options carries the bank-specific row-skip conventions.
type Options struct {
	HeaderSkip int // rows to drop before the header row
	FooterSkip int // rows to drop from the end
}

// Col returns the index of the named column, matching case-insensitively
// after trimming whitespace. Returns -1 when absent.
func (t *Table) Col(name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Headers {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

// Value returns the cell at (row, col), or "" when out of range.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// RowMap returns a deep copy of one row keyed by the normalized header names.
// The copy is safe to hold after the table is mutated.
func (t *Table) RowMap(row int) map[string]string {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	m := make(map[string]string, len(t.Headers))
	for i, h := range t.Headers {
		m[strings.ToLower(strings.TrimSpace(h))] = t.Value(row, i)
	}
	return m
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := &Table{
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = append([]string(nil), r...)
	}
	return c
}

// Read opens the file at path and returns its first populated table.
func Read(path string, opts Options) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path, opts)
	case ".xls":
		return readXLS(path, opts)
	case ".csv":
		return readCSV(path, opts)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .xlsx, .xls, .csv)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// readXLSX returns the first sheet that yields at least one data row.
func readXLSX(path string, opts Options) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		t, err := tableFromRows(rows, opts)
		if err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptySource)
}

// readXLS handles the legacy binary workbook format.
func readXLS(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xls %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	workbook, err := xls.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("read xls %s: %w", filepath.Base(path), err)
	}

	for i := range workbook.GetSheets() {
		sheet, err := workbook.GetSheet(i)
		if err != nil {
			continue
		}
		var rows [][]string
		for _, row := range sheet.GetRows() {
			var cells []string
			for _, cell := range row.GetCols() {
				cells = append(cells, cell.GetString())
			}
			rows = append(rows, cells)
		}
		t, err := tableFromRows(rows, opts)
		if err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrEmptySource)
}

// csvEncodings is the fixed ladder tried in order for delimited text.
// Latin-1 maps every byte, so it never fails to decode; the Windows-1252
// rung only runs when delimited parsing of an earlier decode fails.
var csvEncodings = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8},
	{"latin-1", charmap.ISO8859_1},
	{"windows-1252", charmap.Windows1252},
}

func readCSV(path string, opts Options) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", filepath.Base(path), err)
	}

	for _, e := range csvEncodings {
		decoded, ok := decodeWith(data, e.name, e.enc)
		if !ok {
			continue
		}
		rows, err := parseDelimited(decoded)
		if err != nil {
			continue
		}
		return tableFromRows(rows, opts)
	}
	return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUndecodableSource)
}

// decodeWith decodes data with enc and reports whether the result is valid UTF-8.
func decodeWith(data []byte, name string, enc encoding.Encoding) ([]byte, bool) {
	if name == "utf-8" {
		if !utf8.Valid(data) {
			return nil, false
		}
		return stripBOM(data), true
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func parseDelimited(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// detectDelimiter picks the separator that splits the first line the most.
func detectDelimiter(data []byte) rune {
	line, _, _ := strings.Cut(string(data), "\n")
	best, bestCount := ',', strings.Count(line, ",")
	if n := strings.Count(line, ";"); n > bestCount {
		best, bestCount = ';', n
	}
	if n := strings.Count(line, "\t"); n > bestCount {
		best = '\t'
	}
	return best
}

// tableFromRows applies the skip counts and splits the header row off.
func tableFromRows(rows [][]string, opts Options) (*Table, error) {
	if opts.HeaderSkip > 0 {
		if opts.HeaderSkip >= len(rows) {
			return nil, ErrEmptySource
		}
		rows = rows[opts.HeaderSkip:]
	}
	if opts.FooterSkip > 0 {
		if opts.FooterSkip >= len(rows) {
			return nil, ErrEmptySource
		}
		rows = rows[:len(rows)-opts.FooterSkip]
	}
	if len(rows) < 2 {
		return nil, ErrEmptySource
	}

	t := &Table{Headers: rows[0]}
	for _, r := range rows[1:] {
		if isBlankRow(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	if len(t.Rows) == 0 {
		return nil, ErrEmptySource
	}
	return t, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
