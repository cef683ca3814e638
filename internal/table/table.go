// Package table loads spreadsheets (.xlsx, .ods, .csv) into a header row plus text rows.
package table

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrEmptyTable is returned when a file has no header row.
	ErrEmptyTable = errors.New("table: no header row")
	// ErrColumnNotFound is returned when a column name is not in the header.
	ErrColumnNotFound = errors.New("table: column not found")
	// ErrUnsupportedFormat is returned for file types that cannot be read.
	ErrUnsupportedFormat = errors.New("table: unsupported format")
	// ErrTableTooLarge is returned when a file expands past the row, column or cell limits.
	ErrTableTooLarge = errors.New("table: too large")
)

// Extensions lists the file extensions Load accepts.
var Extensions = []string{".xlsx", ".xlsm", ".ods", ".csv"}

// Table is a loaded spreadsheet. Every row has exactly len(Columns) cells.
type Table struct {
	Name    string     `json:"name"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnIndex returns the position of name in the header, or -1.
// An exact match wins over a match after trimming whitespace.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	trimmed := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if c == trimmed {
			return i
		}
	}
	return -1
}

// Column returns the cells of the named column, one per row.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Supported reports whether filename has an extension Load can read.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Load parses content according to the extension of filename.
// The first row is the header; the first sheet is used for workbooks.
func Load(filename string, content []byte) (*Table, error) {
	var (
		records [][]string
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(content)
	case ".ods":
		records, err = readODS(content)
	case ".csv":
		records, err = readCSV(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	return fromRecords(filepath.Base(filename), records)
}

// LoadFile reads and parses the file at path.
func LoadFile(path string) (*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Load(path, content)
}

// fromRecords builds a Table from raw records. Blank rows are dropped, rows are
// padded or widened to a common width, and header names are cleaned up by headers.
func fromRecords(name string, records [][]string) (*Table, error) {
	var kept [][]string
	width := 0
	for _, rec := range records {
		if isBlank(rec) {
			continue
		}
		rec = trimTrailingEmpty(rec)
		if len(rec) > width {
			width = len(rec)
		}
		kept = append(kept, rec)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{Name: name, Columns: headers(kept[0], width), Rows: make([][]string, 0, len(kept)-1)}
	for _, rec := range kept[1:] {
		row := make([]string, width)
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// headers trims header cells, names empty ones "Column N" (1-based) and suffixes
// repeats with ".1", ".2", ...
func headers(raw []string, width int) []string {
	out := make([]string, width)
	seen := make(map[string]bool, width)
	for i := 0; i < width; i++ {
		h := ""
		if i < len(raw) {
			h = strings.TrimSpace(raw[i])
		}
		if h == "" {
			h = "Column " + strconv.Itoa(i+1)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimTrailingEmpty(rec []string) []string {
	n := len(rec)
	for n > 0 && rec[n-1] == "" {
		n--
	}
	return rec[:n]
}
