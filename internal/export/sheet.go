// Package export writes refinement results as CSV or Excel files.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/table"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat maps a name or file extension to a Format. The empty string is FormatCSV.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// Filename returns the default download name for f.
func (f Format) Filename() string {
	return "output." + string(f)
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Sheet is a rectangular result ready to be written.
type Sheet struct {
	Header []string
	Rows   [][]string
	// ProcessedCol is the index of the standardized column.
	ProcessedCol int
	// Changed and Edited are row indices into Rows. A row is in at most one of them;
	// hand-edited rows are only listed in Edited.
	Changed []int
	Edited  []int
}

// ProcessedHeader is the header of the standardized column for column.
func ProcessedHeader(column string) string {
	return "Processed: " + column
}

// FromRefinement builds a sheet from a refinement. Without full it has two columns,
// original and processed; with full it is the whole table with the processed column
// inserted after the original one.
func FromRefinement(tbl *table.Table, ref *models.Refinement, full bool) (*Sheet, error) {
	s := &Sheet{Changed: []int{}, Edited: ref.Edited}
	for _, row := range ref.Changed {
		if !ref.IsEdited(row) {
			s.Changed = append(s.Changed, row)
		}
	}
	if !full {
		s.Header = []string{ref.Column, ProcessedHeader(ref.Column)}
		s.ProcessedCol = 1
		s.Rows = make([][]string, len(ref.Processed))
		for i, v := range ref.Processed {
			orig := ""
			if i < len(ref.Original) {
				orig = ref.Original[i]
			}
			s.Rows[i] = []string{orig, v}
		}
		return s, nil
	}

	idx := tbl.ColumnIndex(ref.Column)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", table.ErrColumnNotFound, ref.Column)
	}
	if len(tbl.Rows) != len(ref.Processed) {
		return nil, fmt.Errorf("table has %d rows, refinement has %d", len(tbl.Rows), len(ref.Processed))
	}
	s.ProcessedCol = idx + 1
	s.Header = insertAt(tbl.Columns, s.ProcessedCol, ProcessedHeader(ref.Column))
	s.Rows = make([][]string, len(tbl.Rows))
	for i, row := range tbl.Rows {
		s.Rows[i] = insertAt(row, s.ProcessedCol, ref.Processed[i])
	}
	return s, nil
}

func insertAt(src []string, i int, v string) []string {
	out := make([]string, 0, len(src)+1)
	out = append(out, src[:i]...)
	out = append(out, v)
	return append(out, src[i:]...)
}

// Write writes s in format f.
func Write(w io.Writer, s *Sheet, f Format) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, s)
	case FormatCSV, "":
		return WriteCSV(w, s)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}
