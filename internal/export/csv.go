package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// utf8BOM lets spreadsheet applications detect UTF-8 when opening the CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes s as UTF-8 CSV with a byte order mark.
func WriteCSV(w io.Writer, s *Sheet) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write CSV: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return fmt.Errorf("write CSV rows: %w", err)
	}
	return nil
}
