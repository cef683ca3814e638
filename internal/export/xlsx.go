package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Sheet1"
	changedColor = "FFF2CC"
	editedColor  = "D9EAD3"
)

// WriteXLSX writes s as an Excel workbook. The header is bold and frozen; changed
// processed cells are yellow and hand-edited ones green.
func WriteXLSX(w io.Writer, s *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	changedStyle, err := f.NewStyle(fillStyle(changedColor))
	if err != nil {
		return fmt.Errorf("create changed style: %w", err)
	}
	editedStyle, err := f.NewStyle(fillStyle(editedColor))
	if err != nil {
		return fmt.Errorf("create edited style: %w", err)
	}

	header := toRow(s.Header)
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(max(len(s.Header), 1), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range s.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := toRow(r)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := highlight(f, s, s.Changed, changedStyle); err != nil {
		return err
	}
	if err := highlight(f, s, s.Edited, editedStyle); err != nil {
		return err
	}

	if len(s.Header) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(s.Header))
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, "A", lastCol, 24); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func highlight(f *excelize.File, s *Sheet, rows []int, style int) error {
	for _, r := range rows {
		if r < 0 || r >= len(s.Rows) {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(s.ProcessedCol+1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return fmt.Errorf("style %s: %w", cell, err)
		}
	}
	return nil
}

func fillStyle(color string) *excelize.Style {
	return &excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}}
}

// toRow converts cells for SetSheetRow, which takes a pointer to a slice of any.
func toRow(cells []string) []interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
