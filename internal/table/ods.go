package table

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// odsContentPath is the path to the main content inside an .ods zip (OpenDocument Spreadsheet).
const odsContentPath = "content.xml"

const (
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
)

// readODS returns the rows of the first table in an OpenDocument spreadsheet,
// expanding number-rows-repeated and number-columns-repeated.
func readODS(content []byte) ([][]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open ODS: not a zip: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != odsContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open ODS: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return parseODSContent(rc)
	}
	return nil, fmt.Errorf("open ODS: %s not found", odsContentPath)
}

// Limits on the sheet after repeat attributes are expanded.
const (
	maxODSRows    = 1 << 20
	maxODSColumns = 16384
	maxODSCells   = 1 << 23
	maxODSSpaces  = 1024
)

// odsParser accumulates rows while walking content.xml.
type odsParser struct {
	rows  [][]string
	row   []string
	cells int
	// emptyCells counts blank cells not yet written to row; trailing ones are dropped.
	emptyCells int
	cell       strings.Builder
	paragraphs int
}

func parseODSContent(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)
	p := &odsParser{}
	depth := 0 // depth inside the first table:table; 0 means outside
	var rowRepeat, cellRepeat int
	inCell, inPara := false, false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse ODS content: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if el.Name.Space == nsTable && el.Name.Local == "table" {
					depth = 1
				}
				continue
			}
			depth++
			switch {
			case el.Name.Space == nsOffice && el.Name.Local == "annotation":
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("parse ODS content: %w", err)
				}
				depth--
			case el.Name.Space == nsTable && el.Name.Local == "table-row":
				rowRepeat = repeatAttr(el, "number-rows-repeated")
				p.row = nil
				p.emptyCells = 0
			case el.Name.Space == nsTable && (el.Name.Local == "table-cell" || el.Name.Local == "covered-table-cell"):
				cellRepeat = repeatAttr(el, "number-columns-repeated")
				p.cell.Reset()
				p.paragraphs = 0
				inCell = true
			case inCell && el.Name.Space == nsText && el.Name.Local == "p":
				if p.paragraphs > 0 {
					p.cell.WriteByte('\n')
				}
				p.paragraphs++
				inPara = true
			case inCell && el.Name.Space == nsText && el.Name.Local == "s":
				n := repeatAttr(el, "c")
				if n > maxODSSpaces {
					return nil, fmt.Errorf("%w: %d repeated spaces", ErrTableTooLarge, n)
				}
				p.cell.WriteString(strings.Repeat(" ", n))
			case inCell && el.Name.Space == nsText && el.Name.Local == "tab":
				p.cell.WriteByte('\t')
			case inCell && el.Name.Space == nsText && el.Name.Local == "line-break":
				p.cell.WriteByte('\n')
			}
		case xml.CharData:
			if inPara {
				p.cell.Write(el)
			}
		case xml.EndElement:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				// End of the first table.
				return p.rows, nil
			}
			if el.Name.Space == nsText && el.Name.Local == "p" {
				inPara = false
				continue
			}
			if el.Name.Space != nsTable {
				continue
			}
			switch el.Name.Local {
			case "table-cell", "covered-table-cell":
				inCell = false
				if err := p.addCell(p.cell.String(), cellRepeat); err != nil {
					return nil, err
				}
			case "table-row":
				if err := p.addRow(rowRepeat); err != nil {
					return nil, err
				}
			}
		}
	}
	return p.rows, nil
}

func (p *odsParser) addCell(value string, repeat int) error {
	if value == "" {
		if p.emptyCells += repeat; p.emptyCells > maxODSColumns {
			// Trailing blanks are dropped, so only cap the counter.
			p.emptyCells = maxODSColumns + 1
		}
		return nil
	}
	if len(p.row)+p.emptyCells+repeat > maxODSColumns {
		return fmt.Errorf("%w: more than %d columns", ErrTableTooLarge, maxODSColumns)
	}
	for ; p.emptyCells > 0; p.emptyCells-- {
		p.row = append(p.row, "")
	}
	for i := 0; i < repeat; i++ {
		p.row = append(p.row, value)
	}
	return nil
}

// addRow appends the current row repeat times. Blank rows are dropped; files often
// end with a single row repeated up to the sheet limit.
func (p *odsParser) addRow(repeat int) error {
	if len(p.row) == 0 {
		return nil
	}
	if len(p.rows)+repeat > maxODSRows {
		return fmt.Errorf("%w: more than %d rows", ErrTableTooLarge, maxODSRows)
	}
	if p.cells+repeat*len(p.row) > maxODSCells {
		return fmt.Errorf("%w: more than %d cells", ErrTableTooLarge, maxODSCells)
	}
	p.cells += repeat * len(p.row)
	for i := 0; i < repeat; i++ {
		p.rows = append(p.rows, append([]string(nil), p.row...))
	}
	return nil
}

// repeatAttr reads a positive integer attribute by local name, defaulting to 1.
// Values are capped at 1<<30, well past every limit, so sums cannot overflow.
func repeatAttr(el xml.StartElement, local string) int {
	for _, a := range el.Attr {
		if a.Name.Local != local {
			continue
		}
		if n, err := strconv.ParseInt(a.Value, 10, 64); err == nil && n > 0 {
			return int(min(n, 1<<30))
		}
	}
	return 1
}
