package export

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/table"
	"github.com/xuri/excelize/v2"
)

func fixture() (*table.Table, *models.Refinement) {
	tbl := &table.Table{
		Columns: []string{"ID", "City", "Country"},
		Rows: [][]string{
			{"1", "nyc", "US"},
			{"2", "New York", "US"},
			{"3", "Paris", "FR"},
		},
	}
	ref := &models.Refinement{
		Column:    "City",
		Original:  []string{"nyc", "New York", "Paris"},
		Processed: []string{"Nyc", "Nyc", "Paris City"},
		Changed:   []int{0, 1, 2},
		Edited:    []int{2},
	}
	return tbl, ref
}

func TestFromRefinement(t *testing.T) {
	tbl, ref := fixture()

	s, err := FromRefinement(tbl, ref, false)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(s.Header, []string{"City", "Processed: City"}) {
		t.Errorf("header = %v", s.Header)
	}
	if s.ProcessedCol != 1 || !reflect.DeepEqual(s.Rows[1], []string{"New York", "Nyc"}) {
		t.Errorf("unexpected sheet %+v", s)
	}
	if !reflect.DeepEqual(s.Changed, []int{0, 1}) || !reflect.DeepEqual(s.Edited, []int{2}) {
		t.Errorf("changed = %v, edited = %v; edited rows belong only to Edited", s.Changed, s.Edited)
	}

	full, err := FromRefinement(tbl, ref, true)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(full.Header, []string{"ID", "City", "Processed: City", "Country"}) {
		t.Errorf("full header = %v", full.Header)
	}
	if full.ProcessedCol != 2 || !reflect.DeepEqual(full.Rows[0], []string{"1", "nyc", "Nyc", "US"}) {
		t.Errorf("unexpected full sheet %+v", full)
	}
	if !reflect.DeepEqual(tbl.Rows[0], []string{"1", "nyc", "US"}) {
		t.Error("source table must not be modified")
	}

	ref.Column = "Town"
	if _, err := FromRefinement(tbl, ref, true); !errors.Is(err, table.ErrColumnNotFound) {
		t.Errorf("got %v, want ErrColumnNotFound", err)
	}
}

func TestWriteCSV(t *testing.T) {
	tbl, ref := fixture()
	s, err := FromRefinement(tbl, ref, false)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, s, FormatCSV); err != nil {
		t.Fatal(err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, utf8BOM) {
		t.Fatal("CSV should start with a UTF-8 BOM")
	}
	want := "City,Processed: City\nnyc,Nyc\nNew York,Nyc\nParis,Paris City\n"
	if got := string(out[len(utf8BOM):]); got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}

	// The written file loads back through the table reader.
	back, err := table.Load("output.csv", out)
	if err != nil {
		t.Fatal(err)
	}
	col, err := back.Column(ProcessedHeader("City"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(col, ref.Processed) {
		t.Errorf("round trip = %v", col)
	}
}

func TestWriteXLSX(t *testing.T) {
	tbl, ref := fixture()
	s, err := FromRefinement(tbl, ref, true)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := Write(&buf, s, FormatXLSX); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || !reflect.DeepEqual(rows[0], s.Header) || rows[3][2] != "Paris City" {
		t.Errorf("rows = %v", rows)
	}

	plain, _ := f.GetCellStyle(sheetName, "B2")
	changed, _ := f.GetCellStyle(sheetName, "C2")
	edited, _ := f.GetCellStyle(sheetName, "C4")
	header, _ := f.GetCellStyle(sheetName, "A1")
	if changed == plain || edited == plain || edited == changed || header == plain {
		t.Errorf("styles plain=%d changed=%d edited=%d header=%d", plain, changed, edited, header)
	}

	panes, err := f.GetPanes(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	if !panes.Freeze || panes.YSplit != 1 {
		t.Errorf("header should be frozen, got %+v", panes)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatCSV, "CSV": FormatCSV, ".xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xls"); err == nil {
		t.Error("expected error for xls")
	}
	if FormatXLSX.Filename() != "output.xlsx" || !strings.HasPrefix(FormatCSV.ContentType(), "text/csv") {
		t.Error("unexpected filename or content type")
	}
}
