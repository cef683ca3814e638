// Package integration provides end-to-end tests (requires real storage and spreadsheet files).
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/export"
	"github.com/hyperjump/seiri/internal/fingerprint"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/refine"
	"github.com/hyperjump/seiri/internal/storage"
	"github.com/hyperjump/seiri/internal/table"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type vectors map[string][]float32

func (v vectors) Embed(ctx context.Context, text string) ([]float32, error) {
	return v[text], nil
}

func (v vectors) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := v[t]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (v vectors) Dimensions() int { return 3 }
func (v vectors) Model() string   { return "fixed" }
func (v vectors) Close() error    { return nil }

func writeWorkbook(t *testing.T, path string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &cells); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return content
}

func TestIntegration_RefineEditExport(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	src := filepath.Join(dir, "customers.xlsx")
	content := writeWorkbook(t, src, [][]string{
		{"Name", "City"},
		{"Ann", "new york"},
		{"Bob", "NYC"},
		{"Cid", ""},
		{"Dee", "Boston"},
		{"Eve", "New York City"},
	})

	tbl, err := table.LoadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	ds := models.NewDataset(tbl, fingerprint.Of(content))
	ctx := context.Background()
	if err := store.CreateDataset(ctx, ds); err != nil {
		t.Fatal(err)
	}
	if ds.ID == "" {
		t.Fatal("dataset should get an ID")
	}

	embedder := vectors{
		"New York":      {1, 0, 0},
		"Nyc":           {0.95, 0.3, 0},
		"New York City": {0.97, 0.2, 0},
		"Boston":        {0, 1, 0},
		"Unspecified":   {0, 0, 1},
	}
	refiner := refine.New(embedder, cfg.Refine, zap.NewNop())

	stored, err := store.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := refiner.Refine(ctx, stored.Table(), models.RefineRequest{Column: "City"})
	if err != nil {
		t.Fatal(err)
	}
	ref.DatasetID = ds.ID
	wantProcessed := []string{"Nyc", "Nyc", "Unspecified", "Boston", "Nyc"}
	if !reflect.DeepEqual(ref.Processed, wantProcessed) {
		t.Fatalf("processed = %v, want %v", ref.Processed, wantProcessed)
	}
	if ref.UniqueAfter != 3 {
		t.Errorf("unique after = %d, want 3", ref.UniqueAfter)
	}
	if err := store.SaveRefinement(ctx, ref); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.GetRefinement(ctx, ds.ID, "City")
	if err != nil {
		t.Fatal(err)
	}
	if n := refine.Rename(loaded, "Nyc", "New York"); n != 3 {
		t.Errorf("rename changed %d rows, want 3", n)
	}
	if err := refine.Edit(loaded, 2, "Chicago"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveRefinement(ctx, loaded); err != nil {
		t.Fatal(err)
	}

	final, err := store.GetRefinement(ctx, ds.ID, "City")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(final.Edited, []int{0, 1, 2, 4}) {
		t.Errorf("edited = %v", final.Edited)
	}

	sheet, err := export.FromRefinement(stored.Table(), final, true)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, sheet, export.FormatXLSX); err != nil {
		t.Fatal(err)
	}
	out, err := table.Load("output.xlsx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(out.Columns, []string{"Name", "City", "Processed: City"}) {
		t.Errorf("exported columns = %v", out.Columns)
	}
	processed, err := out.Column("Processed: City")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"New York", "New York", "Chicago", "Boston", "New York"}
	if !reflect.DeepEqual(processed, want) {
		t.Errorf("exported processed = %v, want %v", processed, want)
	}

	if err := store.DeleteDataset(ctx, ds.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetRefinement(ctx, ds.ID, "City"); err == nil {
		t.Error("refinements should be removed with their dataset")
	}
}
