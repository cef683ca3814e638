package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDatabaseSize(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "datasets.db")

	got, err := DatabaseSize(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("missing database: got %d bytes, want 0", got)
	}

	if err := os.WriteFile(db, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(db+"-wal", []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = DatabaseSize(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 8 {
		t.Errorf("database + wal: got %d bytes, want 8", got)
	}

	if DatabaseFiles("") != nil {
		t.Error("empty path should have no files")
	}
}
