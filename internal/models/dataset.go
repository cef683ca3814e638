// Package models defines core data structures for datasets, refinements, and API requests.
package models

import (
	"time"

	"github.com/hyperjump/seiri/internal/table"
)

// Dataset is an uploaded spreadsheet: the header row and every data row as text.
type Dataset struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Fingerprint string     `json:"fingerprint" db:"fingerprint"`
	Columns     []string   `json:"columns" db:"columns"`
	Rows        [][]string `json:"rows,omitempty" db:"row_data"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// DatasetSummary is a Dataset without its rows.
type DatasetSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Columns     []string  `json:"columns"`
	RowCount    int       `json:"row_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// DatasetPreview is a summary plus the first rows of the dataset.
type DatasetPreview struct {
	DatasetSummary
	Rows [][]string `json:"rows"`
}

// Summary returns the dataset metadata.
func (d *Dataset) Summary() DatasetSummary {
	return DatasetSummary{
		ID:          d.ID,
		Name:        d.Name,
		Fingerprint: d.Fingerprint,
		Columns:     d.Columns,
		RowCount:    len(d.Rows),
		CreatedAt:   d.CreatedAt,
	}
}

// Preview returns the summary with at most limit rows. A limit <= 0 returns every row.
func (d *Dataset) Preview(limit int) DatasetPreview {
	rows := d.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = [][]string{}
	}
	return DatasetPreview{DatasetSummary: d.Summary(), Rows: rows}
}

// Table returns the dataset as a table.
func (d *Dataset) Table() *table.Table {
	return &table.Table{Name: d.Name, Columns: d.Columns, Rows: d.Rows}
}

// NewDataset builds a dataset from a loaded table. The ID is left for storage to assign.
func NewDataset(t *table.Table, fingerprint string) *Dataset {
	return &Dataset{
		Name:        t.Name,
		Fingerprint: fingerprint,
		Columns:     t.Columns,
		Rows:        t.Rows,
	}
}
