package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/seiri/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fingerprint TEXT NOT NULL UNIQUE,
		columns TEXT NOT NULL,
		row_data TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_datasets_created_at ON datasets(created_at);

	CREATE TABLE IF NOT EXISTS refinements (
		dataset_id TEXT NOT NULL,
		column_name TEXT NOT NULL,
		threshold REAL NOT NULL,
		strategy TEXT NOT NULL,
		original TEXT NOT NULL,
		processed TEXT NOT NULL,
		edited TEXT NOT NULL,
		group_data TEXT NOT NULL,
		unique_before INTEGER NOT NULL,
		unique_after INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (dataset_id, column_name),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDataset inserts a dataset, assigning an ID when ds.ID is empty.
func (s *SQLiteStorage) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	columnsJSON, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(ds.Rows)
	if err != nil {
		return fmt.Errorf("failed to marshal rows: %w", err)
	}
	ds.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, name, fingerprint, columns, row_data, row_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ds.ID, ds.Name, ds.Fingerprint, string(columnsJSON), string(rowsJSON), len(ds.Rows), ds.CreatedAt,
	)
	return err
}

// GetDataset returns a dataset with its rows by ID.
func (s *SQLiteStorage) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	return s.getDataset(ctx, `WHERE id = ?`, id)
}

// GetDatasetByFingerprint returns the dataset uploaded with the given content fingerprint.
func (s *SQLiteStorage) GetDatasetByFingerprint(ctx context.Context, fingerprint string) (*models.Dataset, error) {
	return s.getDataset(ctx, `WHERE fingerprint = ?`, fingerprint)
}

func (s *SQLiteStorage) getDataset(ctx context.Context, where string, arg string) (*models.Dataset, error) {
	var ds models.Dataset
	var columnsJSON, rowsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, fingerprint, columns, row_data, created_at FROM datasets `+where, arg,
	).Scan(&ds.ID, &ds.Name, &ds.Fingerprint, &columnsJSON, &rowsJSON, &ds.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(columnsJSON), &ds.Columns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &ds.Rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rows: %w", err)
	}
	return &ds, nil
}

// ListDatasets returns dataset summaries, newest first.
func (s *SQLiteStorage) ListDatasets(ctx context.Context, offset, limit int) ([]*models.DatasetSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, fingerprint, columns, row_count, created_at
		 FROM datasets ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.DatasetSummary{}
	for rows.Next() {
		var sum models.DatasetSummary
		var columnsJSON string
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Fingerprint, &columnsJSON, &sum.RowCount, &sum.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(columnsJSON), &sum.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns: %w", err)
		}
		list = append(list, &sum)
	}
	return list, rows.Err()
}

// DeleteDataset removes a dataset and its refinements.
func (s *SQLiteStorage) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM refinements WHERE dataset_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// SaveRefinement inserts or replaces the refinement of ref.Column in ref.DatasetID.
func (s *SQLiteStorage) SaveRefinement(ctx context.Context, ref *models.Refinement) error {
	enc := func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	}
	original, err := enc(ref.Original)
	if err != nil {
		return fmt.Errorf("failed to marshal original: %w", err)
	}
	processed, err := enc(ref.Processed)
	if err != nil {
		return fmt.Errorf("failed to marshal processed: %w", err)
	}
	edited, err := enc(ref.Edited)
	if err != nil {
		return fmt.Errorf("failed to marshal edited: %w", err)
	}
	groups, err := enc(ref.Groups)
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}
	if ref.UpdatedAt.IsZero() {
		ref.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO refinements (dataset_id, column_name, threshold, strategy, original, processed,
			edited, group_data, unique_before, unique_after, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dataset_id, column_name) DO UPDATE SET
			threshold = excluded.threshold,
			strategy = excluded.strategy,
			original = excluded.original,
			processed = excluded.processed,
			edited = excluded.edited,
			group_data = excluded.group_data,
			unique_before = excluded.unique_before,
			unique_after = excluded.unique_after,
			updated_at = excluded.updated_at`,
		ref.DatasetID, ref.Column, ref.Threshold, ref.Strategy, original, processed,
		edited, groups, ref.UniqueBefore, ref.UniqueAfter, ref.UpdatedAt,
	)
	return err
}

// GetRefinement returns the refinement of column in a dataset.
func (s *SQLiteStorage) GetRefinement(ctx context.Context, datasetID, column string) (*models.Refinement, error) {
	var ref models.Refinement
	var original, processed, edited, groups string

	err := s.db.QueryRowContext(ctx,
		`SELECT dataset_id, column_name, threshold, strategy, original, processed, edited, group_data, updated_at
		 FROM refinements WHERE dataset_id = ? AND column_name = ?`, datasetID, column,
	).Scan(&ref.DatasetID, &ref.Column, &ref.Threshold, &ref.Strategy,
		&original, &processed, &edited, &groups, &ref.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("refinement %s/%s: %w", datasetID, column, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		src  string
		dst  interface{}
	}{
		{"original", original, &ref.Original},
		{"processed", processed, &ref.Processed},
		{"edited", edited, &ref.Edited},
		{"groups", groups, &ref.Groups},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", f.name, err)
		}
	}
	ref.Recount()
	return &ref, nil
}

// ListRefinements returns summaries of every refinement of a dataset, ordered by column.
func (s *SQLiteStorage) ListRefinements(ctx context.Context, datasetID string) ([]*models.RefinementSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name FROM refinements WHERE dataset_id = ? ORDER BY column_name`, datasetID)
	if err != nil {
		return nil, err
	}
	var columns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			_ = rows.Close()
			return nil, err
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	list := make([]*models.RefinementSummary, 0, len(columns))
	for _, c := range columns {
		ref, err := s.GetRefinement(ctx, datasetID, c)
		if err != nil {
			return nil, err
		}
		sum := ref.Summary()
		list = append(list, &sum)
	}
	return list, nil
}

// CountDatasets returns the total number of datasets.
func (s *SQLiteStorage) CountDatasets(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets`).Scan(&count)
	return count, err
}

// CountRefinements returns the total number of refinements.
func (s *SQLiteStorage) CountRefinements(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refinements`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
