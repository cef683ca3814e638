// Package storage defines the persistence interface for datasets and refinements.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/seiri/internal/models"
)

// ErrNotFound is returned when a dataset or refinement does not exist.
var ErrNotFound = errors.New("storage: not found")

// Storage defines dataset and refinement persistence operations.
type Storage interface {
	// Dataset operations
	CreateDataset(ctx context.Context, ds *models.Dataset) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	GetDatasetByFingerprint(ctx context.Context, fingerprint string) (*models.Dataset, error)
	ListDatasets(ctx context.Context, offset, limit int) ([]*models.DatasetSummary, error)
	// DeleteDataset removes the dataset and its refinements.
	DeleteDataset(ctx context.Context, id string) error

	// Refinement operations, one per (dataset, column)
	SaveRefinement(ctx context.Context, ref *models.Refinement) error
	GetRefinement(ctx context.Context, datasetID, column string) (*models.Refinement, error)
	ListRefinements(ctx context.Context, datasetID string) ([]*models.RefinementSummary, error)

	// Stats
	CountDatasets(ctx context.Context) (int64, error)
	CountRefinements(ctx context.Context) (int64, error)

	Close() error
}
