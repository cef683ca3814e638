// Package refine standardizes a table column: normalize, group, apply, and report.
package refine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/seiri/internal/config"
	"github.com/hyperjump/seiri/internal/embedding"
	"github.com/hyperjump/seiri/internal/grouping"
	"github.com/hyperjump/seiri/internal/models"
	"github.com/hyperjump/seiri/internal/normalize"
	"github.com/hyperjump/seiri/internal/table"
	"go.uber.org/zap"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("refine: invalid request")

// Refiner runs column refinements against one embedding provider.
type Refiner struct {
	embedder   embedding.Embedder
	cfg        config.RefineConfig
	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// New creates a Refiner. A nil logger means no logging.
func New(e embedding.Embedder, cfg config.RefineConfig, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{
		embedder:   e,
		cfg:        cfg,
		normalizer: normalize.New(cfg.Placeholder),
		logger:     logger,
	}
}

// DefaultThreshold returns the threshold used when a request leaves it at zero.
func (r *Refiner) DefaultThreshold() float64 {
	return r.cfg.DefaultThreshold
}

// Refine standardizes req.Column of tbl. Cells are normalized, the distinct values
// are grouped, and every cell is replaced by the canonical value of its group.
// Groups in the result only include merges (more than one member).
func (r *Refiner) Refine(ctx context.Context, tbl *table.Table, req models.RefineRequest) (*models.Refinement, error) {
	if req.Strategy == "" {
		req.Strategy = r.cfg.Strategy
	}
	if err := req.Validate(r.cfg.DefaultThreshold); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	raw, err := tbl.Column(req.Column)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	normalized := r.normalizer.Column(raw)
	distinct := normalize.Distinct(normalized)

	g := grouping.New(r.embedder,
		grouping.WithStrategy(grouping.Strategy(req.Strategy)),
		grouping.WithLogger(r.logger))
	res, err := g.Group(ctx, distinct, req.Threshold)
	if err != nil {
		return nil, fmt.Errorf("group column %q: %w", req.Column, err)
	}

	ref := &models.Refinement{
		Column:    tbl.Columns[tbl.ColumnIndex(req.Column)],
		Threshold: req.Threshold,
		Strategy:  string(g.Strategy()),
		Original:  raw,
		Processed: grouping.Apply(res.Mapping, normalized),
		Edited:    []int{},
		Groups:    res.Merged(),
		UpdatedAt: time.Now().UTC(),
	}
	if ref.Groups == nil {
		ref.Groups = []grouping.Group{}
	}
	ref.Recount()

	r.logger.Info("refined column",
		zap.String("table", tbl.Name),
		zap.String("column", ref.Column),
		zap.Float64("threshold", ref.Threshold),
		zap.String("strategy", ref.Strategy),
		zap.Int("rows", len(raw)),
		zap.Int("unique_before", ref.UniqueBefore),
		zap.Int("unique_after", ref.UniqueAfter),
		zap.Duration("took", time.Since(start)))
	return ref, nil
}
