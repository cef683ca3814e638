// Package grouping merges semantically equivalent strings into groups with a
// canonical representative, using embedding similarity.
package grouping

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/seiri/internal/embedding"
	"github.com/hyperjump/seiri/internal/normalize"
	"github.com/hyperjump/seiri/internal/vector"
	"go.uber.org/zap"
)

// ErrEmbedding marks failures of the embedding provider.
var ErrEmbedding = errors.New("grouping: embedding failed")

// Group is one set of equivalent values.
type Group struct {
	Canonical string   `json:"canonical"`
	Members   []string `json:"members"`
}

// Result is the output of a grouping call. Mapping has an entry for every input
// value and maps each canonical value to itself.
type Result struct {
	Mapping map[string]string `json:"mapping"`
	Groups  []Group           `json:"groups"`
}

// Merged returns only the groups with more than one member.
func (r *Result) Merged() []Group {
	var out []Group
	for _, g := range r.Groups {
		if len(g.Members) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Grouper groups strings using an embedding provider.
type Grouper struct {
	embedder   embedding.Embedder
	similarity vector.SimilarityFunc
	strategy   Strategy
	logger     *zap.Logger
}

// Option configures a Grouper.
type Option func(*Grouper)

// WithStrategy sets the partitioning strategy. The default is StrategyGreedySeed.
func WithStrategy(s Strategy) Option {
	return func(g *Grouper) {
		if s != "" {
			g.strategy = s
		}
	}
}

// WithSimilarity replaces cosine similarity.
func WithSimilarity(fn vector.SimilarityFunc) Option {
	return func(g *Grouper) {
		if fn != nil {
			g.similarity = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Grouper) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Grouper backed by e.
func New(e embedding.Embedder, opts ...Option) *Grouper {
	g := &Grouper{
		embedder:   e,
		similarity: vector.CosineSimilarity,
		strategy:   StrategyGreedySeed,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Strategy returns the configured strategy.
func (g *Grouper) Strategy() Strategy {
	return g.strategy
}

// Group maps every value to the canonical value of its group. Values are expected
// to be distinct and already normalized; repeats are folded into their first occurrence.
// The threshold is not validated: a value above every pairwise similarity yields
// singletons, one below every similarity merges everything into the first group.
// Two values are similar when their score is strictly greater than threshold.
// An empty input returns an empty result without calling the embedder.
func (g *Grouper) Group(ctx context.Context, values []string, threshold float64) (*Result, error) {
	values = normalize.Distinct(values)
	if len(values) == 0 {
		return &Result{Mapping: map[string]string{}, Groups: []Group{}}, nil
	}

	vecs, err := g.embedder.EmbedBatch(ctx, values)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vecs) != len(values) {
		return nil, fmt.Errorf("%w: got %d vectors for %d values", ErrEmbedding, len(vecs), len(values))
	}

	sim := vector.SimilarityMatrix(vecs, vecs, g.similarity)
	parts := g.strategy.partition()(sim, threshold)

	res := &Result{
		Mapping: make(map[string]string, len(values)),
		Groups:  make([]Group, 0, len(parts)),
	}
	for _, members := range parts {
		canon := canonical(values, members)
		grp := Group{Canonical: canon, Members: make([]string, 0, len(members))}
		for _, m := range members {
			res.Mapping[values[m]] = canon
			grp.Members = append(grp.Members, values[m])
		}
		res.Groups = append(res.Groups, grp)
	}

	g.logger.Debug("grouped values",
		zap.String("strategy", string(g.strategy)),
		zap.Float64("threshold", threshold),
		zap.Int("values", len(values)),
		zap.Int("groups", len(res.Groups)))
	return res, nil
}
