package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/hyperjump/seiri/internal/grouping"
)

// RefineRequest asks for one column to be standardized.
type RefineRequest struct {
	Column    string  `json:"column"`
	Threshold float64 `json:"threshold,omitempty"`
	Strategy  string  `json:"strategy,omitempty"`
}

// Validate checks the request and fills defaults: a zero threshold becomes
// defaultThreshold and an empty strategy becomes greedy. Finite thresholds outside
// [-1, 1] are accepted; they yield all-singleton or all-merged groupings.
func (r *RefineRequest) Validate(defaultThreshold float64) error {
	r.Column = strings.TrimSpace(r.Column)
	if r.Column == "" {
		return fmt.Errorf("column cannot be empty")
	}
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return fmt.Errorf("threshold must be a finite number")
	}
	if r.Threshold == 0 {
		r.Threshold = defaultThreshold
	}
	s, err := grouping.ParseStrategy(r.Strategy)
	if err != nil {
		return err
	}
	r.Strategy = string(s)
	return nil
}

// EditRequest sets one processed cell.
type EditRequest struct {
	Value string `json:"value"`
}

// RenameRequest replaces every processed cell equal to From with To.
type RenameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Validate rejects an empty From.
func (r *RenameRequest) Validate() error {
	if r.From == "" {
		return fmt.Errorf("from cannot be empty")
	}
	return nil
}

// Status is the server status report.
type Status struct {
	Datasets    int    `json:"datasets"`
	Refinements int    `json:"refinements"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	// EmbedderReady is false until the first refinement loads the model.
	EmbedderReady    bool    `json:"embedder_ready"`
	DefaultThreshold float64 `json:"default_threshold"`
	DefaultStrategy  string  `json:"default_strategy"`
}
