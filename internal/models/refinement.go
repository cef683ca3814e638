package models

import (
	"sort"
	"time"

	"github.com/hyperjump/seiri/internal/grouping"
	"github.com/hyperjump/seiri/internal/normalize"
)

// Refinement is the standardized version of one dataset column.
type Refinement struct {
	DatasetID string  `json:"dataset_id" db:"dataset_id"`
	Column    string  `json:"column" db:"column_name"`
	Threshold float64 `json:"threshold" db:"threshold"`
	Strategy  string  `json:"strategy" db:"strategy"`
	// Original holds the raw cells; Processed the standardized ones, row for row.
	Original  []string `json:"original" db:"original"`
	Processed []string `json:"processed" db:"processed"`
	// Changed lists rows whose processed value differs from the raw value.
	Changed []int `json:"changed"`
	// Edited lists rows changed by hand after grouping.
	Edited       []int            `json:"edited" db:"edited"`
	Groups       []grouping.Group `json:"groups" db:"group_data"`
	UniqueBefore int              `json:"unique_before" db:"unique_before"`
	UniqueAfter  int              `json:"unique_after" db:"unique_after"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// Recount recomputes UniqueBefore, UniqueAfter and Changed from Original and Processed.
func (r *Refinement) Recount() {
	r.UniqueBefore = normalize.CountDistinct(r.Original)
	r.UniqueAfter = normalize.CountDistinct(r.Processed)
	r.Changed = []int{}
	for i := range r.Processed {
		if i >= len(r.Original) || r.Processed[i] != r.Original[i] {
			r.Changed = append(r.Changed, i)
		}
	}
}

// MarkEdited records row as hand-edited, keeping Edited sorted and free of repeats.
func (r *Refinement) MarkEdited(row int) {
	i := sort.SearchInts(r.Edited, row)
	if i < len(r.Edited) && r.Edited[i] == row {
		return
	}
	r.Edited = append(r.Edited, 0)
	copy(r.Edited[i+1:], r.Edited[i:])
	r.Edited[i] = row
}

// IsEdited reports whether row was edited by hand.
func (r *Refinement) IsEdited(row int) bool {
	i := sort.SearchInts(r.Edited, row)
	return i < len(r.Edited) && r.Edited[i] == row
}

// RefinementSummary is the uniqueness report of a refinement.
type RefinementSummary struct {
	DatasetID    string  `json:"dataset_id"`
	Column       string  `json:"column"`
	Threshold    float64 `json:"threshold"`
	Strategy     string  `json:"strategy"`
	Rows         int     `json:"rows"`
	UniqueBefore int     `json:"unique_before"`
	UniqueAfter  int     `json:"unique_after"`
	Changed      int     `json:"changed"`
	Edited       int     `json:"edited"`
	Groups       int     `json:"group_count"`
}

// Summary returns the counts of r.
func (r *Refinement) Summary() RefinementSummary {
	return RefinementSummary{
		DatasetID:    r.DatasetID,
		Column:       r.Column,
		Threshold:    r.Threshold,
		Strategy:     r.Strategy,
		Rows:         len(r.Processed),
		UniqueBefore: r.UniqueBefore,
		UniqueAfter:  r.UniqueAfter,
		Changed:      len(r.Changed),
		Edited:       len(r.Edited),
		Groups:       len(r.Groups),
	}
}
