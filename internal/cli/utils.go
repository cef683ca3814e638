// Package cli provides CLI output helpers for Seiri.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/seiri/internal/grouping"
	"github.com/hyperjump/seiri/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use text or json)", s)
	}
}

// RefinementReport is the JSON shape of a refine run.
type RefinementReport struct {
	models.RefinementSummary
	Groups []grouping.Group `json:"groups"`
	Output string           `json:"output,omitempty"`
}

// WriteRefinement writes the summary and merged groups of ref to w.
// output is the written file, if any.
func WriteRefinement(w io.Writer, ref *models.Refinement, output string, format OutputFormat) error {
	if format == OutputJSON {
		groups := ref.Groups
		if groups == nil {
			groups = []grouping.Group{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(RefinementReport{RefinementSummary: ref.Summary(), Groups: groups, Output: output})
	}
	writeRefinementText(w, ref, output)
	return nil
}

func writeRefinementText(w io.Writer, ref *models.Refinement, output string) {
	fmt.Fprintf(w, "\nColumn: %s (threshold %.2f, %s)\n", ref.Column, ref.Threshold, ref.Strategy)
	fmt.Fprintf(w, "Uniqueness: %d unique values → %d unique values\n", ref.UniqueBefore, ref.UniqueAfter)
	fmt.Fprintf(w, "Rows: %d, changed: %d\n", len(ref.Processed), len(ref.Changed))
	if output != "" {
		fmt.Fprintf(w, "Written to %s\n", output)
	}
	if len(ref.Groups) == 0 {
		fmt.Fprintln(w, "\nNo values were merged.")
		return
	}
	fmt.Fprintf(w, "\n--- %d merged groups ---\n", len(ref.Groups))
	for _, g := range ref.Groups {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s (%d values)\n", Truncate(g.Canonical, 80), len(g.Members))
		for _, m := range g.Members {
			if m == g.Canonical {
				continue
			}
			fmt.Fprintf(w, "  ← %s\n", Truncate(m, 80))
		}
	}
	fmt.Fprintln(w)
}

// WriteColumns writes column names, one per line, or as a JSON array.
func WriteColumns(w io.Writer, columns []string, format OutputFormat) error {
	if format == OutputJSON {
		if columns == nil {
			columns = []string{}
		}
		return json.NewEncoder(w).Encode(map[string][]string{"columns": columns})
	}
	for i, c := range columns {
		fmt.Fprintf(w, "%3d  %s\n", i+1, c)
	}
	return nil
}

// WriteStatus writes a server status report.
func WriteStatus(w io.Writer, st *models.Status, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	fmt.Fprintf(w, "Datasets:     %d\n", st.Datasets)
	fmt.Fprintf(w, "Refinements:  %d\n", st.Refinements)
	model := st.Model
	if !st.EmbedderReady {
		model = "(not loaded)"
	}
	fmt.Fprintf(w, "Embedder:     %s %s\n", st.Provider, model)
	if st.Dimensions > 0 {
		fmt.Fprintf(w, "Dimensions:   %d\n", st.Dimensions)
	}
	fmt.Fprintf(w, "Threshold:    %.2f (%s)\n", st.DefaultThreshold, st.DefaultStrategy)
	return nil
}

// Truncate shortens s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
