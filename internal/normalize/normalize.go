// Package normalize turns raw spreadsheet cells into the canonical text form fed to the grouper.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultPlaceholder replaces missing cells.
const DefaultPlaceholder = "Unspecified"

// Normalizer trims and title-cases values, substituting a placeholder for missing ones.
type Normalizer struct {
	placeholder string
}

// New returns a Normalizer. An empty placeholder means DefaultPlaceholder.
func New(placeholder string) *Normalizer {
	if strings.TrimSpace(placeholder) == "" {
		placeholder = DefaultPlaceholder
	}
	return &Normalizer{placeholder: placeholder}
}

// Value normalizes a single cell. Only empty cells count as missing; a cell of
// whitespace trims to "".
func (n *Normalizer) Value(raw string) string {
	s := strings.TrimSpace(raw)
	if raw == "" {
		s = strings.TrimSpace(n.placeholder)
	}
	// cases.Caser keeps state between calls, so one per value.
	return cases.Title(language.Und).String(s)
}

// Column normalizes every cell of a column, keeping positions.
func (n *Normalizer) Column(raw []string) []string {
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = n.Value(v)
	}
	return out
}

// Distinct returns the distinct values in order of first occurrence.
func Distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	res := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		res = append(res, v)
	}
	return res
}

// CountDistinct returns the number of distinct values.
func CountDistinct(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
