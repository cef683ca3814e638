package grouping

// Apply substitutes every value in column with its mapped canonical value.
// Values without a mapping entry are kept as they are.
func Apply(mapping map[string]string, column []string) []string {
	out := make([]string, len(column))
	for i, v := range column {
		if c, ok := mapping[v]; ok {
			out[i] = c
		} else {
			out[i] = v
		}
	}
	return out
}
