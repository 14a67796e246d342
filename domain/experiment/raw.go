package experiment

import "strings"

// RawRow is one input row keyed by header. An absent key or blank value is a missing field.
type RawRow map[string]string

// RawTable is an untyped, column-oriented input as delivered by a source adapter
type RawTable struct {
	Headers []string `json:"headers"`
	Rows    []RawRow `json:"rows"`
}

// NormalizeHeader maps "User ID", "test-group" and similar spellings onto snake_case
func NormalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return h
}
