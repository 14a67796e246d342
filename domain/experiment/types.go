package experiment

import (
	"fmt"

	"abtest/domain/core"
)

// Canonical column names of the tabular input
const (
	ColumnUserID    = "user_id"
	ColumnGroup     = "test_group"
	ColumnConverted = "converted"
	ColumnExposure  = "exposure_count"

	// ColumnExposureAlias is the exposure column name used by ad-campaign exports
	ColumnExposureAlias = "total_ads"
)

// RequiredColumns lists the columns every input must carry (exposure may use its alias)
var RequiredColumns = []string{ColumnUserID, ColumnGroup, ColumnConverted, ColumnExposure}

// GroupLabel names one experiment arm
type GroupLabel string

func (g GroupLabel) String() string {
	return string(g)
}

// GroupPair fixes the two arms of the experiment. Treatment is the arm under test.
type GroupPair struct {
	Treatment GroupLabel `json:"treatment"`
	Control   GroupLabel `json:"control"`
}

// DefaultGroups returns the conventional treatment/control labels
func DefaultGroups() GroupPair {
	return GroupPair{Treatment: "treatment", Control: "control"}
}

// Labels returns treatment then control
func (p GroupPair) Labels() []GroupLabel {
	return []GroupLabel{p.Treatment, p.Control}
}

// Contains reports whether label is one of the two arms
func (p GroupPair) Contains(label GroupLabel) bool {
	return label == p.Treatment || label == p.Control
}

// Validate checks that both labels are set and distinct
func (p GroupPair) Validate() error {
	if p.Treatment == "" || p.Control == "" {
		return fmt.Errorf("%w: both group labels are required", core.ErrSchema)
	}
	if p.Treatment == p.Control {
		return fmt.Errorf("%w: treatment and control labels must differ (%q)", core.ErrSchema, p.Treatment)
	}
	return nil
}

// UserRecord is one cleaned user row. Records are never mutated after preprocessing.
type UserRecord struct {
	UserID        string             `json:"user_id"`
	Group         GroupLabel         `json:"test_group"`
	Converted     bool               `json:"converted"`
	ExposureCount int                `json:"exposure_count"`
	Extended      map[string]float64 `json:"extended,omitempty"`
}

// Value returns the numeric value of a column for aggregation.
// Booleans map to 0/1. Absent extended values report ok=false.
func (r UserRecord) Value(column string) (float64, bool) {
	switch column {
	case ColumnConverted:
		if r.Converted {
			return 1, true
		}
		return 0, true
	case ColumnExposure, ColumnExposureAlias:
		return float64(r.ExposureCount), true
	}
	v, ok := r.Extended[column]
	return v, ok
}

// SplitByGroup partitions records by arm, preserving input order
func SplitByGroup(records []UserRecord) map[GroupLabel][]UserRecord {
	out := make(map[GroupLabel][]UserRecord)
	for _, r := range records {
		out[r.Group] = append(out[r.Group], r)
	}
	return out
}

// ExposureValues extracts exposure counts as float64 samples
func ExposureValues(records []UserRecord) []float64 {
	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = float64(r.ExposureCount)
	}
	return values
}
