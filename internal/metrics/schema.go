package metrics

import (
	"fmt"
	"os"

	"abtest/domain/core"
	"abtest/domain/experiment"

	"gopkg.in/yaml.v3"
)

// Func is an aggregation applied to one column within a group
type Func string

const (
	FuncSum           Func = "sum"
	FuncMean          Func = "mean"
	FuncCount         Func = "count"
	FuncCountDistinct Func = "count_distinct"
	FuncCountTrue     Func = "count_true"
)

// AggregateSpec maps a column to an aggregation function under a metric name
type AggregateSpec struct {
	Name   string `yaml:"name" json:"name"`
	Column string `yaml:"column" json:"column"`
	Func   Func   `yaml:"func" json:"func"`
}

// RatioSpec derives Scale * Numerator / Denominator from previously defined metrics
type RatioSpec struct {
	Name        string  `yaml:"name" json:"name"`
	Numerator   string  `yaml:"numerator" json:"numerator"`
	Denominator string  `yaml:"denominator" json:"denominator"`
	Scale       float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Schema is the declarative {column -> aggregation} mapping plus derived ratios.
// Aliases re-expose an existing metric under another name.
type Schema struct {
	Aggregates []AggregateSpec   `yaml:"aggregates" json:"aggregates"`
	Ratios     []RatioSpec       `yaml:"ratios" json:"ratios"`
	Aliases    map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// coreAggregates must exist in every schema; the hypothesis engine reads them
var coreAggregates = []string{
	experiment.MetricUserCount,
	experiment.MetricConvertedCount,
	experiment.MetricExposureTotal,
}

// DefaultSchema returns the standard A/B rollup
func DefaultSchema() Schema {
	return Schema{
		Aggregates: []AggregateSpec{
			{Name: experiment.MetricUserCount, Column: experiment.ColumnUserID, Func: FuncCountDistinct},
			{Name: experiment.MetricConvertedCount, Column: experiment.ColumnConverted, Func: FuncCountTrue},
			{Name: experiment.MetricExposureTotal, Column: experiment.ColumnExposure, Func: FuncSum},
		},
		Ratios: []RatioSpec{
			{Name: experiment.MetricConversionRate, Numerator: experiment.MetricConvertedCount, Denominator: experiment.MetricUserCount},
			{Name: experiment.MetricExposuresPerUser, Numerator: experiment.MetricExposureTotal, Denominator: experiment.MetricUserCount},
			{Name: experiment.MetricConversionsPerExposure, Numerator: experiment.MetricConvertedCount, Denominator: experiment.MetricExposureTotal},
			{Name: experiment.MetricUsersPerExposure, Numerator: experiment.MetricUserCount, Denominator: experiment.MetricExposureTotal},
			{Name: experiment.MetricConversionPercentage, Numerator: experiment.MetricConvertedCount, Denominator: experiment.MetricUserCount, Scale: 100},
		},
	}
}

// LegacyAliases are the duplicate ratio names older reports exposed; all equal conversion_rate
func LegacyAliases() map[string]string {
	return map[string]string{
		"conversion_per_user": experiment.MetricConversionRate,
		"active_user_ratio":   experiment.MetricConversionRate,
	}
}

// WithExtended appends aggregates for extra numeric columns
func (s Schema) WithExtended(specs ...AggregateSpec) Schema {
	out := Schema{
		Aggregates: append(append([]AggregateSpec(nil), s.Aggregates...), specs...),
		Ratios:     append([]RatioSpec(nil), s.Ratios...),
		Aliases:    s.Aliases,
	}
	return out
}

// Validate checks names are unique, functions known, and ratio operands defined earlier
func (s Schema) Validate() error {
	defined := make(map[string]bool)

	for _, a := range s.Aggregates {
		if a.Name == "" || a.Column == "" {
			return core.NewAggregationError("aggregate needs name and column")
		}
		if defined[a.Name] {
			return core.NewAggregationError(fmt.Sprintf("duplicate metric %q", a.Name))
		}
		switch a.Func {
		case FuncSum, FuncMean, FuncCountTrue:
			if a.Column == experiment.ColumnUserID {
				return core.NewAggregationError(fmt.Sprintf("%s cannot apply %s to %s", a.Name, a.Func, a.Column))
			}
		case FuncCount, FuncCountDistinct:
		default:
			return core.NewAggregationError(fmt.Sprintf("unknown func %q for %s", a.Func, a.Name))
		}
		defined[a.Name] = true
	}

	for _, name := range coreAggregates {
		if !defined[name] {
			return core.NewAggregationError(fmt.Sprintf("schema must define %s", name))
		}
	}

	for _, r := range s.Ratios {
		if r.Name == "" {
			return core.NewAggregationError("ratio needs a name")
		}
		if defined[r.Name] {
			return core.NewAggregationError(fmt.Sprintf("duplicate metric %q", r.Name))
		}
		if !defined[r.Numerator] || !defined[r.Denominator] {
			return core.NewAggregationError(fmt.Sprintf("ratio %s references undefined metric", r.Name))
		}
		defined[r.Name] = true
	}

	for alias, target := range s.Aliases {
		if defined[alias] {
			return core.NewAggregationError(fmt.Sprintf("alias %q shadows a metric", alias))
		}
		if !defined[target] {
			return core.NewAggregationError(fmt.Sprintf("alias %s targets undefined metric %s", alias, target))
		}
	}

	return nil
}

// ParseSchema decodes a YAML schema and validates it
func ParseSchema(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, core.NewAggregationError(err.Error())
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// LoadSchema reads a YAML schema file
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read metrics schema: %w", err)
	}
	return ParseSchema(data)
}
