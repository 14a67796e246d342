package experiment

import (
	"abtest/domain/core"
)

// Names of the core per-group metrics
const (
	MetricUserCount              = "user_count"
	MetricConvertedCount         = "converted_count"
	MetricExposureTotal          = "exposure_total"
	MetricConversionRate         = "conversion_rate"
	MetricExposuresPerUser       = "exposures_per_user"
	MetricConversionsPerExposure = "conversions_per_exposure"
	MetricUsersPerExposure       = "users_per_exposure"
	MetricConversionPercentage   = "conversion_percentage"
)

// MetricValue is one named aggregate or ratio
type MetricValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// GroupMetrics is the rollup for one arm. The counts are authoritative;
// Values holds every schema-defined aggregate and ratio in schema order.
type GroupMetrics struct {
	Group          GroupLabel    `json:"group"`
	UserCount      int           `json:"user_count"`
	ConvertedCount int           `json:"converted_count"`
	ExposureTotal  int           `json:"exposure_total"`
	Values         []MetricValue `json:"metrics"`
}

// Get looks up a metric by name
func (m GroupMetrics) Get(name string) (float64, bool) {
	for _, v := range m.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// ConversionRate is converted_count / user_count
func (m GroupMetrics) ConversionRate() (float64, error) {
	if m.UserCount <= 0 {
		return 0, core.NewZeroDenominatorError(m.Group.String(), MetricConversionRate, MetricUserCount)
	}
	return float64(m.ConvertedCount) / float64(m.UserCount), nil
}

// MetricsTable holds the rollups of both arms
type MetricsTable struct {
	Groups  GroupPair                   `json:"groups"`
	ByGroup map[GroupLabel]GroupMetrics `json:"by_group"`
	Names   []string                    `json:"metric_names"`
}

// Treatment returns the treatment rollup
func (t MetricsTable) Treatment() GroupMetrics {
	return t.ByGroup[t.Groups.Treatment]
}

// Control returns the control rollup
func (t MetricsTable) Control() GroupMetrics {
	return t.ByGroup[t.Groups.Control]
}
