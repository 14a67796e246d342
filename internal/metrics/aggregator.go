package metrics

import (
	"sort"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/montanaflynn/stats"
)

// Aggregator computes one GroupMetrics per arm from preprocessed records
type Aggregator struct {
	schema Schema
	groups experiment.GroupPair
	logger *internal.Logger
}

// NewAggregator validates the schema and returns an aggregator for the two arms
func NewAggregator(schema Schema, groups experiment.GroupPair, logger *internal.Logger) (*Aggregator, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := groups.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Aggregator{schema: schema, groups: groups, logger: logger}, nil
}

// Schema returns the schema in use
func (a *Aggregator) Schema() Schema {
	return a.schema
}

// Aggregate rolls up both arms. A group with zero users fails with InsufficientDataError,
// as does any ratio whose denominator is zero.
func (a *Aggregator) Aggregate(records []experiment.UserRecord) (*experiment.MetricsTable, error) {
	byGroup := experiment.SplitByGroup(records)

	table := &experiment.MetricsTable{
		Groups:  a.groups,
		ByGroup: make(map[experiment.GroupLabel]experiment.GroupMetrics, 2),
		Names:   a.metricNames(),
	}

	for _, label := range a.groups.Labels() {
		m, err := a.aggregateGroup(label, byGroup[label])
		if err != nil {
			return nil, err
		}
		table.ByGroup[label] = m
		a.logger.Debug("aggregate: group %s users=%d converted=%d exposures=%d",
			label, m.UserCount, m.ConvertedCount, m.ExposureTotal)
	}

	return table, nil
}

func (a *Aggregator) metricNames() []string {
	names := make([]string, 0, len(a.schema.Aggregates)+len(a.schema.Ratios)+len(a.schema.Aliases))
	for _, s := range a.schema.Aggregates {
		names = append(names, s.Name)
	}
	for _, r := range a.schema.Ratios {
		names = append(names, r.Name)
	}
	return append(names, sortedKeys(a.schema.Aliases)...)
}

func (a *Aggregator) aggregateGroup(label experiment.GroupLabel, records []experiment.UserRecord) (experiment.GroupMetrics, error) {
	if len(records) == 0 {
		return experiment.GroupMetrics{}, core.NewEmptyGroupError(label.String())
	}

	values := make(map[string]float64, len(a.schema.Aggregates)+len(a.schema.Ratios))
	out := experiment.GroupMetrics{Group: label}

	for _, spec := range a.schema.Aggregates {
		v, err := applyAggregate(spec, label, records)
		if err != nil {
			return experiment.GroupMetrics{}, err
		}
		values[spec.Name] = v
		out.Values = append(out.Values, experiment.MetricValue{Name: spec.Name, Value: v})
	}

	out.UserCount = int(values[experiment.MetricUserCount])
	out.ConvertedCount = int(values[experiment.MetricConvertedCount])
	out.ExposureTotal = int(values[experiment.MetricExposureTotal])

	if out.UserCount == 0 {
		return experiment.GroupMetrics{}, core.NewEmptyGroupError(label.String())
	}

	for _, r := range a.schema.Ratios {
		den := values[r.Denominator]
		if den == 0 {
			return experiment.GroupMetrics{}, core.NewZeroDenominatorError(label.String(), r.Name, r.Denominator)
		}
		scale := r.Scale
		if scale == 0 {
			scale = 1
		}
		v := scale * values[r.Numerator] / den
		values[r.Name] = v
		out.Values = append(out.Values, experiment.MetricValue{Name: r.Name, Value: v})
	}

	for _, alias := range sortedKeys(a.schema.Aliases) {
		out.Values = append(out.Values, experiment.MetricValue{Name: alias, Value: values[a.schema.Aliases[alias]]})
	}

	return out, nil
}

func applyAggregate(spec AggregateSpec, label experiment.GroupLabel, records []experiment.UserRecord) (float64, error) {
	if spec.Column == experiment.ColumnUserID {
		if spec.Func == FuncCount {
			return float64(len(records)), nil
		}
		ids := make(map[string]struct{}, len(records))
		for _, r := range records {
			ids[r.UserID] = struct{}{}
		}
		return float64(len(ids)), nil
	}

	data := make(stats.Float64Data, 0, len(records))
	for _, r := range records {
		if v, ok := r.Value(spec.Column); ok {
			data = append(data, v)
		}
	}

	switch spec.Func {
	case FuncCount:
		return float64(data.Len()), nil
	case FuncCountDistinct:
		distinct := make(map[float64]struct{}, data.Len())
		for _, v := range data {
			distinct[v] = struct{}{}
		}
		return float64(len(distinct)), nil
	case FuncCountTrue:
		n := 0
		for _, v := range data {
			if v != 0 {
				n++
			}
		}
		return float64(n), nil
	case FuncSum:
		if data.Len() == 0 {
			return 0, nil
		}
		return stats.Sum(data)
	case FuncMean:
		if data.Len() == 0 {
			return 0, core.NewZeroDenominatorError(label.String(), spec.Name, "count("+spec.Column+")")
		}
		return stats.Mean(data)
	}
	return 0, core.NewAggregationError("unknown func " + string(spec.Func))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
