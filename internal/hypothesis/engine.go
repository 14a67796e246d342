package hypothesis

import (
	"fmt"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/config"
)

// Options configures the engine. Alpha is the one significance level used for the
// normality branch and for the confidence level (1 - alpha) of the intervals.
type Options struct {
	Alpha               float64
	MinNormalitySamples int
}

// DefaultOptions returns the configured default alpha and normality minimum
func DefaultOptions() Options {
	return Options{Alpha: config.DefaultAlpha, MinNormalitySamples: config.DefaultMinNormalitySamples}
}

// Engine runs the significance tests of one experiment
type Engine struct {
	opts   Options
	logger *internal.Logger
}

// NewEngine validates options and returns an engine
func NewEngine(opts Options, logger *internal.Logger) (*Engine, error) {
	if opts.Alpha <= 0 || opts.Alpha >= 1 {
		return nil, fmt.Errorf("%w: got %v", core.ErrInvalidSignificance, opts.Alpha)
	}
	if opts.MinNormalitySamples < config.DefaultMinNormalitySamples {
		opts.MinNormalitySamples = config.DefaultMinNormalitySamples
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Alpha returns the configured significance level
func (e *Engine) Alpha() float64 {
	return e.opts.Alpha
}

// ExposureDecision is the exposure test result together with the states it passed through
type ExposureDecision struct {
	Outcome experiment.TestOutcome `json:"outcome"`
	Trace   []ExposureState        `json:"trace"`
}

// Analysis bundles every test of one run
type Analysis struct {
	Conversion experiment.TestOutcome          `json:"conversion_test"`
	Exposure   ExposureDecision                `json:"exposure_test"`
	Intervals  []experiment.ConfidenceInterval `json:"confidence_intervals"`
}

// Run executes the conversion test, the adaptive exposure test and both intervals.
// Any failure halts the run; no test falls back to another on error.
func (e *Engine) Run(records []experiment.UserRecord, table *experiment.MetricsTable) (*Analysis, error) {
	treatment, control := table.Treatment(), table.Control()

	conversion, err := e.ConversionTest(treatment, control)
	if err != nil {
		return nil, err
	}

	byGroup := experiment.SplitByGroup(records)
	exposure, err := e.ExposureTest(table.Groups,
		experiment.ExposureValues(byGroup[table.Groups.Treatment]),
		experiment.ExposureValues(byGroup[table.Groups.Control]),
	)
	if err != nil {
		return nil, err
	}

	intervals := make([]experiment.ConfidenceInterval, 0, 2)
	for _, m := range []experiment.GroupMetrics{treatment, control} {
		ci, err := e.ConfidenceInterval(m)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, ci)
	}

	return &Analysis{Conversion: conversion, Exposure: *exposure, Intervals: intervals}, nil
}

// ConversionTest runs the pooled two-proportion z-test on converted_count / user_count
func (e *Engine) ConversionTest(treatment, control experiment.GroupMetrics) (experiment.TestOutcome, error) {
	for _, m := range []experiment.GroupMetrics{treatment, control} {
		if m.UserCount <= 0 {
			return experiment.TestOutcome{}, core.NewEmptyGroupError(m.Group.String())
		}
	}

	res, err := TwoProportionZTest(treatment.ConvertedCount, treatment.UserCount, control.ConvertedCount, control.UserCount)
	if err != nil {
		return experiment.TestOutcome{}, err
	}

	out := experiment.TestOutcome{
		TestName:  experiment.TestTwoProportionZ,
		Statistic: res.Z,
		PValue:    res.PValue,
	}
	if res.Degenerate {
		e.logger.Warn("conversion test: pooled variance is zero (%d/%d vs %d/%d), reporting p=1",
			treatment.ConvertedCount, treatment.UserCount, control.ConvertedCount, control.UserCount)
		out.Warnings = append(out.Warnings, experiment.WarningZeroPooledRate)
	}
	return out, nil
}

// CheckNormality runs Shapiro-Wilk on one group's values
func (e *Engine) CheckNormality(group experiment.GroupLabel, values []float64) (experiment.NormalityResult, error) {
	if len(values) < e.opts.MinNormalitySamples {
		return experiment.NormalityResult{}, core.NewInsufficientSampleError(group.String(), len(values), e.opts.MinNormalitySamples)
	}
	res, err := ShapiroWilk(values)
	if err != nil {
		return experiment.NormalityResult{}, fmt.Errorf("group %s: %w", group, err)
	}
	return experiment.NormalityResult{
		Group:      group,
		N:          res.N,
		W:          res.W,
		PValue:     res.PValue,
		Degenerate: res.Degenerate,
	}, nil
}

// ExposureTest checks normality of both groups, then runs Welch's t-test when both look
// normal and Mann-Whitney U otherwise. The chosen method is always on the outcome.
func (e *Engine) ExposureTest(groups experiment.GroupPair, treatment, control []float64) (*ExposureDecision, error) {
	d := &ExposureDecision{Trace: []ExposureState{StateStart, StateNormalityCheck}}

	tNorm, err := e.CheckNormality(groups.Treatment, treatment)
	if err != nil {
		return nil, err
	}
	cNorm, err := e.CheckNormality(groups.Control, control)
	if err != nil {
		return nil, err
	}

	method := SelectMethod(tNorm, cNorm, e.opts.Alpha)
	d.Trace = append(d.Trace, stateFor(method))
	e.logger.Info("exposure test: normality p=%.4g (%s), p=%.4g (%s), alpha=%.3g -> %s",
		tNorm.PValue, groups.Treatment, cNorm.PValue, groups.Control, e.opts.Alpha, method)

	out := experiment.TestOutcome{
		Method:    method,
		Normality: []experiment.NormalityResult{tNorm, cNorm},
	}

	switch method {
	case experiment.MethodParametric:
		res, err := WelchTTest(treatment, control)
		if err != nil {
			return nil, err
		}
		out.TestName = experiment.TestWelchT
		out.Statistic = res.T
		out.PValue = res.PValue
		out.DegreesOfFreedom = res.DF
		if res.Degenerate {
			out.Warnings = append(out.Warnings, experiment.WarningNoVariance)
		}
	default:
		res, err := MannWhitneyU(treatment, control)
		if err != nil {
			return nil, err
		}
		out.TestName = experiment.TestMannWhitneyU
		out.Statistic = res.U
		out.PValue = res.PValue
		if res.Degenerate {
			e.logger.Warn("exposure test: %v, all exposure values tied, reporting p=1", core.ErrDegenerateDistribution)
			out.Warnings = append(out.Warnings, experiment.WarningNoVariance)
		}
	}

	d.Outcome = out
	d.Trace = append(d.Trace, StateDone)
	return d, nil
}

// ConfidenceInterval computes the normal-approximation interval of one group's conversion rate
func (e *Engine) ConfidenceInterval(m experiment.GroupMetrics) (experiment.ConfidenceInterval, error) {
	if m.UserCount <= 0 {
		return experiment.ConfidenceInterval{}, core.NewEmptyGroupError(m.Group.String())
	}
	pi, err := ProportionConfidenceInterval(m.ConvertedCount, m.UserCount, e.opts.Alpha)
	if err != nil {
		return experiment.ConfidenceInterval{}, err
	}
	return experiment.ConfidenceInterval{
		Group:           m.Group,
		PointEstimate:   pi.Estimate,
		LowerBound:      pi.Lower,
		UpperBound:      pi.Upper,
		ConfidenceLevel: 1 - e.opts.Alpha,
		N:               m.UserCount,
	}, nil
}
