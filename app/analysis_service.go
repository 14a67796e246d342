package app

import (
	"context"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/hypothesis"
	"abtest/internal/insight"
	"abtest/internal/metrics"
	"abtest/internal/preprocess"
	"abtest/internal/report"
)

// AnalysisService runs the full pipeline: preprocess, aggregate, test, conclude.
// It holds configuration only; every run starts from scratch.
type AnalysisService struct {
	analysis config.AnalysisConfig
	schema   metrics.Schema
	extended []string
	runner   *StageRunner
	logger   *internal.Logger
	now      func() time.Time
}

// NewAnalysisService builds a service from configuration. A METRICS_FILE replaces the default schema;
// extended columns without an aggregate of their own get a "<column>_mean" metric.
func NewAnalysisService(cfg *config.Config, logger *internal.Logger) (*AnalysisService, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	schema := metrics.DefaultSchema()
	if cfg.Schema.MetricsFile != "" {
		loaded, err := metrics.LoadSchema(cfg.Schema.MetricsFile)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load metrics schema %s", cfg.Schema.MetricsFile)
		}
		schema = loaded
	}

	extended := make([]string, 0, len(cfg.Schema.ExtendedColumns))
	var specs []metrics.AggregateSpec
	for _, c := range cfg.Schema.ExtendedColumns {
		col := experiment.NormalizeHeader(c)
		extended = append(extended, col)
		if !hasAggregateOver(schema, col) {
			specs = append(specs, metrics.AggregateSpec{Name: col + "_mean", Column: col, Func: metrics.FuncMean})
		}
	}
	schema = schema.WithExtended(specs...)
	if err := schema.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid metrics schema")
	}

	s := &AnalysisService{
		schema:   schema,
		extended: extended,
		runner:   NewStageRunner(logger),
		logger:   logger,
		now:      time.Now,
	}
	return s.WithAnalysis(cfg.Analysis)
}

// WithAnalysis returns a copy of the service using different statistical settings
func (s *AnalysisService) WithAnalysis(a config.AnalysisConfig) (*AnalysisService, error) {
	if a.MinNormalitySamples == 0 {
		a.MinNormalitySamples = config.DefaultMinNormalitySamples
	}
	probe := config.Default()
	probe.Analysis = a
	if err := config.Validate(probe); err != nil {
		return nil, err
	}
	out := *s
	out.analysis = a
	return &out, nil
}

// Analysis returns the statistical settings in use
func (s *AnalysisService) Analysis() config.AnalysisConfig {
	return s.analysis
}

// Run analyzes one raw table. The first data-quality error aborts the run.
func (s *AnalysisService) Run(ctx context.Context, table experiment.RawTable) (*report.Report, error) {
	groups := s.analysis.Groups()
	runID := core.NewRunID()
	s.logger.Info("run %s: analyzing %d rows, groups %s/%s, alpha %.3g",
		runID, len(table.Rows), groups.Treatment, groups.Control, s.analysis.Alpha)

	engine, err := hypothesis.NewEngine(hypothesis.Options{
		Alpha:               s.analysis.Alpha,
		MinNormalitySamples: s.analysis.MinNormalitySamples,
	}, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "invalid analysis settings")
	}
	insights, err := insight.NewGenerator(s.analysis.Alpha)
	if err != nil {
		return nil, errors.Wrap(err, "invalid analysis settings")
	}
	aggregator, err := metrics.NewAggregator(s.schema, groups, s.logger)
	if err != nil {
		return nil, errors.Wrap(err, "invalid metrics schema")
	}
	pre := preprocess.New(preprocess.Options{Groups: groups, ExtendedColumns: s.extended}, s.logger)

	rep := &report.Report{RunID: runID, Groups: groups, Alpha: s.analysis.Alpha}
	var analysis *hypothesis.Analysis

	err = s.runner.Run(ctx, runID,
		Stage{Name: "preprocess", Run: func() error {
			res, err := pre.Process(table)
			if err != nil {
				return errors.Wrap(err, "preprocessing failed")
			}
			rep.Preprocess = res
			return nil
		}},
		Stage{Name: "aggregate", Run: func() error {
			t, err := aggregator.Aggregate(rep.Preprocess.Records)
			if err != nil {
				return errors.Wrap(err, "aggregation failed")
			}
			rep.Metrics = t
			return nil
		}},
		Stage{Name: "hypothesis", Run: func() error {
			a, err := engine.Run(rep.Preprocess.Records, rep.Metrics)
			if err != nil {
				return errors.Wrap(err, "hypothesis testing failed")
			}
			analysis = a
			return nil
		}},
		Stage{Name: "insight", Run: func() error {
			v, err := insights.Generate(insight.Inputs{
				Groups:     groups,
				Conversion: analysis.Conversion,
				Exposure:   analysis.Exposure.Outcome,
				Treatment:  rep.Metrics.Treatment(),
				Control:    rep.Metrics.Control(),
				Intervals:  analysis.Intervals,
			})
			if err != nil {
				return errors.Wrap(err, "insight generation failed")
			}
			rep.Verdict = v
			return nil
		}},
	)
	if err != nil {
		return nil, err
	}

	rep.Conversion = analysis.Conversion
	rep.Exposure = analysis.Exposure
	rep.Intervals = analysis.Intervals
	rep.GeneratedAt = s.now().UTC()

	s.logger.Info("run %s: conversion p=%.4g, exposure %s p=%.4g",
		runID, rep.Conversion.PValue, rep.Exposure.Outcome.Method, rep.Exposure.Outcome.PValue)
	return rep, nil
}

func hasAggregateOver(schema metrics.Schema, column string) bool {
	for _, a := range schema.Aggregates {
		if a.Column == column {
			return true
		}
	}
	return false
}
