package app

import (
	"context"
	"fmt"
	"time"

	"abtest/domain/core"
	"abtest/internal"
)

// Stage is one named step of an analysis run
type Stage struct {
	Name string
	Run  func() error
}

// StageRunner executes stages in order, checking for cancellation between them.
// A stage itself is never interrupted.
type StageRunner struct {
	logger *internal.Logger
}

// NewStageRunner creates a stage runner
func NewStageRunner(logger *internal.Logger) *StageRunner {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &StageRunner{logger: logger}
}

// Run executes stages and stops at the first failure
func (r *StageRunner) Run(ctx context.Context, runID core.RunID, stages ...Stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run %s cancelled before %s: %w", runID, s.Name, err)
		}
		start := time.Now()
		if err := s.Run(); err != nil {
			r.logger.Warn("run %s: stage %s failed: %v", runID, s.Name, err)
			return err
		}
		r.logger.Debug("run %s: stage %s done in %.2fms", runID, s.Name, float64(time.Since(start).Nanoseconds())/1e6)
	}
	return nil
}
