package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Data quality errors (fatal, abort the run)
	ErrSchema              = errors.New("schema error")
	ErrInsufficientData    = errors.New("insufficient data for analysis")
	ErrInsufficientSample  = errors.New("insufficient sample for normality check")
	ErrUnknownGroup        = fmt.Errorf("%w: unknown group label", ErrSchema)
	ErrMissingColumn       = fmt.Errorf("%w: required column absent", ErrSchema)
	ErrUnparseableValue    = fmt.Errorf("%w: unparseable value", ErrSchema)
	ErrInvalidAggregation  = fmt.Errorf("%w: invalid aggregation schema", ErrSchema)
	ErrEmptyGroup          = fmt.Errorf("%w: group has no users", ErrInsufficientData)
	ErrZeroDenominator     = fmt.Errorf("%w: zero denominator", ErrInsufficientData)
	ErrInvalidProportion   = errors.New("invalid proportion input")
	ErrInvalidSignificance = errors.New("significance level must be in (0, 1)")

	// Degenerate inputs are reported as warnings on test outcomes, never returned by the pipeline
	ErrDegenerateDistribution = errors.New("degenerate distribution")
)

// Error constructors with context
func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

func NewUnparseableError(column string, row int, value string) error {
	return fmt.Errorf("%w: column %s row %d value %q", ErrUnparseableValue, column, row, value)
}

func NewUnknownGroupError(label string, allowed ...string) error {
	return fmt.Errorf("%w: %q (allowed %v)", ErrUnknownGroup, label, allowed)
}

func NewEmptyGroupError(group string) error {
	return fmt.Errorf("%w: %s", ErrEmptyGroup, group)
}

func NewZeroDenominatorError(group, metric, denominator string) error {
	return fmt.Errorf("%w: group %s metric %s (%s is 0)", ErrZeroDenominator, group, metric, denominator)
}

func NewInsufficientSampleError(group string, got, need int) error {
	return fmt.Errorf("%w: group %s has %d observations, need at least %d", ErrInsufficientSample, group, got, need)
}

func NewAggregationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidAggregation, reason)
}

// Error checking helpers
func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsInsufficientSampleError(err error) bool {
	return errors.Is(err, ErrInsufficientSample)
}

// IsDataQualityError reports whether err should abort an analysis run.
func IsDataQualityError(err error) bool {
	return IsSchemaError(err) || IsInsufficientDataError(err) || IsInsufficientSampleError(err)
}
