package experiment

// Method tags which exposure-test branch ran
type Method string

const (
	MethodParametric    Method = "parametric"
	MethodNonParametric Method = "non_parametric"
)

// Test names reported on outcomes
const (
	TestTwoProportionZ = "two_proportion_z_test"
	TestWelchT         = "welch_t_test"
	TestMannWhitneyU   = "mann_whitney_u_test"
	TestShapiroWilk    = "shapiro_wilk"
)

// Warning codes attached to outcomes
const (
	WarningNoVariance     = "NO_VARIANCE"
	WarningZeroPooledRate = "ZERO_POOLED_VARIANCE"
)

// NormalityResult is the Shapiro-Wilk check of one group's exposure counts
type NormalityResult struct {
	Group      GroupLabel `json:"group"`
	N          int        `json:"n"`
	W          float64    `json:"w"`
	PValue     float64    `json:"p_value"`
	Degenerate bool       `json:"degenerate,omitempty"`
}

// TestOutcome is the result of one significance test
type TestOutcome struct {
	TestName         string            `json:"test_name"`
	Statistic        float64           `json:"statistic"`
	PValue           float64           `json:"p_value"`
	Method           Method            `json:"method_used,omitempty"`
	DegreesOfFreedom float64           `json:"degrees_of_freedom,omitempty"`
	Normality        []NormalityResult `json:"normality,omitempty"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Degenerate reports whether the outcome carries a no-variance marker
func (o TestOutcome) Degenerate() bool {
	for _, w := range o.Warnings {
		if w == WarningNoVariance || w == WarningZeroPooledRate {
			return true
		}
	}
	return false
}

// ConfidenceInterval bounds one group's conversion proportion
type ConfidenceInterval struct {
	Group           GroupLabel `json:"group"`
	PointEstimate   float64    `json:"point_estimate"`
	LowerBound      float64    `json:"lower_bound"`
	UpperBound      float64    `json:"upper_bound"`
	ConfidenceLevel float64    `json:"confidence_level"`
	N               int        `json:"n"`
}

// Contains reports whether p lies inside the interval
func (ci ConfidenceInterval) Contains(p float64) bool {
	return ci.LowerBound <= p && p <= ci.UpperBound
}
