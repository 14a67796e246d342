package hypothesis

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// normalSurvival is P(Z > z) for the standard normal
func normalSurvival(z float64) float64 {
	return distuv.UnitNormal.Survival(z)
}

// normalQuantile is the inverse CDF of the standard normal
func normalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// twoSidedNormalPValue computes 2 * P(Z > |z|), clipped to 1
func twoSidedNormalPValue(z float64) float64 {
	return math.Min(1, 2*normalSurvival(math.Abs(z)))
}

// twoSidedTPValue computes the two-tailed p-value of a Student's t statistic with real-valued df
func twoSidedTPValue(t, df float64) float64 {
	if df <= 0 || math.IsNaN(df) {
		return 1.0
	}
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*tDist.Survival(math.Abs(t)))
}

// poly evaluates cc[0] + cc[1]*x + cc[2]*x^2 + ...
func poly(cc []float64, x float64) float64 {
	res := 0.0
	for i := len(cc) - 1; i >= 0; i-- {
		res = res*x + cc[i]
	}
	return res
}
