package hypothesis

import (
	"fmt"
	"math"
	"sort"

	"abtest/domain/core"

	"gonum.org/v1/gonum/stat"
)

// ZTestResult is a pooled two-proportion z-test outcome
type ZTestResult struct {
	Z          float64
	PValue     float64
	Degenerate bool
}

// TwoProportionZTest tests equality of two conversion proportions with pooled variance.
// Both totals must be positive and successes must not exceed totals.
func TwoProportionZTest(success1, total1, success2, total2 int) (ZTestResult, error) {
	if err := checkProportion(success1, total1); err != nil {
		return ZTestResult{}, err
	}
	if err := checkProportion(success2, total2); err != nil {
		return ZTestResult{}, err
	}

	n1, n2 := float64(total1), float64(total2)
	p1 := float64(success1) / n1
	p2 := float64(success2) / n2
	pooled := float64(success1+success2) / (n1 + n2)
	variance := pooled * (1 - pooled) * (1/n1 + 1/n2)

	// No conversions anywhere, or everyone converted: the proportions are trivially equal
	if variance == 0 {
		return ZTestResult{Z: 0, PValue: 1, Degenerate: true}, nil
	}

	z := (p1 - p2) / math.Sqrt(variance)
	return ZTestResult{Z: z, PValue: twoSidedNormalPValue(z)}, nil
}

// ProportionInterval is a normal-approximation interval around a proportion
type ProportionInterval struct {
	Estimate float64
	Lower    float64
	Upper    float64
}

// ProportionConfidenceInterval returns p ± z_(1-alpha/2)·sqrt(p(1-p)/n), clipped to [0, 1]
func ProportionConfidenceInterval(success, total int, alpha float64) (ProportionInterval, error) {
	if err := checkProportion(success, total); err != nil {
		return ProportionInterval{}, err
	}
	if alpha <= 0 || alpha >= 1 {
		return ProportionInterval{}, fmt.Errorf("%w: got %v", core.ErrInvalidSignificance, alpha)
	}

	q := float64(success) / float64(total)
	dist := normalQuantile(1-alpha/2) * math.Sqrt(q*(1-q)/float64(total))

	return ProportionInterval{
		Estimate: q,
		Lower:    math.Max(0, q-dist),
		Upper:    math.Min(1, q+dist),
	}, nil
}

func checkProportion(success, total int) error {
	if total <= 0 {
		return fmt.Errorf("%w: total must be positive, got %d", core.ErrInvalidProportion, total)
	}
	if success < 0 || success > total {
		return fmt.Errorf("%w: %d successes out of %d", core.ErrInvalidProportion, success, total)
	}
	return nil
}

// WelchResult is an unequal-variance two-sample t-test outcome
type WelchResult struct {
	T          float64
	DF         float64
	PValue     float64
	Degenerate bool
}

// WelchTTest compares the means of x and y without assuming equal variances
func WelchTTest(x, y []float64) (WelchResult, error) {
	if len(x) < 2 || len(y) < 2 {
		return WelchResult{}, fmt.Errorf("%w: welch t-test needs at least 2 observations per group", core.ErrInsufficientSample)
	}

	n1, n2 := float64(len(x)), float64(len(y))
	// Moments are accumulated over sorted copies so row order never changes the result bits
	mean1, var1 := stat.MeanVariance(sortedCopy(x), nil)
	mean2, var2 := stat.MeanVariance(sortedCopy(y), nil)

	se1, se2 := var1/n1, var2/n2
	se := se1 + se2
	if se == 0 {
		return WelchResult{T: 0, DF: 0, PValue: 1, Degenerate: true}, nil
	}

	t := (mean1 - mean2) / math.Sqrt(se)
	// Welch-Satterthwaite degrees of freedom
	df := se * se / (se1*se1/(n1-1) + se2*se2/(n2-1))

	return WelchResult{T: t, DF: df, PValue: twoSidedTPValue(t, df)}, nil
}

func sortedCopy(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}

// MannWhitneyResult is a rank-sum test outcome. U is the statistic of the first sample.
type MannWhitneyResult struct {
	U          float64
	PValue     float64
	Exact      bool
	Degenerate bool
}

// exactLimit is the largest smaller-sample size for which the exact null distribution is used
const exactLimit = 8

// MannWhitneyU runs a two-sided Mann-Whitney U test. Tie-free samples where either group
// has at most exactLimit observations use the exact distribution; otherwise the normal
// approximation with tie and continuity correction. When every value is tied the rank variance is zero and p is 1.
func MannWhitneyU(x, y []float64) (MannWhitneyResult, error) {
	n1, n2 := len(x), len(y)
	if n1 == 0 || n2 == 0 {
		return MannWhitneyResult{}, fmt.Errorf("%w: mann-whitney needs observations in both groups", core.ErrInsufficientSample)
	}

	ranks, tieTerm := rankAll(x, y)
	r1 := 0.0
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}

	fn1, fn2 := float64(n1), float64(n2)
	u1 := r1 - fn1*(fn1+1)/2
	u2 := fn1*fn2 - u1
	uMax := math.Max(u1, u2)

	if min(n1, n2) <= exactLimit && tieTerm == 0 {
		p := 2 * mannWhitneyExactSF(int(math.Round(uMax)), n1, n2)
		return MannWhitneyResult{U: u1, PValue: math.Min(1, p), Exact: true}, nil
	}

	n := fn1 + fn2
	sigma2 := fn1 * fn2 / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	if sigma2 <= 0 {
		return MannWhitneyResult{U: u1, PValue: 1, Degenerate: true}, nil
	}

	z := (uMax - fn1*fn2/2 - 0.5) / math.Sqrt(sigma2)
	p := math.Min(1, 2*normalSurvival(z))
	return MannWhitneyResult{U: u1, PValue: p}, nil
}

// rankAll assigns average ranks over x followed by y and returns sum(t^3 - t) over tie groups
func rankAll(x, y []float64) ([]float64, float64) {
	type obs struct {
		v   float64
		idx int
	}
	all := make([]obs, 0, len(x)+len(y))
	for i, v := range x {
		all = append(all, obs{v, i})
	}
	for i, v := range y {
		all = append(all, obs{v, len(x) + i})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].v < all[j].v })

	ranks := make([]float64, len(all))
	tieTerm := 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[all[k].idx] = avg
		}
		if t := float64(j - i); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}
	return ranks, tieTerm
}

// mannWhitneyExactSF returns P(U >= k) under the null for sample sizes m and n
func mannWhitneyExactSF(k, m, n int) float64 {
	if m > n {
		m, n = n, m
	}
	// U is symmetric around mn/2, so the upper tail equals the lower tail at mn-k
	limit := m*n - k
	if limit < 0 {
		return 0
	}
	if limit >= m*n {
		return 1
	}
	tail := 0.0
	for _, c := range uLowerCounts(m, n, limit) {
		tail += c
	}
	return tail / binomial(m+n, m)
}

// uLowerCounts returns the number of orderings with U = 0..limit for sample sizes m and n.
// The counts are the coefficients of the Gaussian binomial [m+n choose m], built one factor
// (1 - q^(n+i)) / (1 - q^i) at a time over the smaller sample. Each coefficient depends only on
// lower ones, so the array is truncated at limit.
func uLowerCounts(m, n, limit int) []float64 {
	f := make([]float64, limit+1)
	f[0] = 1
	for i := 1; i <= m; i++ {
		step := n + i
		for u := limit; u >= step; u-- {
			f[u] -= f[u-step]
		}
		for u := i; u <= limit; u++ {
			f[u] += f[u-i]
		}
	}
	return f
}

func binomial(n, k int) float64 {
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}
