package hypothesis

import (
	"fmt"
	"math"
	"sort"

	"abtest/domain/core"

	"gonum.org/v1/gonum/stat"
)

// Royston (1995) polynomial approximations for the Shapiro-Wilk coefficients and p-value
var (
	swG  = []float64{-2.273, 0.459}
	swC1 = []float64{0, 0.221157, -0.147981, -2.07119, 4.434685, -2.706056}
	swC2 = []float64{0, 0.042981, -0.293762, -1.752461, 5.682633, -3.582633}
	swC3 = []float64{0.544, -0.39978, 0.025054, -6.714e-4}
	swC4 = []float64{1.3822, -0.77857, 0.062767, -0.0020322}
	swC5 = []float64{-1.5861, -0.31082, -0.083751, 0.0038915}
	swC6 = []float64{-0.4803, -0.082676, 0.0030302}
)

// ShapiroResult holds the W statistic and its p-value
type ShapiroResult struct {
	W      float64
	PValue float64
	N      int
	// Degenerate is set when every observation is identical; W and PValue are then 1.
	Degenerate bool
}

// ShapiroWilk tests x for departure from normality (algorithm AS R94).
// It needs at least 3 observations.
func ShapiroWilk(x []float64) (ShapiroResult, error) {
	n := len(x)
	if n < 3 {
		return ShapiroResult{}, fmt.Errorf("%w: got %d observations, need at least 3", core.ErrInsufficientSample, n)
	}

	sorted := make([]float64, n)
	copy(sorted, x)
	sort.Float64s(sorted)

	if sorted[n-1]-sorted[0] == 0 {
		return ShapiroResult{W: 1, PValue: 1, N: n, Degenerate: true}, nil
	}

	a := shapiroCoefficients(n)

	num := 0.0
	for i := range a {
		num += a[i] * (sorted[n-1-i] - sorted[i])
	}
	mean := stat.Mean(sorted, nil)
	ssq := 0.0
	for _, v := range sorted {
		d := v - mean
		ssq += d * d
	}

	w := math.Min(1, num*num/ssq)
	return ShapiroResult{W: w, PValue: shapiroPValue(w, n), N: n}, nil
}

// shapiroCoefficients returns a_1..a_{n/2} for the ordered-sample weights
func shapiroCoefficients(n int) []float64 {
	nn2 := n / 2
	a := make([]float64, nn2)
	if n == 3 {
		a[0] = math.Sqrt(0.5)
		return a
	}

	an := float64(n)
	m := make([]float64, nn2)
	summ2 := 0.0
	for i := 0; i < nn2; i++ {
		m[i] = normalQuantile((float64(i+1) - 0.375) / (an + 0.25))
		summ2 += m[i] * m[i]
	}
	summ2 *= 2
	ssumm2 := math.Sqrt(summ2)
	rsn := 1 / math.Sqrt(an)

	a1 := poly(swC1, rsn) - m[0]/ssumm2
	first := 1
	var fac float64
	if n > 5 {
		first = 2
		a2 := -m[1]/ssumm2 + poly(swC2, rsn)
		fac = math.Sqrt((summ2 - 2*m[0]*m[0] - 2*m[1]*m[1]) / (1 - 2*a1*a1 - 2*a2*a2))
		a[1] = a2
	} else {
		fac = math.Sqrt((summ2 - 2*m[0]*m[0]) / (1 - 2*a1*a1))
	}
	a[0] = a1
	for i := first; i < nn2; i++ {
		a[i] = -m[i] / fac
	}
	return a
}

func shapiroPValue(w float64, n int) float64 {
	if n == 3 {
		const pi6 = 6 / math.Pi
		const stqr = math.Pi / 3
		p := pi6 * (math.Asin(math.Sqrt(w)) - stqr)
		return math.Max(0, math.Min(1, p))
	}

	an := float64(n)
	y := math.Log(1 - w)
	var m, s float64
	if n <= 11 {
		gamma := poly(swG, an)
		if y >= gamma {
			return 1e-99
		}
		y = -math.Log(gamma - y)
		m = poly(swC3, an)
		s = math.Exp(poly(swC4, an))
	} else {
		xx := math.Log(an)
		m = poly(swC5, xx)
		s = math.Exp(poly(swC6, xx))
	}
	return normalSurvival((y - m) / s)
}
