package hypothesis

import (
	"testing"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal/config"
	"abtest/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultOptions(), nil)
	require.NoError(t, err)
	return e
}

func metricsFor(group experiment.GroupLabel, converted, users int) experiment.GroupMetrics {
	return experiment.GroupMetrics{Group: group, UserCount: users, ConvertedCount: converted}
}

func TestDefaultOptions_UseConfigDefaults(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, config.DefaultAlpha, opts.Alpha)
	assert.Equal(t, config.DefaultMinNormalitySamples, opts.MinNormalitySamples)
}

func TestNewEngine_RejectsInvalidAlpha(t *testing.T) {
	for _, alpha := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewEngine(Options{Alpha: alpha}, nil)
		assert.ErrorIs(t, err, core.ErrInvalidSignificance, "alpha=%v", alpha)
	}
}

func TestEngine_ConversionTest(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.ConversionTest(metricsFor("treatment", 120, 1000), metricsFor("control", 100, 1000))
	require.NoError(t, err)

	assert.Equal(t, experiment.TestTwoProportionZ, out.TestName)
	assert.InDelta(t, 1.42930, out.Statistic, 1e-5)
	assert.InDelta(t, 0.152918, out.PValue, 1e-6)
	assert.Empty(t, out.Warnings)
}

func TestEngine_ConversionTest_NoConversions(t *testing.T) {
	e := newTestEngine(t)

	out, err := e.ConversionTest(metricsFor("treatment", 0, 40), metricsFor("control", 0, 60))
	require.NoError(t, err)
	assert.Equal(t, 1.0, out.PValue)
	assert.Contains(t, out.Warnings, experiment.WarningZeroPooledRate)
}

func TestEngine_ConversionTest_EmptyGroup(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ConversionTest(metricsFor("treatment", 0, 0), metricsFor("control", 1, 10))
	require.Error(t, err)
	assert.True(t, core.IsInsufficientDataError(err))
}

func TestEngine_ExposureTest_BranchSelection(t *testing.T) {
	groups := experiment.DefaultGroups()

	tests := []struct {
		name   string
		shape  testkit.Shape
		method experiment.Method
		test   string
		state  ExposureState
	}{
		{"normal arms use welch", testkit.ShapeNormal, experiment.MethodParametric, experiment.TestWelchT, StateParametric},
		{"skewed arms use mann-whitney", testkit.ShapeSkewed, experiment.MethodNonParametric, experiment.TestMannWhitneyU, StateNonParametric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			treatment := testkit.ExposureSample(tt.shape, 200, 100, 20)
			control := testkit.ExposureSample(tt.shape, 200, 100, 20)

			d, err := e.ExposureTest(groups, treatment, control)
			require.NoError(t, err)

			assert.Equal(t, tt.method, d.Outcome.Method)
			assert.Equal(t, tt.test, d.Outcome.TestName)
			assert.Equal(t, []ExposureState{StateStart, StateNormalityCheck, tt.state, StateDone}, d.Trace)
			require.Len(t, d.Outcome.Normality, 2)
			assert.Equal(t, groups.Treatment, d.Outcome.Normality[0].Group)
			assert.Equal(t, groups.Control, d.Outcome.Normality[1].Group)
			// identical samples
			assert.InDelta(t, 1.0, d.Outcome.PValue, 1e-9)
		})
	}
}

func TestEngine_ExposureTest_MixedShapesAreNonParametric(t *testing.T) {
	e := newTestEngine(t)

	d, err := e.ExposureTest(experiment.DefaultGroups(),
		testkit.ExposureSample(testkit.ShapeNormal, 200, 100, 20),
		testkit.ExposureSample(testkit.ShapeSkewed, 200, 100, 20),
	)
	require.NoError(t, err)
	assert.Equal(t, experiment.MethodNonParametric, d.Outcome.Method)
}

func TestEngine_ExposureTest_ShiftedNormalArmsDiffer(t *testing.T) {
	e := newTestEngine(t)

	d, err := e.ExposureTest(experiment.DefaultGroups(),
		testkit.ExposureSample(testkit.ShapeNormal, 200, 110, 20),
		testkit.ExposureSample(testkit.ShapeNormal, 200, 100, 20),
	)
	require.NoError(t, err)
	assert.Equal(t, experiment.MethodParametric, d.Outcome.Method)
	assert.Greater(t, d.Outcome.Statistic, 0.0)
	assert.Less(t, d.Outcome.PValue, 0.05)
	assert.Greater(t, d.Outcome.DegreesOfFreedom, 300.0)
}

func TestEngine_ExposureTest_TooFewObservations(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.ExposureTest(experiment.DefaultGroups(), []float64{5, 7}, []float64{4, 6, 8, 9})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientSample)
	assert.Contains(t, err.Error(), "treatment")
}

func TestEngine_ExposureTest_ConstantExposures(t *testing.T) {
	e := newTestEngine(t)
	values := testkit.ExposureSample(testkit.ShapeConstant, 50, 12, 0)

	d, err := e.ExposureTest(experiment.DefaultGroups(), values, values)
	require.NoError(t, err)

	assert.Equal(t, experiment.MethodNonParametric, d.Outcome.Method)
	assert.Equal(t, 1.0, d.Outcome.PValue)
	assert.Contains(t, d.Outcome.Warnings, experiment.WarningNoVariance)
	assert.True(t, d.Outcome.Degenerate())
}

func TestEngine_ConfidenceInterval(t *testing.T) {
	e := newTestEngine(t)

	ci, err := e.ConfidenceInterval(metricsFor("treatment", 120, 1000))
	require.NoError(t, err)
	assert.InDelta(t, 0.95, ci.ConfidenceLevel, 1e-12)
	assert.InDelta(t, 0.0998590, ci.LowerBound, 1e-6)
	assert.InDelta(t, 0.1401410, ci.UpperBound, 1e-6)
	assert.Equal(t, 1000, ci.N)
	assert.True(t, ci.Contains(ci.PointEstimate))
}

func TestEngine_Run(t *testing.T) {
	e := newTestEngine(t)
	groups := experiment.DefaultGroups()
	cfg := testkit.DefaultConfig()
	cfg.Groups = groups
	ds, err := testkit.Generate(cfg)
	require.NoError(t, err)

	table := &experiment.MetricsTable{
		Groups: groups,
		ByGroup: map[experiment.GroupLabel]experiment.GroupMetrics{
			groups.Treatment: metricsFor(groups.Treatment, 24, 200),
			groups.Control:   metricsFor(groups.Control, 20, 200),
		},
	}

	a, err := e.Run(ds.Records, table)
	require.NoError(t, err)

	assert.Equal(t, experiment.TestTwoProportionZ, a.Conversion.TestName)
	assert.Equal(t, experiment.MethodParametric, a.Exposure.Outcome.Method)
	require.Len(t, a.Intervals, 2)
	assert.Equal(t, groups.Treatment, a.Intervals[0].Group)
	assert.Equal(t, groups.Control, a.Intervals[1].Group)
}

func TestEngine_RunIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n1 := rapid.IntRange(1, 500).Draw(rt, "n1")
		n2 := rapid.IntRange(1, 500).Draw(rt, "n2")
		c1 := rapid.IntRange(0, n1).Draw(rt, "c1")
		c2 := rapid.IntRange(0, n2).Draw(rt, "c2")
		values := rapid.SliceOfN(rapid.IntRange(0, 300), 3, 60).Draw(rt, "values")

		e, err := NewEngine(DefaultOptions(), nil)
		if err != nil {
			rt.Fatal(err)
		}
		x := make([]float64, len(values))
		for i, v := range values {
			x[i] = float64(v)
		}
		y := make([]float64, len(x))
		for i := range x {
			y[i] = x[len(x)-1-i] + 1
		}

		a1, err1 := e.ConversionTest(metricsFor("t", c1, n1), metricsFor("c", c2, n2))
		a2, err2 := e.ConversionTest(metricsFor("t", c1, n1), metricsFor("c", c2, n2))
		if err1 != nil || err2 != nil {
			rt.Fatalf("conversion errors: %v, %v", err1, err2)
		}
		if a1.PValue != a2.PValue || a1.Statistic != a2.Statistic {
			rt.Fatalf("conversion test not deterministic")
		}
		if a1.PValue < 0 || a1.PValue > 1 {
			rt.Fatalf("p-value %v outside [0, 1]", a1.PValue)
		}

		d1, err1 := e.ExposureTest(experiment.DefaultGroups(), x, y)
		d2, err2 := e.ExposureTest(experiment.DefaultGroups(),
			rapid.Permutation(x).Draw(rt, "shuffled treatment"),
			rapid.Permutation(y).Draw(rt, "shuffled control"))
		if err1 != nil || err2 != nil {
			rt.Fatalf("exposure errors: %v, %v", err1, err2)
		}
		if d1.Outcome.Method != d2.Outcome.Method || d1.Outcome.PValue != d2.Outcome.PValue ||
			d1.Outcome.Statistic != d2.Outcome.Statistic {
			rt.Fatalf("exposure test not deterministic")
		}
		if d1.Outcome.PValue < 0 || d1.Outcome.PValue > 1 {
			rt.Fatalf("p-value %v outside [0, 1]", d1.Outcome.PValue)
		}
	})
}
