package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"abtest/domain/experiment"
	"abtest/domain/verdict"
	"abtest/internal/hypothesis"
	"abtest/internal/preprocess"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	groups := experiment.GroupPair{Treatment: "ad", Control: "psa"}
	p := 0.1529
	return &Report{
		RunID:       "0192b6a0-0000-7000-8000-000000000001",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Groups:      groups,
		Alpha:       0.05,
		Preprocess:  &preprocess.Result{RowsIn: 2003, DroppedIncomplete: 1, ExcludedUsers: []string{"u1"}},
		Metrics: &experiment.MetricsTable{
			Groups: groups,
			Names:  []string{experiment.MetricUserCount, experiment.MetricConversionRate},
			ByGroup: map[experiment.GroupLabel]experiment.GroupMetrics{
				"ad": {Group: "ad", UserCount: 1000, ConvertedCount: 120, Values: []experiment.MetricValue{
					{Name: experiment.MetricUserCount, Value: 1000}, {Name: experiment.MetricConversionRate, Value: 0.12}}},
				"psa": {Group: "psa", UserCount: 1000, ConvertedCount: 100, Values: []experiment.MetricValue{
					{Name: experiment.MetricUserCount, Value: 1000}, {Name: experiment.MetricConversionRate, Value: 0.1}}},
			},
		},
		Conversion: experiment.TestOutcome{TestName: experiment.TestTwoProportionZ, Statistic: 1.4293, PValue: 0.1529},
		Exposure: hypothesis.ExposureDecision{
			Outcome: experiment.TestOutcome{
				TestName:  experiment.TestMannWhitneyU,
				Statistic: 480123,
				PValue:    2.1e-9,
				Method:    experiment.MethodNonParametric,
				Normality: []experiment.NormalityResult{
					{Group: "ad", N: 1000, W: 0.82, PValue: 1e-20},
					{Group: "psa", N: 1000, W: 0.83, PValue: 1e-19},
				},
			},
			Trace: []hypothesis.ExposureState{hypothesis.StateStart, hypothesis.StateNormalityCheck, hypothesis.StateNonParametric, hypothesis.StateDone},
		},
		Intervals: []experiment.ConfidenceInterval{
			{Group: "ad", PointEstimate: 0.12, LowerBound: 0.0999, UpperBound: 0.1401, ConfidenceLevel: 0.95, N: 1000},
			{Group: "psa", PointEstimate: 0.1, LowerBound: 0.0814, UpperBound: 0.1186, ConfidenceLevel: 0.95, N: 1000},
		},
		Verdict: verdict.Verdict{Alpha: 0.05, Statements: []verdict.Statement{
			{Kind: verdict.KindConversion, Conclusion: verdict.ConclusionNotDifferent, PValue: &p, Text: "Conversion rates do not differ significantly."},
			{Kind: verdict.KindRecommendation, Conclusion: verdict.ConclusionFavorTreatment, Text: "Continue the campaign."},
		}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatText, "TEXT": FormatText, "json": FormatJSON, "md": FormatMarkdown, "html": FormatHTML}
	for in, want := range tests {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatText))
	out := buf.String()

	assert.Contains(t, out, "=== Metrics ===")
	assert.Contains(t, out, "=== Statistical significance ===")
	assert.Contains(t, out, "=== Conclusions and recommendations ===")
	assert.Contains(t, out, "conversion_rate")
	assert.Contains(t, out, "0.1200")
	assert.Contains(t, out, "method=non_parametric")
	assert.Contains(t, out, "start -> normality_check -> non_parametric_test -> done")
	assert.Contains(t, out, "- Continue the campaign.")
	assert.Contains(t, out, "excluded_users=1")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "0192b6a0-0000-7000-8000-000000000001", decoded["run_id"])
	exposure := decoded["exposure_test"].(map[string]any)
	outcome := exposure["outcome"].(map[string]any)
	assert.Equal(t, "non_parametric", outcome["method_used"])
	assert.Len(t, decoded["confidence_intervals"], 2)
}

func TestRenderMarkdownAndHTML(t *testing.T) {
	md := Markdown(sampleReport())
	assert.Contains(t, md, "| metric | ad | psa |")
	assert.Contains(t, md, "| conversion_rate | 0.1200 | 0.1000 |")
	assert.Contains(t, md, "2. Continue the campaign.")

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatHTML))
	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "Continue the campaign.")
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "1000", formatValue(1000))
	assert.Equal(t, "0.1235", formatValue(0.12346))
	assert.Equal(t, "2.100e-09", formatP(2.1e-9))
	assert.Equal(t, "0.0000", formatP(0))
}
