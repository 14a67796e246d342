package insight

import (
	"fmt"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/domain/verdict"
)

// Inputs is everything the generator reads. Intervals are carried for context only;
// no conclusion is drawn from interval overlap.
type Inputs struct {
	Groups     experiment.GroupPair
	Conversion experiment.TestOutcome
	Exposure   experiment.TestOutcome
	Treatment  experiment.GroupMetrics
	Control    experiment.GroupMetrics
	Intervals  []experiment.ConfidenceInterval
}

// Generator turns test outcomes into ordered categorical statements
type Generator struct {
	alpha float64
}

// NewGenerator returns a generator that calls a difference significant when p < alpha
func NewGenerator(alpha float64) (*Generator, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("%w: got %v", core.ErrInvalidSignificance, alpha)
	}
	return &Generator{alpha: alpha}, nil
}

// Generate returns the conversion verdict, the exposure verdict and the recommendation, in that order
func (g *Generator) Generate(in Inputs) (verdict.Verdict, error) {
	tRate, err := conversionRate(in.Treatment)
	if err != nil {
		return verdict.Verdict{}, err
	}
	cRate, err := conversionRate(in.Control)
	if err != nil {
		return verdict.Verdict{}, err
	}

	return verdict.Verdict{
		Alpha: g.alpha,
		Statements: []verdict.Statement{
			g.significance(verdict.KindConversion, in.Conversion, in.Groups,
				"Conversion rates of groups '%s' and '%s' differ significantly.",
				"Conversion rates of groups '%s' and '%s' do not differ significantly."),
			g.significance(verdict.KindExposure, in.Exposure, in.Groups,
				"Exposure counts of groups '%s' and '%s' differ significantly.",
				"Exposure counts of groups '%s' and '%s' do not differ significantly."),
			recommend(in.Groups, tRate, cRate),
		},
	}, nil
}

func (g *Generator) significance(kind verdict.Kind, out experiment.TestOutcome, groups experiment.GroupPair, yes, no string) verdict.Statement {
	p := out.PValue
	s := verdict.Statement{Kind: kind, PValue: &p}
	if p < g.alpha {
		s.Conclusion = verdict.ConclusionDifferent
		s.Text = fmt.Sprintf(yes, groups.Treatment, groups.Control)
	} else {
		s.Conclusion = verdict.ConclusionNotDifferent
		s.Text = fmt.Sprintf(no, groups.Treatment, groups.Control)
	}
	return s
}

func recommend(groups experiment.GroupPair, treatment, control float64) verdict.Statement {
	s := verdict.Statement{Kind: verdict.KindRecommendation}
	switch {
	case treatment > control:
		s.Conclusion = verdict.ConclusionFavorTreatment
		s.Text = fmt.Sprintf("Group '%s' converts better than '%s' (%.2f%% vs %.2f%%). Continue the campaign.",
			groups.Treatment, groups.Control, treatment*100, control*100)
	case treatment < control:
		s.Conclusion = verdict.ConclusionFavorControl
		s.Text = fmt.Sprintf("Group '%s' does not convert better than '%s' (%.2f%% vs %.2f%%). Reconsider the strategy.",
			groups.Treatment, groups.Control, treatment*100, control*100)
	default:
		s.Conclusion = verdict.ConclusionNoPreference
		s.Text = fmt.Sprintf("Groups '%s' and '%s' convert at the same rate (%.2f%%). No group is preferred.",
			groups.Treatment, groups.Control, treatment*100)
	}
	return s
}

// conversionRate prefers the aggregated metric and falls back to the raw counts
func conversionRate(m experiment.GroupMetrics) (float64, error) {
	if v, ok := m.Get(experiment.MetricConversionRate); ok {
		return v, nil
	}
	return m.ConversionRate()
}
