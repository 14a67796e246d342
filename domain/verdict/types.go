package verdict

// Kind identifies which question a statement answers
type Kind string

const (
	KindConversion     Kind = "conversion_significance"
	KindExposure       Kind = "exposure_significance"
	KindRecommendation Kind = "recommendation"
)

// Conclusion is the categorical answer of a statement
type Conclusion string

const (
	ConclusionDifferent      Conclusion = "different"
	ConclusionNotDifferent   Conclusion = "not_different"
	ConclusionFavorTreatment Conclusion = "favor_treatment"
	ConclusionFavorControl   Conclusion = "favor_control"
	ConclusionNoPreference   Conclusion = "no_preference"
)

// Statement is one categorical conclusion with its human-readable rendering
type Statement struct {
	Kind       Kind       `json:"kind"`
	Conclusion Conclusion `json:"conclusion"`
	PValue     *float64   `json:"p_value,omitempty"`
	Text       string     `json:"text"`
}

// Verdict is the ordered list of conclusions: conversion, exposure, recommendation
type Verdict struct {
	Alpha      float64     `json:"alpha"`
	Statements []Statement `json:"statements"`
}

// Texts returns the statement texts in order
func (v Verdict) Texts() []string {
	out := make([]string, len(v.Statements))
	for i, s := range v.Statements {
		out[i] = s.Text
	}
	return out
}

// Find returns the first statement of the given kind
func (v Verdict) Find(kind Kind) (Statement, bool) {
	for _, s := range v.Statements {
		if s.Kind == kind {
			return s, true
		}
	}
	return Statement{}, false
}
