package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/domain/verdict"
	"abtest/internal/hypothesis"
	"abtest/internal/preprocess"
)

// Report is the complete result of one analysis run
type Report struct {
	RunID       core.RunID                      `json:"run_id"`
	GeneratedAt time.Time                       `json:"generated_at"`
	Groups      experiment.GroupPair            `json:"groups"`
	Alpha       float64                         `json:"alpha"`
	Preprocess  *preprocess.Result              `json:"preprocess"`
	Metrics     *experiment.MetricsTable        `json:"metrics"`
	Conversion  experiment.TestOutcome          `json:"conversion_test"`
	Exposure    hypothesis.ExposureDecision     `json:"exposure_test"`
	Intervals   []experiment.ConfidenceInterval `json:"confidence_intervals"`
	Verdict     verdict.Verdict                 `json:"verdict"`
}

// Format selects a renderer
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat accepts the renderer names, case-insensitively; "md" is short for markdown
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, json, markdown or html)", s)
}

// Render writes r to w in the given format
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatText:
		return RenderText(w, r)
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatMarkdown:
		return RenderMarkdown(w, r)
	case FormatHTML:
		return RenderHTML(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// metricRows returns one row per metric name: name, treatment value, control value
func metricRows(r *Report) [][]string {
	if r.Metrics == nil {
		return nil
	}
	t, c := r.Metrics.Treatment(), r.Metrics.Control()
	rows := make([][]string, 0, len(r.Metrics.Names))
	for _, name := range r.Metrics.Names {
		rows = append(rows, []string{name, lookup(t, name), lookup(c, name)})
	}
	return rows
}

func lookup(m experiment.GroupMetrics, name string) string {
	v, ok := m.Get(name)
	if !ok {
		return "-"
	}
	return formatValue(v)
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4f", v)
}

func formatP(p float64) string {
	if p != 0 && p < 1e-4 {
		return fmt.Sprintf("%.3e", p)
	}
	return fmt.Sprintf("%.4f", p)
}

// outcomeLine summarizes a test outcome on one line
func outcomeLine(o experiment.TestOutcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: statistic=%.4f p=%s", o.TestName, o.Statistic, formatP(o.PValue))
	if o.DegreesOfFreedom > 0 {
		fmt.Fprintf(&b, " df=%.2f", o.DegreesOfFreedom)
	}
	if o.Method != "" {
		fmt.Fprintf(&b, " method=%s", o.Method)
	}
	if len(o.Warnings) > 0 {
		fmt.Fprintf(&b, " warnings=%s", strings.Join(o.Warnings, ","))
	}
	return b.String()
}

func normalityLine(n experiment.NormalityResult) string {
	line := fmt.Sprintf("shapiro-wilk %s: W=%.4f p=%s n=%d", n.Group, n.W, formatP(n.PValue), n.N)
	if n.Degenerate {
		line += " (constant)"
	}
	return line
}

func intervalLine(ci experiment.ConfidenceInterval) string {
	return fmt.Sprintf("%s: %.4f [%.4f, %.4f] at %.0f%% (n=%d)",
		ci.Group, ci.PointEstimate, ci.LowerBound, ci.UpperBound, ci.ConfidenceLevel*100, ci.N)
}

func traceLine(trace []hypothesis.ExposureState) string {
	parts := make([]string, len(trace))
	for i, s := range trace {
		parts[i] = string(s)
	}
	return strings.Join(parts, " -> ")
}
