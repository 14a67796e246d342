package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2C4A54"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

// RenderText writes the three console sections: metrics, significance, conclusions
func RenderText(w io.Writer, r *Report) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("=== Metrics ==="))
	b.WriteString("\n")
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("metric", r.Groups.Treatment.String(), r.Groups.Control.String()).
		Rows(metricRows(r)...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
	b.WriteString(t.String())
	b.WriteString("\n")

	if p := r.Preprocess; p != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("rows=%d dropped_incomplete=%d duplicate_rows=%d excluded_users=%d",
			p.RowsIn, p.DroppedIncomplete, p.DuplicateRows, len(p.ExcludedUsers))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("=== Statistical significance ==="))
	b.WriteString("\n")
	fmt.Fprintf(&b, "alpha: %.3g\n", r.Alpha)
	fmt.Fprintf(&b, "conversion  %s\n", outcomeLine(r.Conversion))
	fmt.Fprintf(&b, "exposure    %s\n", outcomeLine(r.Exposure.Outcome))
	for _, n := range r.Exposure.Outcome.Normality {
		fmt.Fprintf(&b, "            %s\n", normalityLine(n))
	}
	if len(r.Exposure.Trace) > 0 {
		fmt.Fprintf(&b, "            %s\n", mutedStyle.Render(traceLine(r.Exposure.Trace)))
	}
	for _, ci := range r.Intervals {
		fmt.Fprintf(&b, "interval    %s\n", intervalLine(ci))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("=== Conclusions and recommendations ==="))
	b.WriteString("\n")
	for _, s := range r.Verdict.Statements {
		fmt.Fprintf(&b, "- %s\n", s.Text)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON writes r as indented JSON
func RenderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
