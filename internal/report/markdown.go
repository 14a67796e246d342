package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown builds the report as a markdown document
func Markdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# A/B analysis %s\n\n", r.RunID)
	fmt.Fprintf(&b, "Generated %s, alpha %.3g.\n\n", r.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"), r.Alpha)

	b.WriteString("## Metrics\n\n")
	fmt.Fprintf(&b, "| metric | %s | %s |\n", r.Groups.Treatment, r.Groups.Control)
	b.WriteString("|---|---:|---:|\n")
	for _, row := range metricRows(r) {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", row[0], row[1], row[2])
	}
	if p := r.Preprocess; p != nil {
		fmt.Fprintf(&b, "\n%d rows read, %d incomplete rows dropped, %d duplicate rows, %d users excluded for appearing in both groups.\n",
			p.RowsIn, p.DroppedIncomplete, p.DuplicateRows, len(p.ExcludedUsers))
	}

	b.WriteString("\n## Statistical significance\n\n")
	fmt.Fprintf(&b, "- Conversion: `%s`\n", outcomeLine(r.Conversion))
	fmt.Fprintf(&b, "- Exposure: `%s`\n", outcomeLine(r.Exposure.Outcome))
	for _, n := range r.Exposure.Outcome.Normality {
		fmt.Fprintf(&b, "  - %s\n", normalityLine(n))
	}
	if len(r.Exposure.Trace) > 0 {
		fmt.Fprintf(&b, "  - path: %s\n", traceLine(r.Exposure.Trace))
	}
	for _, ci := range r.Intervals {
		fmt.Fprintf(&b, "- Interval %s\n", intervalLine(ci))
	}

	b.WriteString("\n## Conclusions\n\n")
	for i, s := range r.Verdict.Statements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Text)
	}
	return b.String()
}

// RenderMarkdown writes the markdown document
func RenderMarkdown(w io.Writer, r *Report) error {
	_, err := io.WriteString(w, Markdown(r))
	return err
}

// RenderHTML converts the markdown document into a standalone HTML page
func RenderHTML(w io.Writer, r *Report) error {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "A/B analysis " + r.RunID.String(),
		Flags: html.CommonFlags | html.CompletePage,
	})
	_, err := w.Write(markdown.ToHTML([]byte(Markdown(r)), p, renderer))
	return err
}
