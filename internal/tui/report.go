package tui

import (
	"fmt"
	"strings"

	"github.com/sprite-ai/prlens/internal/model"
)

// Report renders an analysis result as styled text for non-interactive
// output.
func Report(res *model.AnalysisResult) string {
	var b strings.Builder
	s := res.Summary

	b.WriteString(summaryHeaderStyle.Render(fmt.Sprintf("%d issue(s) in %d file(s)", s.TotalIssues, s.TotalFiles)))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  %s  %s  %s  %s\n\n",
		severityCriticalStyle.Render(fmt.Sprintf("critical %d", s.CriticalIssues)),
		severityHighStyle.Render(fmt.Sprintf("high %d", s.HighIssues)),
		severityMediumStyle.Render(fmt.Sprintf("medium %d", s.MediumIssues)),
		severityLowStyle.Render(fmt.Sprintf("low %d", s.LowIssues)))

	if len(res.Files) == 0 {
		b.WriteString(completedStyle.Render("No issues found."))
		b.WriteByte('\n')
		return b.String()
	}

	for _, f := range res.Files {
		b.WriteString("  ")
		b.WriteString(fileHeaderStyle.UnsetPadding().Render(f.Name))
		b.WriteByte('\n')
		for _, l := range issueLines(f) {
			b.WriteString("  ")
			b.WriteString(styleIssueLine(l, 0))
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
