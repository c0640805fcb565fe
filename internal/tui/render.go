package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/prlens/internal/model"
)

// issueLine is one row of the issue panel.
type issueLine struct {
	Line     int
	Type     model.IssueType
	Severity model.Severity
	Text     string
	IsHint   bool // suggestion row under its issue
}

func (m Model) files() []model.FileReport {
	if m.result == nil || m.result.Results == nil {
		return nil
	}
	return m.result.Results.Files
}

func (m *Model) updateLines() {
	files := m.files()
	if len(files) == 0 {
		m.lines = nil
		return
	}
	m.lines = issueLines(files[m.fileIndex])
}

func issueLines(f model.FileReport) []issueLine {
	lines := make([]issueLine, 0, 2*len(f.Issues))
	for _, is := range f.Issues {
		lines = append(lines, issueLine{
			Line:     is.Line,
			Type:     is.Type,
			Severity: is.Severity,
			Text:     is.Description,
		})
		if is.Suggestion != "" {
			lines = append(lines, issueLine{Text: is.Suggestion, IsHint: true})
		}
	}
	return lines
}

func styleIssueLine(l issueLine, width int) string {
	if l.IsHint {
		return lineNumberStyle.Render("") + "  " + suggestionStyle.Render(truncate("→ "+l.Text, width-8))
	}
	num := lineNumberStyle.Render(fmt.Sprintf("%d", l.Line))
	badge := SeverityStyle(l.Severity).Render(fmt.Sprintf("%-8s", l.Severity))
	kind := issueTypeStyle.Render(fmt.Sprintf("%-13s", l.Type))
	return fmt.Sprintf("%s  %s %s %s", num, badge, kind, truncate(l.Text, width-33))
}

func truncate(s string, n int) string {
	if n <= 1 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func (m Model) fileListWidth() int {
	maxLen := 20
	for _, f := range m.files() {
		if len(f.Name) > maxLen {
			maxLen = len(f.Name)
		}
	}
	w := maxLen + 8
	if w > m.width/3 {
		w = m.width / 3
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderFileList(width, height int) string {
	var b strings.Builder
	files := m.files()

	for i, f := range files {
		name := f.Name
		maxName := width - 9
		if maxName > 0 && len(name) > maxName {
			name = "…" + name[len(name)-maxName+1:]
		}

		line := fmt.Sprintf("%-*s %3d", maxName, name, len(f.Issues))
		style := fileItemStyle
		if i == m.fileIndex {
			style = fileItemSelectedStyle
		}
		b.WriteString(style.Width(width - 4).Render(line))
		if i < len(files)-1 {
			b.WriteByte('\n')
		}
	}

	return fileListStyle.Width(width).Height(height - 2).Render(b.String())
}

func (m Model) renderIssueView(width, height int) string {
	f := m.files()[m.fileIndex]
	innerWidth := width - 4
	innerHeight := height - 2

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(f.Name))
	b.WriteByte('\n')

	visible := innerHeight - 2
	if visible < 1 {
		visible = 1
	}
	end := m.scrollOffset + visible
	if end > len(m.lines) {
		end = len(m.lines)
	}
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleIssueLine(m.lines[i], innerWidth))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}

	return issueViewStyle.Width(width).Height(innerHeight).Render(b.String())
}

// renderJobPanel shows the job while it runs, or its outcome when there is
// nothing to browse.
func (m Model) renderJobPanel(height int) string {
	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render("prlens task " + m.taskID))
	b.WriteByte('\n')

	switch {
	case m.result != nil && m.result.Status == model.JobFailed:
		b.WriteString(failedStyle.Render("✗ analysis failed"))
		b.WriteString("\n\n")
		b.WriteString(m.result.ErrorMessage)

	case m.result != nil:
		b.WriteString(completedStyle.Render("✓ analysis completed"))
		b.WriteString("\n\n")
		b.WriteString("No issues found on the changed lines.")

	case m.status != nil:
		progress := m.status.Progress
		if progress == "" {
			progress = "waiting for a worker"
		}
		fmt.Fprintf(&b, "%s %s  %s",
			m.spinner.View(),
			progressStyle.Render(string(m.status.Status)),
			helpBarStyle.Render(progress))
		fmt.Fprintf(&b, "\n\n%s", helpBarStyle.Render("submitted "+m.status.CreatedAt.Local().Format(time.Kitchen)))

	default:
		fmt.Fprintf(&b, "%s %s", m.spinner.View(), progressStyle.Render("connecting"))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(failedStyle.Render("error: ") + m.err.Error())
	}

	return issueViewStyle.Width(m.width).Height(height - 2).Render(b.String())
}

func (m Model) renderStatusBar() string {
	left := " " + m.taskID
	if files := m.files(); len(files) > 0 {
		left += fmt.Sprintf("  File %d/%d", m.fileIndex+1, len(files))
	}

	right := "? help "
	if m.result != nil && m.result.Results != nil {
		s := m.result.Results.Summary
		right = fmt.Sprintf("%d issues  %s %s %s %s  ? help ",
			s.TotalIssues,
			severityCriticalStyle.Render(fmt.Sprintf("C%d", s.CriticalIssues)),
			severityHighStyle.Render(fmt.Sprintf("H%d", s.HighIssues)),
			severityMediumStyle.Render(fmt.Sprintf("M%d", s.MediumIssues)),
			severityLowStyle.Render(fmt.Sprintf("L%d", s.LowIssues)))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("prlens watch: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	helpItems := []struct{ key, desc string }{
		{"↑/k", "Scroll up"},
		{"↓/j", "Scroll down"},
		{"n/Tab", "Next file"},
		{"N/S-Tab", "Previous file"},
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}

	for _, item := range helpItems {
		fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Width(12).Render(item.key), item.desc)
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))
	return b.String()
}
