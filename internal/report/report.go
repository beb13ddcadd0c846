// Package report renders run outcomes and plans for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/taskweave/pkg/models"
)

// SummaryView renders a RunOutcome: status, cost against the budget,
// confidence, and one row per subtask grouped by capability.
type SummaryView struct {
	// budget is the run's dollar limit, zero when unlimited.
	budget float64

	labelStyle     lipgloss.Style
	valueStyle     lipgloss.Style
	headerStyle    lipgloss.Style
	progressFull   lipgloss.Style
	progressEmpty  lipgloss.Style
	warningStyle   lipgloss.Style
	successStyle   lipgloss.Style
	failureStyle   lipgloss.Style
	mutedStyle     lipgloss.Style
	confidenceLow  lipgloss.Style
	confidenceMed  lipgloss.Style
	confidenceHigh lipgloss.Style
}

// NewSummaryView creates a view. budget is the run's dollar limit, zero
// for none.
func NewSummaryView(budget float64) *SummaryView {
	return &SummaryView{
		budget: budget,

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		progressFull:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		progressEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		warningStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		successStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failureStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("243")),

		confidenceLow:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		confidenceMed:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		confidenceHigh: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	}
}

// Render returns the full summary.
func (s *SummaryView) Render(o *models.RunOutcome) string {
	var b strings.Builder

	b.WriteString(s.headerStyle.Render("Run " + o.RunID))
	b.WriteString("\n")

	b.WriteString(s.renderRow("Status:", s.statusStyle(o.Status).Render(string(o.Status))))
	b.WriteString("\n")
	if o.HaltReason != "" {
		b.WriteString(s.renderRow("Halted:", s.warningStyle.Render(o.HaltReason)))
		b.WriteString("\n")
	}
	if o.Plan != nil {
		planStr := fmt.Sprintf("%s, %d subtasks in %d levels", o.Plan.Strategy, len(o.Plan.ExecutionOrder), len(o.Plan.Levels))
		b.WriteString(s.renderRow("Plan:", s.valueStyle.Render(planStr)))
		b.WriteString("\n")
	}
	b.WriteString(s.renderRow("Duration:", s.valueStyle.Render(formatDuration(o.Duration))))
	b.WriteString("\n\n")

	total := o.Cost.Total()
	tokenStr := fmt.Sprintf("%s (tasks %s, overhead %s)",
		formatNumber(total.Tokens()), formatNumber(o.Cost.Tasks.Tokens()), formatNumber(o.Cost.Overhead.Tokens()))
	b.WriteString(s.renderRow("Tokens:", s.valueStyle.Render(tokenStr)))
	b.WriteString("\n")

	costStr := fmt.Sprintf("$%.4f (tasks $%.4f, overhead $%.4f)", total.Cost, o.Cost.Tasks.Cost, o.Cost.Overhead.Cost)
	b.WriteString(s.renderRow("Cost:", s.valueStyle.Render(costStr)))
	b.WriteString("\n")
	if s.budget > 0 {
		pct := total.Cost / s.budget * 100
		b.WriteString(s.renderProgressBar(pct, 30))
		b.WriteString(fmt.Sprintf(" %0.1f%% of $%.2f\n", pct, s.budget))
	}
	b.WriteString("\n")

	b.WriteString(s.renderRow("Confidence:", s.formatConfidence(o.Confidence)))
	b.WriteString("\n\n")

	b.WriteString(s.renderTasks(o))

	if o.Synthesis.Text != "" {
		b.WriteString("\n")
		b.WriteString(s.headerStyle.Render("Synthesis"))
		b.WriteString("\n")
		if o.Synthesis.Degraded {
			b.WriteString(s.warningStyle.Render("degraded: " + o.Synthesis.Error))
			b.WriteString("\n")
		}
		b.WriteString(o.Synthesis.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *SummaryView) renderTasks(o *models.RunOutcome) string {
	var b strings.Builder
	b.WriteString(s.headerStyle.Render("Subtasks"))
	b.WriteString("\n")

	caps := make([]models.Capability, 0, len(o.Summary.ByCapability))
	for c := range o.Summary.ByCapability {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })

	for _, c := range caps {
		b.WriteString(s.labelStyle.Render(string(c)))
		b.WriteString("\n")
		for _, t := range o.Summary.ByCapability[c] {
			line := fmt.Sprintf("  L%d %-14s %-8s %8s %7s tok $%.4f",
				t.Level, t.TaskID, s.taskStatus(t.Status), formatDuration(t.Duration), formatNumber(t.Tokens), t.Cost)
			if t.Attempts > 1 {
				line += fmt.Sprintf(" (%d attempts)", t.Attempts)
			}
			if t.Cached {
				line += s.mutedStyle.Render(" cached")
			}
			if t.Reason != "" {
				line += " " + s.mutedStyle.Render(t.Reason)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (s *SummaryView) taskStatus(st models.TaskStatus) string {
	switch st {
	case models.TaskStatusComplete:
		return s.successStyle.Render(string(st))
	case models.TaskStatusFailed:
		return s.failureStyle.Render(string(st))
	default:
		return s.warningStyle.Render(string(st))
	}
}

func (s *SummaryView) statusStyle(st models.RunStatus) lipgloss.Style {
	switch st {
	case models.RunStatusSuccess:
		return s.successStyle
	case models.RunStatusFailed:
		return s.failureStyle
	default:
		return s.warningStyle
	}
}

// renderRow renders a label-value pair.
func (s *SummaryView) renderRow(label, value string) string {
	return s.labelStyle.Render(label) + " " + value
}

// renderProgressBar renders a progress bar.
func (s *SummaryView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	fullStyle := s.progressFull
	if pct > 90 {
		fullStyle = s.warningStyle
	}

	bar := fullStyle.Render(strings.Repeat("█", filled)) +
		s.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  [%s]", bar)
}

// formatConfidence labels the minimum subtask confidence.
func (s *SummaryView) formatConfidence(c models.ConfidenceRollup) string {
	if c.Completed == 0 {
		return s.confidenceLow.Render("none (no subtask completed)")
	}
	pct := c.Overall * 100
	var label string
	style := s.confidenceLow
	switch {
	case pct >= 90:
		label = "High"
		style = s.confidenceHigh
	case pct >= 70:
		label = "Medium"
		style = s.confidenceMed
	case pct >= 50:
		label = "Low"
	default:
		label = "Very Low"
	}
	return style.Render(fmt.Sprintf("%s (min %.2f, mean %.2f, plan %.2f)", label, c.Overall, c.Mean, c.Graph))
}

// formatNumber formats an integer with thousand separators.
func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}
	var out []byte
	for i, c := range []byte(str) {
		if i > 0 && (len(str)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

// formatDuration formats a duration compactly.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
