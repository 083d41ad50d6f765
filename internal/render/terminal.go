package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/evaluation"
	"github.com/opensource-finance/amlboard/internal/report"
)

// TerminalRenderer formats reports for a terminal.
type TerminalRenderer struct {
	styles *Styles
	// ShowCases includes one line per case.
	ShowCases bool
}

// NewTerminalRenderer creates a renderer with default styles.
func NewTerminalRenderer() *TerminalRenderer {
	return &TerminalRenderer{styles: NewStyles(), ShowCases: true}
}

// Render formats the full report.
func (r *TerminalRenderer) Render(rep *report.Report) string {
	if rep == nil {
		return r.styles.High.Render("No report available")
	}

	sections := []string{
		r.styles.Title.Render("🛡️ AML Detection Dashboard"),
		r.styles.Subtle.Render("Filters: " + rep.Criteria.Key()),
		r.metrics(rep.Summary),
		r.typologies(rep.Summary),
	}
	if len(rep.RiskLevels) > 0 {
		sections = append(sections, r.riskLevels(rep.RiskLevels))
	}
	if r.ShowCases {
		sections = append(sections, r.cases(rep.Cases))
	}
	sections = append(sections, r.insights(rep))
	return strings.Join(sections, "\n\n") + "\n"
}

func (r *TerminalRenderer) metrics(s report.Summary) string {
	cards := []string{
		r.styles.Metric.Render(fmt.Sprintf("%d\nTotal Cases", s.TotalCases)),
		r.styles.Metric.Render(fmt.Sprintf("%d\nSAR Required", s.SARCount)),
		r.styles.Metric.Render(fmt.Sprintf("%.1f%%\nSAR Rate", s.SARRate)),
		r.styles.Metric.Render(fmt.Sprintf("%d\nTypology Types", s.DistinctTypologyCount)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (r *TerminalRenderer) typologies(s report.Summary) string {
	lines := []string{r.styles.Section.Render("Typology Distribution")}
	for _, tc := range s.TypologyCounts {
		info := domain.Info(tc.Typology)
		lines = append(lines, fmt.Sprintf("  %s %s %d (%.1f%%)  %s",
			typologyStyle(info.Color).Render(fmt.Sprintf("%-13s", tc.Typology)),
			bar(tc.Count, s.TotalCases, 20),
			tc.Count,
			share(tc.Count, s.TotalCases),
			r.styles.Subtle.Render(string(info.Stage)),
		))
	}
	return strings.Join(lines, "\n")
}

func (r *TerminalRenderer) riskLevels(levels []report.LevelCount) string {
	total := 0
	for _, l := range levels {
		total += l.Count
	}
	lines := []string{r.styles.Section.Render("Risk Level Analysis")}
	for _, l := range levels {
		lines = append(lines, fmt.Sprintf("  %-13s %s %d", l.Level, bar(l.Count, total, 20), l.Count))
	}
	return strings.Join(lines, "\n")
}

func (r *TerminalRenderer) cases(cases []domain.Case) string {
	lines := []string{r.styles.Section.Render("Detailed Case Analysis")}
	if len(cases) == 0 {
		lines = append(lines, "  "+r.styles.Moderate.Render(EmptyMessage))
		return strings.Join(lines, "\n")
	}
	for _, cs := range cases {
		status := r.styles.NoSAR.Render("✅ No SAR")
		if cs.SAR {
			status = r.styles.SAR.Render("🚨 SAR REQUIRED")
		}
		info := domain.Info(cs.Typology)
		lines = append(lines, fmt.Sprintf("  📄 %s\n     %s | score %s | %s | %s",
			cs.Scenario,
			cs.Level,
			formatScore(cs.OverallScore),
			typologyStyle(info.Color).Render(string(cs.Typology)),
			status,
		))
	}
	return strings.Join(lines, "\n")
}

func (r *TerminalRenderer) insights(rep *report.Report) string {
	s := rep.Summary
	stats := []string{
		r.styles.Bold.Render("📊 Key Statistics"),
		fmt.Sprintf("Total Cases Analyzed: %d", s.TotalCases),
		fmt.Sprintf("SAR Required Cases: %d (%.1f%%)", s.SARCount, s.SARRate),
		fmt.Sprintf("Typology Categories: %d", s.DistinctTypologyCount),
		fmt.Sprintf("Cases with Rationale: %d", rep.RationaleCount),
	}

	top := []string{r.styles.Bold.Render("🎯 Top Risk Typologies")}
	for _, in := range rep.TopRisk {
		top = append(top, fmt.Sprintf("%s (%s): %d cases, %.1f%% SAR rate", in.Typology, in.Stage, in.Count, in.SARRate))
	}

	stages := []string{r.styles.Bold.Render("🔄 Money Laundering Stage Analysis")}
	for _, st := range rep.Stages {
		stages = append(stages, fmt.Sprintf("%s: %d cases, %.1f%% SAR rate", st.Stage, st.Count, st.SARRate))
	}

	return strings.Join([]string{
		r.styles.Section.Render("Comprehensive Insights Summary"),
		lipgloss.JoinHorizontal(lipgloss.Top,
			r.styles.Box.Render(strings.Join(stats, "\n")),
			r.styles.Box.Render(strings.Join(top, "\n")),
		),
		r.bandStyle(rep.Assessment.Band).Render(rep.Assessment.Message),
		strings.Join(stages, "\n  "),
	}, "\n")
}

func (r *TerminalRenderer) bandStyle(b report.RiskBand) lipgloss.Style {
	switch b {
	case report.BandHigh:
		return r.styles.High
	case report.BandModerate:
		return r.styles.Moderate
	default:
		return r.styles.Low
	}
}

// RenderClassification formats a single classification result.
func (r *TerminalRenderer) RenderClassification(scenario string, c domain.Classification) string {
	info := domain.Info(c.Typology)
	lines := []string{
		r.styles.Bold.Render("Scenario: ") + scenario,
		r.styles.Bold.Render("Typology: ") + typologyStyle(info.Color).Render(string(c.Typology)) + " " + r.styles.Subtle.Render("("+string(c.Stage)+")"),
		r.styles.Bold.Render("Description: ") + c.Description,
		r.styles.Bold.Render("Rationale: ") + c.Rationale,
	}
	if c.RuleID != "" {
		lines = append(lines, r.styles.Subtle.Render("Matched rule: "+c.RuleID))
	}
	return r.styles.Box.Render(strings.Join(lines, "\n")) + "\n"
}

// RenderEvaluation formats classifier accuracy results.
func (r *TerminalRenderer) RenderEvaluation(res *evaluation.Result) string {
	var b strings.Builder

	b.WriteString(r.styles.Title.Render("CLASSIFIER EVALUATION"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Total rows:   %d\n", res.Total)
	fmt.Fprintf(&b, "Labelled:     %d\n", res.Labelled)
	fmt.Fprintf(&b, "Correct:      %d\n", res.Correct)
	fmt.Fprintf(&b, "Accuracy:     %.4f\n\n", res.Accuracy)

	b.WriteString(r.styles.Section.Render("Per-typology metrics"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %-13s %8s %9s %8s %8s\n", "TYPOLOGY", "SUPPORT", "PRECISION", "RECALL", "F1")
	for _, s := range res.Scores {
		fmt.Fprintf(&b, "  %-13s %8d %9.4f %8.4f %8.4f\n", s.Typology, s.Support, s.Precision, s.Recall, s.F1)
	}
	fmt.Fprintf(&b, "  %-13s %8s %9.4f %8.4f %8.4f\n\n", "MACRO", "", res.MacroPrecision, res.MacroRecall, res.MacroF1)

	b.WriteString(r.styles.Section.Render("Confusion matrix (rows actual, columns predicted)"))
	b.WriteString("\n")
	labels := domain.Typologies()
	b.WriteString("  " + strings.Repeat(" ", 13))
	for _, t := range labels {
		fmt.Fprintf(&b, " %5.5s", t)
	}
	b.WriteString("\n")
	for i, t := range labels {
		if i >= len(res.Confusion) {
			break
		}
		fmt.Fprintf(&b, "  %-13s", t)
		for j := range labels {
			fmt.Fprintf(&b, " %5d", res.Confusion[i][j])
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	for _, line := range evaluation.Interpret(res.MacroRecall, res.MacroPrecision) {
		b.WriteString("  " + line + "\n")
	}
	fmt.Fprintf(&b, "\nDuration: %v\n", res.Duration)
	return b.String()
}

// bar draws a proportional bar of at most width cells.
func bar(count, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}
	filled := count * width / total
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
