// Package render turns reports into HTML pages and terminal output.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// TypologyCardLimit is the number of typology overview cards shown.
const TypologyCardLimit = 4

// EmptyMessage is shown in place of case cards when nothing matches.
const EmptyMessage = "No cases match the selected filters."

// HTMLRenderer renders the dashboard page.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded templates.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	funcMap := template.FuncMap{
		"pct":      func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) + "%" },
		"oneDP":    func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
		"score":    formatScore,
		"info":     domain.Info,
		"selected": func(current, option string) bool { return current == option },
	}

	tmpl, err := template.New("dashboard.html").Funcs(funcMap).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Page is the input for one dashboard render.
type Page struct {
	Title   string
	Report  *report.Report
	Options report.Options
}

// Selection is the filter state echoed back into the form.
type Selection struct {
	Risk     string
	Typology string
	SAR      string
}

// Card is a typology overview card.
type Card struct {
	Typology domain.Typology
	Count    int
	Info     domain.TypologyInfo
}

type dashboard struct {
	Title        string
	Report       *report.Report
	Selection    Selection
	RiskOptions  []string
	TypOptions   []string
	SAROptions   []string
	Cards        []Card
	Pie          []Slice
	RiskChart    BarChart
	SARChart     BarChart
	SARTotal     int
	EmptyMessage string
}

// Render writes the dashboard for page to w.
func (r *HTMLRenderer) Render(w io.Writer, page Page) error {
	if page.Report == nil {
		return fmt.Errorf("render: report is required")
	}
	return r.tmpl.Execute(w, newDashboard(page))
}

func newDashboard(page Page) dashboard {
	rep := page.Report
	title := page.Title
	if title == "" {
		title = "AML Detection Dashboard"
	}

	d := dashboard{
		Title:        title,
		Report:       rep,
		Selection:    selectionOf(rep.Criteria),
		RiskOptions:  append([]string{report.All}, page.Options.RiskLevels...),
		TypOptions:   []string{report.All},
		Pie:          Pie(rep.Summary.TypologyCounts),
		RiskChart:    RiskLevelBars(rep.RiskLevels),
		SARChart:     TypologyBars(rep.SARByTypology),
		EmptyMessage: EmptyMessage,
	}
	for _, t := range page.Options.Typologies {
		d.TypOptions = append(d.TypOptions, string(t))
	}
	for _, s := range page.Options.SARStatuses {
		d.SAROptions = append(d.SAROptions, string(s))
	}
	for _, tc := range rep.SARByTypology {
		d.SARTotal += tc.Count
	}
	for i, tc := range rep.Summary.TypologyCounts {
		if i == TypologyCardLimit {
			break
		}
		d.Cards = append(d.Cards, Card{Typology: tc.Typology, Count: tc.Count, Info: domain.Info(tc.Typology)})
	}
	return d
}

func selectionOf(c report.Criteria) Selection {
	s := Selection{Risk: report.All, Typology: report.All, SAR: string(report.SARAll)}
	if c.RiskLevel != "" {
		s.Risk = c.RiskLevel
	}
	if c.Typology != "" {
		s.Typology = string(c.Typology)
	}
	if c.SAR != "" {
		s.SAR = string(c.SAR)
	}
	return s
}

// formatScore prints a score without trailing zeros.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
