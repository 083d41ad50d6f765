package report

import (
	"time"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// TopRiskLimit is the number of typologies shown in the top-risk list.
const TopRiskLimit = 3

// Report is everything a dashboard surface needs for one filter selection.
type Report struct {
	DatasetID   string    `json:"datasetId,omitempty"`
	Source      string    `json:"source,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`
	Criteria    Criteria  `json:"criteria"`

	Summary        Summary         `json:"summary"`
	RiskLevels     []LevelCount    `json:"riskLevels"`
	SARByTypology  []TypologyCount `json:"sarByTypology"`
	Insights       []Insight       `json:"insights"`
	TopRisk        []Insight       `json:"topRisk"`
	Stages         []StageSummary  `json:"stages"`
	Assessment     Assessment      `json:"assessment"`
	RationaleCount int             `json:"rationaleCount"`

	Cases []domain.Case `json:"cases"`
}

// Empty reports whether no cases matched the criteria.
func (r *Report) Empty() bool {
	return r.Summary.TotalCases == 0
}

// Build filters cases by c and computes every aggregate over the result.
func Build(cases []domain.Case, c Criteria) *Report {
	filtered := Filter(cases, c)
	insights := Insights(filtered)
	summary := Summarize(filtered)

	return &Report{
		GeneratedAt:    time.Now().UTC(),
		Criteria:       c,
		Summary:        summary,
		RiskLevels:     RiskLevels(filtered),
		SARByTypology:  SARByTypology(filtered),
		Insights:       insights,
		TopRisk:        TopRisk(insights, TopRiskLimit),
		Stages:         StageRollup(insights),
		Assessment:     Band(summary.SARRate),
		RationaleCount: CountWithRationale(filtered),
		Cases:          filtered,
	}
}
