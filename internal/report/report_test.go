package report

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/rules"
)

// classified builds cases through the default classifier.
func classified(rows ...domain.Case) []domain.Case {
	out := make([]domain.Case, len(rows))
	for i, r := range rows {
		r.Row = i + 1
		r.Typology = rules.Classify(r.Scenario)
		r.Rationale = rules.Rationale(r.Scenario, r.Typology)
		out[i] = r
	}
	return out
}

func sampleCases() []domain.Case {
	return classified(
		domain.Case{Scenario: "Structuring of cash deposits", Level: "High", OverallScore: 91, SAR: true},
		domain.Case{Scenario: "Sub-threshold transfers", Level: "High", OverallScore: 85, SAR: false},
		domain.Case{Scenario: "Complex payment chain", Level: "Medium", OverallScore: 60, SAR: true},
		domain.Case{Scenario: "Crypto mixer usage", Level: "High", OverallScore: 88, SAR: true},
		domain.Case{Scenario: "Wildlife trafficking proceeds", Level: "Medium", OverallScore: 70, SAR: true},
		domain.Case{Scenario: "PEP account activity", Level: "Low", OverallScore: 40, SAR: false},
		domain.Case{Scenario: "Routine payroll", Level: "Low", OverallScore: 5, SAR: false},
	)
}

func TestEndToEndExample(t *testing.T) {
	cases := classified(
		domain.Case{Scenario: "Structuring of cash deposits", Level: "High", SAR: true},
		domain.Case{Scenario: "Routine payroll", Level: "Low", SAR: false},
	)

	if cases[0].Typology != domain.TypologyStructuring || cases[1].Typology != domain.TypologyUnclassified {
		t.Fatalf("unexpected typologies: %s, %s", cases[0].Typology, cases[1].Typology)
	}

	sarOnly := Filter(cases, Criteria{SAR: SARRequired})
	if len(sarOnly) != 1 || sarOnly[0].Scenario != "Structuring of cash deposits" {
		t.Errorf("SAR filter returned %+v", sarOnly)
	}

	if got := Summarize(cases).SARRate; got != 50.0 {
		t.Errorf("expected sarRate 50.0, got %v", got)
	}
}

func TestFilter(t *testing.T) {
	cases := sampleCases()

	tests := []struct {
		name     string
		criteria Criteria
		want     int
	}{
		{"NoConstraint", Criteria{}, 7},
		{"RiskLevel", Criteria{RiskLevel: "High"}, 3},
		{"Typology", Criteria{Typology: domain.TypologyLayering}, 2},
		{"SARRequired", Criteria{SAR: SARRequired}, 4},
		{"NoSARRequired", Criteria{SAR: SARNotRequired}, 3},
		{"ExplicitAll", Criteria{SAR: SARAll}, 7},
		{"Combined", Criteria{RiskLevel: "High", SAR: SARRequired}, 2},
		{"NoMatch", Criteria{RiskLevel: "Critical"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(cases, tt.criteria)
			if len(got) != tt.want {
				t.Errorf("expected %d cases, got %d", tt.want, len(got))
			}
			for _, cs := range got {
				if !tt.criteria.Match(cs) {
					t.Errorf("case %q does not match criteria", cs.Scenario)
				}
			}
		})
	}
}

func TestFilterDoesNotMutate(t *testing.T) {
	cases := sampleCases()
	before := make([]domain.Case, len(cases))
	copy(before, cases)

	out := Filter(cases, Criteria{SAR: SARRequired})
	if len(out) > 0 {
		out[0].Scenario = "changed"
	}

	if !reflect.DeepEqual(cases, before) {
		t.Error("Filter modified its input")
	}
}

func TestFilterComposition(t *testing.T) {
	cases := sampleCases()

	pairs := []struct {
		a, b Criteria
	}{
		{Criteria{RiskLevel: "High"}, Criteria{SAR: SARRequired}},
		{Criteria{Typology: domain.TypologyStructuring}, Criteria{SAR: SARNotRequired}},
		{Criteria{RiskLevel: "Medium"}, Criteria{Typology: domain.TypologyIntegration}},
		{Criteria{RiskLevel: "Low"}, Criteria{Typology: domain.TypologyLayering}},
	}

	for _, p := range pairs {
		chained := Filter(Filter(cases, p.a), p.b)
		combined := Filter(cases, p.a.And(p.b))
		if !reflect.DeepEqual(chained, combined) {
			t.Errorf("filter(filter(R, %s), %s) != filter(R, both)", p.a.Key(), p.b.Key())
		}
	}
}

func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name           string
		risk, typ, sar string
		want           Criteria
		wantErr        bool
	}{
		{"AllDefaults", "", "", "", Criteria{}, false},
		{"ExplicitAll", "ALL", "ALL", "ALL", Criteria{}, false},
		{"Values", "High", "layering", "sar required", Criteria{RiskLevel: "High", Typology: domain.TypologyLayering, SAR: SARRequired}, false},
		{"NoSAR", "", "", "No SAR Required", Criteria{SAR: SARNotRequired}, false},
		{"BadTypology", "", "SMURFING", "", Criteria{}, true},
		{"BadSAR", "", "", "maybe", Criteria{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCriteria(tt.risk, tt.typ, tt.sar)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCriteria) {
					t.Errorf("expected ErrInvalidCriteria, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCriteriaKey(t *testing.T) {
	if (Criteria{}).Key() != (Criteria{SAR: SARAll}).Key() {
		t.Error("empty SAR and ALL should share a key")
	}
	a := Criteria{RiskLevel: "High"}.Key()
	b := Criteria{Typology: "High"}.Key()
	if a == b {
		t.Errorf("distinct criteria share key %q", a)
	}
}

func TestSummarize(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		s := Summarize(nil)
		if s.TotalCases != 0 || s.SARCount != 0 || s.SARRate != 0 || s.DistinctTypologyCount != 0 {
			t.Errorf("unexpected summary for empty set: %+v", s)
		}
		if math.IsNaN(s.SARRate) {
			t.Error("sarRate is NaN")
		}
	})

	t.Run("Sample", func(t *testing.T) {
		s := Summarize(sampleCases())
		if s.TotalCases != 7 || s.SARCount != 4 {
			t.Errorf("unexpected counts: %+v", s)
		}
		if math.Abs(s.SARRate-400.0/7) > 1e-9 {
			t.Errorf("unexpected sarRate %v", s.SARRate)
		}
		if s.DistinctTypologyCount != 5 {
			t.Errorf("expected 5 typologies, got %d", s.DistinctTypologyCount)
		}

		// STRUCTURING and LAYERING have 2 each; STRUCTURING appeared first.
		if s.TypologyCounts[0].Typology != domain.TypologyStructuring || s.TypologyCounts[1].Typology != domain.TypologyLayering {
			t.Errorf("unexpected order: %+v", s.TypologyCounts)
		}
		if s.TypologyCounts[0].Color != "#ff6b6b" {
			t.Errorf("expected STRUCTURING color, got %s", s.TypologyCounts[0].Color)
		}
	})
}

func TestInsights(t *testing.T) {
	insights := Insights(sampleCases())

	order := make([]string, len(insights))
	for i, in := range insights {
		order[i] = string(in.Typology)
	}
	want := "STRUCTURING,LAYERING,INTEGRATION,PLACEMENT,UNCLASSIFIED"
	if strings.Join(order, ",") != want {
		t.Errorf("expected first-appearance order %s, got %v", want, order)
	}

	s := insights[0]
	if s.Count != 2 || s.SARCount != 1 || s.SARRate != 50 {
		t.Errorf("unexpected STRUCTURING insight: %+v", s)
	}
	if s.Stage != domain.StagePlacement || s.Description == "" {
		t.Errorf("missing reference data: %+v", s)
	}
}

func TestTopRisk(t *testing.T) {
	insights := Insights(sampleCases())

	top := TopRisk(insights, TopRiskLimit)
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	// INTEGRATION and LAYERING both sit at 100%; name order breaks the tie.
	if top[0].Typology != domain.TypologyIntegration || top[1].Typology != domain.TypologyLayering {
		t.Errorf("unexpected ranking: %s, %s", top[0].Typology, top[1].Typology)
	}
	if top[2].Typology != domain.TypologyStructuring {
		t.Errorf("expected STRUCTURING third, got %s", top[2].Typology)
	}

	few := TopRisk(insights[:2], TopRiskLimit)
	if len(few) != 2 {
		t.Errorf("expected 2 entries from 2 typologies, got %d", len(few))
	}
	if len(TopRisk(nil, TopRiskLimit)) != 0 {
		t.Error("expected no entries for empty insights")
	}

	// Ranking must not reorder the caller's slice.
	if insights[0].Typology != domain.TypologyStructuring {
		t.Error("TopRisk modified its input")
	}
}

func TestStageRollup(t *testing.T) {
	cases := sampleCases()
	stages := StageRollup(Insights(cases))

	total := 0
	for _, s := range stages {
		total += s.Count
	}
	if total != len(cases) {
		t.Errorf("stage counts sum to %d, want %d", total, len(cases))
	}

	// Placement holds STRUCTURING (2 cases, 1 SAR) and PLACEMENT (1 case, 0 SAR).
	placement := stages[0]
	if placement.Stage != domain.StagePlacement || placement.Count != 3 {
		t.Fatalf("unexpected first stage: %+v", placement)
	}
	if math.Abs(placement.SARCases-1) > 1e-9 {
		t.Errorf("expected 1 SAR-weighted case, got %v", placement.SARCases)
	}
	if math.Abs(placement.SARRate-100.0/3) > 1e-9 {
		t.Errorf("unexpected placement rate %v", placement.SARRate)
	}

	if len(StageRollup(nil)) != 0 {
		t.Error("expected empty rollup")
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		rate float64
		band RiskBand
		text string
	}{
		{0, BandLow, "✅ LOW RISK: 0.0% of cases require SAR filing. Normal operations."},
		{40, BandLow, "✅ LOW RISK: 40.0% of cases require SAR filing. Normal operations."},
		{40.1, BandModerate, "⚠️ MODERATE RISK: 40.1% of cases require SAR filing. Monitor closely."},
		{70, BandModerate, "⚠️ MODERATE RISK: 70.0% of cases require SAR filing. Monitor closely."},
		{70.5, BandHigh, "🚨 HIGH RISK: 70.5% of cases require SAR filing. Immediate attention needed."},
		{100, BandHigh, "🚨 HIGH RISK: 100.0% of cases require SAR filing. Immediate attention needed."},
	}

	for _, tt := range tests {
		got := Band(tt.rate)
		if got.Band != tt.band || got.Message != tt.text {
			t.Errorf("Band(%v) = %+v, want %s %q", tt.rate, got, tt.band, tt.text)
		}
	}
}

func TestRiskLevelsAndSARByTypology(t *testing.T) {
	cases := sampleCases()

	levels := RiskLevels(cases)
	if levels[0].Level != "High" || levels[0].Count != 3 {
		t.Errorf("expected High first with 3, got %+v", levels[0])
	}

	sar := SARByTypology(cases)
	total := 0
	for _, s := range sar {
		total += s.Count
		if s.Typology == domain.TypologyUnclassified {
			t.Error("UNCLASSIFIED has no SAR cases in the sample")
		}
	}
	if total != 4 {
		t.Errorf("expected 4 SAR cases, got %d", total)
	}
}

func TestFilterOptions(t *testing.T) {
	opts := FilterOptions(sampleCases())

	if !reflect.DeepEqual(opts.RiskLevels, []string{"High", "Low", "Medium"}) {
		t.Errorf("unexpected levels %v", opts.RiskLevels)
	}
	if opts.Typologies[0] != domain.TypologyIntegration || len(opts.Typologies) != 5 {
		t.Errorf("unexpected typologies %v", opts.Typologies)
	}
	if len(opts.SARStatuses) != 3 || opts.SARStatuses[0] != SARAll {
		t.Errorf("unexpected SAR options %v", opts.SARStatuses)
	}
}

func TestBuild(t *testing.T) {
	r := Build(sampleCases(), Criteria{RiskLevel: "High"})

	if r.Summary.TotalCases != 3 || len(r.Cases) != 3 {
		t.Errorf("expected 3 cases, got %d", r.Summary.TotalCases)
	}
	if r.RationaleCount != 3 {
		t.Errorf("expected 3 cases with rationale, got %d", r.RationaleCount)
	}
	if r.Assessment.Band != BandModerate {
		t.Errorf("expected MODERATE at 66.7%%, got %s", r.Assessment.Band)
	}
	if len(r.TopRisk) > TopRiskLimit {
		t.Errorf("top risk exceeds limit: %d", len(r.TopRisk))
	}

	empty := Build(sampleCases(), Criteria{RiskLevel: "Critical"})
	if !empty.Empty() || empty.Assessment.Band != BandLow {
		t.Errorf("expected empty LOW report, got %+v", empty.Summary)
	}
}
