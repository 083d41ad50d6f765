// Package report filters classified cases and aggregates them into the
// metrics, rollups and rankings shown on every dashboard surface.
// All functions are pure: inputs are never modified.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/amlboard/internal/domain"
)

// ErrInvalidCriteria is returned when a filter value is not recognized.
var ErrInvalidCriteria = errors.New("invalid filter criteria")

// All is the "no constraint" filter value.
const All = "ALL"

// SARStatus is the SAR filter dimension.
type SARStatus string

const (
	SARAll         SARStatus = All
	SARRequired    SARStatus = "SAR Required"
	SARNotRequired SARStatus = "No SAR Required"
)

// SARStatuses returns the SAR filter options in display order.
func SARStatuses() []SARStatus {
	return []SARStatus{SARAll, SARRequired, SARNotRequired}
}

// ParseSARStatus parses a SAR filter value. Empty means ALL.
func ParseSARStatus(s string) (SARStatus, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SARAll, nil
	}
	for _, opt := range SARStatuses() {
		if strings.EqualFold(s, string(opt)) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("%w: unknown SAR status %q", ErrInvalidCriteria, s)
}

// Criteria selects a subset of cases. Zero values mean no constraint.
type Criteria struct {
	RiskLevel string          `json:"risk,omitempty"`
	Typology  domain.Typology `json:"typology,omitempty"`
	SAR       SARStatus       `json:"sar,omitempty"`
}

// ParseCriteria builds Criteria from raw filter values as they arrive from
// query strings or flags. "ALL" and "" are equivalent.
func ParseCriteria(risk, typology, sar string) (Criteria, error) {
	var c Criteria

	if risk = strings.TrimSpace(risk); risk != "" && risk != All {
		c.RiskLevel = risk
	}

	if typology = strings.TrimSpace(typology); typology != "" && !strings.EqualFold(typology, All) {
		t, err := domain.ParseTypology(typology)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
		}
		c.Typology = t
	}

	status, err := ParseSARStatus(sar)
	if err != nil {
		return Criteria{}, err
	}
	if status != SARAll {
		c.SAR = status
	}

	return c, nil
}

// And combines two criteria. Where both constrain the same dimension, other wins.
func (c Criteria) And(other Criteria) Criteria {
	out := c
	if other.RiskLevel != "" {
		out.RiskLevel = other.RiskLevel
	}
	if other.Typology != "" {
		out.Typology = other.Typology
	}
	if other.SAR != "" && other.SAR != SARAll {
		out.SAR = other.SAR
	}
	return out
}

// Key returns a canonical string for the criteria, used as a cache key.
func (c Criteria) Key() string {
	risk, typ, sar := All, All, string(SARAll)
	if c.RiskLevel != "" {
		risk = c.RiskLevel
	}
	if c.Typology != "" {
		typ = string(c.Typology)
	}
	if c.SAR != "" {
		sar = string(c.SAR)
	}
	return "risk=" + risk + "|typology=" + typ + "|sar=" + sar
}

// Match reports whether a case satisfies every set criterion.
func (c Criteria) Match(cs domain.Case) bool {
	if c.RiskLevel != "" && cs.Level != c.RiskLevel {
		return false
	}
	if c.Typology != "" && cs.Typology != c.Typology {
		return false
	}
	switch c.SAR {
	case SARRequired:
		return cs.SAR
	case SARNotRequired:
		return !cs.SAR
	}
	return true
}

// Filter returns the cases matching c as a new slice.
func Filter(cases []domain.Case, c Criteria) []domain.Case {
	out := make([]domain.Case, 0, len(cases))
	for _, cs := range cases {
		if c.Match(cs) {
			out = append(out, cs)
		}
	}
	return out
}

// TypologyCount is one slice of a typology distribution.
type TypologyCount struct {
	Typology domain.Typology `json:"typology"`
	Count    int             `json:"count"`
	Color    string          `json:"color"`
}

// Summary holds the headline metrics for a case set.
type Summary struct {
	TotalCases            int             `json:"totalCases"`
	SARCount              int             `json:"sarCount"`
	SARRate               float64         `json:"sarRate"`
	TypologyCounts        []TypologyCount `json:"typologyCounts"`
	DistinctTypologyCount int             `json:"distinctTypologyCount"`
}

// Summarize computes the headline metrics. SARRate is a percentage and is
// 0 for an empty set.
func Summarize(cases []domain.Case) Summary {
	s := Summary{TotalCases: len(cases)}
	for _, cs := range cases {
		if cs.SAR {
			s.SARCount++
		}
	}
	s.SARRate = rate(s.SARCount, s.TotalCases)
	s.TypologyCounts = countTypologies(cases)
	s.DistinctTypologyCount = len(s.TypologyCounts)
	return s
}

// countTypologies groups by typology, most frequent first. Equal counts keep
// first-appearance order.
func countTypologies(cases []domain.Case) []TypologyCount {
	index := make(map[domain.Typology]int)
	var out []TypologyCount
	for _, cs := range cases {
		i, ok := index[cs.Typology]
		if !ok {
			i = len(out)
			index[cs.Typology] = i
			out = append(out, TypologyCount{Typology: cs.Typology, Color: domain.Info(cs.Typology).Color})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// SARByTypology counts SAR-required cases per typology.
func SARByTypology(cases []domain.Case) []TypologyCount {
	return countTypologies(Filter(cases, Criteria{SAR: SARRequired}))
}

// LevelCount is one bar of the risk-level chart.
type LevelCount struct {
	Level string `json:"level"`
	Count int    `json:"count"`
}

// RiskLevels counts cases per risk level, most frequent first.
func RiskLevels(cases []domain.Case) []LevelCount {
	index := make(map[string]int)
	var out []LevelCount
	for _, cs := range cases {
		i, ok := index[cs.Level]
		if !ok {
			i = len(out)
			index[cs.Level] = i
			out = append(out, LevelCount{Level: cs.Level})
		}
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Insight is the per-typology breakdown.
type Insight struct {
	Typology    domain.Typology `json:"typology"`
	Count       int             `json:"count"`
	SARCount    int             `json:"sarCount"`
	SARRate     float64         `json:"sarRate"`
	Stage       domain.Stage    `json:"stage"`
	Description string          `json:"description"`
	Color       string          `json:"color"`
}

// Insights returns one entry per typology present, in first-appearance order.
func Insights(cases []domain.Case) []Insight {
	index := make(map[domain.Typology]int)
	var out []Insight
	for _, cs := range cases {
		i, ok := index[cs.Typology]
		if !ok {
			info := domain.Info(cs.Typology)
			i = len(out)
			index[cs.Typology] = i
			out = append(out, Insight{
				Typology:    cs.Typology,
				Stage:       info.Stage,
				Description: info.Description,
				Color:       info.Color,
			})
		}
		out[i].Count++
		if cs.SAR {
			out[i].SARCount++
		}
	}
	for i := range out {
		out[i].SARRate = rate(out[i].SARCount, out[i].Count)
	}
	return out
}

// TopRisk ranks insights by SAR rate, highest first, and keeps at most n.
// Equal rates are ordered by typology name.
func TopRisk(insights []Insight, n int) []Insight {
	ranked := make([]Insight, len(insights))
	copy(ranked, insights)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SARRate != ranked[j].SARRate {
			return ranked[i].SARRate > ranked[j].SARRate
		}
		return ranked[i].Typology < ranked[j].Typology
	})
	if n < 0 {
		n = 0
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// StageSummary aggregates insights sharing a laundering stage.
type StageSummary struct {
	Stage    domain.Stage `json:"stage"`
	Count    int          `json:"count"`
	SARCases float64      `json:"sarCases"`
	SARRate  float64      `json:"sarRate"`
}

// StageRollup groups insights by stage in first-appearance order.
// SARCases is the SAR-weighted case count, count*rate/100 per typology.
func StageRollup(insights []Insight) []StageSummary {
	index := make(map[domain.Stage]int)
	var out []StageSummary
	for _, in := range insights {
		i, ok := index[in.Stage]
		if !ok {
			i = len(out)
			index[in.Stage] = i
			out = append(out, StageSummary{Stage: in.Stage})
		}
		out[i].Count += in.Count
		out[i].SARCases += float64(in.Count) * in.SARRate / 100
	}
	for i := range out {
		if out[i].Count > 0 {
			out[i].SARRate = out[i].SARCases / float64(out[i].Count) * 100
		}
	}
	return out
}

// RiskBand is the overall risk assessment for a SAR rate.
type RiskBand string

const (
	BandHigh     RiskBand = "HIGH"
	BandModerate RiskBand = "MODERATE"
	BandLow      RiskBand = "LOW"
)

// CSSClass returns the lowercase band name.
func (b RiskBand) CSSClass() string {
	return strings.ToLower(string(b))
}

// Assessment pairs a band with its narrative message.
type Assessment struct {
	Band    RiskBand `json:"band"`
	Message string   `json:"message"`
}

// Band classifies a SAR rate: above 70 is HIGH, above 40 MODERATE, else LOW.
func Band(sarRate float64) Assessment {
	switch {
	case sarRate > 70:
		return Assessment{BandHigh, fmt.Sprintf("🚨 HIGH RISK: %.1f%% of cases require SAR filing. Immediate attention needed.", sarRate)}
	case sarRate > 40:
		return Assessment{BandModerate, fmt.Sprintf("⚠️ MODERATE RISK: %.1f%% of cases require SAR filing. Monitor closely.", sarRate)}
	default:
		return Assessment{BandLow, fmt.Sprintf("✅ LOW RISK: %.1f%% of cases require SAR filing. Normal operations.", sarRate)}
	}
}

// CountWithRationale counts cases that carry a rationale.
func CountWithRationale(cases []domain.Case) int {
	n := 0
	for _, cs := range cases {
		if cs.Rationale != "" {
			n++
		}
	}
	return n
}

// Options lists the values each filter control offers.
type Options struct {
	RiskLevels  []string          `json:"riskLevels"`
	Typologies  []domain.Typology `json:"typologies"`
	SARStatuses []SARStatus       `json:"sarStatuses"`
}

// FilterOptions derives filter choices from the full case set. Levels and
// typologies are sorted and do not include ALL.
func FilterOptions(cases []domain.Case) Options {
	levels := make(map[string]struct{})
	typologies := make(map[domain.Typology]struct{})
	for _, cs := range cases {
		levels[cs.Level] = struct{}{}
		typologies[cs.Typology] = struct{}{}
	}

	opts := Options{
		RiskLevels:  make([]string, 0, len(levels)),
		Typologies:  make([]domain.Typology, 0, len(typologies)),
		SARStatuses: SARStatuses(),
	}
	for l := range levels {
		opts.RiskLevels = append(opts.RiskLevels, l)
	}
	for t := range typologies {
		opts.Typologies = append(opts.Typologies, t)
	}
	sort.Strings(opts.RiskLevels)
	sort.Slice(opts.Typologies, func(i, j int) bool { return opts.Typologies[i] < opts.Typologies[j] })
	return opts
}

func rate(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
