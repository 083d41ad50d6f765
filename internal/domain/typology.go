package domain

import (
	"fmt"
	"strings"
)

// Typology is a money-laundering typology label assigned to a case.
type Typology string

const (
	TypologyStructuring  Typology = "STRUCTURING"
	TypologyLayering     Typology = "LAYERING"
	TypologyIntegration  Typology = "INTEGRATION"
	TypologyPlacement    Typology = "PLACEMENT"
	TypologyUnclassified Typology = "UNCLASSIFIED"
)

// Stage is the money-laundering stage a typology belongs to.
type Stage string

const (
	StagePlacement   Stage = "Placement"
	StageLayering    Stage = "Layering"
	StageIntegration Stage = "Integration"
	StageUnknown     Stage = "Unknown"
)

// TypologyInfo is the display and reference data for a typology.
type TypologyInfo struct {
	Typology    Typology `json:"typology"`
	Color       string   `json:"color"`
	Description string   `json:"description"`
	Stage       Stage    `json:"stage"`
}

// typologyTable is built once and never written afterwards.
var typologyTable = map[Typology]TypologyInfo{
	TypologyStructuring: {
		Typology:    TypologyStructuring,
		Color:       "#ff6b6b",
		Description: "Breaking down large transactions into smaller amounts to avoid reporting thresholds",
		Stage:       StagePlacement,
	},
	TypologyLayering: {
		Typology:    TypologyLayering,
		Color:       "#4ecdc4",
		Description: "Complex transactions to obscure the origin of illicit funds",
		Stage:       StageLayering,
	},
	TypologyIntegration: {
		Typology:    TypologyIntegration,
		Color:       "#45b7d1",
		Description: "Reintroducing laundered funds into the legitimate economy",
		Stage:       StageIntegration,
	},
	TypologyPlacement: {
		Typology:    TypologyPlacement,
		Color:       "#ffa726",
		Description: "Initial placement of illicit funds into the financial system",
		Stage:       StagePlacement,
	},
	TypologyUnclassified: {
		Typology:    TypologyUnclassified,
		Color:       "#6c757d",
		Description: "Cases requiring further analysis for typology classification",
		Stage:       StageUnknown,
	},
}

// rationaleText differs from the descriptions only for UNCLASSIFIED.
var rationaleText = map[Typology]string{
	TypologyStructuring:  "Breaking down large transactions into smaller amounts to avoid reporting thresholds",
	TypologyLayering:     "Complex transactions to obscure the origin of illicit funds",
	TypologyIntegration:  "Reintroducing laundered funds into the legitimate economy",
	TypologyPlacement:    "Initial placement of illicit funds into the financial system",
	TypologyUnclassified: "Requires further analysis for typology classification",
}

// Typologies returns every label in display order.
func Typologies() []Typology {
	return []Typology{
		TypologyStructuring,
		TypologyLayering,
		TypologyIntegration,
		TypologyPlacement,
		TypologyUnclassified,
	}
}

// Info returns the reference entry for t. Unknown labels get the
// UNCLASSIFIED entry, so the lookup never fails.
func Info(t Typology) TypologyInfo {
	if info, ok := typologyTable[t]; ok {
		return info
	}
	return typologyTable[TypologyUnclassified]
}

// ReferenceTable returns a copy of the reference entries in display order.
func ReferenceTable() []TypologyInfo {
	out := make([]TypologyInfo, 0, len(typologyTable))
	for _, t := range Typologies() {
		out = append(out, typologyTable[t])
	}
	return out
}

// RationaleText returns the fixed rationale sentence for t.
func RationaleText(t Typology) string {
	if text, ok := rationaleText[t]; ok {
		return text
	}
	return rationaleText[TypologyUnclassified]
}

// Valid reports whether t is one of the known labels.
func (t Typology) Valid() bool {
	_, ok := typologyTable[t]
	return ok
}

// CSSClass returns the lowercase badge class used by the dashboard.
func (t Typology) CSSClass() string {
	if !t.Valid() {
		return "unclassified"
	}
	return strings.ToLower(string(t))
}

// ParseTypology parses a label case-insensitively.
func ParseTypology(s string) (Typology, error) {
	t := Typology(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown typology %q", s)
	}
	return t, nil
}

// CSSClass returns the lowercase, dash-separated class for a stage badge.
func (s Stage) CSSClass() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "-")
}
