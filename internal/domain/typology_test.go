package domain

import (
	"testing"
	"time"
)

func TestReferenceTableTotal(t *testing.T) {
	for _, typ := range Typologies() {
		info := Info(typ)
		if info.Typology != typ {
			t.Errorf("Info(%s) returned entry for %s", typ, info.Typology)
		}
		if info.Color == "" || info.Description == "" || info.Stage == "" {
			t.Errorf("incomplete entry for %s: %+v", typ, info)
		}
	}

	if got := Info(Typology("SMURFING")); got.Typology != TypologyUnclassified {
		t.Errorf("unknown label should fall back to UNCLASSIFIED, got %s", got.Typology)
	}

	if len(ReferenceTable()) != len(Typologies()) {
		t.Errorf("reference table has %d entries, want %d", len(ReferenceTable()), len(Typologies()))
	}
}

func TestStages(t *testing.T) {
	tests := []struct {
		typology Typology
		stage    Stage
	}{
		{TypologyStructuring, StagePlacement},
		{TypologyLayering, StageLayering},
		{TypologyIntegration, StageIntegration},
		{TypologyPlacement, StagePlacement},
		{TypologyUnclassified, StageUnknown},
	}
	for _, tt := range tests {
		if got := Info(tt.typology).Stage; got != tt.stage {
			t.Errorf("stage of %s = %s, want %s", tt.typology, got, tt.stage)
		}
	}
}

func TestParseTypology(t *testing.T) {
	tests := []struct {
		in      string
		want    Typology
		wantErr bool
	}{
		{"STRUCTURING", TypologyStructuring, false},
		{" layering ", TypologyLayering, false},
		{"Unclassified", TypologyUnclassified, false},
		{"SMURFING", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTypology(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTypology(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTypology(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCSSClass(t *testing.T) {
	if got := TypologyLayering.CSSClass(); got != "layering" {
		t.Errorf("expected layering, got %s", got)
	}
	if got := Typology("???").CSSClass(); got != "unclassified" {
		t.Errorf("expected unclassified, got %s", got)
	}
	if got := StageUnknown.CSSClass(); got != "unknown" {
		t.Errorf("expected unknown, got %s", got)
	}
}

func TestNewDatasetLoad(t *testing.T) {
	ds := &Dataset{
		ID:       "ds-1",
		Source:   "cases.csv",
		LoadedAt: time.Now(),
		Cases: []Case{
			{Scenario: "a", SAR: true, Typology: TypologyStructuring},
			{Scenario: "b", SAR: false, Typology: TypologyStructuring},
			{Scenario: "c", SAR: true, Typology: TypologyUnclassified},
		},
	}

	load := NewDatasetLoad(ds)
	if load.RowCount != 3 || load.SARCount != 2 {
		t.Errorf("unexpected counts: %+v", load)
	}
	if load.TypologyCounts[TypologyStructuring] != 2 {
		t.Errorf("expected 2 STRUCTURING, got %d", load.TypologyCounts[TypologyStructuring])
	}
}
