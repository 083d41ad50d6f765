package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/opensource-finance/amlboard/internal/cache"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/metrics"
)

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	lru := cache.NewLRUCache(10)
	m := metrics.New()
	proc := NewProcessor(lru, time.Minute, m)

	ds := &domain.Dataset{ID: "ds-1", Source: "cases.csv", Cases: sampleCases()}
	criteria := Criteria{SAR: SARRequired}

	t.Run("MissThenHit", func(t *testing.T) {
		first := proc.Process(ctx, ds, criteria)
		if first.DatasetID != "ds-1" || first.Source != "cases.csv" {
			t.Errorf("dataset identity not set: %+v", first)
		}
		if first.Summary.TotalCases != 4 {
			t.Errorf("expected 4 SAR cases, got %d", first.Summary.TotalCases)
		}

		second := proc.Process(ctx, ds, criteria)
		if second.Summary.TotalCases != first.Summary.TotalCases || second.Summary.SARRate != first.Summary.SARRate {
			t.Error("cached report differs from built report")
		}
		if len(second.Cases) != 4 || second.Cases[0].Typology != domain.TypologyStructuring {
			t.Errorf("cached cases lost: %+v", second.Cases)
		}

		expected := `
# HELP amlboard_report_builds_total Reports computed from case data (cache misses included)
# TYPE amlboard_report_builds_total counter
amlboard_report_builds_total 1
`
		if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "amlboard_report_builds_total"); err != nil {
			t.Errorf("unexpected build count: %v", err)
		}
	})

	t.Run("NewDatasetMisses", func(t *testing.T) {
		reloaded := &domain.Dataset{ID: "ds-2", Cases: sampleCases()[:1]}
		r := proc.Process(ctx, reloaded, criteria)
		if r.Summary.TotalCases != 1 {
			t.Errorf("expected fresh build for new dataset, got %d cases", r.Summary.TotalCases)
		}
	})

	t.Run("CorruptEntryRebuilt", func(t *testing.T) {
		_ = lru.Set(ctx, ds.ID, Criteria{}.Key(), []byte("{not json"), time.Minute)
		r := proc.Process(ctx, ds, Criteria{})
		if r.Summary.TotalCases != 7 {
			t.Errorf("expected rebuilt report, got %d cases", r.Summary.TotalCases)
		}
	})

	t.Run("Warm", func(t *testing.T) {
		warmDS := &domain.Dataset{ID: "ds-3", Cases: sampleCases()}
		proc.Warm(ctx, warmDS)
		if val, _ := lru.Get(ctx, "ds-3", Criteria{}.Key()); val == nil {
			t.Error("expected warmed entry in cache")
		}
	})
}

func TestProcessorWithoutCache(t *testing.T) {
	proc := NewProcessor(nil, 0, nil)
	r := proc.Process(context.Background(), &domain.Dataset{ID: "x"}, Criteria{})
	if !r.Empty() {
		t.Error("expected empty report")
	}
}
