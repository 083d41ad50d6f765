package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/opensource-finance/amlboard/internal/domain"
)

type staticSource struct {
	ds *domain.Dataset
}

func (s staticSource) Snapshot() *domain.Dataset { return s.ds }

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordClassification(domain.TypologyLayering)
	m.RecordClassification(domain.TypologyLayering)
	m.RecordReportBuild()
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)
	m.RecordDatasetLoad(nil)
	m.RecordDatasetLoad(errors.New("boom"))

	if got := testutil.ToFloat64(m.classifications.WithLabelValues("LAYERING")); got != 2 {
		t.Errorf("expected 2 LAYERING classifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.reportBuilds); got != 1 {
		t.Errorf("expected 1 report build, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.datasetLoads.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed load, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	// None of these may panic.
	m.RecordClassification(domain.TypologyLayering)
	m.RecordReportBuild()
	m.RecordCacheLookup(true)
	m.RecordDatasetLoad(nil)
	m.WatchDataset(staticSource{})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestDatasetCollector(t *testing.T) {
	m := New()
	m.WatchDataset(staticSource{ds: &domain.Dataset{
		Cases: []domain.Case{
			{Typology: domain.TypologyStructuring, SAR: true},
			{Typology: domain.TypologyStructuring, SAR: true},
			{Typology: domain.TypologyUnclassified, SAR: false},
		},
	}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`amlboard_cases{sar="true",typology="STRUCTURING"} 2`,
		`amlboard_cases{sar="false",typology="UNCLASSIFIED"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestDatasetCollectorEmpty(t *testing.T) {
	c := &DatasetCollector{source: staticSource{}}
	if n := testutil.CollectAndCount(c); n != 0 {
		t.Errorf("expected no metrics without a dataset, got %d", n)
	}
}
