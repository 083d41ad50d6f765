package report

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/metrics"
)

var tracer = otel.Tracer("amlboard-report")

// Processor builds reports for a dataset, caching the JSON form keyed by
// dataset ID and criteria.
type Processor struct {
	cache   domain.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewProcessor creates a processor. cache and m may be nil.
func NewProcessor(cache domain.Cache, ttl time.Duration, m *metrics.Metrics) *Processor {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Processor{cache: cache, ttl: ttl, metrics: m}
}

// Process returns the report for ds under criteria c.
// Cache failures are logged and never fail the request.
func (p *Processor) Process(ctx context.Context, ds *domain.Dataset, c Criteria) *Report {
	ctx, span := tracer.Start(ctx, "report.process",
		trace.WithAttributes(
			attribute.String("dataset.id", ds.ID),
			attribute.String("report.criteria", c.Key()),
		),
	)
	defer span.End()

	if r := p.lookup(ctx, ds.ID, c); r != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return r
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	r := Build(ds.Cases, c)
	r.DatasetID = ds.ID
	r.Source = ds.Source
	p.metrics.RecordReportBuild()
	span.SetAttributes(attribute.Int("report.cases", r.Summary.TotalCases))

	p.store(ctx, ds.ID, c, r)
	return r
}

// Warm builds and caches the unfiltered report for ds.
func (p *Processor) Warm(ctx context.Context, ds *domain.Dataset) {
	p.Process(ctx, ds, Criteria{})
}

func (p *Processor) lookup(ctx context.Context, datasetID string, c Criteria) *Report {
	if p.cache == nil {
		return nil
	}

	raw, err := p.cache.Get(ctx, datasetID, c.Key())
	if err != nil {
		slog.Warn("report cache get failed", "dataset_id", datasetID, "error", err)
		return nil
	}
	if raw == nil {
		p.metrics.RecordCacheLookup(false)
		return nil
	}

	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		slog.Warn("discarding corrupt cached report", "dataset_id", datasetID, "error", err)
		_ = p.cache.Delete(ctx, datasetID, c.Key())
		p.metrics.RecordCacheLookup(false)
		return nil
	}
	p.metrics.RecordCacheLookup(true)
	return &r
}

func (p *Processor) store(ctx context.Context, datasetID string, c Criteria, r *Report) {
	if p.cache == nil {
		return
	}

	raw, err := json.Marshal(r)
	if err != nil {
		slog.Warn("failed to encode report for cache", "error", err)
		return
	}
	if err := p.cache.Set(ctx, datasetID, c.Key(), raw, p.ttl); err != nil {
		slog.Warn("report cache set failed", "dataset_id", datasetID, "error", err)
	}
}
