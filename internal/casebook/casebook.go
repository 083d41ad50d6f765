// Package casebook holds the classified dataset the dashboard serves.
// Each load or reclassification produces a new immutable Dataset with a
// fresh ID; readers always see one complete snapshot.
package casebook

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/amlboard/internal/bus"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/ingest"
	"github.com/opensource-finance/amlboard/internal/metrics"
	"github.com/opensource-finance/amlboard/internal/report"
	"github.com/opensource-finance/amlboard/internal/rules"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("dataset not loaded")

// Source reads unclassified cases.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]domain.Case, error)
}

// FileSource reads cases from a CSV file.
type FileSource struct {
	Path string
}

// Name returns the file path.
func (s FileSource) Name() string { return s.Path }

// Read parses the file.
func (s FileSource) Read(ctx context.Context) ([]domain.Case, error) {
	return ingest.ReadFile(s.Path)
}

// Options are the optional collaborators of a Book. Nil fields disable
// the matching side effect.
type Options struct {
	Repository domain.Repository
	EventBus   domain.EventBus
	Metrics    *metrics.Metrics
}

// Book owns the current dataset.
type Book struct {
	mu      sync.RWMutex
	current *domain.Dataset
	raw     []domain.Case

	// loadMu serializes Load and Reclassify.
	loadMu sync.Mutex

	source Source
	engine *rules.Engine
	opts   Options
}

// New creates an empty book. Call Load before serving.
func New(source Source, engine *rules.Engine, opts Options) *Book {
	return &Book{source: source, engine: engine, opts: opts}
}

// Load reads the source, classifies every case and swaps in the new
// dataset. On error the previous dataset keeps being served.
func (b *Book) Load(ctx context.Context) (*domain.Dataset, error) {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	raw, err := b.source.Read(ctx)
	b.opts.Metrics.RecordDatasetLoad(err)
	if err != nil {
		slog.Error("dataset load failed", "source", b.source.Name(), "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return b.publish(ctx, raw), nil
}

// Reclassify runs the current rules over the last loaded cases without
// re-reading the source.
func (b *Book) Reclassify(ctx context.Context) (*domain.Dataset, error) {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	b.mu.RLock()
	raw := b.raw
	b.mu.RUnlock()

	if raw == nil {
		return nil, ErrNotLoaded
	}
	return b.publish(ctx, raw), nil
}

// publish classifies raw, swaps the snapshot and runs the side effects.
// Must be called with loadMu held.
func (b *Book) publish(ctx context.Context, raw []domain.Case) *domain.Dataset {
	cases := ingest.Classify(raw, b.engine)
	for _, cs := range cases {
		b.opts.Metrics.RecordClassification(cs.Typology)
	}

	ds := &domain.Dataset{
		ID:       uuid.New().String(),
		Source:   b.source.Name(),
		LoadedAt: time.Now().UTC(),
		Cases:    cases,
	}

	b.mu.Lock()
	b.current = ds
	b.raw = raw
	b.mu.Unlock()

	slog.Info("dataset loaded",
		"dataset_id", ds.ID,
		"source", ds.Source,
		"cases", len(ds.Cases),
		"rules", b.engine.RulesCount(),
	)

	if b.opts.Repository != nil {
		if err := b.opts.Repository.SaveDatasetLoad(ctx, domain.NewDatasetLoad(ds)); err != nil {
			slog.Warn("failed to record dataset load", "dataset_id", ds.ID, "error", err)
		}
	}

	if b.opts.EventBus != nil {
		event := domain.DatasetEvent{DatasetID: ds.ID, Source: ds.Source, CaseCount: len(ds.Cases)}
		if err := bus.PublishEvent(ctx, b.opts.EventBus, domain.TopicDatasetLoaded, event); err != nil {
			slog.Warn("failed to publish dataset event", "dataset_id", ds.ID, "error", err)
		}
	}

	return ds
}

// Snapshot returns the current dataset, or nil before the first load.
// The returned dataset and its cases must not be modified.
func (b *Book) Snapshot() *domain.Dataset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

// View returns a filtered copy of the current cases.
func (b *Book) View(c report.Criteria) ([]domain.Case, error) {
	ds := b.Snapshot()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return report.Filter(ds.Cases, c), nil
}

// Ready reports whether a dataset has been loaded.
func (b *Book) Ready() bool {
	return b.Snapshot() != nil
}

// Engine returns the classifier used for loads.
func (b *Book) Engine() *rules.Engine {
	return b.engine
}
