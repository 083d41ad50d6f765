// Package worker reacts to dataset and rule events from the EventBus.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/amlboard/internal/bus"
	"github.com/opensource-finance/amlboard/internal/casebook"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/report"
	"github.com/opensource-finance/amlboard/internal/rules"
)

// RuleLoader fetches the current rule set, typically rules.FromSource.
type RuleLoader func(ctx context.Context) ([]*domain.ClassificationRule, error)

// Worker warms the report cache when a dataset is loaded and
// reclassifies the case book when rules are reloaded.
type Worker struct {
	bus       domain.EventBus
	book      *casebook.Book
	engine    *rules.Engine
	processor *report.Processor
	loadRules RuleLoader

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a worker. loadRules may be nil, in which case a rules
// event only reclassifies with the rules already in engine.
func NewWorker(b domain.EventBus, book *casebook.Book, engine *rules.Engine, processor *report.Processor, loadRules RuleLoader) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       b,
		book:      book,
		engine:    engine,
		processor: processor,
		loadRules: loadRules,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the dataset and rules topics.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	handlers := map[string]domain.MessageHandler{
		domain.TopicDatasetLoaded: w.handleDatasetLoaded,
		domain.TopicRulesReloaded: w.handleRulesReloaded,
	}
	for _, topic := range []string{domain.TopicDatasetLoaded, domain.TopicRulesReloaded} {
		sub, err := w.bus.Subscribe(w.ctx, topic, handlers[topic])
		if err != nil {
			w.unsubscribeLocked()
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("worker started", "topics", len(w.subscriptions))
	return nil
}

// handleDatasetLoaded builds and caches the unfiltered report. Events for
// a dataset that has already been replaced are skipped.
func (w *Worker) handleDatasetLoaded(ctx context.Context, msg *domain.Message) error {
	var event domain.DatasetEvent
	if err := bus.DecodeEvent(msg, &event); err != nil {
		slog.Error("failed to parse dataset event", "message_id", msg.ID, "error", err)
		return err
	}

	ds := w.book.Snapshot()
	if ds == nil || ds.ID != event.DatasetID {
		slog.Debug("skipping stale dataset event", "dataset_id", event.DatasetID)
		return nil
	}

	start := time.Now()
	w.processor.Warm(ctx, ds)

	slog.Info("report cache warmed",
		"dataset_id", ds.ID,
		"cases", len(ds.Cases),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// handleRulesReloaded refreshes the engine from the rule source and
// reclassifies the loaded cases.
func (w *Worker) handleRulesReloaded(ctx context.Context, msg *domain.Message) error {
	var event domain.RulesEvent
	if err := bus.DecodeEvent(msg, &event); err != nil {
		slog.Error("failed to parse rules event", "message_id", msg.ID, "error", err)
		return err
	}

	if w.loadRules != nil {
		configs, err := w.loadRules(ctx)
		if err != nil {
			slog.Error("failed to load rules", "source", event.Source, "error", err)
			return err
		}
		if err := w.engine.ReloadRules(configs); err != nil {
			slog.Error("failed to reload rules", "source", event.Source, "error", err)
			return err
		}
	}

	ds, err := w.book.Reclassify(ctx)
	if errors.Is(err, casebook.ErrNotLoaded) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("cases reclassified",
		"dataset_id", ds.ID,
		"rules", w.engine.RulesCount(),
		"source", event.Source,
	)
	return nil
}

// Stop cancels in-flight work and unsubscribes.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	w.unsubscribeLocked()
	w.mu.Unlock()

	slog.Info("worker stopped")
	return nil
}

func (w *Worker) unsubscribeLocked() {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
