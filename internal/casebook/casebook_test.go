package casebook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/amlboard/internal/bus"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/ingest"
	"github.com/opensource-finance/amlboard/internal/report"
	"github.com/opensource-finance/amlboard/internal/repository"
	"github.com/opensource-finance/amlboard/internal/rules"
)

const caseFile = "Scenario,Level,Overall Score,SAR\n" +
	"Structuring below reporting threshold,High,90,True\n" +
	"Cryptocurrency mixer withdrawals,Medium,55,False\n" +
	"Routine salary payments,Low,10,False\n"

// staticSource serves a fixed case list.
type staticSource struct {
	cases []domain.Case
	err   error
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Read(ctx context.Context) ([]domain.Case, error) {
	return s.cases, s.err
}

func writeCaseFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.csv")
	if err := os.WriteFile(path, []byte(caseFile), 0o600); err != nil {
		t.Fatalf("failed to write case file: %v", err)
	}
	return path
}

func newEngine(t *testing.T) *rules.Engine {
	t.Helper()
	engine, err := rules.NewDefaultEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	book := New(FileSource{Path: writeCaseFile(t)}, newEngine(t), Options{})

	if book.Ready() {
		t.Fatal("expected book not ready before load")
	}
	if _, err := book.View(report.Criteria{}); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	ds, err := book.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !book.Ready() || book.Snapshot() != ds {
		t.Fatal("expected loaded dataset to be the snapshot")
	}
	if ds.ID == "" {
		t.Error("expected dataset ID")
	}
	if len(ds.Cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(ds.Cases))
	}

	want := []domain.Typology{domain.TypologyStructuring, domain.TypologyLayering, domain.TypologyUnclassified}
	for i, cs := range ds.Cases {
		if cs.Typology != want[i] {
			t.Errorf("case %d: expected %s, got %s", i, want[i], cs.Typology)
		}
		if cs.Rationale == "" {
			t.Errorf("case %d: expected rationale", i)
		}
	}

	view, err := book.View(report.Criteria{Typology: domain.TypologyLayering})
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if len(view) != 1 || view[0].Level != "Medium" {
		t.Errorf("unexpected view: %+v", view)
	}
}

func TestLoadFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{cases: []domain.Case{{Row: 1, Scenario: "structuring", Level: "High"}}}
	book := New(src, newEngine(t), Options{})

	first, err := book.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	src.err = ingest.ErrMalformedInput
	if _, err := book.Load(ctx); !errors.Is(err, ingest.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if book.Snapshot() != first {
		t.Error("expected previous snapshot to survive a failed load")
	}
}

func TestMissingFile(t *testing.T) {
	book := New(FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, newEngine(t), Options{})
	if _, err := book.Load(context.Background()); !errors.Is(err, ingest.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestReclassify(t *testing.T) {
	ctx := context.Background()
	engine := newEngine(t)
	src := &staticSource{cases: []domain.Case{
		{Row: 1, Scenario: "Funds moved through shell company", Level: "High", SAR: true},
	}}
	book := New(src, engine, Options{})

	if _, err := book.Reclassify(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected ErrNotLoaded before load, got %v", err)
	}

	first, err := book.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first.Cases[0].Typology != domain.TypologyUnclassified {
		t.Fatalf("expected UNCLASSIFIED with default rules, got %s", first.Cases[0].Typology)
	}

	shell := &domain.ClassificationRule{
		ID:       "shell-001",
		Typology: domain.TypologyLayering,
		Keywords: []string{"shell company"},
		Enabled:  true,
	}
	if err := engine.ReloadRules(append(rules.DefaultRules(), shell)); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}

	second, err := book.Reclassify(ctx)
	if err != nil {
		t.Fatalf("Reclassify failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new dataset ID after reclassify")
	}
	if second.Cases[0].Typology != domain.TypologyLayering {
		t.Errorf("expected LAYERING after reclassify, got %s", second.Cases[0].Typology)
	}
	if first.Cases[0].Typology != domain.TypologyUnclassified {
		t.Error("expected previous snapshot to be unchanged")
	}
}

func TestSideEffects(t *testing.T) {
	ctx := context.Background()

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	defer repo.Close()

	eventBus := bus.NewChannelBus(10)
	defer eventBus.Close()

	var mu sync.Mutex
	var events []domain.DatasetEvent
	_, err = eventBus.Subscribe(ctx, domain.TopicDatasetLoaded, func(ctx context.Context, msg *domain.Message) error {
		var e domain.DatasetEvent
		if err := bus.DecodeEvent(msg, &e); err != nil {
			return err
		}
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	book := New(FileSource{Path: writeCaseFile(t)}, newEngine(t), Options{
		Repository: repo,
		EventBus:   eventBus,
	})
	ds, err := book.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	loads, err := repo.ListDatasetLoads(ctx, 10)
	if err != nil {
		t.Fatalf("ListDatasetLoads failed: %v", err)
	}
	if len(loads) != 1 || loads[0].ID != ds.ID || loads[0].RowCount != 3 || loads[0].SARCount != 1 {
		t.Errorf("unexpected load history: %+v", loads)
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected 1 dataset event, got %d", len(events))
	}
	if events[0].DatasetID != ds.ID || events[0].CaseCount != 3 {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestConcurrentReads(t *testing.T) {
	ctx := context.Background()
	book := New(FileSource{Path: writeCaseFile(t)}, newEngine(t), Options{})
	if _, err := book.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if ds := book.Snapshot(); ds == nil || len(ds.Cases) != 3 {
					t.Error("expected a complete snapshot")
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if _, err := book.Reclassify(ctx); err != nil {
			t.Errorf("Reclassify failed: %v", err)
		}
	}
	wg.Wait()
}
