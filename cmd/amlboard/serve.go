package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/amlboard/internal/api"
	"github.com/opensource-finance/amlboard/internal/bus"
	"github.com/opensource-finance/amlboard/internal/cache"
	"github.com/opensource-finance/amlboard/internal/casebook"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/metrics"
	"github.com/opensource-finance/amlboard/internal/render"
	"github.com/opensource-finance/amlboard/internal/report"
	"github.com/opensource-finance/amlboard/internal/repository"
	"github.com/opensource-finance/amlboard/internal/rules"
	"github.com/opensource-finance/amlboard/internal/worker"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and JSON API",
		Long: `Load the case file, classify every case and serve the HTML dashboard,
the JSON API and Prometheus metrics until interrupted.

Examples:
  amlboard serve --csv aml_report.csv
  amlboard serve --port 9090 --rules-source file --rules-file rules.yaml
  AMLBOARD_PROFILE=cluster amlboard serve`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "listen host (default from config)")
	cmd.Flags().Int("port", 0, "listen port (default from config)")
	addDataFlags(cmd)

	return cmd
}

// addDataFlags registers the flags shared by every command that reads
// cases or classifies them.
func addDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv", "", "case assessment CSV (default from config)")
	cmd.Flags().String("rules-source", "", "rule source: builtin, file or repository")
	cmd.Flags().String("rules-file", "", "YAML rules file for --rules-source file")
}

// applyFlags overlays explicitly set command flags onto cfg.
func applyFlags(cmd *cobra.Command, cfg *domain.Config) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("csv") {
		cfg.Data.CSVPath, _ = flags.GetString("csv")
	}
	if flags.Changed("rules-source") {
		cfg.Rules.Source, _ = flags.GetString("rules-source")
	}
	if flags.Changed("rules-file") {
		cfg.Rules.File, _ = flags.GetString("rules-file")
		if !flags.Changed("rules-source") {
			cfg.Rules.Source = domain.RuleSourceFile
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	slog.Info("starting amlboard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"csv", cfg.Data.CSVPath,
		"rules", cfg.Rules.Source,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	shutdownTracing, err := setupTracing(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	loadRules := func(ctx context.Context) ([]*domain.ClassificationRule, error) {
		return rules.FromSource(ctx, cfg.Rules, repo)
	}
	engine, err := rules.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	configs, err := loadRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	if err := engine.LoadRules(configs); err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	slog.Info("rule engine initialized", "source", cfg.Rules.Source, "rules_count", engine.RulesCount())

	m := metrics.New()
	book := casebook.New(casebook.FileSource{Path: cfg.Data.CSVPath}, engine, casebook.Options{
		Repository: repo,
		EventBus:   busImpl,
		Metrics:    m,
	})
	m.WatchDataset(book)
	processor := report.NewProcessor(cacheImpl, cfg.Cache.ReportTTL, m)

	// The worker subscribes before the first load so it sees that event.
	w := worker.NewWorker(busImpl, book, engine, processor, loadRules)
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	// A bad case file leaves the server up but not ready; fix the file and
	// POST /api/dataset/reload.
	if _, err := book.Load(ctx); err != nil {
		slog.Error("failed to load dataset", "path", cfg.Data.CSVPath, "error", err)
	}

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		return fmt.Errorf("failed to initialize renderer: %w", err)
	}

	srv := api.NewServer(cfg.Server, api.Dependencies{
		Book:        book,
		Engine:      engine,
		Processor:   processor,
		Renderer:    renderer,
		Repository:  repo,
		Cache:       cacheImpl,
		EventBus:    busImpl,
		Metrics:     m,
		RulesConfig: cfg.Rules,
		Version:     Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	slog.Info("amlboard is ready", "host", cfg.Server.Host, "port", cfg.Server.Port)
	printBanner(cmd.OutOrStdout(), cfg)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		slog.Error("server failed", "error", serveErr)
	}
	slog.Info("shutting down...")

	if err := w.Stop(); err != nil {
		slog.Error("failed to stop worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("amlboard shutdown complete")
	return serveErr
}

func printBanner(out io.Writer, cfg *domain.Config) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  ╔═══════════════════════════════════════════╗")
	fmt.Fprintln(out, "  ║            🛡️  AMLBOARD                    ║")
	fmt.Fprintln(out, "  ║      AML Typology Case Dashboard          ║")
	fmt.Fprintln(out, "  ╚═══════════════════════════════════════════╝")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Version:  %s\n", Version)
	fmt.Fprintf(out, "  Cases:    %s\n", cfg.Data.CSVPath)
	fmt.Fprintf(out, "  Rules:    %s\n", cfg.Rules.Source)
	fmt.Fprintf(out, "  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Endpoints:")
	fmt.Fprintln(out, "    GET    /                    - HTML dashboard (?risk=&typology=&sar=)")
	fmt.Fprintln(out, "    GET    /api/report          - Filtered report")
	fmt.Fprintln(out, "    GET    /api/cases           - Filtered cases")
	fmt.Fprintln(out, "    POST   /api/classify        - Classify a scenario")
	fmt.Fprintln(out, "    GET    /api/rules           - List loaded rules")
	fmt.Fprintln(out, "    POST   /api/rules/reload    - Hot-reload rules and reclassify")
	fmt.Fprintln(out, "    POST   /api/dataset/reload  - Re-read the case file")
	fmt.Fprintln(out, "    GET    /metrics             - Prometheus metrics")
	fmt.Fprintln(out, "    GET    /health              - Health check")
	fmt.Fprintln(out)
}
