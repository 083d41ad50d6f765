package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/amlboard/internal/bus"
	"github.com/opensource-finance/amlboard/internal/casebook"
	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/ingest"
	"github.com/opensource-finance/amlboard/internal/metrics"
	"github.com/opensource-finance/amlboard/internal/render"
	"github.com/opensource-finance/amlboard/internal/report"
	"github.com/opensource-finance/amlboard/internal/repository"
	"github.com/opensource-finance/amlboard/internal/rules"
)

// Dependencies are the collaborators the API serves from.
// Repository, Cache, EventBus and Metrics may be nil.
type Dependencies struct {
	Book        *casebook.Book
	Engine      *rules.Engine
	Processor   *report.Processor
	Renderer    *render.HTMLRenderer
	Repository  domain.Repository
	Cache       domain.Cache
	EventBus    domain.EventBus
	Metrics     *metrics.Metrics
	RulesConfig domain.RulesConfig
	Version     string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	book      *casebook.Book
	engine    *rules.Engine
	processor *report.Processor
	renderer  *render.HTMLRenderer
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	metrics   *metrics.Metrics
	rulesCfg  domain.RulesConfig
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		book:      deps.Book,
		engine:    deps.Engine,
		processor: deps.Processor,
		renderer:  deps.Renderer,
		repo:      deps.Repository,
		cache:     deps.Cache,
		bus:       deps.EventBus,
		metrics:   deps.Metrics,
		rulesCfg:  deps.RulesConfig,
		version:   deps.Version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready reports ready once a dataset has been loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ds := h.book.Snapshot()
	if ds == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready":     "true",
		"datasetId": ds.ID,
	})
}

// Dashboard renders the HTML dashboard for the filters in the query string.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ds := h.book.Snapshot()
	if ds == nil {
		http.Error(w, "dataset not loaded", http.StatusServiceUnavailable)
		return
	}

	rep := h.processor.Process(r.Context(), ds, c)

	var buf bytes.Buffer
	err = h.renderer.Render(&buf, render.Page{
		Report:  rep,
		Options: report.FilterOptions(ds.Cases),
	})
	if err != nil {
		slog.Error("failed to render dashboard", "error", err, "trace_id", GetTraceID(r.Context()))
		http.Error(w, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Report returns the full report for the filters in the query string.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ds := h.book.Snapshot()
	if ds == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dataset not loaded"})
		return
	}

	writeJSON(w, http.StatusOK, h.processor.Process(r.Context(), ds, c))
}

// Cases returns the filtered case records.
func (h *Handler) Cases(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ds := h.book.Snapshot()
	if ds == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dataset not loaded"})
		return
	}

	cases := report.Filter(ds.Cases, c)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": ds.ID,
		"criteria":  c,
		"count":     len(cases),
		"cases":     cases,
	})
}

// Options returns the values each filter control offers.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	ds := h.book.Snapshot()
	if ds == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dataset not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, report.FilterOptions(ds.Cases))
}

// Typologies returns the static typology reference table.
func (h *Handler) Typologies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"typologies": domain.ReferenceTable(),
	})
}

// ClassifyRequest is the request body for POST /api/classify.
type ClassifyRequest struct {
	Scenario string `json:"scenario"`
}

// Classify classifies a single scenario with the loaded rules.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result := h.engine.ClassifyDetail(req.Scenario)
	h.metrics.RecordClassification(result.Typology)

	writeJSON(w, http.StatusOK, result)
}

// ListRules returns the rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loaded,
		"count":  len(loaded),
		"source": h.ruleSource(),
	})
}

// GetRule returns a loaded rule, falling back to the repository so disabled
// rules can be inspected too.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	if h.repo != nil {
		rule, err := h.repo.GetRule(r.Context(), ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get rule", "id", ruleID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to get rule",
			})
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for POST /api/rules.
type CreateRuleRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Typology    string   `json:"typology"`
	Keywords    []string `json:"keywords,omitempty"`
	Expression  string   `json:"expression,omitempty"`
	Priority    int      `json:"priority"`
	Enabled     *bool    `json:"enabled,omitempty"`
}

// CreateRule validates a rule and stores it. Stored rules take effect on
// the next POST /api/rules/reload.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	if !h.rulesEditable(w) {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Typology == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and typology are required",
		})
		return
	}

	typology, err := domain.ParseTypology(req.Typology)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	rule := &domain.ClassificationRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Typology:    typology,
		Keywords:    req.Keywords,
		Expression:  req.Expression,
		Priority:    req.Priority,
		Enabled:     req.Enabled == nil || *req.Enabled,
	}

	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.SaveRule(r.Context(), rule); err != nil {
		slog.Error("failed to save rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule saved", "id", rule.ID, "typology", rule.Typology)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule saved. Call POST /api/rules/reload to apply changes.",
	})
}

// DeleteRule soft-deletes a stored rule.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !h.rulesEditable(w) {
		return
	}

	ruleID := chi.URLParam(r, "id")
	err := h.repo.DeleteRule(r.Context(), ruleID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}
	if err != nil {
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": ruleID,
		"message": "Rule deleted. Call POST /api/rules/reload to apply changes.",
	})
}

// ReloadRules reloads the rule source into the engine and announces the
// change so the case book is reclassified.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	configs, err := rules.FromSource(ctx, h.rulesCfg, h.repo)
	if err != nil {
		slog.Error("failed to load rules", "source", h.ruleSource(), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules: " + err.Error(),
		})
		return
	}

	if err := h.engine.ReloadRules(configs); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, rules.ErrInvalidRule) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	event := domain.RulesEvent{RuleCount: h.engine.RulesCount(), Source: h.ruleSource()}
	if h.bus != nil {
		if err := bus.PublishEvent(ctx, h.bus, domain.TopicRulesReloaded, event); err != nil {
			slog.Error("failed to publish rules event", "error", err)
		}
	} else if _, err := h.book.Reclassify(ctx); err != nil && !errors.Is(err, casebook.ErrNotLoaded) {
		slog.Error("failed to reclassify cases", "error", err)
	}

	slog.Info("rules reloaded", "source", event.Source, "count", event.RuleCount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   event.RuleCount,
		"source":  event.Source,
	})
}

// ReloadDataset re-reads the case file.
func (h *Handler) ReloadDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.book.Load(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrMalformedInput) {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"datasetId": ds.ID,
		"source":    ds.Source,
		"cases":     len(ds.Cases),
		"loadedAt":  ds.LoadedAt,
	})
}

// ListDatasetLoads returns the load history, newest first.
func (h *Handler) ListDatasetLoads(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	loads, err := h.repo.ListDatasetLoads(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list dataset loads", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list dataset loads",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loads": loads,
		"count": len(loads),
	})
}

// rulesEditable writes an error and returns false unless rules are
// managed through the repository.
func (h *Handler) rulesEditable(w http.ResponseWriter) bool {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return false
	}
	if h.rulesCfg.Source != domain.RuleSourceRepository {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "rules are loaded from " + h.ruleSource() + "; set rules.source to repository to edit them",
		})
		return false
	}
	return true
}

func (h *Handler) ruleSource() string {
	if h.rulesCfg.Source == "" {
		return domain.RuleSourceBuiltin
	}
	return h.rulesCfg.Source
}

// criteriaFromQuery reads the risk, typology and sar filters.
func criteriaFromQuery(r *http.Request) (report.Criteria, error) {
	q := r.URL.Query()
	return report.ParseCriteria(q.Get("risk"), q.Get("typology"), q.Get("sar"))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
