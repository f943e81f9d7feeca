package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rohankatakam/paperwalk/internal/analytics"
	"github.com/rohankatakam/paperwalk/internal/crawl"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/models"
	"github.com/rohankatakam/paperwalk/internal/s2"
	"github.com/rohankatakam/paperwalk/internal/storage"
)

// MaxExpandDepth bounds the depth a single request may ask for.
const MaxExpandDepth = 3

// Provider is the live metadata source behind the read endpoints.
type Provider interface {
	FetchPaper(ctx context.Context, paperID string) (*s2.RawPaper, error)
	FetchCitationPage(ctx context.Context, paperID string, offset, limit int) (*s2.Page, error)
	FetchReferencePage(ctx context.Context, paperID string, offset, limit int) (*s2.Page, error)
	PageSize() int
}

// Crawler runs the write operations.
type Crawler interface {
	Expand(ctx context.Context, seedID string, opts crawl.Options) (*crawl.Result, error)
	Ingest(ctx context.Context, paperID string) (*models.Paper, error)
	Search(ctx context.Context, query string, limit int) (*crawl.SearchResult, error)
}

// Ranker runs centrality analytics.
type Ranker interface {
	RunCentrality(ctx context.Context) (*analytics.CentralityResult, error)
	TopPapers(ctx context.Context, property string, limit int) ([]models.Paper, error)
}

// Handler serves the HTTP API. Ranker and Runs may be nil.
type Handler struct {
	provider Provider
	crawler  Crawler
	store    graph.Store
	ranker   Ranker
	runs     storage.RunStore
	logger   *slog.Logger
}

func NewHandler(provider Provider, crawler Crawler, store graph.Store, ranker Ranker, runs storage.RunStore, logger *slog.Logger) *Handler {
	return &Handler{
		provider: provider,
		crawler:  crawler,
		store:    store,
		ranker:   ranker,
		runs:     runs,
		logger:   logger,
	}
}

// Paper handlers

func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw, err := h.provider.FetchPaper(r.Context(), id)
	if err != nil {
		h.logger.Warn("paper fetch failed", "paper_id", id, "error", err)
		writeFailure(w, err)
		return
	}
	paper, err := s2.Normalize(raw)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (h *Handler) GetCitations(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, r, h.provider.FetchCitationPage)
}

func (h *Handler) GetReferences(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, r, h.provider.FetchReferencePage)
}

type pageFetch func(ctx context.Context, paperID string, offset, limit int) (*s2.Page, error)

// writePage passes one provider page through untouched.
func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, fetch pageFetch) {
	id := chi.URLParam(r, "id")
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	limit, err := intParam(r, "limit", h.provider.PageSize())
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	page, err := fetch(r.Context(), id, offset, limit)
	if err != nil {
		h.logger.Warn("page fetch failed", "paper_id", id, "offset", offset, "error", err)
		writeFailure(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(page.Raw)
}

func (h *Handler) ExpandPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	depth, err := intParam(r, "depth", 1)
	if err != nil || depth < 1 || depth > MaxExpandDepth {
		writeError(w, http.StatusBadRequest, "depth must be between 1 and "+strconv.Itoa(MaxExpandDepth))
		return
	}

	result, err := h.crawler.Expand(r.Context(), id, crawl.Options{Depth: depth, EnrichSeed: true})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expandResponse{
		Status:    "success",
		RunStatus: result.Status,
		Result:    result,
	})
}

// expandResponse flattens the run summary. Status is the request envelope;
// the run's own outcome (partial, cancelled) is RunStatus.
type expandResponse struct {
	Status    string           `json:"status"`
	RunStatus models.RunStatus `json:"runStatus"`
	*crawl.Result
}

type ingestRequest struct {
	ID string `json:"id"`
}

func (h *Handler) CreatePaper(w http.ResponseWriter, r *http.Request) {
	id, err := paperIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	paper, err := h.crawler.Ingest(r.Context(), id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paper)
}

// paperIDFromRequest accepts {"id": ...}, a form field, or a query parameter.
func paperIDFromRequest(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return strings.TrimSpace(req.ID), nil
	}
	return strings.TrimSpace(r.FormValue("id")), nil
}

func (h *Handler) SearchPapers(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	result, err := h.crawler.Search(r.Context(), query, limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Graph handlers

func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	if err := h.store.WipeAll(r.Context()); err != nil {
		writeFailure(w, err)
		return
	}
	h.logger.Info("graph cleaned via api")
	writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (h *Handler) GraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Analytics handlers

func (h *Handler) RunCentrality(w http.ResponseWriter, r *http.Request) {
	if h.ranker == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	result, err := h.ranker.RunCentrality(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) TopPapers(w http.ResponseWriter, r *http.Request) {
	if h.ranker == nil {
		writeError(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	limit, err := intParam(r, "limit", 10)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	papers, err := h.ranker.TopPapers(r.Context(), r.URL.Query().Get("by"), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, papers)
}

// Run history handlers

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if runs == nil {
		runs = []*models.ExpansionRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusNotFound, "run history disabled")
		return
	}
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
