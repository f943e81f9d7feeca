package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/paperwalk/internal/analytics"
	"github.com/rohankatakam/paperwalk/internal/config"
	"github.com/rohankatakam/paperwalk/internal/crawl"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/models"
	"github.com/rohankatakam/paperwalk/internal/s2"
	"github.com/rohankatakam/paperwalk/internal/storage"
)

// providerStub mimics the Graph API for a three paper graph:
// P2 cites P1, P1 cites P3.
func providerStub() http.Handler {
	papers := map[string]string{
		"P1": `{"paperId":"P1","title":"Seed","authors":[{"authorId":"a1","name":"Ada"},{"authorId":"a2","name":"Bob"}],"citationCount":1,"referenceCount":1,"externalIds":{"ArXiv":"1706.03762"},"year":2017}`,
		"P2": `{"paperId":"P2","title":"Citing"}`,
		"P3": `{"paperId":"P3","title":"Cited"}`,
	}
	citations := map[string]string{"P1": papers["P2"]}
	references := map[string]string{"P1": papers["P3"]}

	listing := func(w http.ResponseWriter, r *http.Request, items map[string]string, field string) {
		offset := r.URL.Query().Get("offset")
		item, ok := items[r.PathValue("id")]
		if !ok || offset != "0" {
			fmt.Fprintf(w, `{"offset":%s,"data":[]}`, offset)
			return
		}
		fmt.Fprintf(w, `{"offset":0,"data":[{%q:%s}]}`, field, item)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /paper/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"total":2,"offset":0,"data":[%s,%s]}`, papers["P2"], papers["P3"])
	})
	mux.HandleFunc("GET /paper/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := papers[r.PathValue("id")]
		if !ok {
			http.Error(w, `{"error":"Paper not found"}`, http.StatusNotFound)
			return
		}
		io.WriteString(w, body)
	})
	mux.HandleFunc("GET /paper/{id}/citations", func(w http.ResponseWriter, r *http.Request) {
		listing(w, r, citations, "citingPaper")
	})
	mux.HandleFunc("GET /paper/{id}/references", func(w http.ResponseWriter, r *http.Request) {
		listing(w, r, references, "citedPaper")
	})
	return mux
}

type fakeRanker struct {
	err    error
	papers []models.Paper
}

func (f *fakeRanker) RunCentrality(context.Context) (*analytics.CentralityResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &analytics.CentralityResult{PropertiesWritten: 6}, nil
}

func (f *fakeRanker) TopPapers(_ context.Context, property string, limit int) ([]models.Paper, error) {
	return f.papers, nil
}

type testEnv struct {
	server *httptest.Server
	store  *graph.MemoryStore
	runs   storage.RunStore
}

func newTestEnv(t *testing.T, ranker Ranker) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(providerStub())
	t.Cleanup(upstream.Close)

	client := s2.NewClient(
		s2.WithBaseURL(upstream.URL),
		s2.WithRateLimit(1000, 1000),
		s2.WithRetry(1, time.Millisecond),
		s2.WithPageSize(10),
	)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	runs, err := storage.NewSQLiteStore(":memory:", quiet)
	require.NoError(t, err)
	t.Cleanup(func() { runs.Close() })

	store := graph.NewMemoryStore()
	orch := crawl.NewOrchestrator(client, store, runs, quiet, 2)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewHandler(client, orch, store, ranker, runs, logger)
	srv := httptest.NewServer(NewRouter(handler, []string{"*"}))
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: store, runs: runs}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestGetPaper(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/papers/P1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var paper models.Paper
	require.NoError(t, json.Unmarshal(body, &paper))
	assert.Equal(t, "Seed", paper.Title)
	assert.Equal(t, "Ada", paper.FirstAuthor)
	assert.Equal(t, "Bob", paper.LastAuthor)
	assert.Equal(t, "1706.03762", paper.ArXivID)

	resp, _ = env.do(t, http.MethodGet, "/papers/NOPE", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCitationPassThrough(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/papers/P1/citations", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"offset":0,"data":[{"citingPaper":{"paperId":"P2","title":"Citing"}}]}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/papers/P1/references", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"citedPaper"`)

	resp, _ = env.do(t, http.MethodGet, "/papers/P1/citations?offset=-1", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExpandEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/papers/expand/P1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result expandBody
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, models.RunStatusSuccess, result.RunStatus)
	assert.Equal(t, 2, result.EdgesWritten)
	assert.Equal(t, 3, result.PapersWritten)

	assert.Equal(t, []models.Edge{
		{Source: "P1", Target: "P3"},
		{Source: "P2", Target: "P1"},
	}, env.store.Edges())

	seed, err := env.store.GetPaper(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, 2017, seed.Year)

	// the run is in the history
	resp, body = env.do(t, http.MethodGet, "/runs/"+result.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"seedId":"P1"`)

	resp, _ = env.do(t, http.MethodGet, "/papers/expand/P1?depth=9", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// expandBody mirrors the expand response: the envelope status plus the
// run fields.
type expandBody struct {
	Status        string           `json:"status"`
	RunStatus     models.RunStatus `json:"runStatus"`
	ID            string           `json:"runId"`
	EdgesWritten  int              `json:"edgesWritten"`
	PapersWritten int              `json:"papersWritten"`
	FetchFailures int              `json:"fetchFailures"`
}

func TestExpandPartialRunKeepsSuccessEnvelope(t *testing.T) {
	env := newTestEnv(t, nil)

	// the upstream has no P9, so enriching the seed fails
	resp, body := env.do(t, http.MethodGet, "/papers/expand/P9", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result expandBody
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, models.RunStatusPartial, result.RunStatus)
	assert.Equal(t, 1, result.FetchFailures)
	assert.NotEmpty(t, result.ID)
}

func TestCreatePaper(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodPost, "/papers", strings.NewReader(`{"id":"P3"}`), "application/json")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/papers", strings.NewReader("id=P2"), "application/x-www-form-urlencoded")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	stats, err := env.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Papers)

	resp, _ = env.do(t, http.MethodPost, "/papers", strings.NewReader(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/papers", strings.NewReader(`{"id":"MISSING"}`), "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/search?query=transformers", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result crawl.SearchResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result.Papers, 2)
	assert.Equal(t, 2, result.Stored.Succeeded)

	resp, _ = env.do(t, http.MethodGet, "/search", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCleanAndStats(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/papers/expand/P1", nil, "")

	resp, body := env.do(t, http.MethodGet, "/graph/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"papers":3,"stubs":0,"edges":2,"ranked":0}`, string(body))

	resp, body = env.do(t, http.MethodPost, "/clean", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"success"}`, string(body))

	_, body = env.do(t, http.MethodGet, "/graph/stats", nil, "")
	assert.JSONEq(t, `{"papers":0,"stubs":0,"edges":0,"ranked":0}`, string(body))
}

func TestAnalyticsEndpoints(t *testing.T) {
	score := 0.4
	ranker := &fakeRanker{papers: []models.Paper{{PaperID: "P1", PageRank: &score}}}
	env := newTestEnv(t, ranker)

	resp, body := env.do(t, http.MethodPost, "/analytics/centrality", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"propertiesWritten":6`)

	resp, body = env.do(t, http.MethodGet, "/analytics/top?by=pagerank&limit=5", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"pagerank":0.4`)

	ranker.err = analytics.ErrEmptyProjection
	resp, _ = env.do(t, http.MethodPost, "/analytics/centrality", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAnalyticsNotConfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, _ := env.do(t, http.MethodPost, "/analytics/centrality", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRunsAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/runs", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, _ = env.do(t, http.MethodGet, "/runs/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/clean", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServerShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(configForTest(), http.NotFoundHandler(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func configForTest() config.ServerConfig {
	return config.ServerConfig{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second}
}
