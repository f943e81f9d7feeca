package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires every endpoint. The graph viewer runs on another origin,
// so CORS is on for allowedOrigins.
func NewRouter(handler *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(handler.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", handler.Health)

	r.Route("/papers", func(r chi.Router) {
		r.Post("/", handler.CreatePaper)
		r.Get("/expand/{id}", handler.ExpandPaper)
		r.Get("/{id}", handler.GetPaper)
		r.Get("/{id}/citations", handler.GetCitations)
		r.Get("/{id}/references", handler.GetReferences)
	})

	r.Get("/search", handler.SearchPapers)
	r.Post("/clean", handler.Clean)
	r.Get("/graph/stats", handler.GraphStats)

	r.Route("/analytics", func(r chi.Router) {
		r.Post("/centrality", handler.RunCentrality)
		r.Get("/top", handler.TopPapers)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", handler.ListRuns)
		r.Get("/{id}", handler.GetRun)
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", chimiddleware.GetReqID(r.Context()))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
