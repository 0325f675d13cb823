// Package server exposes recommendations and pipeline triggers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/flavorscout/internal/store"
	"github.com/elonfeng/flavorscout/pkg/rank"
	"github.com/elonfeng/flavorscout/pkg/source"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server provides the HTTP API.
type Server struct {
	store   store.Store
	engine  *rank.Engine
	sources []source.Source
	port    int
}

// New creates a new HTTP server.
func New(s store.Store, engine *rank.Engine, sources []source.Source, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:   s,
		engine:  engine,
		sources: sources,
		port:    port,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/recommendations", s.handleRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/golden", s.handleGolden).Methods(http.MethodGet)
	api.HandleFunc("/recommendations/rejected", s.handleRejected).Methods(http.MethodGet)
	api.HandleFunc("/comments", s.handleComments).Methods(http.MethodGet)
	api.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	api.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	api.HandleFunc("/collect", s.handleCollect).Methods(http.MethodPost)
	api.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("flavorscout server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// latest loads the most recent report, writing the error response itself.
func (s *Server) latest(w http.ResponseWriter, r *http.Request, threshold float64) (*rank.Report, bool) {
	report, err := s.engine.LatestReport(r.Context(), threshold)
	if rank.IsNoRun(err) {
		writeError(w, http.StatusNotFound, "no analysis run yet")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return report, true
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w, r, -1)
	if !ok {
		return
	}

	data := report.Ranked
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(data) {
		data = data[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       report.RunID,
		"generated_at": report.GeneratedAt,
		"data":         data,
		"count":        len(data),
	})
}

func (s *Server) handleGolden(w http.ResponseWriter, r *http.Request) {
	report, ok := s.latest(w, r, -1)
	if !ok {
		return
	}
	if report.GoldenCandidate == nil {
		writeError(w, http.StatusNotFound, "no golden candidate")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": report.RunID,
		"data":   report.GoldenCandidate,
		"pitch":  report.Pitch,
	})
}

func (s *Server) handleRejected(w http.ResponseWriter, r *http.Request) {
	threshold := -1.0
	if v := r.URL.Query().Get("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 {
			writeError(w, http.StatusBadRequest, "threshold must be a non-negative number")
			return
		}
		threshold = t
	}

	report, ok := s.latest(w, r, threshold)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    report.RunID,
		"threshold": report.Threshold,
		"data":      report.Rejected,
		"count":     len(report.Rejected),
	})
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	opts := store.ListOpts{Limit: queryInt(r, "limit", 100)}
	if src := r.URL.Query().Get("source"); src != "" {
		opts.Source = source.SourceType(src)
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	comments, err := s.store.ListComments(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  comments,
		"count": len(comments),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountCommentsBySource(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type sourceInfo struct {
		Name     string `json:"name"`
		Enabled  bool   `json:"enabled"`
		Comments int    `json:"comments"`
	}

	enabled := make(map[source.SourceType]bool, len(s.sources))
	for _, src := range s.sources {
		enabled[src.Name()] = true
	}

	infos := []sourceInfo{}
	for _, st := range source.AllSourceTypes() {
		infos = append(infos, sourceInfo{
			Name:     string(st),
			Enabled:  enabled[st],
			Comments: counts[st],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.Collect(r.Context(), s.sources)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collected": stats})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.Analyze(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
