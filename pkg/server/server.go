package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/elonfeng/creatorboard/internal/metrics"
	"github.com/elonfeng/creatorboard/internal/store"
	"github.com/elonfeng/creatorboard/pkg/media"
	"github.com/elonfeng/creatorboard/pkg/score"
	"github.com/elonfeng/creatorboard/pkg/source"
)

const maxBodyBytes = 4 << 20

// TweetLookup resolves tweet ids into creators. *source.XAPI implements it.
type TweetLookup interface {
	LookupTweets(ctx context.Context, ids []string) (*source.Lookup, error)
}

// Collector runs one collection pass. *scheduler.Scheduler implements it.
type Collector interface {
	Collect(ctx context.Context) (map[source.SourceType]int, error)
}

// Deps are the collaborators behind the API. Analyzer, Lookup and
// Collector are optional.
type Deps struct {
	Store     store.Store
	Engine    *score.Engine
	Analyzer  *media.Analyzer
	Lookup    TweetLookup
	Collector Collector
	Log       *logrus.Logger
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	engine    *score.Engine
	analyzer  *media.Analyzer
	lookup    TweetLookup
	collector Collector
	port      int
	log       *logrus.Logger
}

// New creates a new HTTP server.
func New(deps Deps, port int) *Server {
	if port == 0 {
		port = 8080
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &Server{
		store:     deps.Store,
		engine:    deps.Engine,
		analyzer:  deps.Analyzer,
		lookup:    deps.Lookup,
		collector: deps.Collector,
		port:      port,
		log:       deps.Log,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/api/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/score", s.handleScore)
	mux.HandleFunc("/api/v1/analyze-links", s.handleAnalyzeLinks)
	mux.HandleFunc("/api/v1/creators", s.handleCreators)
	mux.HandleFunc("/api/v1/creators/", s.handleCreator)
	mux.HandleFunc("/api/v1/collect", s.handleCollect)
	return mux
}

// ListenAndServe serves the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", srv.Addr).Info("creatorboard server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()

	if live, _ := strconv.ParseBool(r.URL.Query().Get("live")); live {
		creators, err := s.store.ListCreators(ctx, store.ListOpts{})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		start := time.Now()
		lb, err := s.engine.BuildLeaderboard(ctx, creators)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		metrics.ObserveScoring(start, len(creators))
		writeJSON(w, http.StatusOK, map[string]any{"data": lb, "live": true})
		return
	}

	run, lb, err := s.store.LatestLeaderboard(ctx)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no leaderboard yet")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": lb, "run": run})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	creators, err := source.DecodeCreators(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid creators: %v", err))
		return
	}

	ctx := r.Context()
	if s.analyzer != nil {
		s.analyzer.Annotate(ctx, creators)
	}

	start := time.Now()
	lb, err := s.engine.BuildLeaderboard(ctx, creators)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ObserveScoring(start, len(creators))

	writeJSON(w, http.StatusOK, lb)
}

func (s *Server) handleCreators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	opts := store.ListOpts{Limit: 100}
	if src := r.URL.Query().Get("source"); src != "" {
		opts.Source = source.SourceType(src)
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}

	creators, err := s.store.ListCreators(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  creators,
		"count": len(creators),
	})
}

// handleCreator scores one stored creator and explains each post.
func (s *Server) handleCreator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/creators/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	c, err := s.store.GetCreator(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "creator not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"creator": c,
		"score":   s.engine.ScoreCreator(*c),
		"tweets":  s.engine.ExplainPosts(*c),
	})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "collection is not configured")
		return
	}

	counts, err := s.collector.Collect(r.Context())
	resp := map[string]any{"collected": counts}
	if err != nil {
		resp["errors"] = strings.Split(err.Error(), "\n")
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
