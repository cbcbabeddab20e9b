package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"newsbrief/internal/model"
	"newsbrief/internal/pipeline"
	"newsbrief/internal/queue"
	"newsbrief/internal/store"
)

const maxListLimit = 100

// Reader is the read side of the record store.
type Reader interface {
	Get(ctx context.Context, sourceURL string) (*model.Article, error)
	Filter(ctx context.Context, f store.Filter) ([]model.Article, error)
}

// StatsSource produces the statistics report.
type StatsSource interface {
	Stats(ctx context.Context) (pipeline.Stats, error)
}

// Server exposes trigger endpoints that enqueue tasks, plus read-only
// lookups of records and statistics.
type Server struct {
	queue  pipeline.Enqueuer
	store  Reader
	stats  StatsSource
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

func NewServer(q pipeline.Enqueuer, st Reader, stats StatsSource, logger *zap.Logger) *Server {
	s := &Server{
		queue:  q,
		store:  st,
		stats:  stats,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	tasks := s.router.PathPrefix("/tasks").Subrouter()
	tasks.HandleFunc("/discover", s.trigger(queue.TaskDiscoverSites)).Methods(http.MethodPost)
	tasks.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)
	tasks.HandleFunc("/retry", s.trigger(queue.TaskRetryFailed)).Methods(http.MethodPost)
	tasks.HandleFunc("/cleanup", s.trigger(queue.TaskCleanupFailed)).Methods(http.MethodPost)

	s.router.HandleFunc("/articles", s.handleArticles).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type taskResponse struct {
	TaskID string `json:"task_id"`
	Task   string `json:"task"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) trigger(task string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.enqueue(w, r, task, nil)
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	rawURL := r.FormValue("url")
	if rawURL == "" && r.Header.Get("Content-Type") == "application/json" {
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		rawURL = body.URL
	}
	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}
	if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url must be an absolute http(s) URL"})
		return
	}

	s.enqueue(w, r, queue.TaskProcessURL, map[string]string{queue.ArgURL: rawURL})
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, task string, args map[string]string) {
	h, err := s.queue.Enqueue(r.Context(), task, args)
	if err != nil {
		s.logger.Error("Failed to queue task", zap.String("task", task), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to queue task"})
		return
	}
	s.logger.Info("Task queued", zap.String("task", task), zap.String("job_id", h.ID.String()))
	writeJSON(w, http.StatusAccepted, taskResponse{TaskID: h.ID.String(), Task: task})
}

// handleArticles returns one record by ?url= or lists records by ?status=
// and ?limit= without their bodies.
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if rawURL := q.Get("url"); rawURL != "" {
		article, err := s.store.Get(r.Context(), rawURL)
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "article not found"})
			return
		}
		if err != nil {
			s.logger.Error("Failed to load article", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database error"})
			return
		}
		writeJSON(w, http.StatusOK, article)
		return
	}

	f := store.Filter{Newest: true, SkipContent: true, Limit: 20}
	if status := q.Get("status"); status != "" {
		f.Status = model.ArticleStatus(status)
		if !f.Status.Valid() {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status"})
			return
		}
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		f.Limit = n
	}

	articles, err := s.store.Filter(r.Context(), f)
	if err != nil {
		s.logger.Error("Failed to list articles", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database error"})
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to compute stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "database error"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
