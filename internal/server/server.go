// Package server exposes the dashboard over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/user/sales-dashboard-go/internal/chart"
	"github.com/user/sales-dashboard-go/internal/dashboard"
	"github.com/user/sales-dashboard-go/internal/models"
	"github.com/user/sales-dashboard-go/internal/report"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Source produces a fresh snapshot of the datasets.
type Source interface {
	Load(ctx context.Context) (*models.CollectedData, error)
}

// Options configure a Server.
type Options struct {
	Addr    string
	Title   string
	Watch   bool   // Reload when a dataset file changes
	DataDir string // Directory watched when Watch is set
	Names   []string
	Logger  *zap.Logger
}

// Server serves the dashboard page, its JSON API and PNG renderings.
type Server struct {
	source  Source
	builder *dashboard.Builder
	opts    Options
	log     *zap.Logger
	router  *chi.Mux

	mu   sync.RWMutex
	data *models.CollectedData

	reloadMu sync.Mutex
}

// New creates a Server. Call Reload before serving to populate data.
func New(source Source, builder *dashboard.Builder, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		source:  source,
		builder: builder,
		opts:    opts,
		log:     log,
		router:  chi.NewRouter(),
		data: &models.CollectedData{
			Datasets: map[string]models.Dataset{},
			Failures: map[string]string{},
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(s.log))
	s.router.Use(recoverer(s.log))

	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/charts", s.handleCharts)
		r.Get("/charts/{id}", s.handleChart)
	})
	s.router.Get("/charts/{id}.png", s.handleChartPNG)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload re-collects every dataset and swaps the snapshot in. On error the
// previous snapshot is kept.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	data, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload datasets: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	s.log.Info("Datasets loaded",
		zap.Int("datasets", len(data.Datasets)),
		zap.Int("failures", len(data.Failures)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Server) snapshot() *models.CollectedData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.opts.Watch {
		w, err := newWatcher(s, s.opts.DataDir, s.opts.Names)
		if err != nil {
			return err
		}
		go w.run(ctx)
	}

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Dashboard listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.builder.Build(s.snapshot(), r.URL.Query().Get("q"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, data, report.HTMLOptions{Title: s.opts.Title, Live: true}); err != nil {
		s.log.Error("Failed to render dashboard", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	data := s.snapshot()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"datasets": len(data.Datasets),
		"failures": data.Failures,
	})
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.builder.Build(s.snapshot(), r.URL.Query().Get("q")))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chart(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err := chart.RenderPNG(&buf, c, chart.DefaultWidth, chart.DefaultHeight)
	if errors.Is(err, chart.ErrNoData) {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("chart %s has no data", c.ID))
		return
	}
	if err != nil {
		s.log.Error("Failed to render chart", zap.String("chart", c.ID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Warn("Failed to write chart", zap.String("chart", c.ID), zap.Error(err))
	}
}

// chart builds the chart named in the URL, writing a 404 when it is unknown.
func (s *Server) chart(w http.ResponseWriter, r *http.Request) (models.ChartData, bool) {
	id := chi.URLParam(r, "id")
	c, err := s.builder.BuildChart(s.snapshot(), id, r.URL.Query().Get("q"))
	if errors.Is(err, dashboard.ErrUnknownChart) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return c, false
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return c, false
	}
	return c, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
