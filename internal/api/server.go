package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/seo-scanner/internal/config"
	"github.com/JakeFAU/seo-scanner/internal/metrics"
	"github.com/JakeFAU/seo-scanner/internal/seo"
	"github.com/JakeFAU/seo-scanner/internal/sitegraph"
)

// Pagination limits for GET /v1/websites.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

const enqueueTimeout = 5 * time.Second

// Enqueuer accepts scan requests, usually a *dispatcher.Dispatcher.
type Enqueuer interface {
	Enqueue(ctx context.Context, req seo.ScanRequest) error
}

// ReadyCheck reports whether a downstream dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// Server wires HTTP handlers to the scan queue and the website store.
type Server struct {
	router   chi.Router
	store    seo.WebsiteStore
	enqueuer Enqueuer
	idGen    seo.IDGenerator
	clock    seo.Clock
	checks   []ReadyCheck
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store seo.WebsiteStore,
	enqueuer Enqueuer,
	idGen seo.IDGenerator,
	clock seo.Clock,
	cfg config.Config,
	logger *zap.Logger,
	checks ...ReadyCheck,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		enqueuer: enqueuer,
		idGen:    idGen,
		clock:    clock,
		checks:   checks,
		logger:   logger,
	}
	timeout := cfg.Server.RequestTimeout()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scans", s.submitScan)
		r.Route("/websites", func(r chi.Router) {
			r.Get("/", s.listWebsites)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getWebsite)
				r.Get("/seo-logs/distribution", s.getDistribution)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	for _, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			s.writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scanRequest struct {
	URL string `json:"url"`
}

type scanAccepted struct {
	ScanID string `json:"scan_id"`
	URL    string `json:"url"`
}

func (s *Server) submitScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}
	normalized, err := sitegraph.NormalizeURL(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.enqueueScan(r.Context(), normalized)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, scanAccepted{ScanID: id, URL: normalized})
}

func (s *Server) enqueueScan(ctx context.Context, url string) (string, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate scan id: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	req := seo.ScanRequest{ID: id, URL: url, Submitted: s.clock.Now()}
	if err := s.enqueuer.Enqueue(queueCtx, req); err != nil {
		return "", fmt.Errorf("enqueue scan: %w", err)
	}
	s.logger.Info("scan queued", zap.String("website_id", id), zap.String("url", url))
	return id, nil
}

type websiteList struct {
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
	Websites []seo.Website `json:"websites"`
}

func (s *Server) listWebsites(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		s.writeError(w, http.StatusBadRequest, "page must be a positive integer")
		return
	}
	limit, err := queryInt(r, "limit", DefaultPageLimit)
	if err != nil || limit < 1 {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, MaxPageLimit)

	sites, err := s.store.ListWebsites(r.Context(), page, limit)
	if err != nil {
		s.logger.Error("list websites failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list websites")
		return
	}
	if sites == nil {
		sites = []seo.Website{}
	}
	s.writeJSON(w, http.StatusOK, websiteList{Page: page, Limit: limit, Websites: sites})
}

func (s *Server) getWebsite(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, site)
}

type distributionResponse struct {
	WebsiteID    string                `json:"website_id"`
	Total        int                   `json:"total"`
	Distribution seo.LevelDistribution `json:"distribution"`
}

func (s *Server) getDistribution(w http.ResponseWriter, r *http.Request) {
	site, ok := s.loadWebsite(w, r)
	if !ok {
		return
	}
	dist := site.Distribution()
	s.writeJSON(w, http.StatusOK, distributionResponse{
		WebsiteID:    site.ID,
		Total:        dist.Total(),
		Distribution: dist,
	})
}

func (s *Server) loadWebsite(w http.ResponseWriter, r *http.Request) (seo.Website, bool) {
	id := chi.URLParam(r, "id")
	site, err := s.store.GetWebsite(r.Context(), id)
	switch {
	case errors.Is(err, seo.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "website not found")
		return seo.Website{}, false
	case err != nil:
		s.logger.Error("get website failed", zap.String("website_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load website")
		return seo.Website{}, false
	}
	return site, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
