package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobmarket-crawler/internal/app"
	"github.com/JakeFAU/jobmarket-crawler/internal/config"
	"github.com/JakeFAU/jobmarket-crawler/internal/crawler"
	"github.com/JakeFAU/jobmarket-crawler/internal/metrics"
	"github.com/JakeFAU/jobmarket-crawler/internal/model"
	"github.com/JakeFAU/jobmarket-crawler/internal/report"
)

const maxBodyBytes = 1 << 20

// Analyzer runs one search and exports it.
type Analyzer interface {
	Query(query, location string, pages int, skills []string) model.SearchQuery
	Analyze(ctx context.Context, query model.SearchQuery) (app.Outcome, error)
}

// Server wires HTTP handlers to the analyzer.
type Server struct {
	router   chi.Router
	analyzer Analyzer
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(analyzer Analyzer, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		analyzer: analyzer,
		cfg:      cfg,
		logger:   logger,
	}
	timeout := cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/analyses", s.createAnalysis)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type analysisRequest struct {
	Query    string   `json:"query"`
	Location string   `json:"location"`
	MaxPages int      `json:"max_pages"`
	Skills   []string `json:"skills"`
	Format   string   `json:"format"`
}

type analysisResponse struct {
	crawler.Result
	Artifacts   app.Artifacts `json:"artifacts,omitempty"`
	ExportError string        `json:"export_error,omitempty"`
}

func (s *Server) createAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analyzer not configured")
		return
	}
	var req analysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	format := report.FormatJSON
	if req.Format != "" {
		f, err := report.ParseFormat(req.Format)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	query := s.analyzer.Query(req.Query, req.Location, req.MaxPages, req.Skills)
	out, err := s.analyzer.Analyze(r.Context(), query)
	if err != nil {
		s.writeAnalysisError(w, r, err)
		return
	}

	if format != report.FormatJSON {
		var buf bytes.Buffer
		if err := report.Write(&buf, format, out.Result); err != nil {
			writeError(w, http.StatusInternalServerError, "render report failed")
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("X-Run-ID", out.Result.RunID)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			s.logger.Warn("write report failed", zap.Error(err))
		}
		return
	}

	resp := analysisResponse{Result: out.Result, Artifacts: out.Artifacts}
	if out.ExportErr != nil {
		resp.ExportError = out.ExportErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, crawler.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawler.ErrNoListings):
		msg := "job board unavailable"
		if fetchErr, ok := crawler.AsFetchError(err); ok {
			msg = fmt.Sprintf("job board unavailable: %s", fetchErr.Error())
		}
		writeError(w, http.StatusBadGateway, msg)
	default:
		s.logger.Error("analysis failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "analysis failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
