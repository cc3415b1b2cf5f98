package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"curveStatApp/internal/app/dto"
	"curveStatApp/internal/domain/useCases"
	"curveStatApp/internal/infrastructure/metrics"
	"curveStatApp/internal/lib/logger/sl"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthInfo is the static part of the /health body.
type HealthInfo struct {
	CurveAddress string
	RPC          string
}

// Server represents an HTTP server with all routes configured
type Server struct {
	trends      useCases.TrendQuery
	broadcaster useCases.Broadcaster
	info        HealthInfo
	now         func() time.Time
	log         *slog.Logger
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes
func NewServer(log *slog.Logger, addr string, trends useCases.TrendQuery, broadcaster useCases.Broadcaster, info HealthInfo) *Server {
	mux := http.NewServeMux()

	server := &Server{
		trends:      trends,
		broadcaster: broadcaster,
		info:        info,
		now:         time.Now,
		log:         log.With(slog.String("component", "http")),
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()

	return server
}

func (s *Server) registerRoutes() {
	s.handleJSON("/trending", s.handleTrending)
	s.handleJSON("/curve-stats", s.handleCurveStats)
	s.handleJSON("/trades", s.handleTrades)
	s.handleJSON("/health", s.handleHealth)

	if s.broadcaster != nil {
		s.mux.HandleFunc("GET /ws", s.broadcaster.Handler())
	}
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// handleJSON registers a GET route whose handler returns the body to encode.
// Panics become a 500 with a JSON error body.
func (s *Server) handleJSON(path string, h func(r *http.Request) any) {
	s.mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		code := http.StatusOK

		defer func() {
			if rec := recover(); rec != nil {
				code = http.StatusInternalServerError
				s.log.Error("handler panicked", slog.String("path", path), slog.String("panic", fmt.Sprint(rec)))
				writeJSON(w, code, map[string]string{"error": "internal server error"})
			}
			metrics.RecordHTTPRequest(path, code, time.Since(start))
		}()

		body := h(r)
		if err := writeJSON(w, code, body); err != nil {
			s.log.Warn("failed to encode response", sl.Err(err), slog.String("path", path))
		}
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(body)
}

func (s *Server) handleTrending(r *http.Request) any {
	return dto.FromTrendingSnapshot(s.trends.GetTrendingSnapshot(s.now()))
}

func (s *Server) handleCurveStats(r *http.Request) any {
	return dto.FromCurveStats(s.trends.GetCurveStats())
}

func (s *Server) handleTrades(r *http.Request) any {
	return dto.FromTradesPage(s.trends.GetTrades(parseLimit(r.URL.Query().Get("limit"))), s.now())
}

func (s *Server) handleHealth(r *http.Request) any {
	return dto.HealthResponse{
		Status:       "ok",
		Timestamp:    s.now(),
		CurveAddress: s.info.CurveAddress,
		RPC:          s.info.RPC,
		TradesCount:  s.trends.TradeCount(),
		HasGraduated: s.trends.HasGraduated(),
	}
}

// parseLimit never fails: a missing or malformed value selects the default page size.
func parseLimit(raw string) int {
	if raw == "" {
		return -1
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
