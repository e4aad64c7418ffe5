package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"power-saver/internal/service"
	"power-saver/internal/version"
)

// Server exposes the computed schedule over HTTP.
type Server struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewServer wires the service into an HTTP server.
func NewServer(svc *service.Service, logger zerolog.Logger) *Server {
	return &Server{
		svc:    svc,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)
		r.Get("/status", s.handleStatus)
		r.Get("/schedule", s.handleSchedule)
		r.Post("/override", s.handleOverride)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Latest()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no schedule computed yet")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"instance":               snap.Instance,
		"computed_at":            snap.ComputedAt,
		"current_status":         snap.CurrentStatus,
		"emergency":              snap.Emergency,
		"current_price":          snap.CurrentPrice,
		"min_price":              snap.MinPrice,
		"max_price":              snap.MaxPrice,
		"next_change_at":         snap.NextChangeAt,
		"last_on_time":           snap.LastOnTime,
		"active_slot_count":      snap.ActiveSlotCount,
		"active_hours_in_period": snap.ActiveHoursInPeriod,
	})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Latest()
	if snap == nil {
		respondError(w, http.StatusServiceUnavailable, "no schedule computed yet")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type overrideRequest struct {
	ForceOn  bool `json:"force_on"`
	ForceOff bool `json:"force_off"`
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid override payload")
		return
	}
	if req.ForceOn && req.ForceOff {
		respondError(w, http.StatusBadRequest, "force_on and force_off are mutually exclusive")
		return
	}

	s.svc.SetOverride(req.ForceOn, req.ForceOff)
	respondJSON(w, http.StatusOK, map[string]any{
		"force_on":  req.ForceOn,
		"force_off": req.ForceOff,
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
