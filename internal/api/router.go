package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-enocean/internal/bridges/enocean"
)

const (
	// defaultSightingsLimit and maxSightingsLimit bound GET /sightings.
	defaultSightingsLimit = 100
	maxSightingsLimit     = 1000

	// healthCheckTimeout bounds each dependency check in GET /health.
	healthCheckTimeout = 2 * time.Second
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Get("/{entityID}", s.handleGetEntity)
		})

		r.Get("/sightings", s.handleListSightings)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string                `json:"status"`
	Version string                `json:"version"`
	Bridge  enocean.HealthMessage `json:"bridge"`
	Checks  map[string]string     `json:"checks,omitempty"`
}

// handleHealth reports bridge health plus each infrastructure check.
// Any failing check turns the response into 503 "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.version,
		Bridge:  s.bridge.Health(),
	}

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, checker := range s.checks {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			err := checker.HealthCheck(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				continue
			}
			resp.Checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleListEntities returns every entity snapshot sorted by entity ID.
// ?platform=binary_sensor or ?platform=event narrows the list.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")

	snaps := s.bridge.Snapshots()
	out := make([]enocean.EntitySnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if platform != "" && string(snap.Platform) != platform {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": out,
		"count":    len(out),
	})
}

// handleGetEntity returns one entity snapshot.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entityID")

	snap, ok := s.bridge.Snapshot(entityID)
	if !ok {
		writeError(w, r, http.StatusNotFound, ErrCodeNotFound, "entity not found: "+entityID)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListSightings returns recorded senders, newest first.
// Query: unknown=true, limit=1..1000.
func (s *Server) handleListSightings(w http.ResponseWriter, r *http.Request) {
	if s.sightings == nil {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeUnavailable, "sighting recording is disabled")
		return
	}

	q := r.URL.Query()

	unknownOnly := false
	if v := q.Get("unknown"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "unknown must be true or false")
			return
		}
		unknownOnly = b
	}

	limit := defaultSightingsLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSightingsLimit {
			writeError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	sightings, err := s.sightings.Sightings(r.Context(), unknownOnly, limit)
	if err != nil {
		s.logger.Error("listing sightings failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, ErrCodeInternal, "failed to list sightings")
		return
	}
	if sightings == nil {
		sightings = []enocean.Sighting{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sightings": sightings,
		"count":     len(sightings),
	})
}
