package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pixbridge/bridge-scheduler/pkg/config"
	"github.com/pixbridge/bridge-scheduler/pkg/db"
	redis2 "github.com/pixbridge/bridge-scheduler/pkg/redis"
	"github.com/pixbridge/bridge-scheduler/pkg/scheduler"
	"github.com/pixbridge/bridge-scheduler/pkg/tracker"
)

// Server is the small operational surface: manual triggers, execution
// history, subsystem toggles. It carries no business endpoints.
type Server struct {
	orchestrator *scheduler.Orchestrator
	tracker      *tracker.Tracker
	rootCtx      context.Context
}

func NewServer(rootCtx context.Context, orchestrator *scheduler.Orchestrator, trk *tracker.Tracker) *Server {
	return &Server{
		orchestrator: orchestrator,
		tracker:      trk,
		rootCtx:      rootCtx,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Post("/jobs/{name}/trigger", s.triggerJob)
	r.Get("/jobs/{name}/executions", s.executions)
	r.Post("/subsystems/{name}/enable", s.enableSubsystem)
	r.Post("/subsystems/{name}/disable", s.disableSubsystem)
	return r
}

func respondJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body) //nolint
}

func respondError(w http.ResponseWriter, code int, err error) {
	respondJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	if err := redis2.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) triggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.orchestrator.TriggerManually(r.Context(), name); err != nil {
		respondError(w, http.StatusConflict, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"job": name, "status": "ok"})
}

func (s *Server) executions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64) //nolint
	execs, err := s.tracker.History(r.Context(), name, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, execs)
}

func (s *Server) enableSubsystem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	config.EnableSubsystem(name)
	// Subsystem lifetime is bound to the process context, not this request.
	scheduler.InitializeSubsystem(s.rootCtx, name)
	respondJSON(w, http.StatusOK, map[string]string{"subsystem": name, "status": "enabled"})
}

func (s *Server) disableSubsystem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	config.DisableSubsystem(name)
	scheduler.FinalizeSubsystem(s.rootCtx, name)
	respondJSON(w, http.StatusOK, map[string]string{"subsystem": name, "status": "disabled"})
}
