package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/me/campman/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}

type statusResponse struct {
	SessionID string                         `json:"session_id"`
	Campaign  model.CampaignState            `json:"campaign"`
	Workflows map[string]model.WorkflowState `json:"workflows"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{
		SessionID: s.source.SessionID(),
		Campaign:  s.source.State(),
		Workflows: s.source.WorkflowStates(),
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan := s.source.Plan()
	if plan == nil {
		respondError(w, http.StatusNotFound, "campaign has not been planned yet")
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
