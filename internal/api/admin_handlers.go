package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"version": s.app.Version()})
}

// handleGetConfig exposes the non-sensitive part of the configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config()
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"provider": map[string]interface{}{
			"url_template": cfg.Provider.URLTemplate,
			"parallelism":  cfg.Provider.Parallelism,
		},
		"notification": map[string]interface{}{
			"enabled": cfg.Notification.Enabled,
			"title":   cfg.Notification.Title,
		},
	})
}

func (s *Server) handleRunAdminJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	err := s.app.JobManager().RunJob(payload.JobID, s.app)
	if err != nil {
		RespondWithError(w, http.StatusConflict, err.Error()) // 409 Conflict if a job is already running
		return
	}

	RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "Job '" + payload.JobID + "' started successfully.",
	})
}

func (s *Server) handleGetAdminJobsStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.app.JobManager().GetStatus()
	RespondWithJSON(w, http.StatusOK, statuses)
}
