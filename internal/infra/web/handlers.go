package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"crew-orchestrator/internal/domain"
	"crew-orchestrator/internal/domain/model"
	"crew-orchestrator/internal/domain/ports/adapter"
	"crew-orchestrator/internal/domain/ports/crew"
	"crew-orchestrator/internal/infra/logging"
	"crew-orchestrator/internal/usecase"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

type handlers struct {
	jobs usecase.JobUseCase
	log  *zerolog.Logger
}

// jobView is the wire shape of a job. Inputs are echoed back minus reserved
// keys so credentials passed via env_vars never leak through GET.
type jobView struct {
	ID              string                `json:"id"`
	CrewName        string                `json:"crew"`
	Status          model.JobStatus       `json:"status"`
	Inputs          map[string]any        `json:"inputs,omitempty"`
	Result          *model.CrewOutput     `json:"result,omitempty"`
	Error           string                `json:"error,omitempty"`
	WebhookURL      string                `json:"webhook_url,omitempty"`
	RequireApproval bool                  `json:"require_approval"`
	Feedback        []model.FeedbackEntry `json:"feedback,omitempty"`
	FeedbackRounds  int                   `json:"feedback_rounds,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
}

func toJobView(j *model.Job) jobView {
	inputs := make(map[string]any, len(j.Inputs))
	for k, v := range j.Inputs {
		if k == crew.EnvKey {
			continue
		}
		inputs[k] = v
	}
	return jobView{
		ID:              j.ID,
		CrewName:        j.CrewName,
		Status:          j.Status,
		Inputs:          inputs,
		Result:          j.Result,
		Error:           j.Error,
		WebhookURL:      j.WebhookURL,
		RequireApproval: j.RequireApproval,
		Feedback:        j.Feedback,
		FeedbackRounds:  j.FeedbackRounds,
		CreatedAt:       j.CreatedAt,
		CompletedAt:     j.CompletedAt,
	}
}

func (h *handlers) root() http.HandlerFunc {
	type resp struct {
		Service   string    `json:"service"`
		Status    string    `json:"status"`
		Version   string    `json:"version"`
		Timestamp time.Time `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp{
			Service:   "crew-orchestrator",
			Status:    "running",
			Version:   Version,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (h *handlers) health() http.HandlerFunc {
	type resp struct {
		Status      string    `json:"status"`
		ActiveJobs  int       `json:"active_jobs"`
		TotalJobs   int       `json:"total_jobs"`
		CrewsLoaded int       `json:"crews_loaded"`
		Timestamp   time.Time `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		total, active, err := h.jobs.Counts(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp{
			Status:      "ok",
			ActiveJobs:  active,
			TotalJobs:   total,
			CrewsLoaded: len(h.jobs.CrewNames()),
			Timestamp:   time.Now().UTC(),
		})
	}
}

func (h *handlers) kickoff() http.HandlerFunc {
	type req struct {
		Crew            string            `json:"crew"`
		Inputs          map[string]any    `json:"inputs"`
		EnvVars         map[string]string `json:"env_vars"`
		WebhookURL      string            `json:"webhook_url"`
		RequireApproval bool              `json:"require_approval"`
	}
	type resp struct {
		JobID   string          `json:"job_id"`
		Status  model.JobStatus `json:"status"`
		Message string          `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body req
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.badRequest(w, "invalid JSON body")
			return
		}
		job, err := h.jobs.Kickoff(r.Context(), usecase.KickoffRequest{
			CrewName:        body.Crew,
			Inputs:          body.Inputs,
			EnvVars:         body.EnvVars,
			WebhookURL:      body.WebhookURL,
			RequireApproval: body.RequireApproval,
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, resp{
			JobID:   job.ID,
			Status:  job.Status,
			Message: fmt.Sprintf("crew %q accepted for execution", job.CrewName),
		})
	}
}

func (h *handlers) getJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toJobView(job))
	}
}

func (h *handlers) feedback() http.HandlerFunc {
	type req struct {
		Approved bool   `json:"approved"`
		Feedback string `json:"feedback"`
	}
	type resp struct {
		JobID   string          `json:"job_id"`
		Status  model.JobStatus `json:"status"`
		Message string          `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body req
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.badRequest(w, "invalid JSON body")
			return
		}
		job, err := h.jobs.Feedback(r.Context(), chi.URLParam(r, "jobID"), body.Approved, body.Feedback)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		msg := "content approved"
		status := http.StatusOK
		switch job.Status {
		case model.JobStatusProcessing:
			msg = "feedback accepted, rerunning crew"
			status = http.StatusAccepted
		case model.JobStatusFailed:
			msg = "feedback round limit reached, job failed"
		}
		writeJSON(w, status, resp{JobID: job.ID, Status: job.Status, Message: msg})
	}
}

func (h *handlers) listJobs() http.HandlerFunc {
	type resp struct {
		Jobs      []model.JobSummary `json:"jobs"`
		Count     int                `json:"count"`
		TotalJobs int                `json:"total_jobs"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				h.badRequest(w, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		jobs, err := h.jobs.List(r.Context(), limit, r.URL.Query().Get("status"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if jobs == nil {
			jobs = []model.JobSummary{}
		}
		total, _, err := h.jobs.Counts(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp{Jobs: jobs, Count: len(jobs), TotalJobs: total})
	}
}

func (h *handlers) listModels() http.HandlerFunc {
	type resp struct {
		Models []adapter.ModelInfo `json:"models"`
		Count  int                 `json:"count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := h.jobs.Models(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp{Models: models, Count: len(models)})
	}
}

func (h *handlers) listCrews() http.HandlerFunc {
	type resp struct {
		Crews []string `json:"crews"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp{Crews: h.jobs.CrewNames()})
	}
}

func (h *handlers) deleteJob() http.HandlerFunc {
	type resp struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobID")
		if err := h.jobs.Delete(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp{JobID: id, Status: "deleted", Message: "job record removed"})
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *handlers) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps domain sentinels onto HTTP statuses.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrCrewNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAwaitingApproval), errors.Is(err, domain.ErrJobBusy):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrQueueSaturated):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logging.With(r.Context(), h.log).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
