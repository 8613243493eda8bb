package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fortuna/diamond/internal/backfill"
)

// NormalizeHandler proxies API calls to the normalization job service.
type NormalizeHandler struct {
	service JobService
}

// NewNormalizeHandler wires the REST layer to the job service.
func NewNormalizeHandler(service JobService) *NormalizeHandler {
	return &NormalizeHandler{service: service}
}

type apiNormalizeRequest struct {
	Season    string  `json:"season"`
	Date      string  `json:"date"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	GamePK    int64   `json:"gamepk"`
	GamePKs   []int64 `json:"gamepks"`
	DryRun    bool    `json:"dry_run"`
}

// HandleNormalizeRequest handles POST /api/v1/normalize
func (h *NormalizeHandler) HandleNormalizeRequest(w http.ResponseWriter, r *http.Request) {
	var req apiNormalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	jobReq := backfill.Request{
		Season: req.Season,
		DryRun: req.DryRun,
	}

	if len(req.GamePKs) > 0 {
		jobReq.GamePKs = append(jobReq.GamePKs, req.GamePKs...)
	}
	if req.GamePK != 0 {
		jobReq.GamePKs = append(jobReq.GamePKs, req.GamePK)
	}
	for _, pk := range jobReq.GamePKs {
		if pk <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid gamepk", fmt.Errorf("gamepk %d", pk))
			return
		}
	}

	if req.Date != "" {
		req.StartDate, req.EndDate = req.Date, req.Date
	}

	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid start_date format (YYYY-MM-DD)", err)
			return
		}
		jobReq.StartDate = &start
	}

	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid end_date format (YYYY-MM-DD)", err)
			return
		}
		jobReq.EndDate = &end
	}

	job, err := h.service.Enqueue(r.Context(), jobReq)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue normalization job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleNormalizeStatus handles GET /api/v1/normalize/status
func (h *NormalizeHandler) HandleNormalizeStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

func buildStatusPayload(summary *backfill.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []map[string]interface{}{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *backfill.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"job_type":         job.JobType,
		"status":           job.Status,
		"dry_run":          job.DryRun,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"games_ready":      job.GamesReady,
		"games_failed":     job.GamesFailed,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.Season.Valid {
		payload["season"] = job.Season.String
	}
	if job.StartDate.Valid {
		payload["start_date"] = job.StartDate.Time.Format("2006-01-02")
	}
	if job.EndDate.Valid {
		payload["end_date"] = job.EndDate.Time.Format("2006-01-02")
	}
	if len(job.GamePKs) > 0 {
		payload["gamepks"] = []int64(job.GamePKs)
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
