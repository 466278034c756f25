package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-studio/internal/api/shared"
	"github.com/phrazzld/scry-studio/internal/domain"
	"github.com/phrazzld/scry-studio/internal/platform/logger"
	"github.com/phrazzld/scry-studio/internal/service"
)

// JobHandler handles generation job requests.
type JobHandler struct {
	jobService service.JobService
	logger     *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobService service.JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobService: jobService,
		logger:     logger.With("component", "job_handler"),
	}
}

// SubmitJob handles POST /api/notebooks/{notebookID}/jobs.
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	userID, notebookID, ok := handleUserIDAndPathUUID(w, r, "notebookID")
	if !ok {
		return
	}

	var req SubmitJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	job, err := h.jobService.Submit(r.Context(), service.SubmitRequest{
		JobID:    req.JobID,
		ParentID: notebookID,
		OwnerID:  userID,
		Kind:     req.Kind,
		Count:    req.Count,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	// Generation runs in the background; the job is reported through the
	// list and the change feed.
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{JobID: job.ID})
}

// ListJobs handles GET /api/notebooks/{notebookID}/jobs.
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, notebookID, ok := handleUserIDAndPathUUID(w, r, "notebookID")
	if !ok {
		return
	}

	jobs, err := h.jobService.List(r.Context(), userID, notebookID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	response := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		response = append(response, jobToResponse(&jobs[i]))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// GetJob handles GET /api/jobs/{jobID}.
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "jobID")
	if !ok {
		return
	}

	job, err := h.jobService.Get(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// PatchJob handles PATCH /api/jobs/{jobID}. A title is applied before a
// score; if the score is then rejected the rename stands.
func (h *JobHandler) PatchJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "jobID")
	if !ok {
		return
	}

	var req PatchJobRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var (
		job *domain.Job
		err error
	)
	if req.Title != nil {
		if job, err = h.jobService.Rename(r.Context(), userID, jobID, *req.Title); err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	}
	if req.Score != nil {
		if job, err = h.jobService.Score(r.Context(), userID, jobID, *req.Score); err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("job patched",
		"job_id", jobID,
		"title", req.Title != nil,
		"score", req.Score != nil)
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// DeleteJob handles DELETE /api/jobs/{jobID}.
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "jobID")
	if !ok {
		return
	}

	if err := h.jobService.Delete(r.Context(), userID, jobID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondNoContent(w)
}

// RefreshAudio handles POST /api/jobs/{jobID}/audio/refresh.
func (h *JobHandler) RefreshAudio(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "jobID")
	if !ok {
		return
	}

	artifact, err := h.jobService.RefreshAudio(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, artifact)
}

// DeleteAudio handles DELETE /api/jobs/{jobID}/audio.
func (h *JobHandler) DeleteAudio(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "jobID")
	if !ok {
		return
	}

	if err := h.jobService.DeleteAudio(r.Context(), userID, jobID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondNoContent(w)
}
