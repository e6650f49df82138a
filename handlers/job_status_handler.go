package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/sirupsen/logrus"
)

// HandleGetJob returns the current snapshot of an analysis job
//
// @Summary Get analysis job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} types.Job
// @Failure 404 {object} middleware.APIError "Job not found"
// @Router /api/jobs/{id} [get]
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	jobID := mux.Vars(r)["id"]

	job, err := h.Jobs.Get(jobID)
	if err != nil {
		middleware.RespondError(w, err, reqID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"job_id":     jobID,
		"status":     job.Status,
		"progress":   job.Progress,
	}).Debug("Job status retrieved")

	writeJSON(w, http.StatusOK, job)
}
