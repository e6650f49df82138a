package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// Job list paging limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams holds the paging window of a list request
type PaginationParams struct {
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	Cursor string `json:"cursor,omitempty"`
}

// JobFilter narrows a job listing
type JobFilter struct {
	Status types.JobStatus `json:"status,omitempty"`
	Brand  string          `json:"brand,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
}

// JobSummary is a job without its result payload
type JobSummary struct {
	ID        string                `json:"id"`
	Status    types.JobStatus       `json:"status"`
	Progress  int                   `json:"progress"`
	Stage     string                `json:"stage"`
	Subject   types.AnalysisSubject `json:"subject"`
	Error     string                `json:"error,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

// PaginatedJobs is one page of job summaries
type PaginatedJobs struct {
	Jobs       []JobSummary `json:"jobs"`
	TotalCount int          `json:"totalCount"`
	HasMore    bool         `json:"hasMore"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// @Summary List analysis jobs
// @Description Lists tracked jobs newest first, with offset or cursor paging and optional filters.
// @Tags Jobs
// @Produce json
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param offset query int false "Number of jobs to skip (default: 0)"
// @Param cursor query string false "Cursor returned by the previous page"
// @Param status query string false "Filter by status (pending, processing, completed, failed)"
// @Param brand query string false "Filter by brand name (case-insensitive substring)"
// @Param since query string false "Only jobs created at or after this time (RFC3339)"
// @Success 200 {object} PaginatedJobs
// @Failure 400 {object} middleware.APIError "Bad request"
// @Router /api/jobs [get]
func (h *Handler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	paging, filter, err := parseJobListQuery(r)
	if err != nil {
		middleware.RespondBadRequest(w, err, reqID)
		return
	}

	matched := make([]JobSummary, 0)
	for _, job := range h.Jobs.List() {
		if filter.matches(job) {
			matched = append(matched, summarize(job))
		}
	}

	page := PaginatedJobs{TotalCount: len(matched), Jobs: []JobSummary{}}
	if paging.Offset < len(matched) {
		end := paging.Offset + paging.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Jobs = matched[paging.Offset:end]
		page.HasMore = end < len(matched)
		if page.HasMore {
			page.NextCursor = fmt.Sprintf("offset:%d", end)
		}
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"limit":      paging.Limit,
		"offset":     paging.Offset,
		"status":     filter.Status,
		"returned":   len(page.Jobs),
		"total":      page.TotalCount,
	}).Debug("Jobs listed")

	writeJSON(w, http.StatusOK, page)
}

func parseJobListQuery(r *http.Request) (PaginationParams, JobFilter, error) {
	query := r.URL.Query()
	paging := PaginationParams{Limit: DefaultPageSize}
	var filter JobFilter

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return paging, filter, fmt.Errorf("invalid limit parameter: %q", raw)
		}
		if limit > MaxPageSize {
			limit = MaxPageSize
		}
		paging.Limit = limit
	}

	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return paging, filter, fmt.Errorf("invalid offset parameter: %q", raw)
		}
		paging.Offset = offset
	}

	// A cursor takes precedence over an explicit offset
	if cursor := query.Get("cursor"); cursor != "" {
		offset, err := strconv.Atoi(strings.TrimPrefix(cursor, "offset:"))
		if !strings.HasPrefix(cursor, "offset:") || err != nil || offset < 0 {
			return paging, filter, fmt.Errorf("invalid cursor parameter: %q", cursor)
		}
		paging.Offset = offset
		paging.Cursor = cursor
	}

	if raw := query.Get("status"); raw != "" {
		status := types.JobStatus(strings.ToLower(raw))
		switch status {
		case types.JobPending, types.JobProcessing, types.JobCompleted, types.JobFailed:
			filter.Status = status
		default:
			return paging, filter, fmt.Errorf("invalid status parameter: %q", raw)
		}
	}

	filter.Brand = strings.ToLower(strings.TrimSpace(query.Get("brand")))

	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return paging, filter, fmt.Errorf("invalid since parameter, expected RFC3339 format: %v", err)
		}
		filter.Since = since
	}

	return paging, filter, nil
}

func (f JobFilter) matches(job types.Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.Brand != "" && !strings.Contains(strings.ToLower(job.Subject.BrandName), f.Brand) {
		return false
	}
	if !f.Since.IsZero() && job.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

func summarize(job types.Job) JobSummary {
	return JobSummary{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		Stage:     job.Stage,
		Subject:   job.Subject,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
