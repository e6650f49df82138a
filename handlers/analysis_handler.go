package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/sirupsen/logrus"
)

// maxRequestBody caps the analysis request payload
const maxRequestBody = 16 << 10

// CreateAnalysisRequest is the body of an analysis request
type CreateAnalysisRequest struct {
	BrandName string `json:"brandName"`
	BrandURL  string `json:"brandUrl"`
	Qualifier string `json:"qualifier,omitempty"`
}

// CreateAnalysisResponse is returned for an accepted analysis. A fresh cached
// result is returned inline with status "completed" and no job.
type CreateAnalysisResponse struct {
	JobID     string                `json:"jobId,omitempty"`
	Status    types.JobStatus       `json:"status"`
	StatusURL string                `json:"statusUrl,omitempty"`
	Result    *types.AnalysisResult `json:"result,omitempty"`
}

// CachePolicyEntry is one row of the cache policy table
type CachePolicyEntry struct {
	ResourceClass string `json:"resourceClass"`
	TTL           string `json:"ttl"`
	TTLSeconds    int64  `json:"ttlSeconds"`
}

// @Summary Start a brand visibility analysis
// @Description Returns a fresh cached result immediately, otherwise creates a background job and returns its id.
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body CreateAnalysisRequest true "Brand to analyze"
// @Success 200 {object} CreateAnalysisResponse "Fresh cached result"
// @Success 202 {object} CreateAnalysisResponse "Job accepted"
// @Failure 400 {object} middleware.APIError "Validation error"
// @Failure 429 {object} middleware.APIError "Rate limit exceeded"
// @Router /api/analyses [post]
func (h *Handler) HandleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	if r.Body == nil {
		middleware.RespondValidationError(w, &types.ValidationError{Message: "request body is required"}, reqID)
		return
	}
	var req CreateAnalysisRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		middleware.RespondValidationError(w, &types.ValidationError{Message: fmt.Sprintf("invalid JSON body: %v", err)}, reqID)
		return
	}

	subject, err := ValidateSubject(req)
	if err != nil {
		middleware.RespondError(w, err, reqID)
		return
	}

	logger := h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"brand_name": subject.BrandName,
		"brand_url":  subject.BrandURL,
	})

	var cached types.AnalysisResult
	if h.Cache.GetJSON(r.Context(), cache.ClassBrandAnalysis, &cached, subject.Identity()...) {
		logger.Info("Serving analysis from cache")
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, CreateAnalysisResponse{
			Status: types.JobCompleted,
			Result: &cached,
		})
		return
	}

	job, err := h.Runner.Start(subject)
	if err != nil {
		middleware.RespondInternalError(w, fmt.Errorf("failed to start analysis: %w", err), reqID)
		return
	}

	logger.WithField("job_id", job.ID).Info("Analysis job accepted")
	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Location", statusURL(job.ID))
	writeJSON(w, http.StatusAccepted, CreateAnalysisResponse{
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: statusURL(job.ID),
	})
}

// @Summary Invalidate a cached analysis
// @Description Removes the cached result so the next request recomputes it.
// @Tags Analysis
// @Produce json
// @Param brandName query string true "Brand name"
// @Param brandUrl query string true "Brand URL"
// @Param qualifier query string false "Market qualifier"
// @Success 204 "Cached result removed"
// @Failure 400 {object} middleware.APIError "Validation error"
// @Router /api/analyses [delete]
func (h *Handler) HandleInvalidateAnalysis(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	query := r.URL.Query()
	subject, err := ValidateSubject(CreateAnalysisRequest{
		BrandName: query.Get("brandName"),
		BrandURL:  query.Get("brandUrl"),
		Qualifier: query.Get("qualifier"),
	})
	if err != nil {
		middleware.RespondError(w, err, reqID)
		return
	}

	if err := h.Cache.Invalidate(r.Context(), cache.ClassBrandAnalysis, subject.Identity()...); err != nil {
		middleware.RespondInternalError(w, fmt.Errorf("failed to invalidate cached analysis: %w", err), reqID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"brand_name": subject.BrandName,
	}).Info("Cached analysis invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Clear the result cache
// @Description Removes every cached entry of every resource class.
// @Tags Cache
// @Success 204 "Cache cleared"
// @Failure 500 {object} middleware.APIError "Backend error"
// @Router /api/cache [delete]
func (h *Handler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)

	if err := h.Cache.ClearAll(r.Context()); err != nil {
		middleware.RespondInternalError(w, fmt.Errorf("failed to clear cache: %w", err), reqID)
		return
	}

	h.Logger.WithField("request_id", reqID).Warn("Result cache cleared by operator")
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Cache policy
// @Description Lists the freshness window of every cached resource class.
// @Tags Cache
// @Produce json
// @Success 200 {array} CachePolicyEntry
// @Router /api/cache/policy [get]
func (h *Handler) HandleGetCachePolicy(w http.ResponseWriter, r *http.Request) {
	requestID(w, r)

	policy := h.Cache.Policy()
	entries := make([]CachePolicyEntry, 0, len(policy))
	for _, class := range policy.Classes() {
		ttl := policy[class]
		entries = append(entries, CachePolicyEntry{
			ResourceClass: string(class),
			TTL:           ttl.String(),
			TTLSeconds:    int64(ttl / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, entries)
}

func statusURL(jobID string) string {
	return "/api/jobs/" + jobID
}
