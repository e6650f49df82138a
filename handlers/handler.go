/*
Package handlers provides HTTP handlers with dependency injection support.

This package defines the Handler struct that contains all service dependencies,
eliminating global variables and enabling better testability and separation of concerns.
*/
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/iankiku/agentsauthority-chatbot-sub003/cache"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
	"github.com/iankiku/agentsauthority-chatbot-sub003/utils"
	"github.com/sirupsen/logrus"
)

// AnalysisRunnerInterface starts background analysis jobs
type AnalysisRunnerInterface interface {
	Start(subject types.AnalysisSubject) (types.Job, error)
}

// JobReaderInterface reads job snapshots
type JobReaderInterface interface {
	Get(id string) (types.Job, error)
	// List returns every tracked job, newest first
	List() []types.Job
}

// ResultCacheInterface defines the freshness cache operations used by handlers
type ResultCacheInterface interface {
	GetJSON(ctx context.Context, class cache.ResourceClass, dst interface{}, identity ...string) bool
	Invalidate(ctx context.Context, class cache.ResourceClass, identity ...string) error
	ClearAll(ctx context.Context) error
	Policy() cache.Policy
}

// ProgressSubscriberInterface streams job snapshots
type ProgressSubscriberInterface interface {
	Subscribe(ctx context.Context, jobID string) <-chan types.JobEvent
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Runner   AnalysisRunnerInterface
	Jobs     JobReaderInterface
	Cache    ResultCacheInterface
	Progress ProgressSubscriberInterface
	Logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(runner AnalysisRunnerInterface, jobs JobReaderInterface, resultCache ResultCacheInterface, progress ProgressSubscriberInterface, logger *logrus.Logger) *Handler {
	return &Handler{
		Runner:   runner,
		Jobs:     jobs,
		Cache:    resultCache,
		Progress: progress,
		Logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// requestID returns the caller's request id, minting one when absent
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", id)
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
