package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/iankiku/agentsauthority-chatbot-sub003/middleware"
	"github.com/sirupsen/logrus"
)

const (
	// sseHeartbeat keeps idle proxies from closing the event stream
	sseHeartbeat = 15 * time.Second
	wsWriteWait  = 10 * time.Second
)

// @Summary Stream job progress (Server-Sent Events)
// @Description Sends the current snapshot, then every change until the job completes or fails.
// @Tags Jobs
// @Produce text/event-stream
// @Param id path string true "Job ID"
// @Success 200 {object} types.JobEvent
// @Router /api/jobs/{id}/stream [get]
func (h *Handler) HandleStreamJob(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	jobID := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondInternalError(w, fmt.Errorf("streaming is not supported by this connection"), reqID)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"job_id":     jobID,
		"transport":  "sse",
	})
	logger.Debug("Progress stream opened")

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	events := h.Progress.Subscribe(r.Context(), jobID)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				logger.Debug("Progress stream finished")
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				logger.WithError(err).Error("Failed to encode progress event")
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// @Summary Stream job progress (WebSocket)
// @Description Upgrades to a WebSocket and sends one JSON event per change until the job is terminal.
// @Tags Jobs
// @Param id path string true "Job ID"
// @Router /api/jobs/{id}/ws [get]
func (h *Handler) HandleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	reqID := requestID(w, r)
	jobID := mux.Vars(r)["id"]
	logger := h.Logger.WithFields(logrus.Fields{
		"request_id": reqID,
		"job_id":     jobID,
		"transport":  "websocket",
	})

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reading is the only way to notice the client closing the socket
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for event := range h.Progress.Subscribe(ctx, jobID) {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(event); err != nil {
			logger.WithError(err).Debug("WebSocket subscriber went away")
			return
		}
	}

	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"),
		time.Now().Add(wsWriteWait),
	)
}
