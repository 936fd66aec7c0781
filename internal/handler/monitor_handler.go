package handler

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	monitor *service.MonitorService
	log     zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

func NewMonitorHandler(monitor *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: monitor,
		log:     log.With().Str("component", "monitor_handler").Logger(),
		closing: make(chan struct{}),
	}
}

// Shutdown ends every open stream so the HTTP server can drain.
func (h *MonitorHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:id/monitor
// Streams a snapshot of session counts, then every session event of the
// exam as it happens. Counts are refreshed periodically.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := parseID(c, "id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()

	counts, err := h.monitor.Snapshot(reqCtx, examID)
	if err != nil {
		respondError(c, err)
		return
	}

	pubsub := h.monitor.Subscribe(reqCtx, examID)
	defer pubsub.Close()
	// Wait for the subscription to be confirmed so no event slips between snapshot and stream.
	if _, err := pubsub.Receive(reqCtx); err != nil {
		respondError(c, err)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("snapshot", counts)
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return false

		case <-h.closing:
			return false

		case msg, open := <-ch:
			if !open {
				return false
			}
			// Payload is already a JSON-encoded MonitorEvent.
			c.Render(-1, sseRaw{event: "session", data: msg.Payload})
			return true

		case <-refreshTicker.C:
			ctx, cancel := context.WithTimeout(reqCtx, refreshTimeout)
			defer cancel()
			counts, err := h.monitor.Snapshot(ctx, examID)
			if err != nil {
				h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Monitor refresh failed")
				return true
			}
			c.SSEvent("snapshot", counts)
			return true

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"time": time.Now().UTC()})
			return true
		}
	})
}

// sseRaw writes a pre-encoded JSON payload as one SSE event.
type sseRaw struct {
	event string
	data  string
}

func (r sseRaw) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	_, err := io.WriteString(w, "event:"+r.event+"\ndata:"+r.data+"\n\n")
	return err
}

func (r sseRaw) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
}
