package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/cliptray/cliptrayd/internal/events"
)

type StatusHandler struct {
	ready   *atomic.Bool
	version string
	bus     *events.Bus
	logger  *slog.Logger
}

func NewStatusHandler(ready *atomic.Bool, version string, bus *events.Bus, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{ready: ready, version: version, bus: bus, logger: logger}
}

// HandleHealth reports liveness and whether the database is ready.
//
// HTTP: GET /api/health
func (h *StatusHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if !h.ready.Load() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":   "ok",
		"db_ready": h.ready.Load(),
		"version":  h.version,
	})
}

// HandleEvents streams domain events as server-sent events. The stream stays
// open until the client disconnects.
//
// HTTP: GET /api/events
func (h *StatusHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.bus.Subscribe(r.Context())
	for ev := range ch {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("marshal event", "event", ev.Name, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
			return
		}
		flusher.Flush()
	}
}
