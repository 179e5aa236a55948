package handler

import (
	"log/slog"
	"net/http"

	"github.com/cliptray/cliptrayd/internal/service"
)

// PurgeHandler exposes retention settings and manual purges.
type PurgeHandler struct {
	purge  *service.PurgeService
	logger *slog.Logger
}

func NewPurgeHandler(purge *service.PurgeService, logger *slog.Logger) *PurgeHandler {
	return &PurgeHandler{purge: purge, logger: logger}
}

// HandleGetSettings returns the current retention configuration.
//
// HTTP: GET /api/purge/settings
func (h *PurgeHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.purge.Settings(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSettings stores a new cadence and retain-tags flag. The
// cadence accepts either storage or display form.
//
// HTTP: PUT /api/purge/settings
func (h *PurgeHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PurgeCadence string `json:"purge_cadence"`
		RetainTags   bool   `json:"retain_tags"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PurgeCadence == "" {
		current, err := h.purge.Settings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		req.PurgeCadence = current.PurgeCadence
	}
	settings, err := h.purge.UpdateSettings(r.Context(), req.PurgeCadence, req.RetainTags)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandlePurgeNow runs a purge immediately. The stored retain-tags setting
// applies unless the retain_tags query parameter overrides it for this run.
//
// HTTP: POST /api/purge/run?retain_tags=
func (h *PurgeHandler) HandlePurgeNow(w http.ResponseWriter, r *http.Request) {
	var n int64
	var err error
	switch r.URL.Query().Get("retain_tags") {
	case "":
		n, err = h.purge.PurgeNow(r.Context())
	case "true":
		n, err = h.purge.PurgeWith(r.Context(), true)
	default:
		n, err = h.purge.PurgeWith(r.Context(), false)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
