package handler

import (
	"log/slog"
	"net/http"

	"github.com/cliptray/cliptrayd/internal/updater"
)

type UpdateHandler struct {
	manager *updater.Manager
	logger  *slog.Logger
}

func NewUpdateHandler(manager *updater.Manager, logger *slog.Logger) *UpdateHandler {
	return &UpdateHandler{manager: manager, logger: logger}
}

// HandleCheck queries the release feed for a newer version.
//
// HTTP: GET /api/update/check
func (h *UpdateHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.Check(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleDownload fetches the installer for the given asset URL. Progress is
// published on the event stream while the download runs.
//
// HTTP: POST /api/update/download
func (h *UpdateHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	info, err := h.manager.Download(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleCancel aborts an in-progress download.
//
// HTTP: POST /api/update/cancel
func (h *UpdateHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"cancelled": h.manager.Cancel(),
	})
}

// HandleInstall launches a previously downloaded installer.
//
// HTTP: POST /api/update/install
func (h *UpdateHandler) HandleInstall(w http.ResponseWriter, r *http.Request) {
	var req updater.InstallerInfo
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.manager.Install(&req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
