package handler

import (
	"log/slog"
	"net/http"

	"github.com/cliptray/cliptrayd/internal/netx"
	"github.com/cliptray/cliptrayd/internal/service"
)

type SyncHandler struct {
	engine  *service.SyncEngine
	network *netx.Monitor
	logger  *slog.Logger
}

func NewSyncHandler(engine *service.SyncEngine, network *netx.Monitor, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{engine: engine, network: network, logger: logger}
}

// HandleSyncNow triggers an immediate sync pass.
//
// HTTP: POST /api/sync
func (h *SyncHandler) HandleSyncNow(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.SyncNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleNetworkStatus reports the cached connectivity state.
//
// HTTP: GET /api/network
func (h *SyncHandler) HandleNetworkStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"online": h.network.Online(r.Context()),
	})
}

// HandleNetworkHint lets the client report its own connectivity observation,
// overriding the probe cache until the next check.
//
// HTTP: PUT /api/network
func (h *SyncHandler) HandleNetworkHint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.network.SetHint(req.Online)
	h.logger.Debug("network hint applied", "online", req.Online)
	w.WriteHeader(http.StatusNoContent)
}
