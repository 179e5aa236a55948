package handler

import (
	"log/slog"
	"net/http"

	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/service"
)

// PlanHandler exposes the subscription tier and its refresh hook.
type PlanHandler struct {
	plans      *service.PlanService
	sessions   service.Sessions
	paymentURL string
	logger     *slog.Logger
}

func NewPlanHandler(plans *service.PlanService, sessions service.Sessions, paymentURL string, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, sessions: sessions, paymentURL: paymentURL, logger: logger}
}

// HandleGet returns the current plan and, for Free users, where to upgrade.
// The client polls this while the payment page is open, so the answer comes
// from the authority, with the local cache as the offline fallback.
//
// HTTP: GET /api/plan
func (h *PlanHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.plans.CheckPayment(r.Context(), session.FirebaseUID)
	if err != nil {
		writeError(w, err)
		return
	}
	res := map[string]any{
		"plan": plan,
		"paid": plan == model.PlanPro,
	}
	if plan != model.PlanPro && h.paymentURL != "" {
		res["payment_url"] = h.paymentURL
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleRefresh re-reads the payment authority and returns the resulting
// plan. Authority failures fall back to the locally cached records.
//
// HTTP: POST /api/plan/refresh
func (h *PlanHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	h.plans.Refresh(r.Context(), session.FirebaseUID)
	h.HandleGet(w, r)
}
