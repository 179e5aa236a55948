package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/auth"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/service"
)

// AuthHandler drives the login flow: the client opens the auth URL in a
// browser, the loopback redirect delivers a code, and the daemon exchanges
// and verifies it.
type AuthHandler struct {
	provider *auth.GoogleProvider
	verifier auth.TokenVerifier
	sessions *auth.SessionManager
	plans    *service.PlanService
	logger   *slog.Logger
}

func NewAuthHandler(provider *auth.GoogleProvider, verifier auth.TokenVerifier, sessions *auth.SessionManager, plans *service.PlanService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		verifier: verifier,
		sessions: sessions,
		plans:    plans,
		logger:   logger,
	}
}

// HandleLoginURL starts a login and returns the browser URL.
//
// HTTP: POST /api/auth/url
func (h *AuthHandler) HandleLoginURL(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	writeJSON(w, http.StatusOK, map[string]string{
		"url":   h.provider.AuthURL(state),
		"state": state,
	})
}

// HandleLogin completes a login. The request carries either the OAuth code
// and state from the loopback redirect (identity resolved via Google's
// userinfo endpoint) or a Firebase ID token obtained elsewhere.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		State   string `json:"state"`
		IDToken string `json:"id_token"`
		Signup  bool   `json:"signup"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var identity *auth.Identity
	var err error
	switch {
	case req.IDToken != "":
		identity, err = h.verifier.Verify(r.Context(), req.IDToken)
		if err != nil {
			h.logger.Warn("token verification failed", "error", err)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "identity token could not be verified",
			})
			return
		}
	case req.Code != "":
		identity, err = h.provider.Exchange(r.Context(), req.State, req.Code)
		if err != nil {
			h.logger.Warn("code exchange failed", "error", err)
			writeError(w, err)
			return
		}
	default:
		writeError(w, apperror.ValidationFailed("body", "either code or id_token is required"))
		return
	}

	var user *model.User
	if req.Signup {
		user, err = h.sessions.Signup(r.Context(), identity)
	} else {
		user, err = h.sessions.Login(r.Context(), identity)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	// billing refresh happens off the request path
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.plans.Refresh(ctx, user.FirebaseUID)
	}()

	writeJSON(w, http.StatusOK, user.Response())
}

// HandleRestore re-activates the persisted session from a previous run.
//
// HTTP: POST /api/auth/restore
func (h *AuthHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Restore(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	h.HandleSession(w, r)
}

// HandleLogout ends the session.
//
// HTTP: POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSession reports the current session and plan.
//
// HTTP: GET /api/auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current()
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := h.plans.PlanFor(r.Context(), session.FirebaseUID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"firebase_uid":    session.FirebaseUID,
		"email":           session.Email,
		"organization_id": session.OrganizationID,
		"plan":            plan,
	})
}
