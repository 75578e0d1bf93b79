package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/services"
)

// SessionHandler exchanges an identity-provider principal for a signed
// session cookie. The authentication protocol itself happens upstream; this
// endpoint only trusts its outcome.
type SessionHandler struct {
	Cache *services.TenantCache
}

func NewSessionHandler(cache *services.TenantCache) *SessionHandler {
	return &SessionHandler{Cache: cache}
}

// Create: POST /session
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AuthUserID string `json:"auth_user_id"`
		Email      string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.AuthUserID == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"auth_user_id": "required"})
		return
	}
	auth.CreateSession(w, auth.Principal{AuthUserID: in.AuthUserID, Email: in.Email})
	httpx.JSON(w, http.StatusCreated, map[string]string{"status": "session_created"})
}

// Destroy: POST /session/logout — sign-out is the tenant cache invalidation
// trigger.
func (h *SessionHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		h.Cache.Invalidate(p.AuthUserID)
	}
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
