package handlers

import (
	"net/http"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/services"
)

// QuotaHandler surfaces the store-side quota RPC. Enforcement is the
// caller's concern; quote creation never blocks on it here.
type QuotaHandler struct {
	Quota *services.QuotaService
}

func NewQuotaHandler(quota *services.QuotaService) *QuotaHandler {
	return &QuotaHandler{Quota: quota}
}

// Check: GET /quota
func (h *QuotaHandler) Check(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	q, err := h.Quota.Check(r.Context(), p.AuthUserID)
	if err != nil {
		httpx.JSONError(w, http.StatusServiceUnavailable, "quota_check_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}
