package handlers

import (
	"errors"
	"net/http"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/services"
)

// resolveBusiness maps the request's principal to its business id. The
// resolved id is memoized in the session-scoped cache; a degraded resolution
// still yields a usable id but skips the cache so the next call can
// self-heal.
func resolveBusiness(r *http.Request, tenant *services.TenantService, cache *services.TenantCache) (string, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	if id, ok := cache.Get(p.AuthUserID); ok {
		return id, true
	}
	id, err := tenant.Resolve(r.Context(), p)
	if err != nil {
		var degraded *services.ProvisioningDegradedError
		if !errors.As(err, &degraded) || id == "" {
			return "", false
		}
		return id, true
	}
	cache.Put(p.AuthUserID, id)
	return id, true
}

// demoWriteBlocked rejects mutations for the demo tenant: the guest principal
// short-circuits all persistence, so its fixed business stays read-only.
func demoWriteBlocked(w http.ResponseWriter, businessID string) bool {
	if businessID != models.DemoBusinessID {
		return false
	}
	httpx.JSONError(w, http.StatusForbidden, "demo_read_only", nil)
	return true
}
