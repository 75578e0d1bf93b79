package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/services"
)

// QuoteHandler is the JSON surface over the quote ledger. Every mutating
// endpoint resolves the tenant first; the resolved id is memoized in the
// session-scoped cache and dropped on sign-out.
type QuoteHandler struct {
	Tenant *services.TenantService
	Quotes *services.QuoteService
	Cache  *services.TenantCache
}

func NewQuoteHandler(tenant *services.TenantService, quotes *services.QuoteService, cache *services.TenantCache) *QuoteHandler {
	return &QuoteHandler{Tenant: tenant, Quotes: quotes, Cache: cache}
}

func (h *QuoteHandler) businessFor(r *http.Request) (string, bool) {
	return resolveBusiness(r, h.Tenant, h.Cache)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", verr.Violations)
		return
	}
	var rerr *services.ReconciliationError
	if errors.As(err, &rerr) {
		httpx.JSONError(w, http.StatusBadGateway, "reconciliation_failed", map[string]string{"entity": rerr.Entity})
		return
	}
	var perr *services.PartialWriteError
	if errors.As(err, &perr) {
		httpx.JSONPartialWrite(w, perr.QuoteID)
		return
	}
	if errors.Is(err, services.ErrQuoteNotFound) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}

// List: GET /quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	quotes, total, err := h.Quotes.List(r.Context(), businessID, limit, offset)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_quotes", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": quotes, "total": total, "limit": limit, "offset": offset})
}

// Create: POST /quotes
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	var in services.QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	q, err := h.Quotes.Create(r.Context(), businessID, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdSummary(q))
}

func createdSummary(q *models.Quote) map[string]any {
	return map[string]any{
		"id":         q.ID,
		"number":     q.Number,
		"status":     q.Status,
		"subtotal":   q.Subtotal,
		"vat_amount": q.VATAmount,
		"total":      q.Total,
	}
}

// Get: GET /quotes/get?id=...
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	q, err := h.Quotes.Get(r.Context(), businessID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Update: POST /quotes/update?id=...
func (h *QuoteHandler) Update(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	var in services.QuoteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	q, err := h.Quotes.Update(r.Context(), businessID, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// Duplicate: POST /quotes/duplicate?id=...
func (h *QuoteHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	q, err := h.Quotes.Duplicate(r.Context(), businessID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createdSummary(q))
}

// Delete: POST /quotes/delete?id=...
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	if err := h.Quotes.Delete(r.Context(), businessID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ToggleSignature: POST /quotes/signature?id=...
func (h *QuoteHandler) ToggleSignature(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	q, err := h.Quotes.ToggleSignature(r.Context(), businessID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// SetStatus: POST /quotes/status?id=...&status=sent
func (h *QuoteHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.businessFor(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	status := models.QuoteStatus(r.URL.Query().Get("status"))
	if id == "" || status == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id_or_status", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	if err := h.Quotes.SetStatus(r.Context(), businessID, id, status); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// PurgeOrphans: POST /quotes/purge-orphans — opt-in sweep of header-only
// quotes older than the configured threshold.
func (h *QuoteHandler) PurgeOrphans(maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		businessID, ok := h.businessFor(r)
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if demoWriteBlocked(w, businessID) {
			return
		}
		n, err := h.Quotes.PurgeOrphans(r.Context(), businessID, maxAge)
		if err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "purge_failed", nil)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"purged": n})
	}
}
