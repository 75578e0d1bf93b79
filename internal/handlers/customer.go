package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/services"
	"github.com/diewo77/proposals-app/validation"
	"gorm.io/gorm"
)

type CustomerHandler struct {
	DB     *gorm.DB
	Tenant *services.TenantService
	Cache  *services.TenantCache
}

func NewCustomerHandler(db *gorm.DB, tenant *services.TenantService, cache *services.TenantCache) *CustomerHandler {
	return &CustomerHandler{DB: db, Tenant: tenant, Cache: cache}
}

func (h *CustomerHandler) scope(r *http.Request) (string, bool) {
	return resolveBusiness(r, h.Tenant, h.Cache)
}

// List: GET /customers
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.scope(r)
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
	var customers []models.Customer
	if err := h.DB.Where("business_id = ?", businessID).Order("name asc").Limit(limit).Find(&customers).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_customers", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": customers})
}

// Create: POST /customers
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.scope(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	var input struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", input.Name, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	c := models.Customer{BusinessID: businessID, Name: input.Name, Email: input.Email, Phone: input.Phone, Address: input.Address}
	if err := h.DB.Create(&c).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "customer_create_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}
