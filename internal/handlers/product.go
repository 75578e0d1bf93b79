package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/diewo77/proposals-app/httpx"
	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/services"
	"github.com/diewo77/proposals-app/validation"
	"gorm.io/gorm"
)

type ProductHandler struct {
	DB     *gorm.DB
	Tenant *services.TenantService
	Cache  *services.TenantCache
}

func NewProductHandler(db *gorm.DB, tenant *services.TenantService, cache *services.TenantCache) *ProductHandler {
	return &ProductHandler{DB: db, Tenant: tenant, Cache: cache}
}

func (h *ProductHandler) scope(r *http.Request) (string, bool) {
	return resolveBusiness(r, h.Tenant, h.Cache)
}

var unsafeQueryChars = regexp.MustCompile(`[^a-zA-Z0-9 \-_]`)

// List: GET /products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.scope(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	pageSize := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			pageSize = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * pageSize
		}
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	dbq := h.DB.Where("business_id = ?", businessID)
	if query != "" {
		safe := unsafeQueryChars.ReplaceAllString(query, "")
		like := "%" + strings.ToLower(safe) + "%"
		dbq = dbq.Where("lower(name) LIKE ? OR lower(category) LIKE ?", like, like)
	}
	var total int64
	dbq.Model(&models.Product{}).Count(&total)
	var products []models.Product
	if err := dbq.Order("created_at desc").Limit(pageSize).Offset(offset).Find(&products).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "failed_to_list_products", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": products, "total": total, "limit": pageSize, "offset": offset})
}

// Create: POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.scope(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if demoWriteBlocked(w, businessID) {
		return
	}
	var input struct {
		Name      string  `json:"name"`
		Category  string  `json:"category"`
		Unit      string  `json:"unit"`
		BasePrice float64 `json:"base_price"`
		Notes     string  `json:"notes"`
		Options   string  `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	v := validation.Violations{}
	validation.Required("name", input.Name, v)
	validation.PositiveFloat("base_price", input.BasePrice, v)
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return
	}
	p := models.Product{
		BusinessID: businessID,
		Name:       input.Name,
		Category:   choose(input.Category, "general"),
		Unit:       choose(input.Unit, "unit"),
		BasePrice:  input.BasePrice,
		Notes:      input.Notes,
		Options:    input.Options,
	}
	if err := h.DB.Create(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "product_create_failed", nil)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// Options: GET /products/options?id=... — parsed option list for one product.
func (h *ProductHandler) Options(w http.ResponseWriter, r *http.Request) {
	businessID, ok := h.scope(r)
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	var p models.Product
	if err := h.DB.Where("business_id = ? AND id = ?", businessID, id).First(&p).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	parsed := models.ParseOptionList(p.Options)
	httpx.JSON(w, http.StatusOK, map[string]any{"label": parsed.Label, "options": parsed.Options})
}

func choose(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
