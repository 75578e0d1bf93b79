package services

import (
	"context"
	"errors"

	"github.com/diewo77/proposals-app/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogService guarantees that every product referenced by a quote exists
// in the tenant's catalog before the quote is written. It favors quote
// completion over catalog cleanliness: a stale, client-invented or
// cross-tenant product id yields a fresh catalog row instead of a failure.
type CatalogService struct{ DB *gorm.DB }

func NewCatalogService(db *gorm.DB) *CatalogService { return &CatalogService{DB: db} }

// ItemInput is one quote line as supplied by the client. AdHoc lines carry no
// product reference at all. Catalog lines may reference an existing product
// or a client-side stub that was never persisted.
type ItemInput struct {
	ID          string  `json:"id"` // quote item id on edit, empty on create
	AdHoc       bool    `json:"ad_hoc"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	BasePrice   float64 `json:"base_price"`
	Options     string  `json:"options"`
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Notes       string  `json:"notes"`
}

// plausibleProductID reports whether id could have been issued by this store.
// Anything else (empty, client temp ids, the legacy poison value) is treated
// as a new product.
func plausibleProductID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}

// ReconcileProducts returns, per input item, the persisted product id the
// line should reference (nil for ad-hoc lines). Existing ids are verified in
// one batched, tenant-scoped read; every miss is materialized as a new
// product row. A creation failure aborts with ReconciliationError before any
// quote row is written.
func (s *CatalogService) ReconcileProducts(ctx context.Context, businessID string, items []ItemInput) ([]*string, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if !it.AdHoc && plausibleProductID(it.ProductID) {
			ids = append(ids, it.ProductID)
		}
	}
	known := map[string]bool{}
	if len(ids) > 0 {
		var existing []models.Product
		if err := s.DB.WithContext(ctx).Select("id").
			Where("business_id = ? AND id IN ?", businessID, ids).
			Find(&existing).Error; err != nil {
			return nil, &ReconciliationError{Entity: "product", Cause: err}
		}
		for _, p := range existing {
			known[p.ID] = true
		}
	}

	resolved := make([]*string, len(items))
	for i, it := range items {
		if it.AdHoc {
			continue
		}
		if known[it.ProductID] {
			id := it.ProductID
			resolved[i] = &id
			continue
		}
		p := models.Product{
			BusinessID: businessID,
			Name:       it.ProductName,
			Category:   it.Category,
			Unit:       it.Unit,
			BasePrice:  it.BasePrice,
			Options:    it.Options,
		}
		if p.Name == "" {
			p.Name = it.Name
		}
		if p.Category == "" {
			p.Category = "general"
		}
		if p.Unit == "" {
			p.Unit = "unit"
		}
		if p.BasePrice == 0 {
			p.BasePrice = it.UnitPrice
		}
		if err := s.DB.WithContext(ctx).Create(&p).Error; err != nil {
			return nil, &ReconciliationError{Entity: "product", Cause: err}
		}
		id := p.ID
		resolved[i] = &id
	}
	return resolved, nil
}

// ResolveCustomer returns an existing tenant-scoped customer or creates one
// from the supplied contact fields. Used by the quote ledger before any
// header row exists.
func (s *CatalogService) ResolveCustomer(ctx context.Context, businessID, customerID, name, email, phone string) (string, error) {
	if customerID != "" {
		var c models.Customer
		err := s.DB.WithContext(ctx).Where("business_id = ? AND id = ?", businessID, customerID).First(&c).Error
		if err == nil {
			return c.ID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &ReconciliationError{Entity: "customer", Cause: err}
		}
		// stale id: fall through and create from the contact fields
	}
	c := models.Customer{BusinessID: businessID, Name: name, Email: email, Phone: phone}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return "", &ReconciliationError{Entity: "customer", Cause: err}
	}
	return c.ID, nil
}
