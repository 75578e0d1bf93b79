package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/pricing"
	"github.com/diewo77/proposals-app/validation"
	"gorm.io/gorm"
)

// QuoteService persists quote documents as a best-effort multi-row write.
// The store offers no cross-row transaction to this client, so the header
// and its items are written in two steps with a defined partial-failure
// contract: a header without items is a recoverable state resumed through
// the edit path, never corruption.
type QuoteService struct {
	DB      *gorm.DB
	Catalog *CatalogService
}

func NewQuoteService(db *gorm.DB, catalog *CatalogService) *QuoteService {
	return &QuoteService{DB: db, Catalog: catalog}
}

var ErrQuoteNotFound = errors.New("quote_not_found")

// SignerLabel is the fixed label recorded by the manual signature toggle.
const SignerLabel = "Signed manually"

// QuoteInput is everything the client supplies to create or edit a quote.
type QuoteInput struct {
	CustomerID      string               `json:"customer_id"`
	CustomerName    string               `json:"customer_name"`
	CustomerEmail   string               `json:"customer_email"`
	CustomerPhone   string               `json:"customer_phone"`
	Items           []ItemInput          `json:"items"`
	VATRate         float64              `json:"vat_rate"`
	DiscountType    pricing.DiscountType `json:"discount_type"`
	DiscountValue   float64              `json:"discount_value"`
	IncludeDiscount bool                 `json:"include_discount"`
	DeliveryDate    time.Time            `json:"delivery_date"`
	PaymentTerms    string               `json:"payment_terms"`
	Notes           string               `json:"notes"`
}

func (in QuoteInput) validate() *ValidationError {
	v := validation.Violations{}
	if in.CustomerID == "" {
		validation.Required("customer_name", in.CustomerName, v)
	}
	validation.NonEmptySlice("items", in.Items, v)
	validation.RequiredDate("delivery_date", in.DeliveryDate, v)
	validation.RangeFloat("vat_rate", in.VATRate, 0, 100, v)
	for _, it := range in.Items {
		validation.MinInt("quantity", it.Quantity, 1, v)
	}
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

func (in QuoteInput) discount() pricing.Discount {
	if !in.IncludeDiscount {
		return pricing.Discount{}
	}
	return pricing.Discount{Type: in.DiscountType, Value: in.DiscountValue}
}

// sequenceNumber derives the human-readable quote label from the epoch
// millisecond clock. Collision-tolerant by design: true identity is the
// generated row id, the number is a display handle.
func sequenceNumber(now time.Time) string {
	return fmt.Sprintf("Q%05d", now.UnixMilli()%100000)
}

func totalsFor(items []ItemInput, vatRate float64, d pricing.Discount) pricing.Totals {
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity}
	}
	return pricing.ComputeTotals(lines, vatRate, d)
}

// applyTotals stamps clamped, integer-safe figures onto the header. This is
// the single point where the numeric guard runs for header money columns.
func applyTotals(q *models.Quote, t pricing.Totals, vatRate float64) {
	q.Subtotal = pricing.Clamp(t.NetSubtotal, pricing.Money)
	q.DiscountValue = pricing.Clamp(t.DiscountValue, pricing.Money)
	q.VATRate = pricing.Clamp(vatRate, pricing.Percent)
	q.VATAmount = pricing.Clamp(t.VATAmount, pricing.Money)
	q.Total = pricing.Clamp(t.Total, pricing.Money)
}

func buildItem(quoteID string, in ItemInput, productID *string) models.QuoteItem {
	qty := pricing.Clamp(float64(in.Quantity), pricing.Quantity)
	price := pricing.Clamp(in.UnitPrice, pricing.Money)
	return models.QuoteItem{
		QuoteID:   quoteID,
		ProductID: productID,
		Name:      in.Name,
		Quantity:  int(qty),
		UnitPrice: price,
		LineTotal: pricing.Clamp(qty*price, pricing.Money),
		Notes:     in.Notes,
	}
}

// Create validates, resolves the customer, reconciles products, computes and
// clamps totals, then writes header and items. The item batch failing after
// the header succeeded leaves an orphaned header and returns
// PartialWriteError carrying its id.
func (s *QuoteService) Create(ctx context.Context, businessID string, in QuoteInput) (*models.Quote, error) {
	businessID = models.NormalizeBusinessID(businessID)
	if businessID == "" {
		return nil, &ValidationError{Violations: validation.Violations{"business_id": "required"}}
	}
	if verr := in.validate(); verr != nil {
		return nil, verr
	}

	customerID, err := s.Catalog.ResolveCustomer(ctx, businessID, in.CustomerID, in.CustomerName, in.CustomerEmail, in.CustomerPhone)
	if err != nil {
		return nil, err
	}
	productIDs, err := s.Catalog.ReconcileProducts(ctx, businessID, in.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	totals := totalsFor(in.Items, in.VATRate, in.discount())
	q := models.Quote{
		BusinessID:      businessID,
		CustomerID:      customerID,
		Number:          sequenceNumber(now),
		Status:          models.StatusPending,
		SignatureStatus: models.SignaturePending,
		IncludeDiscount: in.IncludeDiscount,
		DeliveryDate:    in.DeliveryDate,
		PaymentTerms:    in.PaymentTerms,
		Notes:           in.Notes,
	}
	applyTotals(&q, totals, in.VATRate)

	// Header first; abort before touching items if it fails.
	if err := s.DB.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, fmt.Errorf("quote header insert: %w", err)
	}
	items := make([]models.QuoteItem, len(in.Items))
	for i, it := range in.Items {
		items[i] = buildItem(q.ID, it, productIDs[i])
	}
	if err := s.DB.WithContext(ctx).Create(&items).Error; err != nil {
		log.Printf("quote %s items insert failed, header left orphaned: %v", q.ID, err)
		return nil, &PartialWriteError{QuoteID: q.ID, Cause: err}
	}
	q.Items = items

	s.bumpCounters(ctx, businessID, now)
	return &q, nil
}

// bumpCounters advances the monotonic counters with store-side increments.
// Never a client read-modify-write: the store serializes the expressions.
// Month rollover resets the monthly counter first, guarded by the reset date.
func (s *QuoteService) bumpCounters(ctx context.Context, businessID string, now time.Time) {
	month := startOfMonth(now)
	if err := s.DB.WithContext(ctx).Model(&models.Business{}).
		Where("id = ? AND counters_reset_at < ?", businessID, month).
		Updates(map[string]any{"monthly_quotes_created": 0, "counters_reset_at": month}).Error; err != nil {
		log.Printf("counter reset failed for business %s: %v", businessID, err)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Business{}).
		Where("id = ?", businessID).
		Updates(map[string]any{
			"monthly_quotes_created": gorm.Expr("monthly_quotes_created + 1"),
			"total_quotes_created":   gorm.Expr("total_quotes_created + 1"),
		}).Error; err != nil {
		log.Printf("counter bump failed for business %s: %v", businessID, err)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Settings{}).
		Where("business_id = ? AND counters_reset_at < ?", businessID, month).
		Updates(map[string]any{"monthly_quotes_created": 0, "counters_reset_at": month}).Error; err != nil {
		log.Printf("legacy counter reset failed for business %s: %v", businessID, err)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Settings{}).
		Where("business_id = ?", businessID).
		Updates(map[string]any{
			"monthly_quotes_created": gorm.Expr("monthly_quotes_created + 1"),
			"total_quotes_created":   gorm.Expr("total_quotes_created + 1"),
		}).Error; err != nil {
		log.Printf("legacy counter bump failed for business %s: %v", businessID, err)
	}
}

// Get returns a tenant-scoped quote with items.
func (s *QuoteService) Get(ctx context.Context, businessID, quoteID string) (*models.Quote, error) {
	var q models.Quote
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("business_id = ? AND id = ?", models.NormalizeBusinessID(businessID), quoteID).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns the tenant's quotes, newest first, items preloaded.
func (s *QuoteService) List(ctx context.Context, businessID string, limit, offset int) ([]models.Quote, int64, error) {
	businessID = models.NormalizeBusinessID(businessID)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	dbq := s.DB.WithContext(ctx).Where("business_id = ?", businessID)
	var total int64
	dbq.Model(&models.Quote{}).Count(&total)
	var quotes []models.Quote
	if err := dbq.Preload("Items").Order("created_at desc").Limit(limit).Offset(offset).Find(&quotes).Error; err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

// Update rewrites the item set and recomputes the header from it: removed
// items are deleted, surviving ones updated in place, new ones inserted,
// and the header totals overwritten so the header is always a derived
// projection of its items.
func (s *QuoteService) Update(ctx context.Context, businessID, quoteID string, in QuoteInput) (*models.Quote, error) {
	q, err := s.Get(ctx, businessID, quoteID)
	if err != nil {
		return nil, err
	}
	if verr := in.validate(); verr != nil {
		return nil, verr
	}
	productIDs, err := s.Catalog.ReconcileProducts(ctx, q.BusinessID, in.Items)
	if err != nil {
		return nil, err
	}

	keep := map[string]bool{}
	for _, it := range in.Items {
		if it.ID != "" {
			keep[it.ID] = true
		}
	}
	for _, existing := range q.Items {
		if !keep[existing.ID] {
			if err := s.DB.WithContext(ctx).Delete(&models.QuoteItem{}, "id = ?", existing.ID).Error; err != nil {
				return nil, &PartialWriteError{QuoteID: q.ID, Cause: err}
			}
		}
	}
	existingByID := map[string]models.QuoteItem{}
	for _, it := range q.Items {
		existingByID[it.ID] = it
	}
	for i, it := range in.Items {
		next := buildItem(q.ID, it, productIDs[i])
		if it.ID != "" {
			if _, ok := existingByID[it.ID]; ok {
				next.ID = it.ID
				if err := s.DB.WithContext(ctx).Model(&models.QuoteItem{}).Where("id = ?", it.ID).
					Updates(map[string]any{
						"product_id": next.ProductID,
						"name":       next.Name,
						"quantity":   next.Quantity,
						"unit_price": next.UnitPrice,
						"line_total": next.LineTotal,
						"notes":      next.Notes,
					}).Error; err != nil {
					return nil, &PartialWriteError{QuoteID: q.ID, Cause: err}
				}
				continue
			}
		}
		if err := s.DB.WithContext(ctx).Create(&next).Error; err != nil {
			return nil, &PartialWriteError{QuoteID: q.ID, Cause: err}
		}
	}

	totals := totalsFor(in.Items, in.VATRate, in.discount())
	applyTotals(q, totals, in.VATRate)
	q.IncludeDiscount = in.IncludeDiscount
	q.DeliveryDate = in.DeliveryDate
	q.PaymentTerms = in.PaymentTerms
	q.Notes = in.Notes
	if err := s.DB.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", q.ID).
		Updates(map[string]any{
			"subtotal":         q.Subtotal,
			"discount_value":   q.DiscountValue,
			"include_discount": q.IncludeDiscount,
			"vat_rate":         q.VATRate,
			"vat_amount":       q.VATAmount,
			"total":            q.Total,
			"delivery_date":    q.DeliveryDate,
			"payment_terms":    q.PaymentTerms,
			"notes":            q.Notes,
		}).Error; err != nil {
		return nil, fmt.Errorf("quote header update: %w", err)
	}
	return s.Get(ctx, businessID, quoteID)
}

// Duplicate runs the create path against a copy of an existing quote: new id
// and number, status reset to initial, customer and items preserved.
func (s *QuoteService) Duplicate(ctx context.Context, businessID, quoteID string) (*models.Quote, error) {
	src, err := s.Get(ctx, businessID, quoteID)
	if err != nil {
		return nil, err
	}
	in := QuoteInput{
		CustomerID:      src.CustomerID,
		VATRate:         src.VATRate,
		IncludeDiscount: src.IncludeDiscount,
		DeliveryDate:    src.DeliveryDate,
		PaymentTerms:    src.PaymentTerms,
		Notes:           src.Notes,
	}
	if src.IncludeDiscount && src.DiscountValue > 0 {
		in.DiscountType = pricing.DiscountAbsolute
		in.DiscountValue = src.DiscountValue
	}
	for _, it := range src.Items {
		item := ItemInput{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Notes:     it.Notes,
		}
		if it.ProductID != nil {
			item.ProductID = *it.ProductID
			item.ProductName = it.Name
		} else {
			item.AdHoc = true
		}
		in.Items = append(in.Items, item)
	}
	return s.Create(ctx, businessID, in)
}

// SetStatus advances the workflow status on explicit user action. It is never
// inferred from the signature axis.
func (s *QuoteService) SetStatus(ctx context.Context, businessID, quoteID string, status models.QuoteStatus) error {
	if !status.Valid() {
		return &ValidationError{Violations: validation.Violations{"status": "unknown"}}
	}
	q, err := s.Get(ctx, businessID, quoteID)
	if err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", q.ID).
		Update("status", status).Error
}

// ToggleSignature is the only writer of the signature fields. Signing stamps
// the fixed signer label and timestamp; reverting clears both.
func (s *QuoteService) ToggleSignature(ctx context.Context, businessID, quoteID string) (*models.Quote, error) {
	q, err := s.Get(ctx, businessID, quoteID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	switch q.SignatureStatus {
	case models.SignatureSigned:
		updates["signature_status"] = models.SignaturePending
		updates["signer_name"] = ""
		updates["signed_at"] = nil
	case models.SignaturePending:
		now := time.Now()
		updates["signature_status"] = models.SignatureSigned
		updates["signer_name"] = SignerLabel
		updates["signed_at"] = &now
	default:
		return nil, &ValidationError{Violations: validation.Violations{"signature_status": "unknown"}}
	}
	if err := s.DB.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", q.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, businessID, quoteID)
}

// Delete removes a quote and its items; items go first so a failure cannot
// strand items without a header.
func (s *QuoteService) Delete(ctx context.Context, businessID, quoteID string) error {
	q, err := s.Get(ctx, businessID, quoteID)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.QuoteItem{}, "quote_id = ?", q.ID).Error; err != nil {
		return err
	}
	return s.DB.WithContext(ctx).Delete(&models.Quote{}, "id = ?", q.ID).Error
}

// PurgeOrphans deletes header-only quotes older than the threshold. The
// partial-write window is an accepted store limitation; this sweep is an
// explicit opt-in cleanup, not an implicit repair.
func (s *QuoteService) PurgeOrphans(ctx context.Context, businessID string, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.DB.WithContext(ctx).
		Where("business_id = ? AND created_at < ?", models.NormalizeBusinessID(businessID), cutoff).
		Where("id NOT IN (?)", s.DB.Model(&models.QuoteItem{}).Select("quote_id")).
		Delete(&models.Quote{})
	return res.RowsAffected, res.Error
}
