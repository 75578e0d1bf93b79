package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/diewo77/proposals-app/internal/models"
	"github.com/diewo77/proposals-app/internal/pricing"
	"gorm.io/gorm"
)

func newQuoteService(db *gorm.DB) *QuoteService {
	return NewQuoteService(db, NewCatalogService(db))
}

func seedBusiness(t *testing.T, db *gorm.DB) models.Business {
	t.Helper()
	b := models.Business{Name: "Acme", Email: "acme@test", VATRate: 18, CountersResetAt: startOfMonth(time.Now())}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	s := models.Settings{BusinessID: b.ID, BusinessName: b.Name, DefaultVATRate: 18, CountersResetAt: startOfMonth(time.Now())}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	return b
}

func sampleInput() QuoteInput {
	return QuoteInput{
		CustomerName: "Dana",
		VATRate:      18,
		DeliveryDate: time.Now().AddDate(0, 0, 14),
		PaymentTerms: "Net 30",
		Items: []ItemInput{
			{Name: "Oak Table", ProductName: "Oak Table", Quantity: 2, UnitPrice: 118},
			{AdHoc: true, Name: "Delivery", Quantity: 1, UnitPrice: 59},
		},
	}
}

func TestQuoteCreate(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	q, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.ID == "" || q.CustomerID == "" {
		t.Fatalf("missing ids: %#v", q)
	}
	if !strings.HasPrefix(q.Number, "Q") || len(q.Number) != 6 {
		t.Fatalf("bad sequence number %q", q.Number)
	}
	if q.Status != models.StatusPending || q.SignatureStatus != models.SignaturePending {
		t.Fatalf("bad initial lifecycle: %s/%s", q.Status, q.SignatureStatus)
	}
	if len(q.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(q.Items))
	}
	// gross 2*118 + 59 = 295 -> net 250, vat 45, total 295; all floored ints
	if q.Subtotal != 250 || q.VATAmount != 45 || q.Total != 295 {
		t.Fatalf("totals: subtotal=%v vat=%v total=%v", q.Subtotal, q.VATAmount, q.Total)
	}
	if q.Items[0].ProductID == nil {
		t.Fatalf("catalog item missing product reference")
	}
	if q.Items[1].ProductID != nil {
		t.Fatalf("ad-hoc item must have nil product reference")
	}
	if q.Items[0].LineTotal != 236 {
		t.Fatalf("line total %v want 236", q.Items[0].LineTotal)
	}

	var reloaded models.Business
	if err := db.First(&reloaded, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload business: %v", err)
	}
	if reloaded.TotalQuotesCreated != 1 || reloaded.MonthlyQuotesCreated != 1 {
		t.Fatalf("counters not bumped: total=%d monthly=%d", reloaded.TotalQuotesCreated, reloaded.MonthlyQuotesCreated)
	}
	var shadow models.Settings
	if err := db.First(&shadow, "business_id = ?", b.ID).Error; err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if shadow.TotalQuotesCreated != 1 {
		t.Fatalf("legacy counter not bumped: %d", shadow.TotalQuotesCreated)
	}
}

func TestQuoteCreateValidation(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	in := sampleInput()
	in.Items = nil
	in.DeliveryDate = time.Time{}
	_, err := svc.Create(context.Background(), b.ID, in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError got %v", err)
	}
	if verr.Violations["items"] == "" || verr.Violations["delivery_date"] == "" {
		t.Fatalf("missing violations: %#v", verr.Violations)
	}
	var count int64
	db.Model(&models.Quote{}).Count(&count)
	if count != 0 {
		t.Fatalf("validation failure must persist nothing, found %d quotes", count)
	}
}

func TestQuoteCreateRejectsBadQuantityAndVAT(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	in := sampleInput()
	in.VATRate = 150
	in.Items[0].Quantity = 0
	_, err := svc.Create(context.Background(), b.ID, in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError got %v", err)
	}
	if verr.Violations["vat_rate"] != "out_of_range" {
		t.Fatalf("vat_rate violation missing: %#v", verr.Violations)
	}
	if verr.Violations["quantity"] != "too_small" {
		t.Fatalf("quantity violation missing: %#v", verr.Violations)
	}
}

func TestQuoteCreateClampsExtremes(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	in := sampleInput()
	in.Items = []ItemInput{{AdHoc: true, Name: "Absurd", Quantity: 99999, UnitPrice: math.MaxFloat64}}
	q, err := svc.Create(context.Background(), b.ID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if q.Total > 1_000_000 {
		t.Fatalf("total above money ceiling: %v", q.Total)
	}
	if q.Items[0].Quantity > 10_000 {
		t.Fatalf("quantity above ceiling: %v", q.Items[0].Quantity)
	}
	if q.Items[0].UnitPrice > 1_000_000 {
		t.Fatalf("unit price above ceiling: %v", q.Items[0].UnitPrice)
	}
}

func TestQuoteCreatePoisonedBusinessRejected(t *testing.T) {
	db := setupTestDB(t)
	seedBusiness(t, db)
	svc := newQuoteService(db)

	_, err := svc.Create(context.Background(), models.LegacyPoisonBusinessID, sampleInput())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for poisoned id, got %v", err)
	}
}

func TestQuoteUpdateRecomputesHeader(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	in := sampleInput()
	in.Items = append(in.Items, ItemInput{AdHoc: true, Name: "Setup", Quantity: 1, UnitPrice: 118})
	q, err := svc.Create(context.Background(), b.ID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Remove one of three items, change a remaining quantity.
	edit := QuoteInput{
		CustomerID:   q.CustomerID,
		VATRate:      18,
		DeliveryDate: q.DeliveryDate,
		Items: []ItemInput{
			{ID: q.Items[0].ID, Name: q.Items[0].Name, Quantity: 5, UnitPrice: q.Items[0].UnitPrice, ProductID: deref(q.Items[0].ProductID)},
			{ID: q.Items[1].ID, AdHoc: true, Name: q.Items[1].Name, Quantity: q.Items[1].Quantity, UnitPrice: q.Items[1].UnitPrice},
		},
	}
	updated, err := svc.Update(context.Background(), b.ID, q.ID, edit)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected 2 items got %d", len(updated.Items))
	}

	// Header must equal a fresh calculator run over the final item set.
	want := pricing.ComputeTotals([]pricing.Line{
		{UnitPrice: updated.Items[0].UnitPrice, Quantity: updated.Items[0].Quantity},
		{UnitPrice: updated.Items[1].UnitPrice, Quantity: updated.Items[1].Quantity},
	}, 18, pricing.Discount{})
	if updated.Subtotal != pricing.Clamp(want.NetSubtotal, pricing.Money) {
		t.Fatalf("subtotal %v want %v", updated.Subtotal, pricing.Clamp(want.NetSubtotal, pricing.Money))
	}
	if updated.Total != pricing.Clamp(want.Total, pricing.Money) {
		t.Fatalf("total %v want %v", updated.Total, pricing.Clamp(want.Total, pricing.Money))
	}
	for _, it := range updated.Items {
		if it.ID == q.Items[0].ID && it.Quantity != 5 {
			t.Fatalf("quantity not updated in place: %d", it.Quantity)
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func TestQuoteDuplicate(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	in := sampleInput()
	in.Items = append(in.Items, ItemInput{AdHoc: true, Name: "Setup", Quantity: 3, UnitPrice: 40, Notes: "on site"})
	src, err := svc.Create(context.Background(), b.ID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ToggleSignature(context.Background(), b.ID, src.ID); err != nil {
		t.Fatalf("sign source: %v", err)
	}

	dup, err := svc.Duplicate(context.Background(), b.ID, src.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.ID == src.ID {
		t.Fatalf("duplicate reused id")
	}
	if dup.CustomerID != src.CustomerID {
		t.Fatalf("customer reference changed: %s vs %s", dup.CustomerID, src.CustomerID)
	}
	if dup.Status != models.StatusPending || dup.SignatureStatus != models.SignaturePending {
		t.Fatalf("lifecycle not reset: %s/%s", dup.Status, dup.SignatureStatus)
	}
	if len(dup.Items) != len(src.Items) {
		t.Fatalf("item count %d want %d", len(dup.Items), len(src.Items))
	}
	srcItems := map[string]models.QuoteItem{}
	for _, it := range src.Items {
		srcItems[it.Name] = it
	}
	for _, it := range dup.Items {
		want, ok := srcItems[it.Name]
		if !ok {
			t.Fatalf("unexpected item %q", it.Name)
		}
		if it.Quantity != want.Quantity || it.UnitPrice != want.UnitPrice || it.Notes != want.Notes {
			t.Fatalf("item %q diverged: %#v vs %#v", it.Name, it, want)
		}
	}
}

func TestToggleSignatureRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	q, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	signed, err := svc.ToggleSignature(context.Background(), b.ID, q.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signed.SignatureStatus != models.SignatureSigned || signed.SignerName != SignerLabel || signed.SignedAt == nil {
		t.Fatalf("sign state: %#v", signed)
	}
	if signed.Status != models.StatusPending {
		t.Fatalf("workflow status must not follow signature, got %s", signed.Status)
	}
	reverted, err := svc.ToggleSignature(context.Background(), b.ID, q.ID)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.SignatureStatus != models.SignaturePending || reverted.SignerName != "" || reverted.SignedAt != nil {
		t.Fatalf("revert state: %#v", reverted)
	}
}

func TestSetStatus(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	q, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.SetStatus(context.Background(), b.ID, q.ID, models.StatusSent); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := svc.Get(context.Background(), b.ID, q.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusSent {
		t.Fatalf("status %s want sent", got.Status)
	}
	var verr *ValidationError
	if err := svc.SetStatus(context.Background(), b.ID, q.ID, "archived"); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unknown status, got %v", err)
	}
}

func TestQuoteDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	q, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), b.ID, q.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var quotes, items int64
	db.Model(&models.Quote{}).Count(&quotes)
	db.Model(&models.QuoteItem{}).Count(&items)
	if quotes != 0 || items != 0 {
		t.Fatalf("cascade failed: quotes=%d items=%d", quotes, items)
	}
}

func TestPurgeOrphans(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	healthy, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	orphan := models.Quote{BusinessID: b.ID, CustomerID: healthy.CustomerID, Number: "Q99999", Status: models.StatusPending, SignatureStatus: models.SignaturePending, DeliveryDate: time.Now()}
	if err := db.Create(&orphan).Error; err != nil {
		t.Fatalf("seed orphan: %v", err)
	}
	if err := db.Model(&models.Quote{}).Where("id = ?", orphan.ID).
		Update("created_at", time.Now().Add(-48*time.Hour)).Error; err != nil {
		t.Fatalf("age orphan: %v", err)
	}

	n, err := svc.PurgeOrphans(context.Background(), b.ID, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d want 1", n)
	}
	if _, err := svc.Get(context.Background(), b.ID, healthy.ID); err != nil {
		t.Fatalf("healthy quote removed: %v", err)
	}
	if _, err := svc.Get(context.Background(), b.ID, orphan.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("orphan survived: %v", err)
	}
}

func TestGetScopedToTenant(t *testing.T) {
	db := setupTestDB(t)
	b := seedBusiness(t, db)
	svc := newQuoteService(db)

	q, err := svc.Create(context.Background(), b.ID, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), "other-biz", q.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("cross-tenant read allowed: %v", err)
	}
}
