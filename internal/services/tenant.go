package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/diewo77/proposals-app/auth"
	"github.com/diewo77/proposals-app/internal/models"
	"gorm.io/gorm"
)

// TenantService maps an authenticated principal to its business, provisioning
// the full record set the first time a principal is seen. Resolve is called on
// the hot path of every quote-mutating action, so every step is idempotent
// and a provisioning hiccup degrades to "retry next call" instead of failing
// the caller.
type TenantService struct{ DB *gorm.DB }

func NewTenantService(db *gorm.DB) *TenantService { return &TenantService{DB: db} }

var ErrMissingPrincipal = errors.New("missing_principal")

// Resolve returns the business id owned by p.
//
// Lookup order: demo sentinel, membership by auth user id, membership by
// email (re-auth under a different provider re-links the existing record
// instead of creating a duplicate business), business by email (recovers a
// tenant whose membership insert was lost), then full provisioning. The
// legacy shadow user and settings row are maintained before returning. Write
// failures past business creation are collected into a
// ProvisioningDegradedError that still carries a usable id.
func (s *TenantService) Resolve(ctx context.Context, p auth.Principal) (string, error) {
	if p.AuthUserID == "" && p.Email == "" {
		return "", ErrMissingPrincipal
	}
	if p.IsDemo() {
		return models.DemoBusinessID, nil
	}

	var degraded []error
	businessID := s.lookupByAuthUser(ctx, p, &degraded)
	if businessID == "" {
		businessID = s.relinkByEmail(ctx, p, &degraded)
	}
	if businessID == "" {
		businessID = s.adoptBusinessByEmail(ctx, p, &degraded)
	}
	if businessID == "" {
		id, err := s.provision(ctx, p, &degraded)
		if err != nil {
			return "", err
		}
		businessID = id
	}

	s.ensureLegacyUser(ctx, p, businessID, &degraded)
	s.ensureSettings(ctx, businessID, &degraded)

	if len(degraded) > 0 {
		err := &ProvisioningDegradedError{BusinessID: businessID, Cause: errors.Join(degraded...)}
		log.Printf("tenant resolve degraded: %v", err)
		return businessID, err
	}
	return businessID, nil
}

func (s *TenantService) lookupByAuthUser(ctx context.Context, p auth.Principal, degraded *[]error) string {
	var m models.Membership
	err := s.DB.WithContext(ctx).Where("auth_user_id = ?", p.AuthUserID).Order("created_at asc").First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			*degraded = append(*degraded, err)
		}
		return ""
	}
	// A poisoned business id reads as "no business": fall through and let the
	// email/provision path repair the mapping.
	return models.NormalizeBusinessID(m.BusinessID)
}

// relinkByEmail covers a principal whose provider id changed (re-auth through
// a different provider): the owner membership found by email is re-linked to
// the new auth user id rather than provisioning a duplicate business.
func (s *TenantService) relinkByEmail(ctx context.Context, p auth.Principal, degraded *[]error) string {
	if p.Email == "" {
		return ""
	}
	var m models.Membership
	err := s.DB.WithContext(ctx).Where("email = ? AND role = ?", p.Email, "owner").Order("created_at asc").First(&m).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			*degraded = append(*degraded, err)
		}
		return ""
	}
	businessID := models.NormalizeBusinessID(m.BusinessID)
	if businessID == "" {
		return ""
	}
	if err := s.DB.WithContext(ctx).Model(&m).Update("auth_user_id", p.AuthUserID).Error; err != nil {
		log.Printf("membership re-link failed for %s: %v", p.Email, err)
		*degraded = append(*degraded, err)
	}
	return businessID
}

// adoptBusinessByEmail covers a tenant whose membership insert failed during a
// past degraded provision: the business row exists but no membership points at
// it, so the membership lookups miss. Finding the business by account email
// and recreating the membership heals it in place instead of provisioning a
// duplicate tenant.
func (s *TenantService) adoptBusinessByEmail(ctx context.Context, p auth.Principal, degraded *[]error) string {
	if p.Email == "" {
		return ""
	}
	var b models.Business
	err := s.DB.WithContext(ctx).Where("email = ?", p.Email).Order("created_at asc").First(&b).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			*degraded = append(*degraded, err)
		}
		return ""
	}
	s.ensureMembership(ctx, p, b.ID, degraded)
	return b.ID
}

// ensureMembership heals a stale membership row (e.g. one carrying the
// poisoned legacy id) in place; only creates when none exists for this
// principal.
func (s *TenantService) ensureMembership(ctx context.Context, p auth.Principal, businessID string, degraded *[]error) {
	res := s.DB.WithContext(ctx).Model(&models.Membership{}).
		Where("auth_user_id = ?", p.AuthUserID).
		Updates(map[string]any{"business_id": businessID, "email": p.Email, "role": "owner"})
	if res.Error != nil {
		log.Printf("membership update failed for business %s: %v", businessID, res.Error)
		*degraded = append(*degraded, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		m := models.Membership{AuthUserID: p.AuthUserID, Email: p.Email, BusinessID: businessID, Role: "owner"}
		if err := s.DB.WithContext(ctx).Create(&m).Error; err != nil {
			log.Printf("membership create failed for business %s: %v", businessID, err)
			*degraded = append(*degraded, err)
		}
	}
}

// provision creates Business → Membership → Settings. Business creation is
// the only fatal step; membership and settings are best-effort metadata that
// the next Resolve call recreates if missing.
func (s *TenantService) provision(ctx context.Context, p auth.Principal, degraded *[]error) (string, error) {
	now := time.Now()
	b := models.Business{
		Name:            businessNameFromEmail(p.Email),
		Email:           p.Email,
		VATRate:         18,
		CountersResetAt: startOfMonth(now),
	}
	if err := s.DB.WithContext(ctx).Create(&b).Error; err != nil {
		return "", &ProvisioningDegradedError{Cause: err}
	}

	s.ensureMembership(ctx, p, b.ID, degraded)

	// Seed the legacy shadow with counters backfilled from existing quotes, so
	// a tenant provisioned after quotes already exist reports correct numbers.
	if err := s.DB.WithContext(ctx).Create(s.shadowSettings(ctx, &b, now)).Error; err != nil {
		log.Printf("settings create failed for business %s: %v", b.ID, err)
		*degraded = append(*degraded, err)
	}
	return b.ID, nil
}

func (s *TenantService) shadowSettings(ctx context.Context, b *models.Business, now time.Time) *models.Settings {
	total, monthly := s.countQuotes(ctx, b.ID, now)
	return &models.Settings{
		BusinessID:           b.ID,
		BusinessName:         b.Name,
		DefaultVATRate:       b.VATRate,
		PaymentTerms:         "Payment due within 30 days",
		MonthlyQuotesCreated: monthly,
		TotalQuotesCreated:   total,
		CountersResetAt:      startOfMonth(now),
	}
}

func (s *TenantService) countQuotes(ctx context.Context, businessID string, now time.Time) (total, monthly int) {
	var t, m int64
	if err := s.DB.WithContext(ctx).Model(&models.Quote{}).Where("business_id = ?", businessID).Count(&t).Error; err != nil {
		log.Printf("quote count failed for business %s: %v", businessID, err)
	}
	if err := s.DB.WithContext(ctx).Model(&models.Quote{}).
		Where("business_id = ? AND created_at >= ?", businessID, startOfMonth(now)).
		Count(&m).Error; err != nil {
		log.Printf("monthly quote count failed for business %s: %v", businessID, err)
	}
	return int(t), int(m)
}

func (s *TenantService) ensureLegacyUser(ctx context.Context, p auth.Principal, businessID string, degraded *[]error) {
	businessID = models.NormalizeBusinessID(businessID)
	var lu models.LegacyUser
	err := s.DB.WithContext(ctx).Where("auth_user_id = ?", p.AuthUserID).First(&lu).Error
	if err == nil {
		// Keep the shadow mapping in sync; a poisoned stored id reads as "".
		if models.NormalizeBusinessID(lu.BusinessID) != businessID {
			if uerr := s.DB.WithContext(ctx).Model(&lu).Update("business_id", businessID).Error; uerr != nil {
				log.Printf("legacy user sync failed for %s: %v", p.AuthUserID, uerr)
				*degraded = append(*degraded, uerr)
			}
		}
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		*degraded = append(*degraded, err)
		return
	}
	lu = models.LegacyUser{AuthUserID: p.AuthUserID, Email: p.Email, BusinessID: businessID}
	if err := s.DB.WithContext(ctx).Create(&lu).Error; err != nil {
		log.Printf("legacy user create failed for %s: %v", p.AuthUserID, err)
		*degraded = append(*degraded, err)
	}
}

// ensureSettings heals the legacy shadow both ways: a row lost to a degraded
// provision is recreated with backfilled counters, and duplicates from the
// first-request race are collapsed onto the earliest row.
func (s *TenantService) ensureSettings(ctx context.Context, businessID string, degraded *[]error) {
	var rows []models.Settings
	if err := s.DB.WithContext(ctx).Where("business_id = ?", businessID).Order("created_at asc").Find(&rows).Error; err != nil {
		*degraded = append(*degraded, err)
		return
	}
	switch {
	case len(rows) == 0:
		var b models.Business
		if err := s.DB.WithContext(ctx).First(&b, "id = ?", businessID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				*degraded = append(*degraded, err)
			}
			return
		}
		if err := s.DB.WithContext(ctx).Create(s.shadowSettings(ctx, &b, time.Now())).Error; err != nil {
			log.Printf("settings recreate failed for business %s: %v", businessID, err)
			*degraded = append(*degraded, err)
		}
	case len(rows) > 1:
		for _, extra := range rows[1:] {
			if err := s.DB.WithContext(ctx).Delete(&models.Settings{}, "id = ?", extra.ID).Error; err != nil {
				log.Printf("settings dedupe failed for business %s: %v", businessID, err)
				*degraded = append(*degraded, err)
			}
		}
	}
}

func businessNameFromEmail(email string) string {
	for i, r := range email {
		if r == '@' {
			if i > 0 {
				return email[:i]
			}
			break
		}
	}
	if email == "" {
		return "My Business"
	}
	return email
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// TenantCache is an explicit session-scoped memo of resolved business ids.
// The caller owns it and invalidates on sign-out; there is no hidden
// package-level state.
type TenantCache struct {
	mu  sync.RWMutex
	ids map[string]string // authUserID -> businessID
}

func NewTenantCache() *TenantCache {
	return &TenantCache{ids: make(map[string]string)}
}

func (c *TenantCache) Get(authUserID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[authUserID]
	return id, ok
}

func (c *TenantCache) Put(authUserID, businessID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[authUserID] = businessID
}

// Invalidate drops the cached id for one principal (sign-out trigger).
func (c *TenantCache) Invalidate(authUserID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.ids, authUserID)
}
