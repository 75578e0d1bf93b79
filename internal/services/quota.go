package services

import (
	"context"

	"gorm.io/gorm"
)

// Quota is the result of the store-side check_user_quota RPC. The core reads
// it for display; enforcement happens before callers invoke the ledger.
type Quota struct {
	CurrentCount int    `json:"current_count"`
	MonthlyLimit int    `json:"monthly_limit"`
	Remaining    int    `json:"remaining"`
	TierName     string `json:"tier_name"`
}

// QuotaService calls the quota function implemented inside the store.
type QuotaService struct{ DB *gorm.DB }

func NewQuotaService(db *gorm.DB) *QuotaService { return &QuotaService{DB: db} }

// Check invokes check_user_quota for the principal. Read-only.
func (s *QuotaService) Check(ctx context.Context, authUserID string) (*Quota, error) {
	var q Quota
	err := s.DB.WithContext(ctx).
		Raw("SELECT current_count, monthly_limit, remaining, tier_name FROM check_user_quota(?)", authUserID).
		Scan(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}
