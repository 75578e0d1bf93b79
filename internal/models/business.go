package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business is the tenant record: every customer, product and quote belongs
// to exactly one business. Created once per principal, never deleted here.
type Business struct {
	ID                   string  `gorm:"primaryKey;size:36"`
	Name                 string  `gorm:"not null;index"`
	Email                string  `gorm:"index"`
	Phone                string
	Address              string
	VATRate              float64 `gorm:"not null;default:18"` // percentage, e.g. 18
	HeaderColor          string  `gorm:"default:'#1f6feb'"`
	PDFTemplate          string  `gorm:"default:'classic'"`
	MonthlyQuotesCreated int     `gorm:"not null;default:0"`
	TotalQuotesCreated   int     `gorm:"not null;default:0"`
	CountersResetAt      time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (b *Business) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Settings is the legacy-schema shadow of Business: it duplicates the business
// defaults and counters in the old single-table shape. Exactly one row per
// business; a past first-request race can leave duplicates, which the tenant
// resolver collapses (earliest row wins).
type Settings struct {
	ID                   string `gorm:"primaryKey;size:36"`
	BusinessID           string `gorm:"not null;index"`
	BusinessName         string
	DefaultVATRate       float64 `gorm:"not null;default:18"`
	PaymentTerms         string  `gorm:"default:'Payment due within 30 days'"`
	MonthlyQuotesCreated int     `gorm:"not null;default:0"`
	TotalQuotesCreated   int     `gorm:"not null;default:0"`
	CountersResetAt      time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (s *Settings) BeforeCreate(_ *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// LegacyPoisonBusinessID is a real identifier written by a defective prior
// migration. It must read as "no business" and must never be written to a new
// row. Flagged for removal once historical data is cleaned.
const LegacyPoisonBusinessID = "205848437221748266893"

// DemoBusinessID is the fixed tenant returned for the demo/guest principal;
// no rows are ever created for it.
const DemoBusinessID = "demo-business"

// NormalizeBusinessID translates the poisoned legacy id to an empty reference.
// Applied on every read of a business id column and before every write.
func NormalizeBusinessID(id string) string {
	if id == LegacyPoisonBusinessID {
		return ""
	}
	return id
}
