package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuoteStatus is the business workflow axis of a quote.
type QuoteStatus string

const (
	StatusPending  QuoteStatus = "pending"
	StatusSent     QuoteStatus = "sent"
	StatusApproved QuoteStatus = "approved"
	StatusAccepted QuoteStatus = "accepted"
	StatusRejected QuoteStatus = "rejected"
)

// Valid reports whether s is a known workflow status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusApproved, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// SignatureStatus is the orthogonal signing axis. It never drives QuoteStatus.
type SignatureStatus string

const (
	SignaturePending SignatureStatus = "pending"
	SignatureSigned  SignatureStatus = "signed"
)

func (s SignatureStatus) Valid() bool {
	switch s {
	case SignaturePending, SignatureSigned:
		return true
	}
	return false
}

// Quote header. Totals are a derived projection of the item set: Subtotal is
// the VAT-exclusive sum, DiscountValue the resolved absolute discount, and
// Total = (Subtotal - DiscountValue) * (1 + VATRate/100), clamped at the
// persistence boundary.
type Quote struct {
	ID              string          `gorm:"primaryKey;size:36"`
	BusinessID      string          `gorm:"not null;index"`
	CustomerID      string          `gorm:"not null;index"`
	Number          string          `gorm:"not null;index"`
	Status          QuoteStatus     `gorm:"not null;default:'pending'"`
	SignatureStatus SignatureStatus `gorm:"not null;default:'pending'"`
	SignerName      string
	SignedAt        *time.Time
	Subtotal        float64 `gorm:"not null"` // net, pre-discount
	DiscountValue   float64 `gorm:"not null;default:0"`
	IncludeDiscount bool    `gorm:"not null;default:false"`
	VATRate         float64 `gorm:"not null"`
	VATAmount       float64 `gorm:"not null"`
	Total           float64 `gorm:"not null"`
	DeliveryDate    time.Time
	PaymentTerms    string
	Notes           string
	Items           []QuoteItem `gorm:"foreignKey:QuoteID"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (q *Quote) BeforeCreate(_ *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// QuoteItem is a quote line. ProductID is nil for ad-hoc "general" items.
// LineTotal is recomputed on every quantity or price change.
type QuoteItem struct {
	ID        string  `gorm:"primaryKey;size:36"`
	QuoteID   string  `gorm:"not null;index"`
	ProductID *string `gorm:"size:36;index"`
	Name      string  `gorm:"not null"`
	Quantity  int     `gorm:"not null;default:1"`
	UnitPrice float64 `gorm:"not null"`
	LineTotal float64 `gorm:"not null"`
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (it *QuoteItem) BeforeCreate(_ *gorm.DB) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	return nil
}
