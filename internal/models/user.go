package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership links an external principal (identity-provider user) to its
// business. Role is metadata; tenant existence is the load-bearing invariant.
type Membership struct {
	ID         string `gorm:"primaryKey;size:36"`
	AuthUserID string `gorm:"not null;index"`
	Email      string `gorm:"index"`
	BusinessID string `gorm:"not null;index"`
	Role       string `gorm:"not null;default:'owner'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (m *Membership) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// LegacyUser duplicates the principal→business mapping in the old schema
// generation. Kept in sync by the tenant resolver, otherwise inert.
type LegacyUser struct {
	ID         string `gorm:"primaryKey;size:36"`
	AuthUserID string `gorm:"not null;index"`
	Email      string
	BusinessID string `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u *LegacyUser) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
