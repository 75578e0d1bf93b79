package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer entity
type Customer struct {
	ID         string `gorm:"primaryKey;size:36"`
	BusinessID string `gorm:"not null;index"`
	Name       string `gorm:"not null;index"`
	Email      string
	Phone      string
	Address    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (c *Customer) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
