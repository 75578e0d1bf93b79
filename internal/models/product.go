package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product catalog entry. Options is a pipe-delimited list with an optional
// leading label, e.g. "Color: Red|Blue|Green".
type Product struct {
	ID         string  `gorm:"primaryKey;size:36"`
	BusinessID string  `gorm:"not null;index"`
	Name       string  `gorm:"not null;index"`
	Category   string  `gorm:"default:'general'"`
	Unit       string  `gorm:"default:'unit'"`
	BasePrice  float64 `gorm:"not null"`
	Notes      string
	Options    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// OptionList is the parsed form of Product.Options.
type OptionList struct {
	Label   string
	Options []string
}

// ParseOptionList parses "Label: A|B|C" into a label and trimmed options.
// A missing colon means no label; empty segments are dropped.
func ParseOptionList(raw string) OptionList {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return OptionList{}
	}
	var out OptionList
	rest := raw
	if i := strings.Index(raw, ":"); i >= 0 {
		out.Label = strings.TrimSpace(raw[:i])
		rest = raw[i+1:]
	}
	for _, seg := range strings.Split(rest, "|") {
		if s := strings.TrimSpace(seg); s != "" {
			out.Options = append(out.Options, s)
		}
	}
	return out
}
