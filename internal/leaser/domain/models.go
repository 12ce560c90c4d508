// Package domain contains persistence models for leasing partners and their
// coefficient range tables.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Leaser represents a leasing partner of one tenant company.
type Leaser struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	CompanyID  snowflake.ID `gorm:"not null;index"`
	Name       string       `gorm:"type:text;not null"`
	Deprecated bool         `gorm:"not null;default:false"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Leaser) TableName() string { return "leasers" }

// LeaserRange is one band of a leaser's range table. Bounds are inclusive;
// the coefficient is a percentage of the financed amount.
type LeaserRange struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	LeaserID    snowflake.ID    `gorm:"not null;index"`
	Position    int             `gorm:"not null"`
	MinAmount   decimal.Decimal `gorm:"type:numeric;not null"`
	MaxAmount   decimal.Decimal `gorm:"type:numeric;not null"`
	Coefficient decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LeaserRange) TableName() string { return "leaser_ranges" }
