// Package domain contains persistence models for lease offers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// OfferStatus represents offer lifecycle states.
type OfferStatus string

const (
	OfferStatusDraft    OfferStatus = "DRAFT"
	OfferStatusSent     OfferStatus = "SENT"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusDeclined OfferStatus = "DECLINED"
)

// Offer is one lease offer for a client, financed through a leaser.
type Offer struct {
	ID                   snowflake.ID    `gorm:"primaryKey"`
	CompanyID            snowflake.ID    `gorm:"not null;index"`
	ClientID             snowflake.ID    `gorm:"not null;index"`
	LeaserID             snowflake.ID    `gorm:"not null;index"`
	Number               string          `gorm:"type:text;not null"`
	EquipmentDescription string          `gorm:"type:text"`
	FinancedAmount       decimal.Decimal `gorm:"type:numeric;not null"`
	DurationMonths       int             `gorm:"not null;default:36"`
	Status               OfferStatus     `gorm:"type:text;not null;default:'DRAFT'"`
	SalespersonName      string          `gorm:"type:text"`
	SalespersonEmail     string          `gorm:"type:text"`
	CreatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Offer) TableName() string { return "offers" }
