package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Offer, error)
	Get(ctx context.Context, id string) (*Offer, error)
	List(ctx context.Context) ([]Offer, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, offer *Offer) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Offer, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Offer, error)
}

type CreateRequest struct {
	ClientID             string `json:"client_id"`
	LeaserID             string `json:"leaser_id"`
	Number               string `json:"number"`
	EquipmentDescription string `json:"equipment_description"`
	FinancedAmount       string `json:"financed_amount"`
	DurationMonths       int    `json:"duration_months"`
	SalespersonName      string `json:"salesperson_name"`
	SalespersonEmail     string `json:"salesperson_email"`
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrNotFound       = errors.New("offer_not_found")
)
