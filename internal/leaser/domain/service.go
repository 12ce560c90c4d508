package domain

import (
	"context"
	"errors"
	"time"

	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	// ReplaceRanges swaps a leaser's whole range table in one transaction.
	// Readers observe either the pre-edit or post-edit table, never a mix.
	ReplaceRanges(ctx context.Context, leaserID string, ranges []RangeInput) (*Response, error)
	// Deprecate soft-retires a leaser. Offers referencing it keep resolving.
	Deprecate(ctx context.Context, id string) error
	// RangeSet loads the leaser's current table as a pricing snapshot.
	RangeSet(ctx context.Context, leaserID string) (pricing.RangeSet, error)
}

type CreateRequest struct {
	Name   string       `json:"name"`
	Ranges []RangeInput `json:"ranges"`
}

type RangeInput struct {
	Min         decimal.Decimal `json:"min"`
	Max         decimal.Decimal `json:"max"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

type RangeView struct {
	Min         decimal.Decimal `json:"min"`
	Max         decimal.Decimal `json:"max"`
	Coefficient decimal.Decimal `json:"coefficient"`
}

type Response struct {
	ID         string      `json:"id"`
	CompanyID  string      `json:"company_id"`
	Name       string      `json:"name"`
	Deprecated bool        `json:"deprecated"`
	Ranges     []RangeView `json:"ranges"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("leaser_not_found")
	ErrDeprecated      = errors.New("leaser_deprecated")
	ErrInvalidRangeSet = errors.New("invalid_range_set")
)
