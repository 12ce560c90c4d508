package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() offerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, offer *offerdomain.Offer) error {
	return db.WithContext(ctx).Create(offer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*offerdomain.Offer, error) {
	var offer offerdomain.Offer
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&offer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]offerdomain.Offer, error) {
	var items []offerdomain.Offer
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
