package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() leaserdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, leaser *leaserdomain.Leaser) error {
	return db.WithContext(ctx).Create(leaser).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, leaser *leaserdomain.Leaser) error {
	return db.WithContext(ctx).
		Model(&leaserdomain.Leaser{}).
		Where("company_id = ? AND id = ?", leaser.CompanyID, leaser.ID).
		Updates(map[string]any{
			"name":       leaser.Name,
			"deprecated": leaser.Deprecated,
			"updated_at": leaser.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*leaserdomain.Leaser, error) {
	var leaser leaserdomain.Leaser
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&leaser).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &leaser, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]leaserdomain.Leaser, error) {
	var items []leaserdomain.Leaser
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ReplaceRanges swaps the whole table inside the caller's transaction so a
// concurrent reader never sees a half-written set.
func (r *repo) ReplaceRanges(ctx context.Context, db *gorm.DB, leaserID snowflake.ID, ranges []leaserdomain.LeaserRange) error {
	if err := db.WithContext(ctx).
		Where("leaser_id = ?", leaserID).
		Delete(&leaserdomain.LeaserRange{}).Error; err != nil {
		return err
	}
	if len(ranges) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&ranges).Error
}

func (r *repo) ListRanges(ctx context.Context, db *gorm.DB, leaserID snowflake.ID) ([]leaserdomain.LeaserRange, error) {
	var items []leaserdomain.LeaserRange
	err := db.WithContext(ctx).
		Where("leaser_id = ?", leaserID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
