package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() generationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, doc *generationdomain.GeneratedDocument) error {
	return db.WithContext(ctx).Create(doc).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, doc *generationdomain.GeneratedDocument) error {
	return db.WithContext(ctx).
		Model(&generationdomain.GeneratedDocument{}).
		Where("company_id = ? AND id = ?", doc.CompanyID, doc.ID).
		Updates(map[string]any{
			"template_id":       doc.TemplateID,
			"template_snapshot": doc.TemplateSnapshot,
			"status":            doc.Status,
			"failure_reason":    doc.FailureReason,
			"missing_fields":    doc.MissingFields,
			"storage_ref":       doc.StorageRef,
			"file_size":         doc.FileSize,
			"generated_at":      doc.GeneratedAt,
			"updated_at":        doc.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*generationdomain.GeneratedDocument, error) {
	var doc generationdomain.GeneratedDocument
	err := db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *repo) ListByOffer(ctx context.Context, db *gorm.DB, companyID, offerID snowflake.ID) ([]generationdomain.GeneratedDocument, error) {
	var items []generationdomain.GeneratedDocument
	err := db.WithContext(ctx).
		Where("company_id = ? AND offer_id = ?", companyID, offerID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
