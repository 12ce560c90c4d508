package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() templatedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tmpl *templatedomain.DocumentTemplate) error {
	return db.WithContext(ctx).Create(tmpl).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tmpl *templatedomain.DocumentTemplate) error {
	return db.WithContext(ctx).
		Model(&templatedomain.DocumentTemplate{}).
		Where("company_id = ? AND id = ?", tmpl.CompanyID, tmpl.ID).
		Updates(map[string]any{
			"name":       tmpl.Name,
			"fields":     tmpl.Fields,
			"is_active":  tmpl.IsActive,
			"updated_at": tmpl.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*templatedomain.DocumentTemplate, error) {
	var tmpl templatedomain.DocumentTemplate
	err := db.WithContext(ctx).Where("id = ?", id).First(&tmpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]templatedomain.DocumentTemplate, error) {
	var items []templatedomain.DocumentTemplate
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, scope templatedomain.Scope) (*templatedomain.DocumentTemplate, error) {
	stmt := db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", scope.CompanyID, true)
	if scope.ClientID == nil {
		stmt = stmt.Where("client_id IS NULL")
	} else {
		stmt = stmt.Where("client_id = ?", *scope.ClientID)
	}

	var tmpl templatedomain.DocumentTemplate
	err := stmt.First(&tmpl).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &tmpl, nil
}

func (r *repo) DeactivateScope(ctx context.Context, db *gorm.DB, scope templatedomain.Scope, now time.Time) error {
	stmt := db.WithContext(ctx).
		Model(&templatedomain.DocumentTemplate{}).
		Where("company_id = ? AND is_active = ?", scope.CompanyID, true)
	if scope.ClientID == nil {
		stmt = stmt.Where("client_id IS NULL")
	} else {
		stmt = stmt.Where("client_id = ?", *scope.ClientID)
	}
	return stmt.Updates(map[string]any{
		"is_active":  false,
		"updated_at": now,
	}).Error
}
