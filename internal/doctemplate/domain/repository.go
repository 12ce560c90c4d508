package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tmpl *DocumentTemplate) error
	Update(ctx context.Context, db *gorm.DB, tmpl *DocumentTemplate) error
	// FindByID looks a template up without a tenant filter; the service is
	// responsible for rejecting cross-tenant access explicitly.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DocumentTemplate, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]DocumentTemplate, error)
	FindActive(ctx context.Context, db *gorm.DB, scope Scope) (*DocumentTemplate, error)
	// DeactivateScope clears the active flag for every template in scope.
	DeactivateScope(ctx context.Context, db *gorm.DB, scope Scope, now time.Time) error
}
