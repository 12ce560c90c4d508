package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, leaser *Leaser) error
	Update(ctx context.Context, db *gorm.DB, leaser *Leaser) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Leaser, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Leaser, error)
	ReplaceRanges(ctx context.Context, db *gorm.DB, leaserID snowflake.ID, ranges []LeaserRange) error
	ListRanges(ctx context.Context, db *gorm.DB, leaserID snowflake.ID) ([]LeaserRange, error)
}
