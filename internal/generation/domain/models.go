// Package domain contains the document generation pipeline's persistence
// model and contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status tracks a generation run through the pipeline. Transitions only move
// forward; Failed is terminal from any stage.
type Status string

const (
	StatusRequested        Status = "REQUESTED"
	StatusTemplateResolved Status = "TEMPLATE_RESOLVED"
	StatusDataBound        Status = "DATA_BOUND"
	StatusCompiled         Status = "COMPILED"
	StatusRasterized       Status = "RASTERIZED"
	StatusStored           Status = "STORED"
	StatusFailed           Status = "FAILED"
)

// TemplateSnapshot freezes the template as it was at generation time. The
// stored artifact stays reproducible even after the template is edited or a
// different one is activated.
type TemplateSnapshot struct {
	TemplateID        string                    `json:"template_id"`
	Name              string                    `json:"name"`
	SourceDocumentURL string                    `json:"source_document_url"`
	Fields            templatedomain.FieldMap   `json:"fields"`
	Pages             []templatedomain.PageSpec `json:"pages"`
	PageCount         int                       `json:"page_count"`
}

// GeneratedDocument is one generation run and, when it reaches Stored, the
// durable artifact record pointing at the rendered PDF.
type GeneratedDocument struct {
	ID               snowflake.ID                           `gorm:"primaryKey"`
	CompanyID        snowflake.ID                           `gorm:"not null;index"`
	OfferID          snowflake.ID                           `gorm:"not null;index"`
	TemplateID       snowflake.ID                           `gorm:"not null;index"`
	TemplateSnapshot datatypes.JSONType[TemplateSnapshot]   `gorm:"type:jsonb"`
	MissingFields    datatypes.JSONType[[]string]           `gorm:"type:jsonb"`
	Locale           string                                 `gorm:"type:text;not null"`
	Status           Status                                 `gorm:"type:text;not null;index"`
	FailureReason    string                                 `gorm:"type:text"`
	StorageRef       string                                 `gorm:"type:text"`
	FileSize         int64                                  `gorm:"not null;default:0"`
	GeneratedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (GeneratedDocument) TableName() string { return "generated_documents" }

type Service interface {
	// Generate runs the whole pipeline for an offer and returns the stored
	// artifact. Cancellation is honored at every stage until Stored.
	Generate(ctx context.Context, req Request) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	ListByOffer(ctx context.Context, offerID string) ([]Response, error)
	// Download resolves a stored artifact back to PDF bytes.
	Download(ctx context.Context, id string) ([]byte, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, doc *GeneratedDocument) error
	Update(ctx context.Context, db *gorm.DB, doc *GeneratedDocument) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*GeneratedDocument, error)
	ListByOffer(ctx context.Context, db *gorm.DB, companyID, offerID snowflake.ID) ([]GeneratedDocument, error)
}

// Request starts one generation run. TimeoutSeconds optionally tightens the
// run deadline; it can never extend past the configured ceiling.
type Request struct {
	OfferID        string `json:"offer_id"`
	Locale         string `json:"locale,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type Response struct {
	ID            string     `json:"id"`
	OfferID       string     `json:"offer_id"`
	TemplateID    string     `json:"template_id"`
	Status        Status     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	MissingFields []string   `json:"missing_fields,omitempty"`
	Locale        string     `json:"locale"`
	StorageRef    string     `json:"storage_ref,omitempty"`
	FileSize      int64      `json:"file_size"`
	GeneratedAt   *time.Time `json:"generated_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("document_not_found")
	ErrNotStored         = errors.New("document_not_stored")
	ErrGenerationFailed  = errors.New("generation_failed")
	ErrGenerationTimeout = errors.New("generation_timeout")
)
