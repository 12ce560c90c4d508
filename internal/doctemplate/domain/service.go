package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Ingest stores the uploaded source document, extracts page count and
	// file metadata, and creates an inactive template with no fields.
	Ingest(ctx context.Context, req IngestRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	// Activate makes the template the single active one for its scope.
	// Concurrent calls for the same scope serialize; the last writer wins
	// and a superseded activation is not an error.
	Activate(ctx context.Context, id string) (*Response, error)
	// GetActive resolves the active template for the caller's company,
	// preferring a client-scoped template over the company-wide one.
	GetActive(ctx context.Context, clientID *string) (*Response, error)
	// ResolveActive is GetActive for internal consumers that need the full
	// persisted model rather than the API view.
	ResolveActive(ctx context.Context, scope Scope) (*DocumentTemplate, error)

	PlaceField(ctx context.Context, templateID string, req PlaceFieldRequest) (*Response, error)
	UnplaceField(ctx context.Context, templateID, fieldID string) (*Response, error)
	SetFieldStyle(ctx context.Context, templateID, fieldID string, style Style) (*Response, error)
	// CommitFields persists a whole draft layout atomically. Either every
	// field in the batch is saved or none is.
	CommitFields(ctx context.Context, templateID string, fields []FieldSpec) (*Response, error)
}

type IngestRequest struct {
	Name     string
	ClientID *string
	FileName string
	Content  []byte
}

type PlaceFieldRequest struct {
	FieldID  string   `json:"field_id"`
	Page     int      `json:"page"`
	Position Position `json:"position"`
}

type Response struct {
	ID                string     `json:"id"`
	CompanyID         string     `json:"company_id"`
	ClientID          *string    `json:"client_id,omitempty"`
	Name              string     `json:"name"`
	SourceDocumentURL string     `json:"source_document_url"`
	Fields            FieldMap   `json:"fields"`
	Pages             []PageSpec `json:"pages"`
	IsActive          bool       `json:"is_active"`
	PageCount         int        `json:"page_count"`
	FileSize          int64      `json:"file_size"`
	FileType          string     `json:"file_type"`
	UploadedAt        time.Time  `json:"uploaded_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrNotFound          = errors.New("template_not_found")
	ErrNoActiveTemplate  = errors.New("no_active_template")
	ErrTenantScope       = errors.New("tenant_scope_violation")
	ErrInvalidPage       = errors.New("invalid_page")
	ErrInvalidField      = errors.New("invalid_field")
	ErrFieldNotFound     = errors.New("field_not_found")
	ErrUnsupportedSource = errors.New("unsupported_source_document")
)
