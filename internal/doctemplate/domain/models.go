// Package domain contains the positioned-field document template model and
// its registry contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// DataType constrains how a field value is formatted at compile time.
type DataType string

const (
	DataTypeText     DataType = "text"
	DataTypeNumber   DataType = "number"
	DataTypeCurrency DataType = "currency"
	DataTypeDate     DataType = "date"
	DataTypeBoolean  DataType = "boolean"
)

// Category names the record namespace a field binds against.
type Category string

const (
	CategoryClient    Category = "client"
	CategoryOffer     Category = "offer"
	CategoryEquipment Category = "equipment"
	CategoryUser      Category = "user"
	CategoryGeneral   Category = "general"
	// CategoryComputed carries upstream results such as the resolved
	// monthly payment. It is injected at bind time, never authored.
	CategoryComputed Category = "computed"
)

// Position is page-relative placement in template units.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Style captures the visual attributes of a placed field.
type Style struct {
	FontSize       float64 `json:"font_size"`
	FontWeight     string  `json:"font_weight,omitempty"`
	FontStyle      string  `json:"font_style,omitempty"`
	TextDecoration string  `json:"text_decoration,omitempty"`
	MaxWidth       float64 `json:"max_width,omitempty"`
	Height         float64 `json:"height,omitempty"`
}

// FieldSpec describes one bindable field of a template. A nil Page marks the
// field as defined but unplaced: kept for later placement, excluded from
// rendering.
type FieldSpec struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	DataType  DataType `json:"data_type"`
	Category  Category `json:"category"`
	Page      *int     `json:"page,omitempty"`
	Position  Position `json:"position"`
	Style     Style    `json:"style"`
	IsVisible bool     `json:"is_visible"`
}

// FieldMap stores fields keyed by field ID for O(1) lookup.
type FieldMap map[string]FieldSpec

// PageSpec is one page of the ingested source document. The page list is
// fixed at ingest time.
type PageSpec struct {
	Index         int    `json:"index"`
	BackgroundURL string `json:"background_url,omitempty"`
}

// DocumentTemplate is a per-tenant, optionally per-client, positioned-field
// document template generated from an uploaded source document.
type DocumentTemplate struct {
	ID                snowflake.ID                   `gorm:"primaryKey"`
	CompanyID         snowflake.ID                   `gorm:"not null;index"`
	ClientID          *snowflake.ID                  `gorm:"index"`
	Name              string                         `gorm:"type:text;not null"`
	SourceDocumentURL string                         `gorm:"type:text;not null"`
	Fields            datatypes.JSONType[FieldMap]   `gorm:"type:jsonb"`
	Pages             datatypes.JSONType[[]PageSpec] `gorm:"type:jsonb"`
	IsActive          bool                           `gorm:"not null;default:false;index"`
	PageCount         int                            `gorm:"not null"`
	FileSize          int64                          `gorm:"not null"`
	FileType          string                         `gorm:"type:text;not null"`
	UploadedAt        time.Time                      `gorm:"not null"`
	CreatedAt         time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DocumentTemplate) TableName() string { return "document_templates" }

// Scope isolates template state per tenant and optionally per client.
type Scope struct {
	CompanyID snowflake.ID
	ClientID  *snowflake.ID
}

func (s Scope) Key() string {
	if s.ClientID == nil {
		return s.CompanyID.String()
	}
	return s.CompanyID.String() + "/" + s.ClientID.String()
}
