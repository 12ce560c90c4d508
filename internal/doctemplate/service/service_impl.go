package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/finovo/leaseflow/internal/audit/domain"
	"github.com/finovo/leaseflow/internal/cache"
	"github.com/finovo/leaseflow/internal/clock"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const activeTemplateTTL = 30 * time.Second

var pdfHeader = []byte("%PDF-")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     templatedomain.Repository
	Assets   storage.Provider
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     templatedomain.Repository
	assets   storage.Provider
	auditSvc auditdomain.Service

	// Activation must serialize per scope so two concurrent activations
	// cannot leave a scope with zero or two active templates.
	scopeMu sync.Mutex
	scopes  map[string]*sync.Mutex

	active cache.Cache[string, *templatedomain.DocumentTemplate]
}

func NewService(p Params) templatedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("doctemplate.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		assets:   p.Assets,
		auditSvc: p.AuditSvc,
		scopes:   make(map[string]*sync.Mutex),
		active:   cache.NewTTLCache[string, *templatedomain.DocumentTemplate](),
	}
}

func (s *Service) Ingest(ctx context.Context, req templatedomain.IngestRequest) (*templatedomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, templatedomain.ErrInvalidCompany
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, templatedomain.ErrInvalidName
	}
	if len(req.Content) == 0 || !bytes.HasPrefix(req.Content, pdfHeader) {
		return nil, templatedomain.ErrUnsupportedSource
	}

	var clientID *snowflake.ID
	if req.ClientID != nil {
		parsed, err := snowflake.ParseString(strings.TrimSpace(*req.ClientID))
		if err != nil {
			return nil, templatedomain.ErrInvalidClient
		}
		clientID = &parsed
	}

	pageCount, err := s.pageCount(req.Content)
	if err != nil {
		s.log.Warn("source document rejected", zap.String("file", req.FileName), zap.Error(err))
		return nil, templatedomain.ErrUnsupportedSource
	}

	templateID := s.genID.Generate()
	sourceURL, err := s.assets.Upload(ctx, fmt.Sprintf("templates/%s/source.pdf", templateID), req.Content)
	if err != nil {
		return nil, err
	}

	pages := make([]templatedomain.PageSpec, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		pages = append(pages, templatedomain.PageSpec{Index: i})
	}

	now := s.clock.Now()
	tmpl := &templatedomain.DocumentTemplate{
		ID:                templateID,
		CompanyID:         companyID,
		ClientID:          clientID,
		Name:              name,
		SourceDocumentURL: sourceURL,
		Fields:            datatypes.NewJSONType(templatedomain.FieldMap{}),
		Pages:             datatypes.NewJSONType(pages),
		IsActive:          false,
		PageCount:         pageCount,
		FileSize:          int64(len(req.Content)),
		FileType:          "application/pdf",
		UploadedAt:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Insert(ctx, s.db, tmpl); err != nil {
		// Best effort: the uploaded source must not outlive a failed insert.
		if delErr := s.assets.Delete(ctx, sourceURL); delErr != nil {
			s.log.Warn("removing source document for failed ingest",
				zap.String("source_url", sourceURL),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	s.emitAudit(ctx, tmpl, "document_template.ingested", map[string]any{"page_count": pageCount})
	return s.toResponse(tmpl), nil
}

func (s *Service) List(ctx context.Context) ([]templatedomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, templatedomain.ErrInvalidCompany
	}

	items, err := s.repo.List(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}

	resp := make([]templatedomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*templatedomain.Response, error) {
	tmpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(tmpl), nil
}

func (s *Service) Activate(ctx context.Context, id string) (*templatedomain.Response, error) {
	tmpl, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	scope := templatedomain.Scope{CompanyID: tmpl.CompanyID, ClientID: tmpl.ClientID}

	mu := s.scopeLock(scope)
	mu.Lock()
	defer mu.Unlock()

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateScope(ctx, tx, scope, now); err != nil {
			return err
		}
		tmpl.IsActive = true
		tmpl.UpdatedAt = now
		return s.repo.Update(ctx, tx, tmpl)
	})
	if err != nil {
		return nil, err
	}

	s.active.Delete(scope.Key())

	s.emitAudit(ctx, tmpl, "document_template.activated", nil)
	return s.toResponse(tmpl), nil
}

func (s *Service) GetActive(ctx context.Context, clientID *string) (*templatedomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, templatedomain.ErrInvalidCompany
	}

	scope := templatedomain.Scope{CompanyID: companyID}
	if clientID != nil {
		parsed, err := snowflake.ParseString(strings.TrimSpace(*clientID))
		if err != nil {
			return nil, templatedomain.ErrInvalidClient
		}
		scope.ClientID = &parsed
	}

	tmpl, err := s.ResolveActive(ctx, scope)
	if err != nil {
		return nil, err
	}
	return s.toResponse(tmpl), nil
}

func (s *Service) ResolveActive(ctx context.Context, scope templatedomain.Scope) (*templatedomain.DocumentTemplate, error) {
	if scope.CompanyID == 0 {
		return nil, templatedomain.ErrInvalidCompany
	}

	tmpl, err := s.resolveScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	// A client-scoped lookup falls back to the company-wide template, so a
	// client without a bespoke layout still gets documents.
	if tmpl == nil && scope.ClientID != nil {
		tmpl, err = s.resolveScope(ctx, templatedomain.Scope{CompanyID: scope.CompanyID})
		if err != nil {
			return nil, err
		}
	}
	if tmpl == nil {
		return nil, templatedomain.ErrNoActiveTemplate
	}
	return tmpl, nil
}

// resolveScope serves one exact scope through the cache. Entries are keyed by
// the scope the template actually belongs to, so activating in one scope can
// never leave another scope holding a stale fallback.
func (s *Service) resolveScope(ctx context.Context, scope templatedomain.Scope) (*templatedomain.DocumentTemplate, error) {
	if cached, ok := s.active.Get(scope.Key()); ok {
		return cached, nil
	}

	tmpl, err := s.repo.FindActive(ctx, s.db, scope)
	if err != nil || tmpl == nil {
		return nil, err
	}

	s.active.Set(scope.Key(), tmpl, activeTemplateTTL)
	return tmpl, nil
}

func (s *Service) PlaceField(ctx context.Context, templateID string, req templatedomain.PlaceFieldRequest) (*templatedomain.Response, error) {
	return s.mutateFields(ctx, templateID, func(tmpl *templatedomain.DocumentTemplate, fields templatedomain.FieldMap) error {
		fieldID := strings.TrimSpace(req.FieldID)
		if fieldID == "" {
			return templatedomain.ErrInvalidField
		}
		if req.Page < 0 || req.Page >= tmpl.PageCount {
			return templatedomain.ErrInvalidPage
		}

		field, ok := fields[fieldID]
		if !ok {
			return templatedomain.ErrFieldNotFound
		}
		page := req.Page
		field.Page = &page
		field.Position = req.Position
		fields[fieldID] = field
		return nil
	})
}

func (s *Service) UnplaceField(ctx context.Context, templateID, fieldID string) (*templatedomain.Response, error) {
	return s.mutateFields(ctx, templateID, func(_ *templatedomain.DocumentTemplate, fields templatedomain.FieldMap) error {
		field, ok := fields[strings.TrimSpace(fieldID)]
		if !ok {
			return templatedomain.ErrFieldNotFound
		}
		field.Page = nil
		fields[field.ID] = field
		return nil
	})
}

func (s *Service) SetFieldStyle(ctx context.Context, templateID, fieldID string, style templatedomain.Style) (*templatedomain.Response, error) {
	return s.mutateFields(ctx, templateID, func(_ *templatedomain.DocumentTemplate, fields templatedomain.FieldMap) error {
		field, ok := fields[strings.TrimSpace(fieldID)]
		if !ok {
			return templatedomain.ErrFieldNotFound
		}
		field.Style = style
		fields[field.ID] = field
		return nil
	})
}

func (s *Service) CommitFields(ctx context.Context, templateID string, fields []templatedomain.FieldSpec) (*templatedomain.Response, error) {
	return s.mutateFields(ctx, templateID, func(tmpl *templatedomain.DocumentTemplate, current templatedomain.FieldMap) error {
		// Validate the whole batch before touching anything so a bad entry
		// cannot leave a partially saved layout.
		for _, field := range fields {
			if strings.TrimSpace(field.ID) == "" {
				return templatedomain.ErrInvalidField
			}
			if !validCategory(field.Category) || !validDataType(field.DataType) {
				return templatedomain.ErrInvalidField
			}
			if field.Page != nil && (*field.Page < 0 || *field.Page >= tmpl.PageCount) {
				return templatedomain.ErrInvalidPage
			}
		}
		for key := range current {
			delete(current, key)
		}
		for _, field := range fields {
			current[field.ID] = field
		}
		return nil
	})
}

// mutateFields loads the template, applies one edit to a copy of its field
// map and persists the result. Single-field edits and batch commits share
// this path so both are scope-checked and page-validated identically.
func (s *Service) mutateFields(ctx context.Context, templateID string, mutate func(*templatedomain.DocumentTemplate, templatedomain.FieldMap) error) (*templatedomain.Response, error) {
	tmpl, err := s.load(ctx, templateID)
	if err != nil {
		return nil, err
	}

	fields := tmpl.Fields.Data()
	if fields == nil {
		fields = templatedomain.FieldMap{}
	}
	working := make(templatedomain.FieldMap, len(fields))
	for key, value := range fields {
		working[key] = value
	}

	if err := mutate(tmpl, working); err != nil {
		return nil, err
	}

	tmpl.Fields = datatypes.NewJSONType(working)
	tmpl.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, tmpl); err != nil {
		return nil, err
	}

	scope := templatedomain.Scope{CompanyID: tmpl.CompanyID, ClientID: tmpl.ClientID}
	s.active.Delete(scope.Key())

	return s.toResponse(tmpl), nil
}

func (s *Service) load(ctx context.Context, id string) (*templatedomain.DocumentTemplate, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, templatedomain.ErrInvalidCompany
	}

	templateID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, templatedomain.ErrInvalidID
	}

	tmpl, err := s.repo.FindByID(ctx, s.db, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, templatedomain.ErrNotFound
	}
	if tmpl.CompanyID != companyID {
		return nil, templatedomain.ErrTenantScope
	}
	return tmpl, nil
}

func (s *Service) scopeLock(scope templatedomain.Scope) *sync.Mutex {
	s.scopeMu.Lock()
	defer s.scopeMu.Unlock()
	mu, ok := s.scopes[scope.Key()]
	if !ok {
		mu = &sync.Mutex{}
		s.scopes[scope.Key()] = mu
	}
	return mu
}

// pageCount extracts the page count from the uploaded PDF. pdfcpu works on
// files, so the upload goes through a temp dir.
func (s *Service) pageCount(content []byte) (int, error) {
	tempDir, err := os.MkdirTemp("", "leaseflow-ingest-*")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := os.WriteFile(sourcePath, content, 0o600); err != nil {
		return 0, err
	}

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := api.OptimizeFile(sourcePath, optimizedPath, cfg); err != nil {
		return 0, err
	}

	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return 0, err
	}
	if pageCount <= 0 {
		return 0, templatedomain.ErrUnsupportedSource
	}
	return pageCount, nil
}

func validCategory(c templatedomain.Category) bool {
	switch c {
	case templatedomain.CategoryClient,
		templatedomain.CategoryOffer,
		templatedomain.CategoryEquipment,
		templatedomain.CategoryUser,
		templatedomain.CategoryGeneral,
		templatedomain.CategoryComputed:
		return true
	default:
		return false
	}
}

func validDataType(t templatedomain.DataType) bool {
	switch t {
	case templatedomain.DataTypeText,
		templatedomain.DataTypeNumber,
		templatedomain.DataTypeCurrency,
		templatedomain.DataTypeDate,
		templatedomain.DataTypeBoolean:
		return true
	default:
		return false
	}
}

func (s *Service) emitAudit(ctx context.Context, tmpl *templatedomain.DocumentTemplate, action string, extra map[string]any) {
	if s.auditSvc == nil || tmpl == nil {
		return
	}
	metadata := map[string]any{
		"name":      tmpl.Name,
		"is_active": tmpl.IsActive,
	}
	for key, value := range extra {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	targetID := tmpl.ID.String()
	_ = s.auditSvc.AuditLog(ctx, tmpl.CompanyID, action, "document_template", &targetID, metadata)
}

func (s *Service) toResponse(tmpl *templatedomain.DocumentTemplate) *templatedomain.Response {
	if tmpl == nil {
		return nil
	}
	var clientID *string
	if tmpl.ClientID != nil {
		value := tmpl.ClientID.String()
		clientID = &value
	}
	fields := tmpl.Fields.Data()
	if fields == nil {
		fields = templatedomain.FieldMap{}
	}
	return &templatedomain.Response{
		ID:                tmpl.ID.String(),
		CompanyID:         tmpl.CompanyID.String(),
		ClientID:          clientID,
		Name:              tmpl.Name,
		SourceDocumentURL: tmpl.SourceDocumentURL,
		Fields:            fields,
		Pages:             tmpl.Pages.Data(),
		IsActive:          tmpl.IsActive,
		PageCount:         tmpl.PageCount,
		FileSize:          tmpl.FileSize,
		FileType:          tmpl.FileType,
		UploadedAt:        tmpl.UploadedAt,
		CreatedAt:         tmpl.CreatedAt,
		UpdatedAt:         tmpl.UpdatedAt,
	}
}
