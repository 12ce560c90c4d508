package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v4"
	auditdomain "github.com/finovo/leaseflow/internal/audit/domain"
	"github.com/finovo/leaseflow/internal/binding"
	"github.com/finovo/leaseflow/internal/clock"
	"github.com/finovo/leaseflow/internal/compiler"
	"github.com/finovo/leaseflow/internal/config"
	customerdomain "github.com/finovo/leaseflow/internal/customer/domain"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/pricing"
	"github.com/finovo/leaseflow/internal/providers/pdf"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Clock      clock.Clock
	Repo       generationdomain.Repository
	Offers     offerdomain.Service
	Customers  customerdomain.Service
	Leasers    leaserdomain.Service
	Templates  templatedomain.Service
	Rasterizer pdf.Rasterizer
	Assets     storage.Provider
	AuditSvc   auditdomain.Service `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	clock      clock.Clock
	repo       generationdomain.Repository
	offers     offerdomain.Service
	customers  customerdomain.Service
	leasers    leaserdomain.Service
	templates  templatedomain.Service
	rasterizer pdf.Rasterizer
	assets     storage.Provider
	auditSvc   auditdomain.Service
}

func NewService(p Params) generationdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("generation.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		clock:      p.Clock,
		repo:       p.Repo,
		offers:     p.Offers,
		customers:  p.Customers,
		leasers:    p.Leasers,
		templates:  p.Templates,
		rasterizer: p.Rasterizer,
		assets:     p.Assets,
		auditSvc:   p.AuditSvc,
	}
}

// Generate runs the pipeline end to end: resolve the active template, bind
// the offer's data, compile, rasterize and store. Pricing and compile errors
// fail immediately; rasterize/store retries with exponential backoff inside
// the configured deadline.
func (s *Service) Generate(ctx context.Context, req generationdomain.Request) (*generationdomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, generationdomain.ErrInvalidCompany
	}

	offer, err := s.offers.Get(ctx, req.OfferID)
	if err != nil {
		return nil, err
	}
	client, err := s.customers.Get(ctx, offer.ClientID.String())
	if err != nil {
		return nil, err
	}

	loc := compiler.LocaleFor(req.Locale, s.cfg.DefaultLocale)
	started := s.clock.Now()

	doc := &generationdomain.GeneratedDocument{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		OfferID:   offer.ID,
		Locale:    loc.Code,
		Status:    generationdomain.StatusRequested,
		CreatedAt: started,
		UpdatedAt: started,
	}
	if err := s.repo.Insert(ctx, s.db, doc); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline(req))
	defer cancel()

	tmpl, err := s.templates.ResolveActive(ctx, templatedomain.Scope{
		CompanyID: companyID,
		ClientID:  &offer.ClientID,
	})
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}
	doc.TemplateID = tmpl.ID
	doc.TemplateSnapshot = datatypes.NewJSONType(snapshotOf(tmpl))
	if err := s.advance(ctx, doc, generationdomain.StatusTemplateResolved); err != nil {
		return nil, err
	}

	quote, err := s.resolveQuote(ctx, offer)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	dataset, missing := binding.Bind(tmpl.Fields.Data(), s.buildRecord(offer, client, quote, started))
	if len(missing) > 0 {
		missingFieldsTotal.Add(float64(len(missing)))
		doc.MissingFields = datatypes.NewJSONType(missingFieldIDs(missing))
		s.log.Warn("record missing values for placed fields",
			zap.String("document_id", doc.ID.String()),
			zap.String("offer_id", offer.ID.String()),
			zap.Strings("fields", missingFieldIDs(missing)),
		)
	}
	if err := s.advance(ctx, doc, generationdomain.StatusDataBound); err != nil {
		return nil, err
	}

	compiled, err := compiler.Compile(tmpl, dataset, loc)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}
	if err := s.advance(ctx, doc, generationdomain.StatusCompiled); err != nil {
		return nil, err
	}

	output, err := s.rasterize(ctx, compiled)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}
	if err := s.advance(ctx, doc, generationdomain.StatusRasterized); err != nil {
		return nil, err
	}

	ref, err := s.store(ctx, companyID, output)
	if err != nil {
		return nil, s.fail(ctx, doc, err)
	}

	now := s.clock.Now()
	doc.StorageRef = ref
	doc.FileSize = int64(len(output))
	doc.GeneratedAt = &now
	if err := s.advance(ctx, doc, generationdomain.StatusStored); err != nil {
		return nil, err
	}

	generationRuns.WithLabelValues("stored").Inc()
	generationDuration.Observe(now.Sub(started).Seconds())
	s.emitAudit(ctx, companyID, "document.generated", doc.ID, map[string]any{
		"offer_id":    offer.ID.String(),
		"template_id": tmpl.ID.String(),
		"locale":      loc.Code,
	})

	return s.toResponse(doc), nil
}

func (s *Service) Get(ctx context.Context, id string) (*generationdomain.Response, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.toResponse(doc), nil
}

func (s *Service) ListByOffer(ctx context.Context, offerID string) ([]generationdomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, generationdomain.ErrInvalidCompany
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(offerID))
	if err != nil {
		return nil, generationdomain.ErrInvalidID
	}

	items, err := s.repo.ListByOffer(ctx, s.db, companyID, parsed)
	if err != nil {
		return nil, err
	}

	resp := make([]generationdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Download(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != generationdomain.StatusStored || doc.StorageRef == "" {
		return nil, generationdomain.ErrNotStored
	}
	return s.assets.Fetch(ctx, doc.StorageRef)
}

// resolveQuote prices the offer against the leaser's current range table.
// A pricing failure is final for this run: retrying cannot move an amount
// into range.
func (s *Service) resolveQuote(ctx context.Context, offer *offerdomain.Offer) (pricing.Quote, error) {
	set, err := s.leasers.RangeSet(ctx, offer.LeaserID.String())
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Resolve(set, offer.FinancedAmount)
}

func (s *Service) rasterize(ctx context.Context, compiled *compiler.RenderableDocument) ([]byte, error) {
	var output []byte
	operation := func() error {
		rendered, err := s.rasterizer.Rasterize(ctx, compiled)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return err
		}
		output = rendered
		return nil
	}
	if err := backoff.Retry(operation, s.retryPolicy(ctx)); err != nil {
		return nil, err
	}
	return output, nil
}

func (s *Service) store(ctx context.Context, companyID snowflake.ID, output []byte) (string, error) {
	key := fmt.Sprintf("documents/%s/%s.pdf", companyID, ulid.Make())

	var ref string
	operation := func() error {
		stored, err := s.assets.Upload(ctx, key, output)
		if err != nil {
			return err
		}
		ref = stored
		return nil
	}
	if err := backoff.Retry(operation, s.retryPolicy(ctx)); err != nil {
		return "", err
	}
	return ref, nil
}

// deadline returns the run budget. Callers may tighten it per request but
// never extend it past the configured ceiling.
func (s *Service) deadline(req generationdomain.Request) time.Duration {
	limit := s.cfg.GenerationTimeout
	if req.TimeoutSeconds > 0 {
		if requested := time.Duration(req.TimeoutSeconds) * time.Second; requested < limit {
			limit = requested
		}
	}
	return limit
}

func (s *Service) retryPolicy(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.GenerationInitialBackoff

	attempts := s.cfg.GenerationMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)
}

func (s *Service) advance(ctx context.Context, doc *generationdomain.GeneratedDocument, next generationdomain.Status) error {
	doc.Status = next
	doc.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, doc); err != nil {
		return s.fail(ctx, doc, err)
	}
	return nil
}

// fail records the terminal failure and maps the cause to the caller-facing
// error. The status write must survive a cancelled request context.
func (s *Service) fail(ctx context.Context, doc *generationdomain.GeneratedDocument, cause error) error {
	doc.Status = generationdomain.StatusFailed
	doc.FailureReason = cause.Error()
	doc.UpdatedAt = s.clock.Now()

	persistCtx := context.WithoutCancel(ctx)
	if err := s.repo.Update(persistCtx, s.db, doc); err != nil {
		s.log.Error("persisting failed generation state",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}

	generationRuns.WithLabelValues("failed").Inc()
	s.log.Warn("generation failed",
		zap.String("document_id", doc.ID.String()),
		zap.Error(cause),
	)

	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return generationdomain.ErrGenerationTimeout
	case errors.Is(cause, context.Canceled),
		errors.Is(cause, templatedomain.ErrNoActiveTemplate),
		errors.Is(cause, compiler.ErrCompile),
		errors.Is(cause, pricing.ErrOutOfRange),
		errors.Is(cause, pricing.ErrInvalidRangeSet),
		errors.Is(cause, pricing.ErrEmptyRangeSet):
		return cause
	default:
		return fmt.Errorf("%w: %v", generationdomain.ErrGenerationFailed, cause)
	}
}

func (s *Service) load(ctx context.Context, id string) (*generationdomain.GeneratedDocument, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, generationdomain.ErrInvalidCompany
	}

	docID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, generationdomain.ErrInvalidID
	}

	doc, err := s.repo.FindByID(ctx, s.db, docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, generationdomain.ErrNotFound
	}
	if doc.CompanyID != companyID {
		return nil, generationdomain.ErrNotFound
	}
	return doc, nil
}

func (s *Service) buildRecord(offer *offerdomain.Offer, client *customerdomain.Customer, quote pricing.Quote, now time.Time) binding.Record {
	return binding.Record{
		Client: binding.ClientData{
			Name:          client.Name,
			OrgNumber:     client.OrgNumber,
			Email:         client.Email,
			Phone:         client.Phone,
			Address:       client.Address,
			ContactPerson: client.ContactPerson,
		},
		Offer: binding.OfferData{
			Number:         offer.Number,
			Date:           offer.CreatedAt,
			DurationMonths: offer.DurationMonths,
			FinancedAmount: offer.FinancedAmount,
			Status:         string(offer.Status),
		},
		Equipment: binding.EquipmentData{
			Description: offer.EquipmentDescription,
			Price:       offer.FinancedAmount,
		},
		User: binding.UserData{
			Name:  offer.SalespersonName,
			Email: offer.SalespersonEmail,
		},
		General: binding.GeneralData{
			CompanyName: s.cfg.AppName,
			Date:        now,
		},
		Computed: binding.ComputedData{
			MonthlyPayment: quote.MonthlyPayment,
			Coefficient:    quote.Coefficient,
			FinancedAmount: offer.FinancedAmount,
		},
	}
}

func snapshotOf(tmpl *templatedomain.DocumentTemplate) generationdomain.TemplateSnapshot {
	return generationdomain.TemplateSnapshot{
		TemplateID:        tmpl.ID.String(),
		Name:              tmpl.Name,
		SourceDocumentURL: tmpl.SourceDocumentURL,
		Fields:            tmpl.Fields.Data(),
		Pages:             tmpl.Pages.Data(),
		PageCount:         tmpl.PageCount,
	}
}

func missingFieldIDs(missing []binding.MissingField) []string {
	ids := make([]string, 0, len(missing))
	for _, m := range missing {
		ids = append(ids, m.FieldID)
	}
	return ids
}

func (s *Service) emitAudit(ctx context.Context, companyID snowflake.ID, action string, docID snowflake.ID, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := docID.String()
	_ = s.auditSvc.AuditLog(ctx, companyID, action, "generated_document", &targetID, extra)
}

func (s *Service) toResponse(doc *generationdomain.GeneratedDocument) *generationdomain.Response {
	return &generationdomain.Response{
		ID:            doc.ID.String(),
		OfferID:       doc.OfferID.String(),
		TemplateID:    doc.TemplateID.String(),
		Status:        doc.Status,
		FailureReason: doc.FailureReason,
		MissingFields: doc.MissingFields.Data(),
		Locale:        doc.Locale,
		StorageRef:    doc.StorageRef,
		FileSize:      doc.FileSize,
		GeneratedAt:   doc.GeneratedAt,
		CreatedAt:     doc.CreatedAt,
	}
}
