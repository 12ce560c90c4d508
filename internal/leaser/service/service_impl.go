package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/finovo/leaseflow/internal/audit/domain"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/finovo/leaseflow/internal/pricing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     leaserdomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     leaserdomain.Repository
	auditSvc auditdomain.Service
}

func NewService(p Params) leaserdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("leaser.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req leaserdomain.CreateRequest) (*leaserdomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, leaserdomain.ErrInvalidCompany
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, leaserdomain.ErrInvalidName
	}

	ranges, err := s.buildRanges(req.Ranges)
	if err != nil {
		return nil, err
	}

	leaser := &leaserdomain.Leaser{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Name:      name,
	}
	for i := range ranges {
		ranges[i].LeaserID = leaser.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, leaser); err != nil {
			return err
		}
		return s.repo.ReplaceRanges(ctx, tx, leaser.ID, ranges)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, companyID, "leaser.created", leaser.ID, map[string]any{"name": name, "range_count": len(ranges)})
	return s.toResponse(leaser, ranges), nil
}

func (s *Service) List(ctx context.Context) ([]leaserdomain.Response, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, leaserdomain.ErrInvalidCompany
	}

	items, err := s.repo.List(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}

	resp := make([]leaserdomain.Response, 0, len(items))
	for i := range items {
		ranges, err := s.repo.ListRanges(ctx, s.db, items[i].ID)
		if err != nil {
			return nil, err
		}
		resp = append(resp, *s.toResponse(&items[i], ranges))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*leaserdomain.Response, error) {
	leaser, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ranges, err := s.repo.ListRanges(ctx, s.db, leaser.ID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(leaser, ranges), nil
}

func (s *Service) ReplaceRanges(ctx context.Context, leaserID string, inputs []leaserdomain.RangeInput) (*leaserdomain.Response, error) {
	leaser, err := s.load(ctx, leaserID)
	if err != nil {
		return nil, err
	}
	if leaser.Deprecated {
		return nil, leaserdomain.ErrDeprecated
	}

	ranges, err := s.buildRanges(inputs)
	if err != nil {
		return nil, err
	}
	for i := range ranges {
		ranges[i].LeaserID = leaser.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.ReplaceRanges(ctx, tx, leaser.ID, ranges)
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, leaser.CompanyID, "leaser.ranges_replaced", leaser.ID, map[string]any{"range_count": len(ranges)})
	return s.toResponse(leaser, ranges), nil
}

func (s *Service) Deprecate(ctx context.Context, id string) error {
	leaser, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if leaser.Deprecated {
		return nil
	}

	leaser.Deprecated = true
	leaser.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, leaser); err != nil {
		return err
	}

	s.emitAudit(ctx, leaser.CompanyID, "leaser.deprecated", leaser.ID, nil)
	return nil
}

func (s *Service) RangeSet(ctx context.Context, leaserID string) (pricing.RangeSet, error) {
	leaser, err := s.load(ctx, leaserID)
	if err != nil {
		return pricing.RangeSet{}, err
	}

	rows, err := s.repo.ListRanges(ctx, s.db, leaser.ID)
	if err != nil {
		return pricing.RangeSet{}, err
	}

	set := pricing.RangeSet{
		LeaserID: leaser.ID,
		Ranges:   make([]pricing.Range, 0, len(rows)),
	}
	for _, row := range rows {
		set.Ranges = append(set.Ranges, pricing.Range{
			Min:         row.MinAmount,
			Max:         row.MaxAmount,
			Coefficient: row.Coefficient,
		})
	}
	return set, nil
}

func (s *Service) load(ctx context.Context, id string) (*leaserdomain.Leaser, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, leaserdomain.ErrInvalidCompany
	}

	leaserID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, leaserdomain.ErrInvalidID
	}

	leaser, err := s.repo.FindByID(ctx, s.db, companyID, leaserID)
	if err != nil {
		return nil, err
	}
	if leaser == nil {
		return nil, leaserdomain.ErrNotFound
	}
	return leaser, nil
}

// buildRanges validates the proposed table through the pricing invariants
// before anything touches the database.
func (s *Service) buildRanges(inputs []leaserdomain.RangeInput) ([]leaserdomain.LeaserRange, error) {
	set := pricing.RangeSet{Ranges: make([]pricing.Range, 0, len(inputs))}
	for _, in := range inputs {
		set.Ranges = append(set.Ranges, pricing.Range{
			Min:         in.Min,
			Max:         in.Max,
			Coefficient: in.Coefficient,
		})
	}
	if err := pricing.Validate(set); err != nil {
		return nil, leaserdomain.ErrInvalidRangeSet
	}

	ranges := make([]leaserdomain.LeaserRange, 0, len(inputs))
	for i, in := range inputs {
		ranges = append(ranges, leaserdomain.LeaserRange{
			ID:          s.genID.Generate(),
			Position:    i,
			MinAmount:   in.Min,
			MaxAmount:   in.Max,
			Coefficient: in.Coefficient,
		})
	}
	return ranges, nil
}

func (s *Service) emitAudit(ctx context.Context, companyID snowflake.ID, action string, leaserID snowflake.ID, extra map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := leaserID.String()
	_ = s.auditSvc.AuditLog(ctx, companyID, action, "leaser", &targetID, extra)
}

func (s *Service) toResponse(leaser *leaserdomain.Leaser, ranges []leaserdomain.LeaserRange) *leaserdomain.Response {
	views := make([]leaserdomain.RangeView, 0, len(ranges))
	for _, r := range ranges {
		views = append(views, leaserdomain.RangeView{
			Min:         r.MinAmount,
			Max:         r.MaxAmount,
			Coefficient: r.Coefficient,
		})
	}
	return &leaserdomain.Response{
		ID:         leaser.ID.String(),
		CompanyID:  leaser.CompanyID.String(),
		Name:       leaser.Name,
		Deprecated: leaser.Deprecated,
		Ranges:     views,
		CreatedAt:  leaser.CreatedAt,
		UpdatedAt:  leaser.UpdatedAt,
	}
}
