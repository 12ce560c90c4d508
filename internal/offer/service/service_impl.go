package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"github.com/finovo/leaseflow/internal/orgcontext"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  offerdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  offerdomain.Repository
}

func NewService(p Params) offerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("offer.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req offerdomain.CreateRequest) (*offerdomain.Offer, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, offerdomain.ErrInvalidCompany
	}

	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil {
		return nil, offerdomain.ErrInvalidID
	}
	leaserID, err := snowflake.ParseString(strings.TrimSpace(req.LeaserID))
	if err != nil {
		return nil, offerdomain.ErrInvalidID
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.FinancedAmount))
	if err != nil || amount.Sign() <= 0 {
		return nil, offerdomain.ErrInvalidAmount
	}

	durationMonths := req.DurationMonths
	if durationMonths <= 0 {
		durationMonths = 36
	}

	offer := &offerdomain.Offer{
		ID:                   s.genID.Generate(),
		CompanyID:            companyID,
		ClientID:             clientID,
		LeaserID:             leaserID,
		Number:               strings.TrimSpace(req.Number),
		EquipmentDescription: strings.TrimSpace(req.EquipmentDescription),
		FinancedAmount:       amount,
		DurationMonths:       durationMonths,
		Status:               offerdomain.OfferStatusDraft,
		SalespersonName:      strings.TrimSpace(req.SalespersonName),
		SalespersonEmail:     strings.TrimSpace(req.SalespersonEmail),
	}

	if err := s.repo.Insert(ctx, s.db, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

func (s *Service) Get(ctx context.Context, id string) (*offerdomain.Offer, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, offerdomain.ErrInvalidCompany
	}

	offerID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, offerdomain.ErrInvalidID
	}

	offer, err := s.repo.FindByID(ctx, s.db, companyID, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, offerdomain.ErrNotFound
	}
	return offer, nil
}

func (s *Service) List(ctx context.Context) ([]offerdomain.Offer, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return nil, offerdomain.ErrInvalidCompany
	}
	return s.repo.List(ctx, s.db, companyID)
}
