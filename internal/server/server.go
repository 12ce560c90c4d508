// Package server exposes the HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/finovo/leaseflow/internal/audit"
	auditdomain "github.com/finovo/leaseflow/internal/audit/domain"
	"github.com/finovo/leaseflow/internal/config"
	"github.com/finovo/leaseflow/internal/customer"
	customerdomain "github.com/finovo/leaseflow/internal/customer/domain"
	"github.com/finovo/leaseflow/internal/doctemplate"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	"github.com/finovo/leaseflow/internal/generation"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	"github.com/finovo/leaseflow/internal/leaser"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	"github.com/finovo/leaseflow/internal/offer"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"github.com/finovo/leaseflow/internal/providers"
	"github.com/finovo/leaseflow/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	customer.Module,
	leaser.Module,
	offer.Module,
	doctemplate.Module,
	providers.Module,
	generation.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, metrics *telemetry.Metrics) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log))
	r.Use(TracingMiddleware())
	r.Use(MetricsMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, metrics *telemetry.Metrics) *gin.Engine {
	return NewEngine(cfg, log, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	auditSvc      auditdomain.Service
	customerSvc   customerdomain.Service
	leaserSvc     leaserdomain.Service
	offerSvc      offerdomain.Service
	templateSvc   templatedomain.Service
	generationSvc generationdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	AuditSvc      auditdomain.Service
	CustomerSvc   customerdomain.Service
	LeaserSvc     leaserdomain.Service
	OfferSvc      offerdomain.Service
	TemplateSvc   templatedomain.Service
	GenerationSvc generationdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		auditSvc:      p.AuditSvc,
		customerSvc:   p.CustomerSvc,
		leaserSvc:     p.LeaserSvc,
		offerSvc:      p.OfferSvc,
		templateSvc:   p.TemplateSvc,
		generationSvc: p.GenerationSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", CompanyScopeRequired())

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)

	// -------- Leasers --------
	api.GET("/leasers", s.ListLeasers)
	api.POST("/leasers", s.CreateLeaser)
	api.GET("/leasers/:id", s.GetLeaserByID)
	api.PUT("/leasers/:id/ranges", s.ReplaceLeaserRanges)
	api.POST("/leasers/:id/deprecate", s.DeprecateLeaser)
	api.GET("/leasers/:id/quote", s.QuoteLeaser)

	// -------- Offers --------
	api.GET("/offers", s.ListOffers)
	api.POST("/offers", s.CreateOffer)
	api.GET("/offers/:id", s.GetOfferByID)
	api.GET("/offers/:id/documents", s.ListOfferDocuments)

	// -------- Templates --------
	api.GET("/templates", s.ListTemplates)
	api.POST("/templates", s.IngestTemplate)
	api.GET("/templates/active", s.GetActiveTemplate)
	api.GET("/templates/:id", s.GetTemplateByID)
	api.POST("/templates/:id/activate", s.ActivateTemplate)
	api.PUT("/templates/:id/fields", s.CommitTemplateFields)
	api.POST("/templates/:id/fields/place", s.PlaceTemplateField)
	api.POST("/templates/:id/fields/:fieldId/unplace", s.UnplaceTemplateField)
	api.PUT("/templates/:id/fields/:fieldId/style", s.SetTemplateFieldStyle)

	// -------- Documents --------
	api.POST("/documents", s.GenerateDocument)
	api.GET("/documents/:id", s.GetDocumentByID)
	api.GET("/documents/:id/download", s.DownloadDocument)

	// -------- Audit --------
	api.GET("/audit_logs", s.ListAuditLogs)
}
