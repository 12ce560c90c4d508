package migration

import (
	auditdomain "github.com/finovo/leaseflow/internal/audit/domain"
	"github.com/finovo/leaseflow/internal/config"
	customerdomain "github.com/finovo/leaseflow/internal/customer/domain"
	templatedomain "github.com/finovo/leaseflow/internal/doctemplate/domain"
	generationdomain "github.com/finovo/leaseflow/internal/generation/domain"
	leaserdomain "github.com/finovo/leaseflow/internal/leaser/domain"
	offerdomain "github.com/finovo/leaseflow/internal/offer/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Embedded-database deployments (dev, tests) skip the SQL
		// migrations and let gorm create the schema.
		return conn.AutoMigrate(
			&customerdomain.Customer{},
			&leaserdomain.Leaser{},
			&leaserdomain.LeaserRange{},
			&offerdomain.Offer{},
			&templatedomain.DocumentTemplate{},
			&generationdomain.GeneratedDocument{},
			&auditdomain.AuditLog{},
		)
	}),
)
