package audit

import (
	"github.com/finovo/leaseflow/internal/audit/repository"
	"github.com/finovo/leaseflow/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
