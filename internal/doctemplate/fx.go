package doctemplate

import (
	"github.com/finovo/leaseflow/internal/doctemplate/repository"
	"github.com/finovo/leaseflow/internal/doctemplate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("doctemplate.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
