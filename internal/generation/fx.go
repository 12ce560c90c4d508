package generation

import (
	"github.com/finovo/leaseflow/internal/generation/repository"
	"github.com/finovo/leaseflow/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
