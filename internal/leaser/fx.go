package leaser

import (
	"github.com/finovo/leaseflow/internal/leaser/repository"
	"github.com/finovo/leaseflow/internal/leaser/service"
	"go.uber.org/fx"
)

var Module = fx.Module("leaser.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
