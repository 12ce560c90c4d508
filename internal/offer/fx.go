package offer

import (
	"github.com/finovo/leaseflow/internal/offer/repository"
	"github.com/finovo/leaseflow/internal/offer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
