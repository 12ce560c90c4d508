package customer

import (
	"github.com/finovo/leaseflow/internal/customer/repository"
	"github.com/finovo/leaseflow/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
