package providers

import (
	"github.com/finovo/leaseflow/internal/providers/pdf"
	"github.com/finovo/leaseflow/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	fx.Provide(storage.Provide),
	fx.Provide(pdf.Provide),
)
