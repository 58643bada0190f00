package totals

import (
	"github.com/smallbiznis/storefront/internal/totals/service"
	"go.uber.org/fx"
)

var Module = fx.Module("totals.service",
	fx.Provide(service.NewService),
)
