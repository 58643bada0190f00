package observability

import (
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.NewEngineMetrics),
)
