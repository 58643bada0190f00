package giftcard

import (
	"github.com/smallbiznis/storefront/internal/giftcard/service"
	"go.uber.org/fx"
)

var Module = fx.Module("giftcard.service",
	fx.Provide(service.NewCalculator),
)
