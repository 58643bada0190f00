package service

import (
	"context"
	"math"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CalculatorParam struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

// calculator applies resolved tax lines to taxable amounts. Each line
// rounds independently so a stored breakdown always sums to the total.
type calculator struct {
	log   *zap.Logger
	flags config.FeatureFlags
}

func NewCalculator(p CalculatorParam) totalsdomain.TaxCalculator {
	return &calculator{
		log:   p.Log.Named("tax.calculator"),
		flags: p.Cfg.Features,
	}
}

func (c *calculator) Calculate(ctx context.Context, items []checkoutdomain.LineItem, taxLines []checkoutdomain.TaxLine, calcCtx totalsdomain.CalculationContext) (int64, error) {
	itemLines := make(map[snowflake.ID][]checkoutdomain.LineItemTaxLine)
	methodLines := make(map[snowflake.ID][]checkoutdomain.ShippingMethodTaxLine)
	for _, line := range taxLines {
		switch l := line.(type) {
		case checkoutdomain.LineItemTaxLine:
			itemLines[l.ItemID] = append(itemLines[l.ItemID], l)
		case checkoutdomain.ShippingMethodTaxLine:
			methodLines[l.ShippingMethodID] = append(methodLines[l.ShippingMethodID], l)
		}
	}

	var total int64
	for _, item := range items {
		lines := itemLines[item.ID]
		if len(lines) == 0 {
			continue
		}

		taxable := float64(item.UnitPrice * item.Quantity)
		if c.flags.TaxInclusivePricing && item.IncludesTax {
			var combined float64
			for _, line := range lines {
				combined += line.Rate / 100
			}
			taxable = taxable / (1 + combined)
		}
		if alloc, ok := calcCtx.AllocationMap[item.ID]; ok && alloc.Discount != nil {
			taxable -= float64(alloc.Discount.Amount)
		}

		for _, line := range lines {
			total += int64(math.Round(taxable * line.Rate / 100))
		}
	}

	for _, method := range calcCtx.ShippingMethods {
		lines := methodLines[method.ID]
		if len(lines) == 0 {
			continue
		}

		taxable := float64(method.Price)
		if c.flags.TaxInclusivePricing && method.IncludesTax {
			var combined float64
			for _, line := range lines {
				combined += line.Rate / 100
			}
			taxable = taxable / (1 + combined)
		}

		for _, line := range lines {
			total += int64(math.Round(taxable * line.Rate / 100))
		}
	}

	return total, nil
}
