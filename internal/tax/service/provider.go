package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	taxdomain "github.com/smallbiznis/storefront/internal/tax/domain"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ProviderParam struct {
	fx.In

	Log        *zap.Logger
	Repository taxdomain.Repository
	Holder     *config.CheckoutConfigHolder
	GenID      *snowflake.Node
}

// provider resolves tax lines from region configuration: a
// product-level override when one exists for the item's variant,
// otherwise the region default rate.
type provider struct {
	log    *zap.Logger
	repo   taxdomain.Repository
	holder *config.CheckoutConfigHolder
	genID  *snowflake.Node
}

func NewProvider(p ProviderParam) totalsdomain.TaxLineProvider {
	return &provider{
		log:    p.Log.Named("tax.provider"),
		repo:   p.Repository,
		holder: p.Holder,
		genID:  p.GenID,
	}
}

func (p *provider) GetTaxLines(ctx context.Context, items []checkoutdomain.LineItem, calcCtx totalsdomain.CalculationContext) ([]checkoutdomain.TaxLine, error) {
	region := calcCtx.Region
	cfg := p.holder.Get()

	variantIDs := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item.VariantID != nil {
			variantIDs = append(variantIDs, *item.VariantID)
		}
	}

	overrides, err := p.repo.ListRatesForVariants(ctx, region.ID, variantIDs)
	if err != nil {
		return nil, err
	}
	byVariant := make(map[snowflake.ID][]checkoutdomain.RegionTaxRate)
	for _, rate := range overrides {
		if rate.VariantID != nil {
			byVariant[*rate.VariantID] = append(byVariant[*rate.VariantID], rate)
		}
	}

	var lines []checkoutdomain.TaxLine
	for _, item := range items {
		var itemRates []checkoutdomain.RegionTaxRate
		if item.VariantID != nil {
			itemRates = byVariant[*item.VariantID]
		}

		if len(itemRates) == 0 {
			lines = append(lines, checkoutdomain.LineItemTaxLine{
				ID:     p.genID.Generate(),
				ItemID: item.ID,
				Name:   cfg.DefaultTaxName,
				Code:   region.TaxCode,
				Rate:   region.TaxRate,
			})
			continue
		}
		for _, rate := range itemRates {
			lines = append(lines, checkoutdomain.LineItemTaxLine{
				ID:     p.genID.Generate(),
				ItemID: item.ID,
				Name:   rate.Name,
				Code:   rate.Code,
				Rate:   rate.Rate,
			})
		}
	}

	for _, method := range calcCtx.ShippingMethods {
		lines = append(lines, checkoutdomain.ShippingMethodTaxLine{
			ID:               p.genID.Generate(),
			ShippingMethodID: method.ID,
			Name:             cfg.DefaultShippingTaxName,
			Code:             region.TaxCode,
			Rate:             region.TaxRate,
		})
	}

	return lines, nil
}
