package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

type Repository interface {
	// ListRatesForVariants returns the product-level overrides defined
	// in a region for the given variants. Variants without an override
	// fall back to the region default rate.
	ListRatesForVariants(ctx context.Context, regionID snowflake.ID, variantIDs []snowflake.ID) ([]checkoutdomain.RegionTaxRate, error)
}
