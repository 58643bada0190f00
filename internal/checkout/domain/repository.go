package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

// ListRegionsRequest filters and paginates the region listing.
type ListRegionsRequest struct {
	pagination.Pagination

	CurrencyCode string `form:"currency_code"`
}

// Repository loads the aggregates the totals engine prices. Carts and
// orders come back with every relation the engine reads already
// joined; a nil result means the id does not exist.
type Repository interface {
	GetCart(ctx context.Context, id snowflake.ID) (*Cart, error)
	GetOrder(ctx context.Context, id snowflake.ID) (*Order, error)
	ListRegions(ctx context.Context, req ListRegionsRequest) ([]Region, *pagination.PageInfo, error)
}
