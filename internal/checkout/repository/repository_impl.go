package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) checkoutdomain.Repository {
	return &repository{db: db}
}

// GetCart loads the cart aggregate. Item tax lines are intentionally
// not joined: cart tax is resolved live by the tax line provider.
func (r *repository) GetCart(ctx context.Context, id snowflake.ID) (*checkoutdomain.Cart, error) {
	var cart checkoutdomain.Cart
	err := r.db.WithContext(ctx).
		Preload("Region").
		Preload("Customer").
		Preload("ShippingAddress").
		Preload("Items").
		Preload("Items.Adjustments").
		Preload("Discounts").
		Preload("Discounts.Rule").
		Preload("GiftCards").
		Preload("ShippingMethods").
		First(&cart, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cart, nil
}

// GetOrder loads the order aggregate with every relation the engine
// reads, tax lines included.
func (r *repository) GetOrder(ctx context.Context, id snowflake.ID) (*checkoutdomain.Order, error) {
	var order checkoutdomain.Order
	err := r.db.WithContext(ctx).
		Preload("Region").
		Preload("Customer").
		Preload("ShippingAddress").
		Preload("Items").
		Preload("Items.TaxLines").
		Preload("Items.Adjustments").
		Preload("Discounts").
		Preload("Discounts.Rule").
		Preload("GiftCards").
		Preload("GiftCardTransactions").
		Preload("ShippingMethods").
		Preload("ShippingMethods.TaxLines").
		Preload("Swaps").
		Preload("Swaps.Items").
		Preload("Swaps.Items.TaxLines").
		Preload("Swaps.Items.Adjustments").
		Preload("Claims").
		Preload("Claims.Items").
		Preload("Claims.Items.TaxLines").
		Preload("Claims.Items.Adjustments").
		Preload("Refunds").
		Preload("Payments").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListRegions(ctx context.Context, req checkoutdomain.ListRegionsRequest) ([]checkoutdomain.Region, *pagination.PageInfo, error) {
	stmt := r.db.WithContext(ctx).Model(&checkoutdomain.Region{})

	if req.CurrencyCode != "" {
		stmt = stmt.Where("currency_code = ?", req.CurrencyCode)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, nil, err
		}
		stmt = stmt.Where("id > ?", cursor.ID)
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = 10
	}

	var regions []*checkoutdomain.Region
	err := stmt.
		Order("id asc").
		Limit(limit + 1).
		Find(&regions).Error
	if err != nil {
		return nil, nil, err
	}

	pageInfo, err := pagination.BuildCursorPageInfo(regions, int32(limit), func(region *checkoutdomain.Region) (string, error) {
		return pagination.EncodeCursor(pagination.Cursor{ID: region.ID.String()})
	})
	if err != nil {
		return nil, nil, err
	}
	if len(regions) > limit {
		regions = regions[:limit]
	}

	out := make([]checkoutdomain.Region, 0, len(regions))
	for _, region := range regions {
		out = append(out, *region)
	}
	return out, pageInfo, nil
}
