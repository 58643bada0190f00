package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	taxdomain "github.com/smallbiznis/storefront/internal/tax/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxdomain.Repository {
	return &repository{db: db}
}

func (r *repository) ListRatesForVariants(ctx context.Context, regionID snowflake.ID, variantIDs []snowflake.ID) ([]checkoutdomain.RegionTaxRate, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}

	var rates []checkoutdomain.RegionTaxRate
	err := r.db.WithContext(ctx).
		Where("region_id = ?", regionID).
		Where("variant_id IN ?", variantIDs).
		Order("id ASC").
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}
