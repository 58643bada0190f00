package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/pkg/db"
	"gorm.io/gorm"
)

const (
	defaultRegionName     = "Default"
	defaultRegionCurrency = "usd"
)

// EnsureDefaultRegion seeds a zero-rate region so a fresh install can
// price carts immediately. Region names are unique, so a concurrent
// seeder losing the insert race is treated as already seeded.
func EnsureDefaultRegion(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var count int64
	if err := conn.WithContext(ctx).Model(&checkoutdomain.Region{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	err = conn.WithContext(ctx).Create(&checkoutdomain.Region{
		ID:               node.Generate(),
		Name:             defaultRegionName,
		CurrencyCode:     defaultRegionCurrency,
		TaxRate:          0,
		AutomaticTaxes:   true,
		GiftCardsTaxable: false,
	}).Error
	if db.IsDuplicateKeyErr(err) {
		return nil
	}
	return err
}
