package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCalculator(t *testing.T, flags config.FeatureFlags) totalsdomain.TaxCalculator {
	t.Helper()
	return NewCalculator(CalculatorParam{
		Log: zap.NewNop(),
		Cfg: config.Config{Features: flags},
	})
}

func TestCalculate_PerLineRounding(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{})

	itemID := node.Generate()
	item := checkoutdomain.LineItem{ID: itemID, UnitPrice: 333, Quantity: 1}

	// Two lines round independently: round(333*0.075) = 25 each,
	// not round(333*0.15) = 50.
	lines := []checkoutdomain.TaxLine{
		checkoutdomain.LineItemTaxLine{ItemID: itemID, Name: "state", Rate: 7.5},
		checkoutdomain.LineItemTaxLine{ItemID: itemID, Name: "county", Rate: 7.5},
	}

	total, err := calc.Calculate(context.Background(), []checkoutdomain.LineItem{item}, lines, totalsdomain.CalculationContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestCalculate_DiscountReducesTaxable(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{})

	itemID := node.Generate()
	item := checkoutdomain.LineItem{ID: itemID, UnitPrice: 1000, Quantity: 2}
	lines := []checkoutdomain.TaxLine{
		checkoutdomain.LineItemTaxLine{ItemID: itemID, Name: "default", Rate: 10},
	}

	calcCtx := totalsdomain.CalculationContext{
		AllocationMap: totalsdomain.LineAllocationsMap{
			itemID: {Discount: &totalsdomain.DiscountAllocation{Amount: 200, UnitAmount: 100}},
		},
	}

	total, err := calc.Calculate(context.Background(), []checkoutdomain.LineItem{item}, lines, calcCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(180), total)
}

func TestCalculate_TaxInclusiveBackout(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{TaxInclusivePricing: true})

	itemID := node.Generate()
	item := checkoutdomain.LineItem{ID: itemID, UnitPrice: 1100, Quantity: 1, IncludesTax: true}
	lines := []checkoutdomain.TaxLine{
		checkoutdomain.LineItemTaxLine{ItemID: itemID, Name: "default", Rate: 10},
	}

	total, err := calc.Calculate(context.Background(), []checkoutdomain.LineItem{item}, lines, totalsdomain.CalculationContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), total)
}

func TestCalculate_InclusiveIgnoredWhenFlagOff(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{})

	itemID := node.Generate()
	item := checkoutdomain.LineItem{ID: itemID, UnitPrice: 1100, Quantity: 1, IncludesTax: true}
	lines := []checkoutdomain.TaxLine{
		checkoutdomain.LineItemTaxLine{ItemID: itemID, Name: "default", Rate: 10},
	}

	total, err := calc.Calculate(context.Background(), []checkoutdomain.LineItem{item}, lines, totalsdomain.CalculationContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(110), total)
}

func TestCalculate_ShippingMethods(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{})

	methodID := node.Generate()
	method := checkoutdomain.ShippingMethod{ID: methodID, Name: "standard", Price: 400}
	lines := []checkoutdomain.TaxLine{
		checkoutdomain.ShippingMethodTaxLine{ShippingMethodID: methodID, Name: "shipping", Rate: 10},
	}

	calcCtx := totalsdomain.CalculationContext{
		ShippingMethods: []checkoutdomain.ShippingMethod{method},
	}

	total, err := calc.Calculate(context.Background(), nil, lines, calcCtx)
	require.NoError(t, err)
	assert.Equal(t, int64(40), total)
}

func TestCalculate_ItemsWithoutLines(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	calc := newTestCalculator(t, config.FeatureFlags{})

	item := checkoutdomain.LineItem{ID: node.Generate(), UnitPrice: 1000, Quantity: 1}

	total, err := calc.Calculate(context.Background(), []checkoutdomain.LineItem{item}, nil, totalsdomain.CalculationContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
