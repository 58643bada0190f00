package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	giftcardservice "github.com/smallbiznis/storefront/internal/giftcard/service"
	taxservice "github.com/smallbiznis/storefront/internal/tax/service"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubTaxLineProvider resolves every item and shipping method to a
// single flat-rate line, standing in for the repository-backed
// provider.
type stubTaxLineProvider struct {
	rate  float64
	calls int
}

func (p *stubTaxLineProvider) GetTaxLines(ctx context.Context, items []checkoutdomain.LineItem, calcCtx totalsdomain.CalculationContext) ([]checkoutdomain.TaxLine, error) {
	p.calls++

	var lines []checkoutdomain.TaxLine
	for _, item := range items {
		lines = append(lines, checkoutdomain.LineItemTaxLine{
			ItemID: item.ID,
			Name:   "default",
			Rate:   p.rate,
		})
	}
	for _, method := range calcCtx.ShippingMethods {
		lines = append(lines, checkoutdomain.ShippingMethodTaxLine{
			ShippingMethodID: method.ID,
			Name:             "shipping",
			Rate:             p.rate,
		})
	}
	return lines, nil
}

func newTestService(t *testing.T, flags config.FeatureFlags, provider totalsdomain.TaxLineProvider) totalsdomain.Service {
	t.Helper()

	log := zap.NewNop()
	cfg := config.Config{Features: flags}

	return NewService(ServiceParam{
		Log:                log,
		Cfg:                cfg,
		TaxCalculator:      taxservice.NewCalculator(taxservice.CalculatorParam{Log: log, Cfg: cfg}),
		TaxLineProvider:    provider,
		GiftCardCalculator: giftcardservice.NewCalculator(giftcardservice.CalculatorParam{Log: log}),
	})
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func discountedCart(node *snowflake.Node) *checkoutdomain.Cart {
	itemID := node.Generate()
	discountID := node.Generate()

	return &checkoutdomain.Cart{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		Items: []checkoutdomain.LineItem{
			{
				ID:             itemID,
				UnitPrice:      1000,
				Quantity:       2,
				AllowDiscounts: true,
				Adjustments: []checkoutdomain.LineItemAdjustment{
					{ItemID: itemID, DiscountID: &discountID, Amount: 200},
				},
			},
		},
		Discounts: []checkoutdomain.Discount{
			{
				ID: discountID,
				Rule: checkoutdomain.DiscountRule{
					Type:       checkoutdomain.DiscountRulePercentage,
					Allocation: checkoutdomain.AllocationTotal,
					Value:      10,
				},
			},
		},
	}
}

func TestGetTotal_DiscountedCart(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})
	cart := discountedCart(node)
	ctx := context.Background()

	subtotal, err := svc.GetSubtotal(ctx, cart, totalsdomain.SubtotalOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), subtotal)

	discountTotal, err := svc.GetDiscountTotal(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, int64(200), discountTotal)

	taxTotal, err := svc.GetTaxTotal(ctx, cart, false)
	require.NoError(t, err)
	require.NotNil(t, taxTotal)
	assert.Equal(t, int64(180), *taxTotal)

	shippingTotal, err := svc.GetShippingTotal(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), shippingTotal)

	total, err := svc.GetTotal(ctx, cart, totalsdomain.TotalsOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1980), total)
}

func TestGetTaxTotal_LegacyFlatRate(t *testing.T) {
	node := newNode(t)
	provider := &stubTaxLineProvider{rate: 10}
	svc := newTestService(t, config.FeatureFlags{}, provider)

	legacyRate := 25.0
	itemID := node.Generate()
	discountID := node.Generate()
	order := &checkoutdomain.Order{
		ID:      node.Generate(),
		Region:  checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		TaxRate: &legacyRate,
		Items: []checkoutdomain.LineItem{
			{
				ID:             itemID,
				UnitPrice:      1000,
				Quantity:       1,
				AllowDiscounts: true,
				Adjustments: []checkoutdomain.LineItemAdjustment{
					{ItemID: itemID, DiscountID: &discountID, Amount: 100},
				},
			},
		},
		Discounts: []checkoutdomain.Discount{
			{ID: discountID, Rule: checkoutdomain.DiscountRule{Type: checkoutdomain.DiscountRuleFixed, Value: 100}},
		},
		ShippingMethods: []checkoutdomain.ShippingMethod{
			{ID: node.Generate(), Name: "standard", Price: 50},
		},
	}

	taxTotal, err := svc.GetTaxTotal(context.Background(), order, false)
	require.NoError(t, err)
	require.NotNil(t, taxTotal)

	// round((1000 - 100 + 50) * 0.25) = round(237.5) = 238
	assert.Equal(t, int64(238), *taxTotal)

	// The flat-rate branch never consults the tax line provider.
	assert.Equal(t, 0, provider.calls)
}

func TestGetTaxTotal_CartAutomaticTaxesGate(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})

	cart := discountedCart(node)
	cart.Region.AutomaticTaxes = false

	taxTotal, err := svc.GetTaxTotal(context.Background(), cart, false)
	require.NoError(t, err)
	assert.Nil(t, taxTotal)

	forced, err := svc.GetTaxTotal(context.Background(), cart, true)
	require.NoError(t, err)
	require.NotNil(t, forced)
	assert.Equal(t, int64(180), *forced)
}

func TestGetTaxTotal_OrderMissingTaxLines(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})

	order := &checkoutdomain.Order{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		Items: []checkoutdomain.LineItem{
			{ID: node.Generate(), UnitPrice: 1000, Quantity: 1, AllowDiscounts: true, TaxLines: nil},
		},
	}

	_, err := svc.GetTaxTotal(context.Background(), order, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, totalsdomain.ErrUnexpectedState))
}

func TestGetShippingMethodTotals_FreeShippingOverride(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})

	method := checkoutdomain.ShippingMethod{ID: node.Generate(), Name: "express", Price: 500}
	cart := &checkoutdomain.Cart{
		ID:              node.Generate(),
		Region:          checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		ShippingMethods: []checkoutdomain.ShippingMethod{method},
		Discounts: []checkoutdomain.Discount{
			{ID: node.Generate(), Rule: checkoutdomain.DiscountRule{Type: checkoutdomain.DiscountRuleFreeShipping}},
		},
	}

	totals, err := svc.GetShippingMethodTotals(context.Background(), method, cart, totalsdomain.ShippingMethodTotalsOptions{IncludeTax: true})
	require.NoError(t, err)

	assert.Equal(t, int64(0), totals.Total)
	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(0), totals.TaxTotal)

	// Original figures keep the undiscounted price.
	assert.Equal(t, int64(500), totals.Price)
	assert.Equal(t, int64(550), totals.OriginalTotal)
	assert.Equal(t, int64(50), totals.OriginalTaxTotal)
}

func TestGetAllocationMap_ZeroQuantity(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})

	itemID := node.Generate()
	discountID := node.Generate()
	cart := &checkoutdomain.Cart{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		Items: []checkoutdomain.LineItem{
			{
				ID:             itemID,
				UnitPrice:      1000,
				Quantity:       0,
				AllowDiscounts: true,
				Adjustments: []checkoutdomain.LineItemAdjustment{
					{ItemID: itemID, DiscountID: &discountID, Amount: 100},
				},
			},
		},
		Discounts: []checkoutdomain.Discount{
			{ID: discountID, Rule: checkoutdomain.DiscountRule{Type: checkoutdomain.DiscountRuleFixed, Value: 100}},
		},
	}

	allocationMap := svc.GetAllocationMap(cart, totalsdomain.AllocationMapOptions{})
	require.Contains(t, allocationMap, itemID)
	require.NotNil(t, allocationMap[itemID].Discount)

	assert.Equal(t, int64(100), allocationMap[itemID].Discount.Amount)
	assert.Equal(t, int64(0), allocationMap[itemID].Discount.UnitAmount)
}

func TestGetDiscountTotal_ClampedToSubtotal(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 0})

	itemID := node.Generate()
	discountID := node.Generate()
	cart := &checkoutdomain.Cart{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		Items: []checkoutdomain.LineItem{
			{
				ID:             itemID,
				UnitPrice:      100,
				Quantity:       1,
				AllowDiscounts: true,
				Adjustments: []checkoutdomain.LineItemAdjustment{
					{ItemID: itemID, DiscountID: &discountID, Amount: 500},
				},
			},
		},
		Discounts: []checkoutdomain.Discount{
			{ID: discountID, Rule: checkoutdomain.DiscountRule{Type: checkoutdomain.DiscountRuleFixed, Value: 500}},
		},
	}

	discountTotal, err := svc.GetDiscountTotal(context.Background(), cart)
	require.NoError(t, err)
	assert.Equal(t, int64(100), discountTotal)
}

func TestGetGiftCardTotal_BalanceDrawdown(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 0})

	cart := &checkoutdomain.Cart{
		ID: node.Generate(),
		Region: checkoutdomain.Region{
			ID:               node.Generate(),
			AutomaticTaxes:   true,
			GiftCardsTaxable: true,
			TaxRate:          25,
		},
		Items: []checkoutdomain.LineItem{
			{ID: node.Generate(), UnitPrice: 1000, Quantity: 1, AllowDiscounts: true},
		},
		GiftCards: []checkoutdomain.GiftCard{
			{ID: node.Generate(), Code: "GC1", Balance: 300},
		},
	}

	giftCard, err := svc.GetGiftCardTotal(context.Background(), cart, totalsdomain.GiftCardTotalOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(300), giftCard.Total)
	assert.Equal(t, int64(75), giftCard.TaxTotal)
}

func TestGetLineItemRefund_LegacyRate(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 0})

	legacyRate := 20.0
	item := checkoutdomain.LineItem{
		ID:             node.Generate(),
		UnitPrice:      500,
		Quantity:       3,
		AllowDiscounts: true,
	}
	order := &checkoutdomain.Order{
		ID:      node.Generate(),
		Region:  checkoutdomain.Region{ID: node.Generate()},
		TaxRate: &legacyRate,
		Items:   []checkoutdomain.LineItem{item},
	}

	refund := svc.GetLineItemRefund(order, item)
	assert.Equal(t, int64(1800), refund)
}

func TestGetRefundTotal_RejectsForeignItems(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 0})

	orderItem := checkoutdomain.LineItem{
		ID:        node.Generate(),
		UnitPrice: 500,
		Quantity:  1,
		TaxLines:  []checkoutdomain.LineItemTaxLine{{Rate: 10}},
	}
	swapItem := checkoutdomain.LineItem{
		ID:        node.Generate(),
		UnitPrice: 700,
		Quantity:  1,
		TaxLines:  []checkoutdomain.LineItemTaxLine{{Rate: 10}},
	}
	order := &checkoutdomain.Order{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate()},
		Items:  []checkoutdomain.LineItem{orderItem},
		Swaps: []checkoutdomain.Swap{
			{ID: node.Generate(), Items: []checkoutdomain.LineItem{swapItem}},
		},
	}

	refundTotal, err := svc.GetRefundTotal(order, []checkoutdomain.LineItem{orderItem, swapItem})
	require.NoError(t, err)
	assert.Equal(t, int64(550+770), refundTotal)

	foreign := checkoutdomain.LineItem{ID: node.Generate(), UnitPrice: 100, Quantity: 1}
	_, err = svc.GetRefundTotal(order, []checkoutdomain.LineItem{foreign})
	require.Error(t, err)
	assert.True(t, errors.Is(err, totalsdomain.ErrInvalidData))
}

func TestGetLineItemTotals_TaxInclusiveLegacy(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{TaxInclusivePricing: true}, &stubTaxLineProvider{rate: 0})

	legacyRate := 10.0
	item := checkoutdomain.LineItem{
		ID:             node.Generate(),
		UnitPrice:      1100,
		Quantity:       1,
		AllowDiscounts: true,
		IncludesTax:    true,
	}
	order := &checkoutdomain.Order{
		ID:      node.Generate(),
		Region:  checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		TaxRate: &legacyRate,
		Items:   []checkoutdomain.LineItem{item},
	}

	totals, err := svc.GetLineItemTotals(context.Background(), item, order, totalsdomain.LineItemTotalsOptions{IncludeTax: true})
	require.NoError(t, err)

	// The 10% tax is backed out of the inclusive price.
	assert.Equal(t, int64(1000), totals.Subtotal)
	assert.Equal(t, int64(100), totals.TaxTotal)
	assert.Equal(t, int64(1100), totals.Total)
}

func TestGetLineItemTotal_AddsDiscountComponent(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})
	cart := discountedCart(node)
	ctx := context.Background()

	// subtotal 2000, discount 200, tax 180 at 10% on the discounted base.
	total, err := svc.GetLineItemTotal(ctx, cart.Items[0], cart, totalsdomain.LineItemTotalOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2200), total)

	total, err = svc.GetLineItemTotal(ctx, cart.Items[0], cart, totalsdomain.LineItemTotalOptions{ExcludeDiscounts: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), total)

	total, err = svc.GetLineItemTotal(ctx, cart.Items[0], cart, totalsdomain.LineItemTotalOptions{IncludeTax: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2380), total)
}

func TestOrderAggregateSums(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 0})

	order := &checkoutdomain.Order{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate()},
		Payments: []checkoutdomain.Payment{
			{ID: node.Generate(), Amount: 1000},
			{ID: node.Generate(), Amount: 500},
		},
		Refunds: []checkoutdomain.Refund{
			{ID: node.Generate(), Amount: 200},
		},
		Swaps: []checkoutdomain.Swap{
			{ID: node.Generate(), DifferenceDue: 300},
			{ID: node.Generate(), DifferenceDue: -100},
		},
	}

	assert.Equal(t, int64(1500), svc.GetPaidTotal(order))
	assert.Equal(t, int64(200), svc.GetRefundedTotal(order))
	assert.Equal(t, int64(200), svc.GetSwapTotal(order))
}

func TestGetTotal_Decomposition(t *testing.T) {
	node := newNode(t)
	svc := newTestService(t, config.FeatureFlags{}, &stubTaxLineProvider{rate: 10})

	itemID := node.Generate()
	discountID := node.Generate()
	methodID := node.Generate()
	order := &checkoutdomain.Order{
		ID:     node.Generate(),
		Region: checkoutdomain.Region{ID: node.Generate(), AutomaticTaxes: true},
		Items: []checkoutdomain.LineItem{
			{
				ID:             itemID,
				UnitPrice:      2500,
				Quantity:       2,
				AllowDiscounts: true,
				TaxLines:       []checkoutdomain.LineItemTaxLine{{ItemID: itemID, Name: "default", Rate: 10}},
				Adjustments: []checkoutdomain.LineItemAdjustment{
					{ItemID: itemID, DiscountID: &discountID, Amount: 500},
				},
			},
		},
		Discounts: []checkoutdomain.Discount{
			{ID: discountID, Rule: checkoutdomain.DiscountRule{Type: checkoutdomain.DiscountRuleFixed, Value: 500}},
		},
		ShippingMethods: []checkoutdomain.ShippingMethod{
			{
				ID:       methodID,
				Name:     "standard",
				Price:    400,
				TaxLines: []checkoutdomain.ShippingMethodTaxLine{{ShippingMethodID: methodID, Name: "shipping", Rate: 10}},
			},
		},
		GiftCards: []checkoutdomain.GiftCard{
			{ID: node.Generate(), Code: "GC", Balance: 1000},
		},
	}
	ctx := context.Background()

	total, err := svc.GetTotal(ctx, order, totalsdomain.TotalsOptions{})
	require.NoError(t, err)
	subtotal, err := svc.GetSubtotal(ctx, order, totalsdomain.SubtotalOptions{})
	require.NoError(t, err)
	taxTotal, err := svc.GetTaxTotal(ctx, order, false)
	require.NoError(t, err)
	require.NotNil(t, taxTotal)
	discountTotal, err := svc.GetDiscountTotal(ctx, order)
	require.NoError(t, err)
	shippingTotal, err := svc.GetShippingTotal(ctx, order)
	require.NoError(t, err)
	giftCard, err := svc.GetGiftCardTotal(ctx, order, totalsdomain.GiftCardTotalOptions{})
	require.NoError(t, err)

	assert.Equal(t, subtotal+*taxTotal+shippingTotal-discountTotal-giftCard.Total, total)

	excluded, err := svc.GetTotal(ctx, order, totalsdomain.TotalsOptions{ExcludeGiftCards: true})
	require.NoError(t, err)
	assert.Equal(t, total+giftCard.Total, excluded)
}
