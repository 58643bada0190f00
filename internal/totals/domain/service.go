package domain

import (
	"context"

	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

// TaxCalculator turns items and resolved tax lines into a tax amount.
// The context carries the allocation map for discount-aware
// computation; an empty map yields the undiscounted figure.
type TaxCalculator interface {
	Calculate(ctx context.Context, items []checkoutdomain.LineItem, taxLines []checkoutdomain.TaxLine, calcCtx CalculationContext) (int64, error)
}

// TaxLineProvider resolves the tax lines applicable to items and to
// the context's shipping methods.
type TaxLineProvider interface {
	GetTaxLines(ctx context.Context, items []checkoutdomain.LineItem, calcCtx CalculationContext) ([]checkoutdomain.TaxLine, error)
}

// GiftCardCalculator computes how much of the giftcardable base the
// customer's gift cards cover, and the tax share of that amount.
type GiftCardCalculator interface {
	GetGiftCardTotals(ctx context.Context, giftCardableAmount int64, opts GiftCardTotalsOptions) (GiftCardTotals, error)
}

// Service computes monetary totals over cart and order aggregates. All
// operations are pure functions of their inputs and the collaborators'
// responses; failures propagate unchanged.
type Service interface {
	// GetTotal returns subtotal + tax + shipping − discount − gift
	// card. A nil tax total (cart, automatic taxes off) counts as 0.
	GetTotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts TotalsOptions) (int64, error)

	// GetSubtotal sums the tax-inclusive-adjusted line subtotals.
	GetSubtotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts SubtotalOptions) (int64, error)

	// GetShippingTotal sums each shipping method's subtotal.
	GetShippingTotal(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error)

	// GetShippingMethodTotals builds the per-method breakdown,
	// honoring the free-shipping override.
	GetShippingMethodTotals(ctx context.Context, method checkoutdomain.ShippingMethod, target checkoutdomain.CalculationTarget, opts ShippingMethodTotalsOptions) (ShippingMethodTotals, error)

	// GetTaxTotal returns nil when no tax applies (cart with automatic
	// taxes disabled and not forced).
	GetTaxTotal(ctx context.Context, target checkoutdomain.CalculationTarget, forceTaxes bool) (*int64, error)

	// GetAllocationMap spreads the active discount and custom
	// adjustments across line items.
	GetAllocationMap(target checkoutdomain.CalculationTarget, opts AllocationMapOptions) LineAllocationsMap

	// GetDiscountTotal clamps the summed adjustments to the
	// discountable subtotal's magnitude and sign.
	GetDiscountTotal(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error)

	GetGiftCardTotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts GiftCardTotalOptions) (GiftCardTotals, error)
	GetGiftCardableAmount(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error)

	GetLineItemTotals(ctx context.Context, item checkoutdomain.LineItem, target checkoutdomain.CalculationTarget, opts LineItemTotalsOptions) (LineItemTotals, error)
	GetLineItemTotal(ctx context.Context, item checkoutdomain.LineItem, target checkoutdomain.CalculationTarget, opts LineItemTotalOptions) (int64, error)

	// GetLineItemRefund prices the refund for one returned line item.
	GetLineItemRefund(order *checkoutdomain.Order, item checkoutdomain.LineItem) int64

	// GetRefundTotal fails with ErrInvalidData when an item does not
	// belong to the order or its swaps/claims.
	GetRefundTotal(order *checkoutdomain.Order, items []checkoutdomain.LineItem) (int64, error)

	GetRefundedTotal(order *checkoutdomain.Order) int64
	GetPaidTotal(order *checkoutdomain.Order) int64
	GetSwapTotal(order *checkoutdomain.Order) int64

	GetCalculationContext(target checkoutdomain.CalculationTarget, opts ContextOptions) CalculationContext
}
