// Package domain defines the totals engine contract: the breakdown
// structures it produces, the options its operations accept, and the
// collaborator interfaces it prices through. All monetary values are
// integer minor units.
package domain

import (
	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
)

// DiscountAllocation is the share of a discount carried by one line
// item.
type DiscountAllocation struct {
	// Amount is the full adjustment for the line (discount plus custom
	// adjustments).
	Amount int64 `json:"amount"`
	// UnitAmount is Amount spread per unit, rounded.
	UnitAmount int64 `json:"unit_amount"`
}

// LineAllocations holds the per-item allocation entries.
type LineAllocations struct {
	Discount *DiscountAllocation `json:"discount,omitempty"`
}

// LineAllocationsMap keys allocations by line item id. At most one
// entry exists per item per computation.
type LineAllocationsMap map[snowflake.ID]LineAllocations

// CalculationContext is the shared context handed to the tax
// collaborators. It is built once per top-level operation and threaded
// through nested calls as an immutable value.
type CalculationContext struct {
	ShippingAddress *checkoutdomain.Address
	ShippingMethods []checkoutdomain.ShippingMethod
	Customer        *checkoutdomain.Customer
	Region          checkoutdomain.Region
	IsReturn        bool
	AllocationMap   LineAllocationsMap
}

// LineItemTotals is the per-line breakdown. Original values are the
// undiscounted figures kept for display.
type LineItemTotals struct {
	UnitPrice        int64                              `json:"unit_price"`
	Quantity         int64                              `json:"quantity"`
	Subtotal         int64                              `json:"subtotal"`
	TaxTotal         int64                              `json:"tax_total"`
	Total            int64                              `json:"total"`
	OriginalTotal    int64                              `json:"original_total"`
	OriginalTaxTotal int64                              `json:"original_tax_total"`
	DiscountTotal    int64                              `json:"discount_total"`
	TaxLines         []checkoutdomain.LineItemTaxLine   `json:"tax_lines,omitempty"`
}

// ShippingMethodTotals is the per-method breakdown.
type ShippingMethodTotals struct {
	Price            int64                                  `json:"price"`
	TaxTotal         int64                                  `json:"tax_total"`
	Total            int64                                  `json:"total"`
	Subtotal         int64                                  `json:"subtotal"`
	OriginalTotal    int64                                  `json:"original_total"`
	OriginalTaxTotal int64                                  `json:"original_tax_total"`
	TaxLines         []checkoutdomain.ShippingMethodTaxLine `json:"tax_lines,omitempty"`
}

// GiftCardTotals is the applied gift-card amount and its tax
// component.
type GiftCardTotals struct {
	Total    int64 `json:"total"`
	TaxTotal int64 `json:"tax_total"`
}

// TotalsOptions controls GetTotal.
type TotalsOptions struct {
	// ExcludeGiftCards forces the gift-card component to zero, for
	// callers that deduct gift cards elsewhere.
	ExcludeGiftCards bool
	// ForceTaxes bypasses the cart automatic-taxes gate.
	ForceTaxes bool
}

// SubtotalOptions controls GetSubtotal.
type SubtotalOptions struct {
	// ExcludeNonDiscounts skips items with allow_discounts false,
	// yielding the discountable base.
	ExcludeNonDiscounts bool
}

// AllocationMapOptions controls GetAllocationMap.
type AllocationMapOptions struct {
	ExcludeDiscounts bool
}

// ContextOptions controls GetCalculationContext.
type ContextOptions struct {
	ExcludeShipping  bool
	ExcludeGiftCards bool
	ExcludeDiscounts bool
}

// LineItemTotalsOptions controls GetLineItemTotals.
type LineItemTotalsOptions struct {
	IncludeTax bool
	// UseTaxLines forces the item's own tax lines even on carts.
	UseTaxLines      bool
	ExcludeGiftCards bool
	// CalculationContext, when set, is reused instead of rebuilding
	// the allocation map.
	CalculationContext *CalculationContext
}

// LineItemTotalOptions controls GetLineItemTotal.
type LineItemTotalOptions struct {
	IncludeTax       bool
	ExcludeDiscounts bool
}

// ShippingMethodTotalsOptions controls GetShippingMethodTotals.
type ShippingMethodTotalsOptions struct {
	IncludeTax         bool
	UseTaxLines        bool
	CalculationContext *CalculationContext
}

// GiftCardTotalOptions controls GetGiftCardTotal.
type GiftCardTotalOptions struct {
	// GiftCardable overrides the computed giftcardable base.
	GiftCardable *int64
}

// GiftCardTotalsOptions carries everything the gift-card calculator
// needs besides the base amount.
type GiftCardTotalsOptions struct {
	Region               checkoutdomain.Region
	GiftCards            []checkoutdomain.GiftCard
	GiftCardTransactions []checkoutdomain.GiftCardTransaction
}
