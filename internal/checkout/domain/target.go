package domain

import "github.com/bwmarrin/snowflake"

// TaxSystem selects which of the two historical tax computations
// applies to an aggregate.
type TaxSystem int

const (
	// TaxSystemLines prices tax through per-entity tax lines.
	TaxSystemLines TaxSystem = iota
	// TaxSystemLegacy prices tax through a single flat region rate
	// recorded on the order at creation.
	TaxSystemLegacy
)

// TaxModel is the tagged variant resolved once per aggregate. Rate is
// a percentage and only meaningful for TaxSystemLegacy.
type TaxModel struct {
	System TaxSystem
	Rate   float64
}

// ResolveTaxModel maps the order's nullable tax_rate column to a tax
// model. A present rate means the order predates the tax-lines
// migration.
func ResolveTaxModel(taxRate *float64) TaxModel {
	if taxRate != nil {
		return TaxModel{System: TaxSystemLegacy, Rate: *taxRate}
	}
	return TaxModel{System: TaxSystemLines}
}

// CalculationTarget is the read surface the totals engine prices
// against. Both Cart and Order implement it; order-only operations
// (refunds, payments, swap differences) take *Order directly.
type CalculationTarget interface {
	GetID() snowflake.ID
	GetItems() []LineItem
	GetDiscounts() []Discount
	GetGiftCards() []GiftCard
	GetGiftCardTransactions() []GiftCardTransaction
	GetShippingMethods() []ShippingMethod
	GetRegion() Region
	GetCustomer() *Customer
	GetShippingAddress() *Address
	GetTaxModel() TaxModel

	// GetReturnItems lists swap return items whose tax lines are
	// appended to the aggregate's taxable lines.
	GetReturnItems() []LineItem

	// GetAdditionalItems lists swap and claim additional items merged
	// into discount allocation and refund validation.
	GetAdditionalItems() []LineItem

	// Finalized reports whether the aggregate is a completed purchase.
	// Finalized aggregates must carry prejoined tax lines on every
	// line item and are taxed regardless of the region's
	// automatic_taxes setting.
	Finalized() bool
}

var (
	_ CalculationTarget = (*Cart)(nil)
	_ CalculationTarget = (*Order)(nil)
)

func (c *Cart) GetID() snowflake.ID                            { return c.ID }
func (c *Cart) GetItems() []LineItem                           { return c.Items }
func (c *Cart) GetDiscounts() []Discount                       { return c.Discounts }
func (c *Cart) GetGiftCards() []GiftCard                       { return c.GiftCards }
func (c *Cart) GetGiftCardTransactions() []GiftCardTransaction { return nil }
func (c *Cart) GetShippingMethods() []ShippingMethod           { return c.ShippingMethods }
func (c *Cart) GetRegion() Region                              { return c.Region }
func (c *Cart) GetCustomer() *Customer                         { return c.Customer }
func (c *Cart) GetShippingAddress() *Address                   { return c.ShippingAddress }
func (c *Cart) GetTaxModel() TaxModel                          { return TaxModel{System: TaxSystemLines} }
func (c *Cart) GetReturnItems() []LineItem                     { return nil }
func (c *Cart) GetAdditionalItems() []LineItem                 { return nil }
func (c *Cart) Finalized() bool                                { return false }

func (o *Order) GetID() snowflake.ID                            { return o.ID }
func (o *Order) GetItems() []LineItem                           { return o.Items }
func (o *Order) GetDiscounts() []Discount                       { return o.Discounts }
func (o *Order) GetGiftCards() []GiftCard                       { return o.GiftCards }
func (o *Order) GetGiftCardTransactions() []GiftCardTransaction { return o.GiftCardTransactions }
func (o *Order) GetShippingMethods() []ShippingMethod           { return o.ShippingMethods }
func (o *Order) GetRegion() Region                              { return o.Region }
func (o *Order) GetCustomer() *Customer                         { return o.Customer }
func (o *Order) GetShippingAddress() *Address                   { return o.ShippingAddress }
func (o *Order) GetTaxModel() TaxModel                          { return ResolveTaxModel(o.TaxRate) }
func (o *Order) Finalized() bool                                { return true }

func (o *Order) GetReturnItems() []LineItem {
	var out []LineItem
	for _, swap := range o.Swaps {
		out = append(out, swap.ReturnItems()...)
	}
	return out
}

func (o *Order) GetAdditionalItems() []LineItem {
	var out []LineItem
	for _, swap := range o.Swaps {
		out = append(out, swap.AdditionalItems()...)
	}
	for _, claim := range o.Claims {
		out = append(out, claim.AdditionalItems()...)
	}
	return out
}
