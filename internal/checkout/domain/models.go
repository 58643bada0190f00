// Package domain contains the cart and order aggregates priced by the
// totals engine. Entities are loaded with their relations up front and
// treated as immutable inputs for the duration of a computation.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// DiscountRuleType represents how a discount reduces the total.
type DiscountRuleType string

const (
	DiscountRulePercentage   DiscountRuleType = "percentage"
	DiscountRuleFixed        DiscountRuleType = "fixed"
	DiscountRuleFreeShipping DiscountRuleType = "free_shipping"
)

// AllocationType represents how a discount spreads across line items.
type AllocationType string

const (
	AllocationTotal AllocationType = "total"
	AllocationItem  AllocationType = "item"
)

// Region holds the tax posture of a sales region.
type Region struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CurrencyCode string       `gorm:"column:currency_code;type:text;not null" json:"currency_code"`

	// TaxRate is the region default percentage (10 means 10%). Used by
	// the tax line provider when no product-level override exists.
	TaxRate          float64 `gorm:"column:tax_rate;not null" json:"tax_rate"`
	TaxCode          *string `gorm:"column:tax_code;type:text" json:"tax_code,omitempty"`
	AutomaticTaxes   bool    `gorm:"column:automatic_taxes;not null;default:true" json:"automatic_taxes"`
	GiftCardsTaxable bool    `gorm:"column:gift_cards_taxable;not null;default:true" json:"gift_cards_taxable"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Region) TableName() string { return "regions" }

// RegionTaxRate is a product-level override of the region default rate.
type RegionTaxRate struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	RegionID  snowflake.ID  `gorm:"column:region_id;not null;index" json:"region_id"`
	VariantID *snowflake.ID `gorm:"column:variant_id;index" json:"variant_id,omitempty"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Code      *string       `gorm:"type:text" json:"code,omitempty"`
	Rate      float64       `gorm:"not null" json:"rate"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RegionTaxRate) TableName() string { return "region_tax_rates" }

// Address is the shipping destination used for tax context.
type Address struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Line1       string       `gorm:"type:text" json:"line1"`
	Line2       *string      `gorm:"type:text" json:"line2,omitempty"`
	City        string       `gorm:"type:text" json:"city"`
	Province    *string      `gorm:"type:text" json:"province,omitempty"`
	PostalCode  string       `gorm:"column:postal_code;type:text" json:"postal_code"`
	CountryCode string       `gorm:"column:country_code;type:text" json:"country_code"`
}

func (Address) TableName() string { return "addresses" }

// Customer identifies the buyer for tax context purposes.
type Customer struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"type:text;not null" json:"email"`
	FirstName *string      `gorm:"column:first_name;type:text" json:"first_name,omitempty"`
	LastName  *string      `gorm:"column:last_name;type:text" json:"last_name,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

// LineItemTaxLine is a resolved tax rate attached to one line item.
type LineItemTaxLine struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	ItemID snowflake.ID `gorm:"column:item_id;not null;index" json:"item_id"`
	Name   string       `gorm:"type:text;not null" json:"name"`
	Code   *string      `gorm:"type:text" json:"code,omitempty"`

	// Rate is a percentage, 10 means 10%.
	Rate      float64   `gorm:"not null" json:"rate"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (LineItemTaxLine) TableName() string { return "line_item_tax_lines" }

func (l LineItemTaxLine) TaxLineRate() float64 { return l.Rate }
func (l LineItemTaxLine) TaxLineName() string  { return l.Name }

// ShippingMethodTaxLine is a resolved tax rate attached to one
// shipping method.
type ShippingMethodTaxLine struct {
	ID               snowflake.ID `gorm:"primaryKey" json:"id"`
	ShippingMethodID snowflake.ID `gorm:"column:shipping_method_id;not null;index" json:"shipping_method_id"`
	Name             string       `gorm:"type:text;not null" json:"name"`
	Code             *string      `gorm:"type:text" json:"code,omitempty"`
	Rate             float64      `gorm:"not null" json:"rate"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ShippingMethodTaxLine) TableName() string { return "shipping_method_tax_lines" }

func (l ShippingMethodTaxLine) TaxLineRate() float64 { return l.Rate }
func (l ShippingMethodTaxLine) TaxLineName() string  { return l.Name }

// TaxLine is implemented by LineItemTaxLine and ShippingMethodTaxLine.
// Consumers that need the owning entity type-switch on the concrete
// struct.
type TaxLine interface {
	TaxLineRate() float64
	TaxLineName() string
}

// LineItemAdjustment is a pre-computed amount deducted from a line
// item. A nil DiscountID marks a custom adjustment (manual override)
// rather than a discount application.
type LineItemAdjustment struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	ItemID      snowflake.ID  `gorm:"column:item_id;not null;index" json:"item_id"`
	DiscountID  *snowflake.ID `gorm:"column:discount_id;index" json:"discount_id,omitempty"`
	Description string        `gorm:"type:text" json:"description"`
	Amount      int64         `gorm:"not null" json:"amount"`
}

func (LineItemAdjustment) TableName() string { return "line_item_adjustments" }

// LineItem is a quantity of one variant on a cart or order. Amounts
// are integer minor units.
type LineItem struct {
	ID      snowflake.ID  `gorm:"primaryKey" json:"id"`
	CartID  *snowflake.ID `gorm:"column:cart_id;index" json:"cart_id,omitempty"`
	OrderID *snowflake.ID `gorm:"column:order_id;index" json:"order_id,omitempty"`
	SwapID  *snowflake.ID `gorm:"column:swap_id;index" json:"swap_id,omitempty"`
	ClaimID *snowflake.ID `gorm:"column:claim_id;index" json:"claim_id,omitempty"`

	VariantID *snowflake.ID `gorm:"column:variant_id;index" json:"variant_id,omitempty"`
	Title     string        `gorm:"type:text;not null" json:"title"`

	UnitPrice      int64 `gorm:"column:unit_price;not null" json:"unit_price"`
	Quantity       int64 `gorm:"not null" json:"quantity"`
	AllowDiscounts bool  `gorm:"column:allow_discounts;not null;default:true" json:"allow_discounts"`

	// IncludesTax marks unit_price as tax-inclusive. Only honored when
	// tax-inclusive pricing is enabled in configuration.
	IncludesTax bool `gorm:"column:includes_tax;not null;default:false" json:"includes_tax"`
	IsReturn    bool `gorm:"column:is_return;not null;default:false" json:"is_return"`

	// TaxLines is nil when the relation was not loaded. Orders must
	// have it populated before totals run.
	TaxLines    []LineItemTaxLine    `gorm:"foreignKey:ItemID" json:"tax_lines,omitempty"`
	Adjustments []LineItemAdjustment `gorm:"foreignKey:ItemID" json:"adjustments"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (LineItem) TableName() string { return "line_items" }

// ShippingMethod is a priced delivery selection on a cart or order.
type ShippingMethod struct {
	ID      snowflake.ID  `gorm:"primaryKey" json:"id"`
	CartID  *snowflake.ID `gorm:"column:cart_id;index" json:"cart_id,omitempty"`
	OrderID *snowflake.ID `gorm:"column:order_id;index" json:"order_id,omitempty"`

	Name        string `gorm:"type:text;not null" json:"name"`
	Price       int64  `gorm:"not null" json:"price"`
	IncludesTax bool   `gorm:"column:includes_tax;not null;default:false" json:"includes_tax"`

	TaxLines []ShippingMethodTaxLine `gorm:"foreignKey:ShippingMethodID" json:"tax_lines"`
}

func (ShippingMethod) TableName() string { return "shipping_methods" }

// DiscountRule defines what a discount does.
type DiscountRule struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	Type       DiscountRuleType `gorm:"type:text;not null" json:"type"`
	Allocation AllocationType   `gorm:"type:text;not null" json:"allocation"`

	// Value is a percentage for percentage rules and a minor-unit
	// amount for fixed rules.
	Value int64 `gorm:"not null" json:"value"`
}

func (DiscountRule) TableName() string { return "discount_rules" }

// Discount is a code applied to a cart or order. At most one
// non-free-shipping discount is ever active for allocation purposes.
type Discount struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"id"`
	Code   string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	RuleID snowflake.ID `gorm:"column:rule_id;not null" json:"rule_id"`
	Rule   DiscountRule `gorm:"foreignKey:RuleID" json:"rule"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Discount) TableName() string { return "discounts" }

// GiftCard carries a spendable balance in minor units.
type GiftCard struct {
	ID       snowflake.ID `gorm:"primaryKey" json:"id"`
	Code     string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	RegionID snowflake.ID `gorm:"column:region_id;not null;index" json:"region_id"`
	Balance  int64        `gorm:"not null" json:"balance"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (GiftCard) TableName() string { return "gift_cards" }

// GiftCardTransaction records an amount already drawn from a gift card
// against an order, with the tax posture captured at redemption time.
type GiftCardTransaction struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	GiftCardID snowflake.ID `gorm:"column:gift_card_id;not null;index" json:"gift_card_id"`
	OrderID    snowflake.ID `gorm:"column:order_id;not null;index" json:"order_id"`
	Amount     int64        `gorm:"not null" json:"amount"`
	IsTaxable  bool         `gorm:"column:is_taxable;not null;default:false" json:"is_taxable"`
	TaxRate    *float64     `gorm:"column:tax_rate" json:"tax_rate,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (GiftCardTransaction) TableName() string { return "gift_card_transactions" }

// Payment records money captured against an order.
type Payment struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID      snowflake.ID `gorm:"column:order_id;not null;index" json:"order_id"`
	Amount       int64        `gorm:"not null" json:"amount"`
	CurrencyCode string       `gorm:"column:currency_code;type:text;not null" json:"currency_code"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// Refund records money returned to the customer.
type Refund struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID `gorm:"column:order_id;not null;index" json:"order_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Reason    string       `gorm:"type:text" json:"reason"`
	Note      *string      `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Refund) TableName() string { return "refunds" }

// Swap is an exchange within an existing order: returned items ride
// along as is_return line items, replacement items as regular ones.
type Swap struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID snowflake.ID `gorm:"column:order_id;not null;index" json:"order_id"`

	// DifferenceDue can be negative when the replacement is cheaper.
	DifferenceDue int64 `gorm:"column:difference_due;not null" json:"difference_due"`

	Items []LineItem `gorm:"foreignKey:SwapID" json:"items"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Swap) TableName() string { return "swaps" }

// AdditionalItems returns the replacement items added by the swap.
func (s Swap) AdditionalItems() []LineItem {
	out := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if !item.IsReturn {
			out = append(out, item)
		}
	}
	return out
}

// ReturnItems returns the items sent back under the swap.
func (s Swap) ReturnItems() []LineItem {
	out := make([]LineItem, 0, len(s.Items))
	for _, item := range s.Items {
		if item.IsReturn {
			out = append(out, item)
		}
	}
	return out
}

// Claim is a post-purchase adjustment on specific order items.
type Claim struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	OrderID snowflake.ID `gorm:"column:order_id;not null;index" json:"order_id"`
	Type    string       `gorm:"type:text;not null" json:"type"`

	Items []LineItem `gorm:"foreignKey:ClaimID" json:"items"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Claim) TableName() string { return "claims" }

// AdditionalItems returns the replacement items added by the claim.
func (c Claim) AdditionalItems() []LineItem {
	out := make([]LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		if !item.IsReturn {
			out = append(out, item)
		}
	}
	return out
}

// Cart is the pre-purchase aggregate. Carts always price taxes through
// tax lines, gated by the region's automatic_taxes setting.
type Cart struct {
	ID snowflake.ID `gorm:"primaryKey" json:"id"`

	RegionID snowflake.ID `gorm:"column:region_id;not null;index" json:"region_id"`
	Region   Region       `gorm:"foreignKey:RegionID" json:"region"`

	CustomerID *snowflake.ID `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	Customer   *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	ShippingAddressID *snowflake.ID `gorm:"column:shipping_address_id" json:"shipping_address_id,omitempty"`
	ShippingAddress   *Address      `gorm:"foreignKey:ShippingAddressID" json:"shipping_address,omitempty"`

	Email *string `gorm:"type:text" json:"email,omitempty"`

	Items           []LineItem       `gorm:"foreignKey:CartID" json:"items"`
	Discounts       []Discount       `gorm:"many2many:cart_discounts" json:"discounts"`
	GiftCards       []GiftCard       `gorm:"many2many:cart_gift_cards" json:"gift_cards"`
	ShippingMethods []ShippingMethod `gorm:"foreignKey:CartID" json:"shipping_methods"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Cart) TableName() string { return "carts" }

// Order is the finalized purchase aggregate. A non-nil TaxRate marks
// an order created under the legacy flat-rate tax system; the model is
// resolved once at load time and never changes for the order's
// lifetime.
type Order struct {
	ID     snowflake.ID  `gorm:"primaryKey" json:"id"`
	CartID *snowflake.ID `gorm:"column:cart_id;index" json:"cart_id,omitempty"`

	RegionID snowflake.ID `gorm:"column:region_id;not null;index" json:"region_id"`
	Region   Region       `gorm:"foreignKey:RegionID" json:"region"`

	CustomerID *snowflake.ID `gorm:"column:customer_id;index" json:"customer_id,omitempty"`
	Customer   *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`

	ShippingAddressID *snowflake.ID `gorm:"column:shipping_address_id" json:"shipping_address_id,omitempty"`
	ShippingAddress   *Address      `gorm:"foreignKey:ShippingAddressID" json:"shipping_address,omitempty"`

	CurrencyCode string   `gorm:"column:currency_code;type:text;not null" json:"currency_code"`
	TaxRate      *float64 `gorm:"column:tax_rate" json:"tax_rate,omitempty"`

	Items                []LineItem            `gorm:"foreignKey:OrderID" json:"items"`
	Discounts            []Discount            `gorm:"many2many:order_discounts" json:"discounts"`
	GiftCards            []GiftCard            `gorm:"many2many:order_gift_cards" json:"gift_cards"`
	GiftCardTransactions []GiftCardTransaction `gorm:"foreignKey:OrderID" json:"gift_card_transactions"`
	ShippingMethods      []ShippingMethod      `gorm:"foreignKey:OrderID" json:"shipping_methods"`

	Swaps    []Swap    `gorm:"foreignKey:OrderID" json:"swaps"`
	Claims   []Claim   `gorm:"foreignKey:OrderID" json:"claims"`
	Refunds  []Refund  `gorm:"foreignKey:OrderID" json:"refunds"`
	Payments []Payment `gorm:"foreignKey:OrderID" json:"payments"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
