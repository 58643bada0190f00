package server

import (
	"context"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
)

type lineItemTotalsResponse struct {
	ID snowflake.ID `json:"id"`
	totalsdomain.LineItemTotals
}

type shippingMethodTotalsResponse struct {
	ID snowflake.ID `json:"id"`
	totalsdomain.ShippingMethodTotals
}

type totalsResponse struct {
	Subtotal         int64  `json:"subtotal"`
	DiscountTotal    int64  `json:"discount_total"`
	TaxTotal         *int64 `json:"tax_total"`
	GiftCardTotal    int64  `json:"gift_card_total"`
	GiftCardTaxTotal int64  `json:"gift_card_tax_total"`
	ShippingTotal    int64  `json:"shipping_total"`
	Total            int64  `json:"total"`

	Items           []lineItemTotalsResponse       `json:"items"`
	ShippingMethods []shippingMethodTotalsResponse `json:"shipping_methods"`
}

// buildTotals runs the full breakdown for one target. Per-line tax is
// only included when the aggregate-level tax gate is open, so the
// parts always sum to the total.
func (s *Server) buildTotals(ctx context.Context, target checkoutdomain.CalculationTarget, forceTaxes bool) (totalsResponse, error) {
	var resp totalsResponse

	total, err := s.totalsSvc.GetTotal(ctx, target, totalsdomain.TotalsOptions{ForceTaxes: forceTaxes})
	if err != nil {
		return resp, err
	}
	subtotal, err := s.totalsSvc.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{})
	if err != nil {
		return resp, err
	}
	discountTotal, err := s.totalsSvc.GetDiscountTotal(ctx, target)
	if err != nil {
		return resp, err
	}
	taxTotal, err := s.totalsSvc.GetTaxTotal(ctx, target, forceTaxes)
	if err != nil {
		return resp, err
	}
	giftCard, err := s.totalsSvc.GetGiftCardTotal(ctx, target, totalsdomain.GiftCardTotalOptions{})
	if err != nil {
		return resp, err
	}
	shippingTotal, err := s.totalsSvc.GetShippingTotal(ctx, target)
	if err != nil {
		return resp, err
	}

	resp.Subtotal = subtotal
	resp.DiscountTotal = discountTotal
	resp.TaxTotal = taxTotal
	resp.GiftCardTotal = giftCard.Total
	resp.GiftCardTaxTotal = giftCard.TaxTotal
	resp.ShippingTotal = shippingTotal
	resp.Total = total

	includeTax := taxTotal != nil

	calcCtx := s.totalsSvc.GetCalculationContext(target, totalsdomain.ContextOptions{ExcludeShipping: true})
	resp.Items = make([]lineItemTotalsResponse, 0, len(target.GetItems()))
	for _, item := range target.GetItems() {
		itemTotals, err := s.totalsSvc.GetLineItemTotals(ctx, item, target, totalsdomain.LineItemTotalsOptions{
			IncludeTax:         includeTax,
			CalculationContext: &calcCtx,
		})
		if err != nil {
			return resp, err
		}
		resp.Items = append(resp.Items, lineItemTotalsResponse{ID: item.ID, LineItemTotals: itemTotals})
	}

	resp.ShippingMethods = make([]shippingMethodTotalsResponse, 0, len(target.GetShippingMethods()))
	for _, method := range target.GetShippingMethods() {
		methodTotals, err := s.totalsSvc.GetShippingMethodTotals(ctx, method, target, totalsdomain.ShippingMethodTotalsOptions{
			IncludeTax:         includeTax,
			CalculationContext: &calcCtx,
		})
		if err != nil {
			return resp, err
		}
		resp.ShippingMethods = append(resp.ShippingMethods, shippingMethodTotalsResponse{ID: method.ID, ShippingMethodTotals: methodTotals})
	}

	return resp, nil
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, checkoutdomain.ErrInvalidID
	}
	return id, nil
}
