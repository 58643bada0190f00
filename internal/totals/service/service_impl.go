package service

import (
	"context"
	"fmt"
	"math"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/smallbiznis/storefront/internal/checkout/domain"
	"github.com/smallbiznis/storefront/internal/config"
	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service prices cart and order aggregates. It never mutates its
// inputs and holds no state beyond configuration and collaborators,
// so every operation is a pure function of what it is given.
type Service struct {
	log   *zap.Logger
	flags config.FeatureFlags

	taxCalculator      totalsdomain.TaxCalculator
	taxLineProvider    totalsdomain.TaxLineProvider
	giftCardCalculator totalsdomain.GiftCardCalculator
}

type ServiceParam struct {
	fx.In

	Log                *zap.Logger
	Cfg                config.Config
	TaxCalculator      totalsdomain.TaxCalculator
	TaxLineProvider    totalsdomain.TaxLineProvider
	GiftCardCalculator totalsdomain.GiftCardCalculator
}

func NewService(p ServiceParam) totalsdomain.Service {
	return &Service{
		log:   p.Log.Named("totals.service"),
		flags: p.Cfg.Features,

		taxCalculator:      p.TaxCalculator,
		taxLineProvider:    p.TaxLineProvider,
		giftCardCalculator: p.GiftCardCalculator,
	}
}

func (s *Service) GetTotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts totalsdomain.TotalsOptions) (int64, error) {
	subtotal, err := s.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{})
	if err != nil {
		return 0, err
	}

	taxTotalPtr, err := s.GetTaxTotal(ctx, target, opts.ForceTaxes)
	if err != nil {
		return 0, err
	}
	var taxTotal int64
	if taxTotalPtr != nil {
		taxTotal = *taxTotalPtr
	}

	discountTotal, err := s.GetDiscountTotal(ctx, target)
	if err != nil {
		return 0, err
	}

	var giftCardTotal int64
	if !opts.ExcludeGiftCards {
		giftCard, err := s.GetGiftCardTotal(ctx, target, totalsdomain.GiftCardTotalOptions{})
		if err != nil {
			return 0, err
		}
		giftCardTotal = giftCard.Total
	}

	shippingTotal, err := s.GetShippingTotal(ctx, target)
	if err != nil {
		return 0, err
	}

	return subtotal + taxTotal + shippingTotal - discountTotal - giftCardTotal, nil
}

func (s *Service) GetSubtotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts totalsdomain.SubtotalOptions) (int64, error) {
	calcCtx := s.GetCalculationContext(target, totalsdomain.ContextOptions{
		ExcludeShipping:  true,
		ExcludeGiftCards: true,
	})

	var subtotal int64
	for _, item := range target.GetItems() {
		if opts.ExcludeNonDiscounts && !item.AllowDiscounts {
			continue
		}

		itemTotals, err := s.GetLineItemTotals(ctx, item, target, totalsdomain.LineItemTotalsOptions{
			IncludeTax:         true,
			ExcludeGiftCards:   true,
			CalculationContext: &calcCtx,
		})
		if err != nil {
			return 0, err
		}
		subtotal += itemTotals.Subtotal
	}

	return subtotal, nil
}

func (s *Service) GetShippingTotal(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error) {
	calcCtx := s.GetCalculationContext(target, totalsdomain.ContextOptions{ExcludeShipping: true})

	var total int64
	for _, method := range target.GetShippingMethods() {
		methodTotals, err := s.GetShippingMethodTotals(ctx, method, target, totalsdomain.ShippingMethodTotalsOptions{
			IncludeTax:         true,
			CalculationContext: &calcCtx,
		})
		if err != nil {
			return 0, err
		}
		total += methodTotals.Subtotal
	}
	return total, nil
}

func (s *Service) GetShippingMethodTotals(ctx context.Context, method checkoutdomain.ShippingMethod, target checkoutdomain.CalculationTarget, opts totalsdomain.ShippingMethodTotalsOptions) (totalsdomain.ShippingMethodTotals, error) {
	var calcCtx totalsdomain.CalculationContext
	if opts.CalculationContext != nil {
		calcCtx = *opts.CalculationContext
	} else {
		calcCtx = s.GetCalculationContext(target, totalsdomain.ContextOptions{ExcludeShipping: true})
	}
	// Tax for a method is computed against that method alone.
	calcCtx.ShippingMethods = []checkoutdomain.ShippingMethod{method}

	totals := totalsdomain.ShippingMethodTotals{
		Price:         method.Price,
		Total:         method.Price,
		Subtotal:      method.Price,
		OriginalTotal: method.Price,
		TaxLines:      method.TaxLines,
	}

	if opts.IncludeTax {
		model := target.GetTaxModel()
		switch model.System {
		case checkoutdomain.TaxSystemLegacy:
			// Legacy shipping tax is flat on price; discounts never
			// reduce the shipping taxable base in this mode.
			taxed := rounded(float64(method.Price) * model.Rate / 100)
			totals.OriginalTaxTotal = taxed
			totals.TaxTotal = taxed

		case checkoutdomain.TaxSystemLines:
			if len(totals.TaxLines) == 0 {
				fetched, err := s.taxLineProvider.GetTaxLines(ctx, target.GetItems(), calcCtx)
				if err != nil {
					return totalsdomain.ShippingMethodTotals{}, err
				}
				totals.TaxLines = shippingTaxLinesFor(fetched, method.ID)

				if len(totals.TaxLines) == 0 && target.Finalized() {
					return totalsdomain.ShippingMethodTotals{}, fmt.Errorf(
						"%w: tax lines must be joined on shipping method %s before totals are computed",
						totalsdomain.ErrUnexpectedState, method.ID,
					)
				}
			}

			if len(totals.TaxLines) > 0 {
				includesTax := s.flags.TaxInclusivePricing && method.IncludesTax

				taxTotal, err := s.taxCalculator.Calculate(ctx, nil, asShippingTaxLines(totals.TaxLines), calcCtx)
				if err != nil {
					return totalsdomain.ShippingMethodTotals{}, err
				}
				totals.OriginalTaxTotal = taxTotal
				totals.TaxTotal = taxTotal

				if includesTax {
					totals.Subtotal -= taxTotal
				} else {
					totals.OriginalTotal += totals.OriginalTaxTotal
					totals.Total += totals.TaxTotal
				}
			}
		}
	}

	for _, discount := range target.GetDiscounts() {
		if discount.Rule.Type == checkoutdomain.DiscountRuleFreeShipping {
			totals.Total = 0
			totals.Subtotal = 0
			totals.TaxTotal = 0
			break
		}
	}

	return totals, nil
}

func (s *Service) GetTaxTotal(ctx context.Context, target checkoutdomain.CalculationTarget, forceTaxes bool) (*int64, error) {
	region := target.GetRegion()
	if !target.Finalized() && !region.AutomaticTaxes && !forceTaxes {
		return nil, nil
	}

	calcCtx := s.GetCalculationContext(target, totalsdomain.ContextOptions{})
	model := target.GetTaxModel()

	if model.System == checkoutdomain.TaxSystemLegacy {
		subtotal, err := s.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{})
		if err != nil {
			return nil, err
		}
		discountTotal, err := s.GetDiscountTotal(ctx, target)
		if err != nil {
			return nil, err
		}
		giftCard, err := s.GetGiftCardTotal(ctx, target, totalsdomain.GiftCardTotalOptions{})
		if err != nil {
			return nil, err
		}
		shippingTotal, err := s.GetShippingTotal(ctx, target)
		if err != nil {
			return nil, err
		}

		// Flat computation over the whole taxable base; the legacy
		// system never separates a gift-card tax component.
		taxTotal := rounded(float64(subtotal-discountTotal-giftCard.Total+shippingTotal) * model.Rate / 100)
		return &taxTotal, nil
	}

	items := target.GetItems()
	var taxLines []checkoutdomain.TaxLine
	if target.Finalized() {
		returnItems := target.GetReturnItems()
		taxedItems := make([]checkoutdomain.LineItem, 0, len(items)+len(returnItems))
		taxedItems = append(taxedItems, items...)

		for _, item := range items {
			if item.TaxLines == nil {
				return nil, fmt.Errorf(
					"%w: tax lines must be joined on line item %s before totals are computed",
					totalsdomain.ErrUnexpectedState, item.ID,
				)
			}
			taxLines = append(taxLines, asItemTaxLines(item.TaxLines)...)
		}
		for _, method := range target.GetShippingMethods() {
			taxLines = append(taxLines, asShippingTaxLines(method.TaxLines)...)
		}
		for _, item := range returnItems {
			if item.TaxLines == nil {
				return nil, fmt.Errorf(
					"%w: tax lines must be joined on return line item %s before totals are computed",
					totalsdomain.ErrUnexpectedState, item.ID,
				)
			}
			taxLines = append(taxLines, asItemTaxLines(item.TaxLines)...)
			taxedItems = append(taxedItems, item)
		}
		items = taxedItems
	} else {
		fetched, err := s.taxLineProvider.GetTaxLines(ctx, items, calcCtx)
		if err != nil {
			return nil, err
		}
		taxLines = fetched
	}

	taxTotal, err := s.taxCalculator.Calculate(ctx, items, taxLines, calcCtx)
	if err != nil {
		return nil, err
	}

	if region.GiftCardsTaxable {
		// Gift cards carry their own tax; it must not stay inside the
		// aggregate's taxable total.
		giftCard, err := s.GetGiftCardTotal(ctx, target, totalsdomain.GiftCardTotalOptions{})
		if err != nil {
			return nil, err
		}
		taxTotal -= giftCard.TaxTotal
	}

	return &taxTotal, nil
}

func (s *Service) GetAllocationMap(target checkoutdomain.CalculationTarget, opts totalsdomain.AllocationMapOptions) totalsdomain.LineAllocationsMap {
	allocationMap := totalsdomain.LineAllocationsMap{}
	if opts.ExcludeDiscounts {
		return allocationMap
	}

	var discount *checkoutdomain.Discount
	for _, candidate := range target.GetDiscounts() {
		if candidate.Rule.Type != checkoutdomain.DiscountRuleFreeShipping {
			d := candidate
			discount = &d
			break
		}
	}

	items := make([]checkoutdomain.LineItem, 0, len(target.GetItems())+len(target.GetAdditionalItems()))
	items = append(items, target.GetItems()...)
	items = append(items, target.GetAdditionalItems()...)
	for _, item := range items {
		var discountAmount, customAmount int64
		for _, adjustment := range item.Adjustments {
			if adjustment.DiscountID == nil {
				customAmount += adjustment.Amount
				continue
			}
			if discount != nil && *adjustment.DiscountID == discount.ID {
				discountAmount += adjustment.Amount
			}
		}
		if !item.AllowDiscounts {
			discountAmount = 0
		}

		adjustmentAmount := discountAmount + customAmount
		var unitAmount int64
		if item.Quantity != 0 {
			unitAmount = rounded(float64(adjustmentAmount) / float64(item.Quantity))
		} else if adjustmentAmount != 0 {
			s.log.Warn("adjustment on zero-quantity line item",
				zap.String("item_id", item.ID.String()),
				zap.Int64("amount", adjustmentAmount),
			)
		}

		allocationMap[item.ID] = totalsdomain.LineAllocations{
			Discount: &totalsdomain.DiscountAllocation{
				Amount:     adjustmentAmount,
				UnitAmount: unitAmount,
			},
		}
	}

	return allocationMap
}

func (s *Service) GetDiscountTotal(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error) {
	subtotal, err := s.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{ExcludeNonDiscounts: true})
	if err != nil {
		return 0, err
	}

	var discountTotal int64
	for _, item := range target.GetItems() {
		for _, adjustment := range item.Adjustments {
			discountTotal += adjustment.Amount
		}
	}

	// The discount can never exceed the discountable subtotal in
	// magnitude, and its sign tracks the subtotal's sign so negative
	// return subtotals stay coherent.
	if subtotal < 0 {
		return max(subtotal, discountTotal), nil
	}
	return min(subtotal, discountTotal), nil
}

func (s *Service) GetGiftCardTotal(ctx context.Context, target checkoutdomain.CalculationTarget, opts totalsdomain.GiftCardTotalOptions) (totalsdomain.GiftCardTotals, error) {
	var giftCardable int64
	if opts.GiftCardable != nil {
		giftCardable = *opts.GiftCardable
	} else {
		subtotal, err := s.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{})
		if err != nil {
			return totalsdomain.GiftCardTotals{}, err
		}
		discountTotal, err := s.GetDiscountTotal(ctx, target)
		if err != nil {
			return totalsdomain.GiftCardTotals{}, err
		}
		giftCardable = subtotal - discountTotal
	}

	return s.giftCardCalculator.GetGiftCardTotals(ctx, giftCardable, totalsdomain.GiftCardTotalsOptions{
		Region:               target.GetRegion(),
		GiftCards:            target.GetGiftCards(),
		GiftCardTransactions: target.GetGiftCardTransactions(),
	})
}

func (s *Service) GetGiftCardableAmount(ctx context.Context, target checkoutdomain.CalculationTarget) (int64, error) {
	if target.GetRegion().GiftCardsTaxable {
		// Taxable gift-card regions apply cards before tax, so the
		// base is the discounted subtotal.
		subtotal, err := s.GetSubtotal(ctx, target, totalsdomain.SubtotalOptions{})
		if err != nil {
			return 0, err
		}
		discountTotal, err := s.GetDiscountTotal(ctx, target)
		if err != nil {
			return 0, err
		}
		return subtotal - discountTotal, nil
	}

	return s.GetTotal(ctx, target, totalsdomain.TotalsOptions{ExcludeGiftCards: true})
}

func (s *Service) GetLineItemTotals(ctx context.Context, item checkoutdomain.LineItem, target checkoutdomain.CalculationTarget, opts totalsdomain.LineItemTotalsOptions) (totalsdomain.LineItemTotals, error) {
	var calcCtx totalsdomain.CalculationContext
	if opts.CalculationContext != nil {
		calcCtx = *opts.CalculationContext
	} else {
		calcCtx = s.GetCalculationContext(target, totalsdomain.ContextOptions{
			ExcludeShipping:  true,
			ExcludeGiftCards: opts.ExcludeGiftCards,
		})
	}

	includesTax := s.flags.TaxInclusivePricing && item.IncludesTax

	subtotal := item.UnitPrice * item.Quantity
	if includesTax && opts.IncludeTax {
		// Tax-inclusive subtotal is derived after tax is known.
		subtotal = 0
	}

	var discountTotal int64
	if alloc, ok := calcCtx.AllocationMap[item.ID]; ok && alloc.Discount != nil {
		discountTotal = alloc.Discount.Amount
	}

	totals := totalsdomain.LineItemTotals{
		UnitPrice:     item.UnitPrice,
		Quantity:      item.Quantity,
		Subtotal:      subtotal,
		DiscountTotal: discountTotal,
		Total:         subtotal - discountTotal,
		OriginalTotal: subtotal,
		TaxLines:      item.TaxLines,
	}

	if !opts.IncludeTax {
		return totals, nil
	}

	model := target.GetTaxModel()
	if model.System == checkoutdomain.TaxSystemLegacy {
		taxRate := model.Rate / 100

		var taxIncludedInPrice int64
		if includesTax {
			taxIncludedInPrice = rounded(calculatePriceTaxAmount(item.UnitPrice, taxRate, true))
		}
		totals.Subtotal = (item.UnitPrice - taxIncludedInPrice) * item.Quantity
		totals.Total = totals.Subtotal - discountTotal
		totals.OriginalTotal = totals.Subtotal

		totals.OriginalTaxTotal = rounded(float64(totals.Subtotal) * taxRate)
		// Legacy tax is computed net of discount.
		totals.TaxTotal = rounded(float64(totals.Subtotal-discountTotal) * taxRate)

		totals.Total += totals.TaxTotal
		totals.OriginalTotal += totals.OriginalTaxTotal
		return totals, nil
	}

	taxLines, err := s.resolveLineItemTaxLines(ctx, item, target, opts, calcCtx)
	if err != nil {
		return totalsdomain.LineItemTotals{}, err
	}

	if len(taxLines) > 0 {
		lines := asItemTaxLines(taxLines)

		taxTotal, err := s.taxCalculator.Calculate(ctx, []checkoutdomain.LineItem{item}, lines, calcCtx)
		if err != nil {
			return totalsdomain.LineItemTotals{}, err
		}

		noDiscountCtx := calcCtx
		noDiscountCtx.AllocationMap = totalsdomain.LineAllocationsMap{}
		originalTaxTotal, err := s.taxCalculator.Calculate(ctx, []checkoutdomain.LineItem{item}, lines, noDiscountCtx)
		if err != nil {
			return totalsdomain.LineItemTotals{}, err
		}

		if includesTax {
			// Reconcile the tax-inclusive price with the now-known
			// undiscounted tax amount.
			totals.Subtotal += item.UnitPrice*item.Quantity - originalTaxTotal
			totals.Total += totals.Subtotal
			totals.OriginalTotal += totals.Subtotal
		}

		totals.TaxTotal = taxTotal
		totals.OriginalTaxTotal = originalTaxTotal
		totals.Total += totals.TaxTotal
		totals.OriginalTotal += totals.OriginalTaxTotal
		totals.TaxLines = taxLines
	}

	return totals, nil
}

func (s *Service) resolveLineItemTaxLines(ctx context.Context, item checkoutdomain.LineItem, target checkoutdomain.CalculationTarget, opts totalsdomain.LineItemTotalsOptions, calcCtx totalsdomain.CalculationContext) ([]checkoutdomain.LineItemTaxLine, error) {
	if opts.UseTaxLines || target.Finalized() || item.IsReturn {
		if item.TaxLines == nil {
			return nil, fmt.Errorf(
				"%w: tax lines must be joined on line item %s before totals are computed",
				totalsdomain.ErrUnexpectedState, item.ID,
			)
		}
		return item.TaxLines, nil
	}

	fetched, err := s.taxLineProvider.GetTaxLines(ctx, []checkoutdomain.LineItem{item}, calcCtx)
	if err != nil {
		return nil, err
	}
	return itemTaxLinesFor(fetched, item.ID), nil
}

func (s *Service) GetLineItemTotal(ctx context.Context, item checkoutdomain.LineItem, target checkoutdomain.CalculationTarget, opts totalsdomain.LineItemTotalOptions) (int64, error) {
	itemTotals, err := s.GetLineItemTotals(ctx, item, target, totalsdomain.LineItemTotalsOptions{
		IncludeTax: opts.IncludeTax,
	})
	if err != nil {
		return 0, err
	}

	// The discount component is added, not subtracted. Callers that
	// want the discounted amount subtract the discount themselves.
	total := itemTotals.Subtotal
	if !opts.ExcludeDiscounts {
		total += itemTotals.DiscountTotal
	}
	if opts.IncludeTax {
		total += itemTotals.TaxTotal
	}
	return total, nil
}

func (s *Service) GetLineItemRefund(order *checkoutdomain.Order, item checkoutdomain.LineItem) int64 {
	includesTax := s.flags.TaxInclusivePricing && item.IncludesTax

	var discount *checkoutdomain.Discount
	for _, candidate := range order.Discounts {
		if candidate.Rule.Type != checkoutdomain.DiscountRuleFreeShipping {
			d := candidate
			discount = &d
			break
		}
	}

	var discountAmount int64
	if discount != nil && item.AllowDiscounts {
		for _, adjustment := range item.Adjustments {
			if adjustment.DiscountID != nil && *adjustment.DiscountID == discount.ID {
				discountAmount += adjustment.Amount
			}
		}
	}

	model := order.GetTaxModel()
	taxRate := model.Rate / 100
	if model.System == checkoutdomain.TaxSystemLines {
		taxRate = 0
		for _, line := range item.TaxLines {
			taxRate += line.Rate / 100
		}
	}

	var taxIncludedInPrice int64
	if includesTax {
		taxIncludedInPrice = rounded(calculatePriceTaxAmount(item.UnitPrice, taxRate, true))
	}

	lineSubtotal := (item.UnitPrice-taxIncludedInPrice)*item.Quantity - discountAmount
	return rounded(float64(lineSubtotal) * (1 + taxRate))
}

func (s *Service) GetRefundTotal(order *checkoutdomain.Order, items []checkoutdomain.LineItem) (int64, error) {
	validIDs := make(map[snowflake.ID]struct{}, len(order.Items))
	for _, item := range order.Items {
		validIDs[item.ID] = struct{}{}
	}
	for _, item := range order.GetAdditionalItems() {
		validIDs[item.ID] = struct{}{}
	}

	var refundTotal int64
	for _, item := range items {
		if _, ok := validIDs[item.ID]; !ok {
			return 0, fmt.Errorf(
				"%w: line item %s does not exist on order %s",
				totalsdomain.ErrInvalidData, item.ID, order.ID,
			)
		}
		refundTotal += s.GetLineItemRefund(order, item)
	}

	return refundTotal, nil
}

func (s *Service) GetRefundedTotal(order *checkoutdomain.Order) int64 {
	var total int64
	for _, refund := range order.Refunds {
		total += refund.Amount
	}
	return total
}

func (s *Service) GetPaidTotal(order *checkoutdomain.Order) int64 {
	var total int64
	for _, payment := range order.Payments {
		total += payment.Amount
	}
	return total
}

func (s *Service) GetSwapTotal(order *checkoutdomain.Order) int64 {
	var total int64
	for _, swap := range order.Swaps {
		total += swap.DifferenceDue
	}
	return total
}

func (s *Service) GetCalculationContext(target checkoutdomain.CalculationTarget, opts totalsdomain.ContextOptions) totalsdomain.CalculationContext {
	allocationMap := totalsdomain.LineAllocationsMap{}
	if !opts.ExcludeDiscounts {
		allocationMap = s.GetAllocationMap(target, totalsdomain.AllocationMapOptions{})
	}

	var shippingMethods []checkoutdomain.ShippingMethod
	if !opts.ExcludeShipping {
		shippingMethods = target.GetShippingMethods()
	}

	return totalsdomain.CalculationContext{
		ShippingAddress: target.GetShippingAddress(),
		ShippingMethods: shippingMethods,
		Customer:        target.GetCustomer(),
		Region:          target.GetRegion(),
		IsReturn:        false,
		AllocationMap:   allocationMap,
	}
}

// rounded rounds half away from zero to the nearest minor unit. Every
// rounding checkpoint in the engine goes through here.
func rounded(value float64) int64 {
	return int64(math.Round(value))
}

// calculatePriceTaxAmount returns the tax share of a price. For
// tax-inclusive prices the tax is backed out of the price, otherwise
// it is added on top.
func calculatePriceTaxAmount(price int64, taxRate float64, includesTax bool) float64 {
	if includesTax {
		return taxRate * float64(price) / (1 + taxRate)
	}
	return float64(price) * taxRate
}

func asItemTaxLines(lines []checkoutdomain.LineItemTaxLine) []checkoutdomain.TaxLine {
	out := make([]checkoutdomain.TaxLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, line)
	}
	return out
}

func asShippingTaxLines(lines []checkoutdomain.ShippingMethodTaxLine) []checkoutdomain.TaxLine {
	out := make([]checkoutdomain.TaxLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, line)
	}
	return out
}

func itemTaxLinesFor(lines []checkoutdomain.TaxLine, itemID snowflake.ID) []checkoutdomain.LineItemTaxLine {
	var out []checkoutdomain.LineItemTaxLine
	for _, line := range lines {
		if itemLine, ok := line.(checkoutdomain.LineItemTaxLine); ok && itemLine.ItemID == itemID {
			out = append(out, itemLine)
		}
	}
	return out
}

func shippingTaxLinesFor(lines []checkoutdomain.TaxLine, methodID snowflake.ID) []checkoutdomain.ShippingMethodTaxLine {
	var out []checkoutdomain.ShippingMethodTaxLine
	for _, line := range lines {
		if methodLine, ok := line.(checkoutdomain.ShippingMethodTaxLine); ok && methodLine.ShippingMethodID == methodID {
			out = append(out, methodLine)
		}
	}
	return out
}
