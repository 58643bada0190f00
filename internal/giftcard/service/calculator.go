package service

import (
	"context"
	"math"

	totalsdomain "github.com/smallbiznis/storefront/internal/totals/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type CalculatorParam struct {
	fx.In

	Log *zap.Logger
}

// calculator covers the giftcardable base from the customer's cards.
// Once transactions exist the recorded amounts are authoritative and
// balances are no longer consulted.
type calculator struct {
	log *zap.Logger
}

func NewCalculator(p CalculatorParam) totalsdomain.GiftCardCalculator {
	return &calculator{log: p.Log.Named("giftcard.calculator")}
}

func (c *calculator) GetGiftCardTotals(ctx context.Context, giftCardableAmount int64, opts totalsdomain.GiftCardTotalsOptions) (totalsdomain.GiftCardTotals, error) {
	if len(opts.GiftCardTransactions) > 0 {
		var totals totalsdomain.GiftCardTotals
		for _, tx := range opts.GiftCardTransactions {
			totals.Total += tx.Amount
			if tx.IsTaxable && tx.TaxRate != nil {
				totals.TaxTotal += int64(math.Round(float64(tx.Amount) * *tx.TaxRate / 100))
			}
		}
		return totals, nil
	}

	if len(opts.GiftCards) == 0 {
		return totalsdomain.GiftCardTotals{}, nil
	}

	var balance int64
	for _, card := range opts.GiftCards {
		balance += card.Balance
	}

	total := min(balance, giftCardableAmount)
	if total < 0 {
		total = 0
	}

	var taxTotal int64
	if opts.Region.GiftCardsTaxable {
		taxTotal = int64(math.Round(float64(total) * opts.Region.TaxRate / 100))
	}

	return totalsdomain.GiftCardTotals{Total: total, TaxTotal: taxTotal}, nil
}
