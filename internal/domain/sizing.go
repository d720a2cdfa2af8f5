package domain

import "github.com/shopspring/decimal"

var oneHundred = decimal.NewFromInt(100)

// GridIncrement is the fixed price step between adjacent rungs:
// referencePrice × percent / 100. Computed once at grid initialization
// and held constant for the life of the process, never recomputed per
// tick.
func GridIncrement(referencePrice, percent decimal.Decimal) decimal.Decimal {
	return referencePrice.Mul(percent).Div(oneHundred)
}

// QuotePerTrade splits the total investment evenly across the grid.
func QuotePerTrade(investment decimal.Decimal, grids int) decimal.Decimal {
	return investment.Div(decimal.NewFromInt(int64(grids)))
}

// AmountAt converts a quote-currency budget into base-asset units at the
// given price.
func AmountAt(quote, price decimal.Decimal) decimal.Decimal {
	return quote.Div(price)
}
