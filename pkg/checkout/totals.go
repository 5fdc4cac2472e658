package checkout

import "github.com/shopspring/decimal"

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Subtotal sums unit price times quantity over lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum.Round(2)
}

// ComputeTotals returns subtotal - discount + fee with the discount clamped
// to [0, subtotal].
func ComputeTotals(subtotal, fee, discount decimal.Decimal) Totals {
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if fee.IsNegative() {
		fee = decimal.Zero
	}
	return Totals{
		Subtotal:    subtotal.Round(2),
		DeliveryFee: fee.Round(2),
		Discount:    discount.Round(2),
		Total:       subtotal.Sub(discount).Add(fee).Round(2),
	}
}
