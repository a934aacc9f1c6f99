package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CartLine describes one priced line in a quote.
type CartLine struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	SalePrice decimal.NullDecimal
}

// EffectivePrice is the sale price when present and strictly below the
// regular price, otherwise the regular price.
func (l CartLine) EffectivePrice() decimal.Decimal {
	if l.SalePrice.Valid && l.SalePrice.Decimal.LessThan(l.UnitPrice) {
		return l.SalePrice.Decimal
	}
	return l.UnitPrice
}

// Summary aggregates computed quote components, each rounded to two
// decimal places.
type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Rules holds the pricing knobs. Zero-value rules price everything at
// zero tax and free shipping; callers use DefaultRules or config.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	DiscountRate          decimal.Decimal
}

// DefaultRules returns the store defaults: free shipping from 150.00,
// 7.00 flat fee below that, 19% tax and a 10% newsletter discount.
func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(150),
		FlatShippingFee:       decimal.NewFromInt(7),
		TaxRate:               decimal.RequireFromString("0.19"),
		DiscountRate:          decimal.RequireFromString("0.10"),
	}
}

// Engine computes deterministic cart quotes.
type Engine struct {
	Rules Rules
}

var (
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	ErrNegativePrice   = errors.New("pricing: unit price must not be negative")
)

// Quote prices the given lines. An empty slice is a valid quote: zero
// subtotal and tax, flat shipping fee, total equal to the fee.
// Rounding happens once per component, never per line.
func (e Engine) Quote(lines []CartLine, discountEligible bool) (Summary, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Summary{}, fmt.Errorf("%w: product %d", ErrInvalidQuantity, l.ProductID)
		}
		if l.UnitPrice.IsNegative() || (l.SalePrice.Valid && l.SalePrice.Decimal.IsNegative()) {
			return Summary{}, fmt.Errorf("%w: product %d", ErrNegativePrice, l.ProductID)
		}
		subtotal = subtotal.Add(l.EffectivePrice().Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	subtotal = subtotal.Round(2)

	shipping := e.Rules.FlatShippingFee
	if subtotal.GreaterThanOrEqual(e.Rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(e.Rules.TaxRate).Round(2)

	discount := decimal.Zero
	if discountEligible {
		discount = subtotal.Mul(e.Rules.DiscountRate).Round(2)
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}, nil
}

// WithoutDiscount re-prices an existing summary with the discount
// removed. Used when checkout loses the race for the newsletter flip.
func (e Engine) WithoutDiscount(s Summary) Summary {
	s.Discount = decimal.Zero
	s.Total = s.Subtotal.Add(s.Tax).Add(s.Shipping).Round(2)
	return s
}
