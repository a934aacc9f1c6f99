package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(qty int, unit string) pricing.CartLine {
	return pricing.CartLine{ProductID: 1, Quantity: qty, UnitPrice: dec(unit)}
}

func TestQuoteFreeShippingWithDiscount(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	sum, err := eng.Quote([]pricing.CartLine{line(2, "100.00")}, true)
	require.NoError(t, err)
	require.True(t, sum.Subtotal.Equal(dec("200.00")), "subtotal %s", sum.Subtotal)
	require.True(t, sum.Shipping.IsZero(), "shipping %s", sum.Shipping)
	require.True(t, sum.Tax.Equal(dec("38.00")), "tax %s", sum.Tax)
	require.True(t, sum.Discount.Equal(dec("20.00")), "discount %s", sum.Discount)
	require.True(t, sum.Total.Equal(dec("218.00")), "total %s", sum.Total)
}

func TestQuoteFlatShippingBelowThreshold(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	sum, err := eng.Quote([]pricing.CartLine{line(1, "50.00")}, true)
	require.NoError(t, err)
	require.True(t, sum.Subtotal.Equal(dec("50.00")))
	require.True(t, sum.Shipping.Equal(dec("7.00")))
	require.True(t, sum.Tax.Equal(dec("9.50")))
	require.True(t, sum.Discount.Equal(dec("5.00")))
	require.True(t, sum.Total.Equal(dec("61.50")), "total %s", sum.Total)
}

func TestQuoteEmptyCartChargesFlatFee(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	sum, err := eng.Quote(nil, false)
	require.NoError(t, err)
	require.True(t, sum.Subtotal.IsZero())
	require.True(t, sum.Tax.IsZero())
	require.True(t, sum.Discount.IsZero())
	require.True(t, sum.Shipping.Equal(dec("7.00")))
	require.True(t, sum.Total.Equal(dec("7.00")))
}

func TestQuoteSalePriceWinsOnlyWhenLower(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	onSale := pricing.CartLine{ProductID: 7, Quantity: 1, UnitPrice: dec("80.00"),
		SalePrice: decimal.NewNullDecimal(dec("60.00"))}
	badSale := pricing.CartLine{ProductID: 8, Quantity: 1, UnitPrice: dec("40.00"),
		SalePrice: decimal.NewNullDecimal(dec("45.00"))}

	sum, err := eng.Quote([]pricing.CartLine{onSale, badSale}, false)
	require.NoError(t, err)
	require.True(t, sum.Subtotal.Equal(dec("100.00")), "subtotal %s", sum.Subtotal)
}

func TestQuoteRoundsOnceAtTheEnd(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	// Three lines of 0.333 sum to 0.999 and round to 1.00; per-line
	// rounding would have produced 0.99.
	sum, err := eng.Quote([]pricing.CartLine{line(3, "0.333")}, false)
	require.NoError(t, err)
	require.True(t, sum.Subtotal.Equal(dec("1.00")), "subtotal %s", sum.Subtotal)
}

func TestQuoteRejectsInvalidLines(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	_, err := eng.Quote([]pricing.CartLine{line(0, "10.00")}, false)
	require.ErrorIs(t, err, pricing.ErrInvalidQuantity)

	_, err = eng.Quote([]pricing.CartLine{line(1, "-1.00")}, false)
	require.ErrorIs(t, err, pricing.ErrNegativePrice)
}

func TestQuoteDeterministic(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}
	lines := []pricing.CartLine{line(2, "19.99"), line(1, "149.50")}

	first, err := eng.Quote(lines, true)
	require.NoError(t, err)
	second, err := eng.Quote(lines, true)
	require.NoError(t, err)
	require.True(t, first.Total.Equal(second.Total))
}

func TestWithoutDiscountRecomputesTotal(t *testing.T) {
	eng := pricing.Engine{Rules: pricing.DefaultRules()}

	sum, err := eng.Quote([]pricing.CartLine{line(2, "100.00")}, true)
	require.NoError(t, err)
	stripped := eng.WithoutDiscount(sum)
	require.True(t, stripped.Discount.IsZero())
	require.True(t, stripped.Total.Equal(dec("238.00")), "total %s", stripped.Total)
}
