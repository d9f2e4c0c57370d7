package billing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTotals(t *testing.T) {
	totals := ComputeTotals([]LineInput{
		{Quantity: 2, UnitPrice: 100},
	}, 20)
	require.InDelta(t, 200.0, totals.Subtotal, 1e-9)
	require.InDelta(t, 40.0, totals.TaxAmount, 1e-9)
	require.InDelta(t, 240.0, totals.Total, 1e-9)
}

func TestComputeTotalsAppliesDiscountPerLine(t *testing.T) {
	totals := ComputeTotals([]LineInput{
		{Quantity: 3, UnitPrice: 50, Discount: 25},
		{Quantity: 1, UnitPrice: 120.50},
	}, 10)
	require.InDelta(t, 245.50, totals.Subtotal, 1e-9)
	require.InDelta(t, 24.55, totals.TaxAmount, 1e-9)
	require.InDelta(t, 270.05, totals.Total, 1e-9)
}

func TestComputeTotalsZeroItems(t *testing.T) {
	totals := ComputeTotals(nil, 20)
	require.Zero(t, totals.Subtotal)
	require.Zero(t, totals.TaxAmount)
	require.Zero(t, totals.Total)
}

func TestLineTotalMayGoNegative(t *testing.T) {
	// Over-discounted lines surface as negative values for the document
	// engines to reject; the calculator itself stays agnostic.
	require.InDelta(t, -50.0, LineTotal(1, 100, 150), 1e-9)
}
