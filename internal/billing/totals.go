// Package billing holds the pure money arithmetic shared by quotes and
// invoices. Nothing in here touches storage or validates business rules;
// document engines decide what lines are acceptable before calling in.
package billing

import "github.com/google/uuid"

// LineInput is a document line as submitted by a caller.
type LineInput struct {
	ProductID   *uuid.UUID
	Description string
	Quantity    int
	UnitPrice   float64
	Discount    float64
}

// Totals is the computed money summary of a document.
type Totals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

// LineTotal computes quantity * unitPrice - discount. The discount is an
// absolute amount, not a percentage, and may exceed the gross line value;
// rejecting negative results is the caller's concern.
func LineTotal(quantity int, unitPrice, discount float64) float64 {
	return float64(quantity)*unitPrice - discount
}

// ComputeTotals sums line totals and applies the document-level tax rate
// (percent) on the subtotal. Zero lines yield all-zero totals.
func ComputeTotals(items []LineInput, taxRate float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += LineTotal(item.Quantity, item.UnitPrice, item.Discount)
	}
	taxAmount := subtotal * taxRate / 100
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal + taxAmount,
	}
}
