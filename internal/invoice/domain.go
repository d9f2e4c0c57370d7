package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Status is the stored invoice lifecycle state. OVERDUE is not part of it:
// being overdue is a property of the due date and is always derived at query
// time, so the clock can never corrupt stored state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPartial   Status = "PARTIAL"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCheck        PaymentMethod = "CHECK"
	MethodCreditCard   PaymentMethod = "CREDIT_CARD"
	MethodDebitCard    PaymentMethod = "DEBIT_CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodInsurance    PaymentMethod = "INSURANCE"
	MethodOther        PaymentMethod = "OTHER"
)

// Invoice is a billable document. AmountPaid and BalanceDue are maintained by
// the payment state machine; PaidAt records the first transition into PAID.
type Invoice struct {
	ID         uuid.UUID  `json:"id"`
	Number     string     `json:"number"`
	CustomerID uuid.UUID  `json:"customerId"`
	QuoteID    *uuid.UUID `json:"quoteId,omitempty"`
	OwnerID    uuid.UUID  `json:"userId"`
	Status     Status     `json:"status"`
	Subtotal   float64    `json:"subtotal"`
	TaxRate    float64    `json:"taxRate"`
	TaxAmount  float64    `json:"taxAmount"`
	Total      float64    `json:"total"`
	AmountPaid float64    `json:"amountPaid"`
	BalanceDue float64    `json:"balanceDue"`
	DueDate    time.Time  `json:"dueDate"`
	Notes      *string    `json:"notes,omitempty"`
	Terms      *string    `json:"terms,omitempty"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Items      []Item     `json:"items,omitempty"`
	Payments   []Payment  `json:"payments,omitempty"`
}

// Overdue reports whether the invoice is past due and still owed.
func (i Invoice) Overdue(asOf time.Time) bool {
	return (i.Status == StatusPending || i.Status == StatusPartial) && i.DueDate.Before(asOf)
}

// Item is one invoice line.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	InvoiceID   uuid.UUID  `json:"invoiceId"`
	ProductID   *uuid.UUID `json:"productId,omitempty"`
	Description string     `json:"description"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unitPrice"`
	Discount    float64    `json:"discount"`
	Total       float64    `json:"total"`
}

// Payment is a received amount against an invoice.
type Payment struct {
	ID        uuid.UUID     `json:"id"`
	InvoiceID uuid.UUID     `json:"invoiceId"`
	Amount    float64       `json:"amount"`
	Method    PaymentMethod `json:"method"`
	Reference *string       `json:"reference,omitempty"`
	Notes     *string       `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ItemInput is a submitted invoice line.
type ItemInput struct {
	ProductID   *uuid.UUID `json:"productId"`
	Description string     `json:"description" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	UnitPrice   float64    `json:"unitPrice" validate:"gte=0"`
	Discount    float64    `json:"discount" validate:"gte=0"`
}

// CreateInvoiceInput is the payload for creating an invoice, optionally
// converting an accepted quote.
type CreateInvoiceInput struct {
	CustomerID uuid.UUID   `json:"customerId" validate:"required"`
	QuoteID    *uuid.UUID  `json:"quoteId"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	TaxRate    float64     `json:"taxRate" validate:"gte=0,lte=100"`
	DueDate    time.Time   `json:"dueDate" validate:"required"`
	Notes      *string     `json:"notes"`
	Terms      *string     `json:"terms"`
}

// UpdateInvoiceInput is deliberately narrow: money fields and items are
// frozen once the invoice exists, only scheduling and free text move.
type UpdateInvoiceInput struct {
	DueDate *time.Time `json:"dueDate"`
	Notes   *string    `json:"notes"`
	Terms   *string    `json:"terms"`
}

// AddPaymentInput records a received payment.
type AddPaymentInput struct {
	Amount    float64       `json:"amount" validate:"required,gt=0"`
	Method    PaymentMethod `json:"method" validate:"required,oneof=CASH CHECK CREDIT_CARD DEBIT_CARD BANK_TRANSFER INSURANCE OTHER"`
	Reference *string       `json:"reference"`
	Notes     *string       `json:"notes"`
}

// ListFilter narrows invoice listings. Overdue=true selects the derived
// overdue set instead of a stored status.
type ListFilter struct {
	Status     *Status
	Overdue    bool
	CustomerID *uuid.UUID
	Search     string
	Page       int
	PerPage    int
}
