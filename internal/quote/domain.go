package quote

import (
	"time"

	"github.com/google/uuid"
)

// Status is the quote lifecycle state.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// transitions lists the reachable states per current state. ACCEPTED,
// REJECTED and EXPIRED are terminal.
var transitions = map[Status][]Status{
	StatusDraft: {StatusSent},
	StatusSent:  {StatusAccepted, StatusRejected, StatusExpired},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Quote is a priced offer to a customer. The sentAt/acceptedAt/rejectedAt
// stamps record the first entry into each state and are never overwritten.
type Quote struct {
	ID                   uuid.UUID  `json:"id"`
	Number               string     `json:"number"`
	CustomerID           uuid.UUID  `json:"customerId"`
	OwnerID              uuid.UUID  `json:"userId"`
	Status               Status     `json:"status"`
	Subtotal             float64    `json:"subtotal"`
	TaxRate              float64    `json:"taxRate"`
	TaxAmount            float64    `json:"taxAmount"`
	Total                float64    `json:"total"`
	ValidUntil           *time.Time `json:"validUntil,omitempty"`
	Notes                *string    `json:"notes,omitempty"`
	Terms                *string    `json:"terms,omitempty"`
	SentAt               *time.Time `json:"sentAt,omitempty"`
	AcceptedAt           *time.Time `json:"acceptedAt,omitempty"`
	RejectedAt           *time.Time `json:"rejectedAt,omitempty"`
	ConvertedToInvoiceID *uuid.UUID `json:"convertedToInvoiceId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	Items                []Item     `json:"items"`
}

// Item is one quote line. Total is persisted at write time so the document
// stays stable if the product price changes later.
type Item struct {
	ID          uuid.UUID  `json:"id"`
	QuoteID     uuid.UUID  `json:"quoteId"`
	ProductID   *uuid.UUID `json:"productId,omitempty"`
	Description string     `json:"description"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"unitPrice"`
	Discount    float64    `json:"discount"`
	Total       float64    `json:"total"`
}

// ItemInput is a submitted quote line.
type ItemInput struct {
	ProductID   *uuid.UUID `json:"productId"`
	Description string     `json:"description" validate:"required"`
	Quantity    int        `json:"quantity" validate:"gt=0"`
	UnitPrice   float64    `json:"unitPrice" validate:"gte=0"`
	Discount    float64    `json:"discount" validate:"gte=0"`
}

// CreateQuoteInput is the payload for creating a quote.
type CreateQuoteInput struct {
	CustomerID uuid.UUID   `json:"customerId" validate:"required"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	TaxRate    float64     `json:"taxRate" validate:"gte=0,lte=100"`
	ValidUntil *time.Time  `json:"validUntil"`
	Notes      *string     `json:"notes"`
	Terms      *string     `json:"terms"`
}

// UpdateQuoteInput carries optional updates. Items, when present, replace the
// whole line set and force a totals recompute.
type UpdateQuoteInput struct {
	Items      *[]ItemInput `json:"items" validate:"omitempty,min=1,dive"`
	TaxRate    *float64     `json:"taxRate" validate:"omitempty,gte=0,lte=100"`
	ValidUntil *time.Time   `json:"validUntil"`
	Notes      *string      `json:"notes"`
	Terms      *string      `json:"terms"`
	Status     *Status      `json:"status" validate:"omitempty,oneof=DRAFT SENT ACCEPTED REJECTED EXPIRED"`
}

// ListFilter narrows quote listings.
type ListFilter struct {
	Status     *Status
	CustomerID *uuid.UUID
	Search     string
	Page       int
	PerPage    int
}
