package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a stock ledger entry.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementReturn     MovementType = "RETURN"
)

// Reference types recorded on movements.
const (
	RefInitial          = "INITIAL"
	RefAdjustment       = "ADJUSTMENT"
	RefInvoice          = "INVOICE"
	RefInvoiceCancelled = "INVOICE_CANCELLED"
)

// Product is a catalog item with its current stock level.
type Product struct {
	ID            uuid.UUID  `json:"id"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Brand         *string    `json:"brand,omitempty"`
	FrameMaterial *string    `json:"frameMaterial,omitempty"`
	LensType      *string    `json:"lensType,omitempty"`
	Color         *string    `json:"color,omitempty"`
	Price         float64    `json:"price"`
	CostPrice     *float64   `json:"costPrice,omitempty"`
	Quantity      int        `json:"quantity"`
	ReorderPoint  int        `json:"reorderPoint"`
	IsActive      bool       `json:"isActive"`
	OwnerID       uuid.UUID  `json:"userId"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// StockMovement is one append-only ledger row. PreviousStock and NewStock
// bracket the product quantity around the movement so consecutive rows for a
// product chain together.
type StockMovement struct {
	ID            uuid.UUID    `json:"id"`
	ProductID     uuid.UUID    `json:"productId"`
	UserID        uuid.UUID    `json:"userId"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	PreviousStock int          `json:"previousStock"`
	NewStock      int          `json:"newStock"`
	ReferenceID   *uuid.UUID   `json:"referenceId,omitempty"`
	ReferenceType string       `json:"referenceType,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

// CreateProductInput is the payload for registering a product.
type CreateProductInput struct {
	SKU           string   `json:"sku" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Brand         *string  `json:"brand"`
	FrameMaterial *string  `json:"frameMaterial"`
	LensType      *string  `json:"lensType"`
	Color         *string  `json:"color"`
	Price         float64  `json:"price" validate:"gte=0"`
	CostPrice     *float64 `json:"costPrice" validate:"omitempty,gte=0"`
	Quantity      int      `json:"quantity" validate:"gte=0"`
	ReorderPoint  int      `json:"reorderPoint" validate:"gte=0"`
}

// UpdateProductInput carries optional field updates. A quantity change is
// routed through the adjuster so the ledger stays complete.
type UpdateProductInput struct {
	Name          *string  `json:"name"`
	Brand         *string  `json:"brand"`
	FrameMaterial *string  `json:"frameMaterial"`
	LensType      *string  `json:"lensType"`
	Color         *string  `json:"color"`
	Price         *float64 `json:"price" validate:"omitempty,gte=0"`
	CostPrice     *float64 `json:"costPrice" validate:"omitempty,gte=0"`
	Quantity      *int     `json:"quantity" validate:"omitempty,gte=0"`
	ReorderPoint  *int     `json:"reorderPoint" validate:"omitempty,gte=0"`
}

// AdjustStockInput is a manual stock correction.
type AdjustStockInput struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// ListProductsFilter narrows product listings.
type ListProductsFilter struct {
	Search        string
	Brand         string
	LensType      string
	MinPrice      *float64
	MaxPrice      *float64
	IncludeEmpty  bool
	Page          int
	PerPage       int
}
