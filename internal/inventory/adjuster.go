package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// DBTX is the pgx surface shared by *pgxpool.Pool and pgx.Tx. Exported so
// document engines can apply adjustments inside their own transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrProductMissing is returned when the adjusted product does not exist.
// Invoice flows treat dangling product references as a no-op; the manual
// adjustment endpoint maps it to not-found.
var ErrProductMissing = errors.New("inventory: product not found")

// Adjustment is a signed stock delta plus the ledger metadata for the
// movement row it produces.
type Adjustment struct {
	ProductID     uuid.UUID
	Delta         int
	Type          MovementType
	ActorID       uuid.UUID
	ReferenceID   *uuid.UUID
	ReferenceType string
	Reason        string
}

// ApplyAdjustment locks the product row, applies the delta and appends the
// matching movement. It runs on whatever transaction the caller passes in:
// either the change and its ledger row land together or neither does.
//
// A delta that would drive stock negative fails with ErrInsufficientStock
// and leaves the product untouched.
func ApplyAdjustment(ctx context.Context, q DBTX, adj Adjustment) (*StockMovement, error) {
	if adj.Delta == 0 {
		return nil, fmt.Errorf("%w: stock delta must be non-zero", shared.ErrValidation)
	}

	var current int
	err := q.QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`, adj.ProductID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductMissing
		}
		return nil, fmt.Errorf("inventory: lock product: %w", err)
	}

	next := current + adj.Delta
	if next < 0 {
		return nil, fmt.Errorf("%w: product %s has %d on hand, requested %d", shared.ErrInsufficientStock, adj.ProductID, current, -adj.Delta)
	}

	if _, err := q.Exec(ctx, `UPDATE products SET quantity = $2, updated_at = NOW() WHERE id = $1`, adj.ProductID, next); err != nil {
		return nil, fmt.Errorf("inventory: update quantity: %w", err)
	}

	movementType := adj.Type
	if movementType == "" {
		if adj.Delta > 0 {
			movementType = MovementIn
		} else {
			movementType = MovementOut
		}
	}

	mv := &StockMovement{
		ID:            uuid.New(),
		ProductID:     adj.ProductID,
		UserID:        adj.ActorID,
		Type:          movementType,
		Quantity:      abs(adj.Delta),
		PreviousStock: current,
		NewStock:      next,
		ReferenceID:   adj.ReferenceID,
		ReferenceType: adj.ReferenceType,
		Reason:        adj.Reason,
		CreatedAt:     time.Now(),
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO stock_movements (id, product_id, user_id, type, quantity, previous_stock, new_stock, reference_id, reference_type, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, mv.ID, mv.ProductID, mv.UserID, string(mv.Type), mv.Quantity, mv.PreviousStock, mv.NewStock, mv.ReferenceID, nullable(mv.ReferenceType), nullable(mv.Reason), mv.CreatedAt); err != nil {
		return nil, fmt.Errorf("inventory: insert movement: %w", err)
	}

	return mv, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
