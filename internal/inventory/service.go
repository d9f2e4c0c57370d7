package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Service implements the inventory use cases on top of the Repository port.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs the inventory service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CreateProduct registers a product. Initial stock goes through the adjuster
// so the very first ledger row chains from zero.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput, actor shared.Actor) (*Product, error) {
	if input.Price < 0 || input.Quantity < 0 || input.ReorderPoint < 0 {
		return nil, fmt.Errorf("%w: price, quantity and reorder point must not be negative", shared.ErrValidation)
	}

	product := Product{
		ID:            uuid.New(),
		SKU:           input.SKU,
		Name:          input.Name,
		Brand:         input.Brand,
		FrameMaterial: input.FrameMaterial,
		LensType:      input.LensType,
		Color:         input.Color,
		Price:         input.Price,
		CostPrice:     input.CostPrice,
		Quantity:      0,
		ReorderPoint:  input.ReorderPoint,
		IsActive:      true,
		OwnerID:       actor.UserID,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if input.Quantity > 0 {
			mv, err := tx.Adjust(ctx, Adjustment{
				ProductID:     product.ID,
				Delta:         input.Quantity,
				Type:          MovementIn,
				ActorID:       actor.UserID,
				ReferenceType: RefInitial,
				Reason:        "Initial stock",
			})
			if err != nil {
				return err
			}
			product.Quantity = mv.NewStock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProduct returns a product with its movement history.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID, actor shared.Actor) (*Product, []StockMovement, error) {
	product, err := s.repo.GetProduct(ctx, id, actor.Scope())
	if err != nil {
		return nil, nil, err
	}
	movements, err := s.repo.ListMovements(ctx, id, 0)
	if err != nil {
		return nil, nil, err
	}
	return product, movements, nil
}

// ListProducts returns active products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ListProductsFilter, actor shared.Actor) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter, actor.Scope())
}

// UpdateProduct applies field changes. A quantity change is converted into a
// signed delta and applied by the adjuster, never written directly.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput, actor shared.Actor) (*Product, error) {
	var updated *Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetProduct(ctx, id, actor.Scope())
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Name != nil {
			updates["name"] = *input.Name
		}
		if input.Brand != nil {
			updates["brand"] = *input.Brand
		}
		if input.FrameMaterial != nil {
			updates["frame_material"] = *input.FrameMaterial
		}
		if input.LensType != nil {
			updates["lens_type"] = *input.LensType
		}
		if input.Color != nil {
			updates["color"] = *input.Color
		}
		if input.Price != nil {
			if *input.Price < 0 {
				return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
			}
			updates["price"] = *input.Price
		}
		if input.CostPrice != nil {
			updates["cost_price"] = *input.CostPrice
		}
		if input.ReorderPoint != nil {
			updates["reorder_point"] = *input.ReorderPoint
		}
		if err := tx.UpdateProductFields(ctx, id, updates); err != nil {
			return err
		}

		if input.Quantity != nil && *input.Quantity != current.Quantity {
			if *input.Quantity < 0 {
				return fmt.Errorf("%w: quantity must not be negative", shared.ErrValidation)
			}
			if _, err := tx.Adjust(ctx, Adjustment{
				ProductID:     id,
				Delta:         *input.Quantity - current.Quantity,
				ActorID:       actor.UserID,
				ReferenceType: RefAdjustment,
				Reason:        "Stock adjustment",
			}); err != nil {
				return err
			}
		}

		updated, err = tx.GetProduct(ctx, id, actor.Scope())
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AdjustStock applies a manual signed delta to one product.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, input AdjustStockInput, actor shared.Actor) (*StockMovement, error) {
	if input.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must be non-zero", shared.ErrValidation)
	}

	var movement *StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetProduct(ctx, id, actor.Scope()); err != nil {
			return err
		}
		mv, err := tx.Adjust(ctx, Adjustment{
			ProductID:     id,
			Delta:         input.Delta,
			ActorID:       actor.UserID,
			ReferenceType: RefAdjustment,
			Reason:        input.Reason,
		})
		if err != nil {
			if errors.Is(err, ErrProductMissing) {
				return shared.ErrNotFound
			}
			return err
		}
		movement = mv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "stock.adjust",
		Entity:   "product",
		EntityID: id.String(),
		Meta:     map[string]any{"delta": input.Delta, "reason": input.Reason, "new_stock": movement.NewStock},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return movement, nil
}

// DeleteProduct soft deletes one product.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	affected, err := s.repo.DeactivateProducts(ctx, []uuid.UUID{id}, actor.Scope())
	if err != nil {
		return err
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// BulkDeleteProducts soft deletes a batch, returning how many rows matched.
func (s *Service) BulkDeleteProducts(ctx context.Context, ids []uuid.UUID, actor shared.Actor) (int64, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no product ids given", shared.ErrValidation)
	}
	return s.repo.DeactivateProducts(ctx, ids, actor.Scope())
}

// ListLowStock returns active products at or below their reorder point.
func (s *Service) ListLowStock(ctx context.Context, actor shared.Actor) ([]Product, error) {
	return s.repo.ListLowStock(ctx, actor.Scope())
}

// History returns the movement ledger for a product, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, actor shared.Actor, limit int) ([]StockMovement, error) {
	if _, err := s.repo.GetProduct(ctx, id, actor.Scope()); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, id, limit)
}
