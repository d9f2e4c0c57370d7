package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/shared"
)

type memoryInventoryRepo struct {
	products  map[uuid.UUID]*Product
	movements map[uuid.UUID][]StockMovement
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{
		products:  make(map[uuid.UUID]*Product),
		movements: make(map[uuid.UUID][]StockMovement),
	}
}

func (r *memoryInventoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryInventoryRepo) InsertProduct(ctx context.Context, p Product) error {
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return fmt.Errorf("%w: sku %q already exists", shared.ErrValidation, p.SKU)
		}
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.products[p.ID] = &p
	return nil
}

func (r *memoryInventoryRepo) GetProduct(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if scope.Restricted() && p.OwnerID != *scope.OwnerID {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *memoryInventoryRepo) ListProducts(ctx context.Context, filter ListProductsFilter, scope shared.Scope) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		if !p.IsActive {
			continue
		}
		if !filter.IncludeEmpty && p.Quantity == 0 {
			continue
		}
		if scope.Restricted() && p.OwnerID != *scope.OwnerID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memoryInventoryRepo) UpdateProductFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	p, ok := r.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := updates["price"]; ok {
		p.Price = v.(float64)
	}
	if v, ok := updates["reorder_point"]; ok {
		p.ReorderPoint = v.(int)
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryInventoryRepo) DeactivateProducts(ctx context.Context, ids []uuid.UUID, scope shared.Scope) (int64, error) {
	var affected int64
	for _, id := range ids {
		p, ok := r.products[id]
		if !ok {
			continue
		}
		if scope.Restricted() && p.OwnerID != *scope.OwnerID {
			continue
		}
		p.IsActive = false
		p.Quantity = 0
		affected++
	}
	return affected, nil
}

func (r *memoryInventoryRepo) ListLowStock(ctx context.Context, scope shared.Scope) ([]Product, error) {
	var out []Product
	for _, p := range r.products {
		if !p.IsActive || p.Quantity > p.ReorderPoint {
			continue
		}
		if scope.Restricted() && p.OwnerID != *scope.OwnerID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out, nil
}

func (r *memoryInventoryRepo) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]StockMovement, error) {
	movements := r.movements[productID]
	out := make([]StockMovement, len(movements))
	copy(out, movements)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryInventoryRepo) Adjust(ctx context.Context, adj Adjustment) (*StockMovement, error) {
	if adj.Delta == 0 {
		return nil, fmt.Errorf("%w: stock delta must be non-zero", shared.ErrValidation)
	}
	p, ok := r.products[adj.ProductID]
	if !ok {
		return nil, ErrProductMissing
	}
	next := p.Quantity + adj.Delta
	if next < 0 {
		return nil, fmt.Errorf("%w: product %s has %d on hand", shared.ErrInsufficientStock, adj.ProductID, p.Quantity)
	}
	movementType := adj.Type
	if movementType == "" {
		if adj.Delta > 0 {
			movementType = MovementIn
		} else {
			movementType = MovementOut
		}
	}
	mv := StockMovement{
		ID:            uuid.New(),
		ProductID:     adj.ProductID,
		UserID:        adj.ActorID,
		Type:          movementType,
		Quantity:      adj.Delta,
		PreviousStock: p.Quantity,
		NewStock:      next,
		ReferenceID:   adj.ReferenceID,
		ReferenceType: adj.ReferenceType,
		Reason:        adj.Reason,
		CreatedAt:     time.Now(),
	}
	if mv.Quantity < 0 {
		mv.Quantity = -mv.Quantity
	}
	p.Quantity = next
	r.movements[adj.ProductID] = append(r.movements[adj.ProductID], mv)
	return &mv, nil
}

func managerActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), Role: shared.RoleManager}
}

func TestCreateProductLogsInitialStock(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:      "FRM-001",
		Name:     "Aviator Classic",
		Price:    149.90,
		Quantity: 10,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 10, product.Quantity)

	movements, err := svc.History(context.Background(), product.ID, actor, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementIn, movements[0].Type)
	require.Equal(t, 0, movements[0].PreviousStock)
	require.Equal(t, 10, movements[0].NewStock)
	require.Equal(t, RefInitial, movements[0].ReferenceType)
}

func TestCreateProductZeroQuantityHasNoMovement(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-002", Name: "Round"}, actor)
	require.NoError(t, err)

	movements, err := svc.History(context.Background(), product.ID, actor, 0)
	require.NoError(t, err)
	require.Empty(t, movements)
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-003", Name: "Wayfarer", Quantity: 3}, actor)
	require.NoError(t, err)

	_, err = svc.AdjustStock(context.Background(), product.ID, AdjustStockInput{Delta: -5, Reason: "breakage"}, actor)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	got, _, err := svc.GetProduct(context.Background(), product.ID, actor)
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity)
}

func TestAdjustStockChainsMovements(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-004", Name: "Clubmaster", Quantity: 5}, actor)
	require.NoError(t, err)

	_, err = svc.AdjustStock(context.Background(), product.ID, AdjustStockInput{Delta: 4, Reason: "restock"}, actor)
	require.NoError(t, err)
	mv, err := svc.AdjustStock(context.Background(), product.ID, AdjustStockInput{Delta: -2, Reason: "display units"}, actor)
	require.NoError(t, err)

	require.Equal(t, 9, mv.PreviousStock)
	require.Equal(t, 7, mv.NewStock)
	require.Equal(t, MovementOut, mv.Type)
	require.Equal(t, 2, mv.Quantity)
}

func TestUpdateProductQuantityRoutesThroughAdjuster(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-005", Name: "Browline", Quantity: 6}, actor)
	require.NoError(t, err)

	newQty := 2
	updated, err := svc.UpdateProduct(context.Background(), product.ID, UpdateProductInput{Quantity: &newQty}, actor)
	require.NoError(t, err)
	require.Equal(t, 2, updated.Quantity)

	movements, err := svc.History(context.Background(), product.ID, actor, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	require.Equal(t, RefAdjustment, movements[0].ReferenceType)
	require.Equal(t, 6, movements[0].PreviousStock)
	require.Equal(t, 2, movements[0].NewStock)
}

func TestDeleteProductZeroesQuantityWithoutLedgerEntry(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-006", Name: "Cat Eye", Quantity: 4}, actor)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(context.Background(), product.ID, actor))

	got := repo.products[product.ID]
	require.False(t, got.IsActive)
	require.Zero(t, got.Quantity)

	// Soft delete is a write-off, not a movement.
	movements := repo.movements[product.ID]
	require.Len(t, movements, 1)
}

func TestOwnershipScopeHidesForeignProducts(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	owner := shared.Actor{UserID: uuid.New(), Role: shared.RoleUser}
	other := shared.Actor{UserID: uuid.New(), Role: shared.RoleUser}
	manager := managerActor()

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "FRM-007", Name: "Pilot", Quantity: 1}, owner)
	require.NoError(t, err)

	_, _, err = svc.GetProduct(context.Background(), product.ID, other)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, _, err = svc.GetProduct(context.Background(), product.ID, manager)
	require.NoError(t, err)
}

func TestLowStockListing(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil)
	actor := managerActor()

	_, err := svc.CreateProduct(context.Background(), CreateProductInput{SKU: "A", Name: "A", Quantity: 2, ReorderPoint: 5}, actor)
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), CreateProductInput{SKU: "B", Name: "B", Quantity: 50, ReorderPoint: 5}, actor)
	require.NoError(t, err)

	low, err := svc.ListLowStock(context.Background(), actor)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, "A", low[0].SKU)
}
