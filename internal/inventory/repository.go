package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Repository is the storage port for the inventory module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	InsertProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Product, error)
	ListProducts(ctx context.Context, filter ListProductsFilter, scope shared.Scope) ([]Product, int, error)
	UpdateProductFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeactivateProducts(ctx context.Context, ids []uuid.UUID, scope shared.Scope) (int64, error)
	ListLowStock(ctx context.Context, scope shared.Scope) ([]Product, error)
	ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]StockMovement, error)
	Adjust(ctx context.Context, adj Adjustment) (*StockMovement, error)
}

type repository struct {
	db   DBTX
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
	if db.IsRetryable(err) {
		return fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return err
}

const productColumns = `id, sku, name, brand, frame_material, lens_type, color, price, cost_price, quantity, reorder_point, is_active, user_id, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Brand, &p.FrameMaterial, &p.LensType, &p.Color,
		&p.Price, &p.CostPrice, &p.Quantity, &p.ReorderPoint, &p.IsActive, &p.OwnerID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, sku, name, brand, frame_material, lens_type, color, price, cost_price, quantity, reorder_point, is_active, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
	`, p.ID, p.SKU, p.Name, p.Brand, p.FrameMaterial, p.LensType, p.Color, p.Price, p.CostPrice, p.Quantity, p.ReorderPoint, p.IsActive, p.OwnerID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: sku %q already exists", shared.ErrValidation, p.SKU)
	}
	return err
}

func (r *repository) GetProduct(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	args := []any{id}
	if scope.Restricted() {
		query += ` AND user_id = $2`
		args = append(args, *scope.OwnerID)
	}
	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	return p, err
}

func (r *repository) ListProducts(ctx context.Context, filter ListProductsFilter, scope shared.Scope) ([]Product, int, error) {
	conditions := []string{"is_active = TRUE"}
	var args []any
	argPos := 1

	if !filter.IncludeEmpty {
		conditions = append(conditions, "quantity > 0")
	}
	if scope.Restricted() {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *scope.OwnerID)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR brand ILIKE $%d OR sku ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.Brand != "" {
		conditions = append(conditions, fmt.Sprintf("brand ILIKE $%d", argPos))
		args = append(args, "%"+filter.Brand+"%")
		argPos++
	}
	if filter.LensType != "" {
		conditions = append(conditions, fmt.Sprintf("lens_type ILIKE $%d", argPos))
		args = append(args, "%"+filter.LensType+"%")
		argPos++
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argPos))
		args = append(args, *filter.MinPrice)
		argPos++
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argPos))
		args = append(args, *filter.MaxPrice)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *repository) UpdateProductFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	query := "UPDATE products SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"name", "brand", "frame_material", "lens_type", "color", "price", "cost_price", "reorder_point"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}
	if len(args) == 0 {
		return nil
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	_, err := r.db.Exec(ctx, query, args...)
	return err
}

// DeactivateProducts soft deletes: the product disappears from listings and
// its quantity is zeroed in the same statement. The ledger is deliberately
// not compensated, matching the retail workflow of writing stock off with
// the product.
func (r *repository) DeactivateProducts(ctx context.Context, ids []uuid.UUID, scope shared.Scope) (int64, error) {
	query := `UPDATE products SET is_active = FALSE, quantity = 0, updated_at = NOW() WHERE id = ANY($1)`
	args := []any{ids}
	if scope.Restricted() {
		query += ` AND user_id = $2`
		args = append(args, *scope.OwnerID)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ListLowStock(ctx context.Context, scope shared.Scope) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE AND quantity <= reorder_point`
	var args []any
	if scope.Restricted() {
		query += ` AND user_id = $1`
		args = append(args, *scope.OwnerID)
	}
	query += ` ORDER BY quantity ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *repository) ListMovements(ctx context.Context, productID uuid.UUID, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, user_id, type, quantity, previous_stock, new_stock, reference_id, COALESCE(reference_type, ''), COALESCE(reason, ''), created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.ProductID, &mv.UserID, &mv.Type, &mv.Quantity, &mv.PreviousStock, &mv.NewStock, &mv.ReferenceID, &mv.ReferenceType, &mv.Reason, &mv.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, rows.Err()
}

func (r *repository) Adjust(ctx context.Context, adj Adjustment) (*StockMovement, error) {
	return ApplyAdjustment(ctx, r.db, adj)
}
