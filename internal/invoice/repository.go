package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/numbering"
	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/quote"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// QuoteRef is the slice of a quote the invoice engine needs for conversion.
type QuoteRef struct {
	ID                   uuid.UUID
	Status               quote.Status
	ConvertedToInvoiceID *uuid.UUID
}

// Repository is the storage port for the invoice module. Stock adjustments
// and number allocation are exposed here so they run on the same transaction
// as the invoice writes.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, year int) (string, error)
	Insert(ctx context.Context, inv Invoice) error
	InsertItem(ctx context.Context, item Item) error
	Get(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Invoice, error)
	GetForUpdate(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Invoice, error)
	List(ctx context.Context, filter ListFilter, scope shared.Scope) ([]Invoice, int, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	RecordPayment(ctx context.Context, p Payment, amountPaid, balanceDue float64, status Status, stampPaid bool) error
	DeletePayments(ctx context.Context, invoiceID uuid.UUID) error
	DeleteItems(ctx context.Context, invoiceID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	QuoteForConversion(ctx context.Context, quoteID uuid.UUID, scope shared.Scope) (*QuoteRef, error)
	MarkQuoteConverted(ctx context.Context, quoteID, invoiceID uuid.UUID) error
	AdjustStock(ctx context.Context, adj inventory.Adjustment) (*inventory.StockMovement, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
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

func (r *repository) NextNumber(ctx context.Context, year int) (string, error) {
	return numbering.Next(ctx, r.db, numbering.KindInvoice, year)
}

const invoiceColumns = `id, number, customer_id, quote_id, user_id, status, subtotal, tax_rate, tax_amount, total, amount_paid, balance_due, due_date, notes, terms, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.CustomerID, &inv.QuoteID, &inv.OwnerID, &inv.Status,
		&inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.Total,
		&inv.AmountPaid, &inv.BalanceDue, &inv.DueDate,
		&inv.Notes, &inv.Terms, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Insert(ctx context.Context, inv Invoice) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO invoices (id, number, customer_id, quote_id, user_id, status, subtotal, tax_rate, tax_amount, total, amount_paid, balance_due, due_date, notes, terms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
	`, inv.ID, inv.Number, inv.CustomerID, inv.QuoteID, inv.OwnerID, string(inv.Status),
		inv.Subtotal, inv.TaxRate, inv.TaxAmount, inv.Total, inv.AmountPaid, inv.BalanceDue,
		inv.DueDate, inv.Notes, inv.Terms)
	return err
}

func (r *repository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, product_id, description, quantity, unit_price, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.InvoiceID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.Discount, item.Total)
	return err
}

func (r *repository) loadItems(ctx context.Context, invoiceID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, discount, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Discount, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) loadPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, notes, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY created_at
	`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) get(ctx context.Context, id uuid.UUID, scope shared.Scope, forUpdate bool) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	args := []any{id}
	if scope.Restricted() {
		query += ` AND user_id = $2`
		args = append(args, *scope.OwnerID)
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}

	inv, err := scanInvoice(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if inv.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if inv.Payments, err = r.loadPayments(ctx, id); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Invoice, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Invoice, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repository) List(ctx context.Context, filter ListFilter, scope shared.Scope) ([]Invoice, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if scope.Restricted() {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argPos))
		args = append(args, *scope.OwnerID)
		argPos++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, string(*filter.Status))
		argPos++
	}
	if filter.Overdue {
		conditions = append(conditions, fmt.Sprintf("status IN ('PENDING', 'PARTIAL') AND due_date < $%d", argPos))
		args = append(args, time.Now())
		argPos++
	}
	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *filter.CustomerID)
		argPos++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("number ILIKE $%d", argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT %s FROM invoices %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		invoiceColumns, whereClause, argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	query := "UPDATE invoices SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"due_date", "notes", "terms"} {
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

// RecordPayment inserts the payment row and rolls the invoice's paid totals
// and status forward in one statement pair. paid_at only ever moves from
// NULL to a value.
func (r *repository) RecordPayment(ctx context.Context, p Payment, amountPaid, balanceDue float64, status Status, stampPaid bool) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO payments (id, invoice_id, amount, method, reference, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, p.ID, p.InvoiceID, p.Amount, string(p.Method), p.Reference, p.Notes); err != nil {
		return err
	}

	query := `UPDATE invoices SET amount_paid = $2, balance_due = $3, status = $4, updated_at = NOW()`
	if stampPaid {
		query += `, paid_at = COALESCE(paid_at, NOW())`
	}
	query += ` WHERE id = $1`
	_, err := r.db.Exec(ctx, query, p.InvoiceID, amountPaid, balanceDue, string(status))
	return err
}

func (r *repository) DeletePayments(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM payments WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *repository) DeleteItems(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID)
	return err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (r *repository) QuoteForConversion(ctx context.Context, quoteID uuid.UUID, scope shared.Scope) (*QuoteRef, error) {
	query := `SELECT id, status, converted_to_invoice_id FROM quotes WHERE id = $1`
	args := []any{quoteID}
	if scope.Restricted() {
		query += ` AND user_id = $2`
		args = append(args, *scope.OwnerID)
	}
	query += ` FOR UPDATE`

	var ref QuoteRef
	err := r.db.QueryRow(ctx, query, args...).Scan(&ref.ID, &ref.Status, &ref.ConvertedToInvoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ref, nil
}

func (r *repository) MarkQuoteConverted(ctx context.Context, quoteID, invoiceID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE quotes SET
			status = 'ACCEPTED',
			converted_to_invoice_id = $2,
			accepted_at = COALESCE(accepted_at, NOW()),
			updated_at = NOW()
		WHERE id = $1
	`, quoteID, invoiceID)
	return err
}

func (r *repository) AdjustStock(ctx context.Context, adj inventory.Adjustment) (*inventory.StockMovement, error) {
	return inventory.ApplyAdjustment(ctx, r.db, adj)
}
