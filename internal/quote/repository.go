package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/numbering"
	"github.com/optica-erp/optica-erp/internal/platform/db"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Repository is the storage port for the quote module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, year int) (string, error)
	Insert(ctx context.Context, q Quote) error
	InsertItem(ctx context.Context, item Item) error
	DeleteItems(ctx context.Context, quoteID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error)
	GetForUpdate(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error)
	List(ctx context.Context, filter ListFilter, scope shared.Scope) ([]Quote, int, error)
	UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExpireStale(ctx context.Context, asOf time.Time) (int64, error)
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
	return numbering.Next(ctx, r.db, numbering.KindQuote, year)
}

const quoteColumns = `id, number, customer_id, user_id, status, subtotal, tax_rate, tax_amount, total, valid_until, notes, terms, sent_at, accepted_at, rejected_at, converted_to_invoice_id, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.Number, &q.CustomerID, &q.OwnerID, &q.Status,
		&q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.Total,
		&q.ValidUntil, &q.Notes, &q.Terms,
		&q.SentAt, &q.AcceptedAt, &q.RejectedAt, &q.ConvertedToInvoiceID,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) Insert(ctx context.Context, q Quote) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quotes (id, number, customer_id, user_id, status, subtotal, tax_rate, tax_amount, total, valid_until, notes, terms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`, q.ID, q.Number, q.CustomerID, q.OwnerID, string(q.Status), q.Subtotal, q.TaxRate, q.TaxAmount, q.Total, q.ValidUntil, q.Notes, q.Terms)
	return err
}

func (r *repository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO quote_items (id, quote_id, product_id, description, quantity, unit_price, discount, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.QuoteID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.Discount, item.Total)
	return err
}

func (r *repository) DeleteItems(ctx context.Context, quoteID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID)
	return err
}

func (r *repository) loadItems(ctx context.Context, quoteID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, quote_id, product_id, description, quantity, unit_price, discount, total
		FROM quote_items WHERE quote_id = $1 ORDER BY id
	`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ProductID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Discount, &item.Total); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) get(ctx context.Context, id uuid.UUID, scope shared.Scope, forUpdate bool) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	args := []any{id}
	if scope.Restricted() {
		query += ` AND user_id = $2`
		args = append(args, *scope.OwnerID)
	}
	if forUpdate {
		query += ` FOR UPDATE`
	}

	q, err := scanQuote(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	q.Items, err = r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error) {
	return r.get(ctx, id, scope, false)
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error) {
	return r.get(ctx, id, scope, true)
}

func (r *repository) List(ctx context.Context, filter ListFilter, scope shared.Scope) ([]Quote, int, error) {
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
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotes "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	query := fmt.Sprintf(`SELECT %s FROM quotes %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, whereClause, argPos, argPos+1)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *q)
	}
	return quotes, total, rows.Err()
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	query := "UPDATE quotes SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"subtotal", "tax_rate", "tax_amount", "total", "valid_until", "notes", "terms"} {
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

// UpdateStatus moves the quote and stamps the matching timestamp only if it
// is still NULL, so re-entering a state can never restamp it.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	_, err := r.db.Exec(ctx, `
		UPDATE quotes SET
			status = $2,
			updated_at = NOW(),
			sent_at     = CASE WHEN $2 = 'SENT'     THEN COALESCE(sent_at, NOW())     ELSE sent_at END,
			accepted_at = CASE WHEN $2 = 'ACCEPTED' THEN COALESCE(accepted_at, NOW()) ELSE accepted_at END,
			rejected_at = CASE WHEN $2 = 'REJECTED' THEN COALESCE(rejected_at, NOW()) ELSE rejected_at END
		WHERE id = $1
	`, id, string(status))
	return err
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.DeleteItems(ctx, id); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	return err
}

func (r *repository) ExpireStale(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE status = $2 AND valid_until IS NOT NULL AND valid_until < $3
	`, string(StatusExpired), string(StatusSent), asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
