package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// DashboardStats is the back-office landing page summary.
type DashboardStats struct {
	TotalProducts      int     `json:"totalProducts"`
	LowStockProducts   int     `json:"lowStockProducts"`
	TotalQuotes        int     `json:"totalQuotes"`
	SentQuotes         int     `json:"sentQuotes"`
	TotalInvoices      int     `json:"totalInvoices"`
	PendingInvoices    int     `json:"pendingInvoices"`
	OverdueInvoices    int     `json:"overdueInvoices"`
	RevenueToday       float64 `json:"revenueToday"`
	RevenueMonth       float64 `json:"revenueMonth"`
	OutstandingBalance float64 `json:"outstandingBalance"`
}

// SalesRow is one day of the date-ranged sales report.
type SalesRow struct {
	Date      time.Time `json:"date"`
	Invoices  int       `json:"invoices"`
	Invoiced  float64   `json:"invoiced"`
	Collected float64   `json:"collected"`
}

// Repository runs the reporting aggregates. Reports are read-only and run on
// the pool directly; no transaction control is needed.
type Repository interface {
	DashboardStats(ctx context.Context, scope shared.Scope, now time.Time) (*DashboardStats, error)
	SalesReport(ctx context.Context, from, to time.Time, scope shared.Scope) ([]SalesRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the pgx-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func ownerFilter(scope shared.Scope, column string, argPos int) (string, []any) {
	if !scope.Restricted() {
		return "", nil
	}
	return fmt.Sprintf(" AND %s = $%d", column, argPos), []any{*scope.OwnerID}
}

func (r *repository) DashboardStats(ctx context.Context, scope shared.Scope, now time.Time) (*DashboardStats, error) {
	stats := &DashboardStats{}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	owner, ownerArgs := ownerFilter(scope, "user_id", 1)
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE is_active AND quantity <= reorder_point)
		FROM products WHERE TRUE`+owner, ownerArgs...).Scan(&stats.TotalProducts, &stats.LowStockProducts)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'SENT')
		FROM quotes WHERE TRUE`+owner, ownerArgs...).Scan(&stats.TotalQuotes, &stats.SentQuotes)
	if err != nil {
		return nil, err
	}

	owner2, ownerArgs2 := ownerFilter(scope, "user_id", 2)
	args := append([]any{now}, ownerArgs2...)
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status IN ('PENDING', 'PARTIAL')),
		       COUNT(*) FILTER (WHERE status IN ('PENDING', 'PARTIAL') AND due_date < $1),
		       COALESCE(SUM(balance_due) FILTER (WHERE status IN ('PENDING', 'PARTIAL')), 0)
		FROM invoices WHERE TRUE`+owner2, args...).Scan(
		&stats.TotalInvoices, &stats.PendingInvoices, &stats.OverdueInvoices, &stats.OutstandingBalance)
	if err != nil {
		return nil, err
	}

	owner3, ownerArgs3 := ownerFilter(scope, "i.user_id", 3)
	payArgs := append([]any{dayStart, monthStart}, ownerArgs3...)
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount) FILTER (WHERE p.created_at >= $1), 0),
		       COALESCE(SUM(p.amount) FILTER (WHERE p.created_at >= $2), 0)
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE TRUE`+owner3, payArgs...).Scan(&stats.RevenueToday, &stats.RevenueMonth)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) SalesReport(ctx context.Context, from, to time.Time, scope shared.Scope) ([]SalesRow, error) {
	owner, ownerArgs := ownerFilter(scope, "i.user_id", 3)
	args := append([]any{from, to}, ownerArgs...)

	rows, err := r.pool.Query(ctx, `
		SELECT date_trunc('day', i.created_at) AS day,
		       COUNT(*),
		       COALESCE(SUM(i.total), 0),
		       COALESCE(SUM(paid.collected), 0)
		FROM invoices i
		LEFT JOIN LATERAL (
			SELECT COALESCE(SUM(p.amount), 0) AS collected
			FROM payments p WHERE p.invoice_id = i.id
		) AS paid ON TRUE
		WHERE i.created_at >= $1 AND i.created_at < $2`+owner+`
		GROUP BY day
		ORDER BY day
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SalesRow
	for rows.Next() {
		var row SalesRow
		if err := rows.Scan(&row.Date, &row.Invoices, &row.Invoiced, &row.Collected); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
