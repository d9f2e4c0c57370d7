// Package numbering allocates gap-free sequential document numbers.
//
// Numbers are formatted as <PREFIX>-<year>-<seq> with a zero-padded four
// digit sequence, e.g. QT-2025-0001 or INV-2025-0012. Each (kind, year) pair
// owns a row in document_sequences which is incremented atomically; callers
// must allocate inside the transaction that persists the document so a
// rollback releases nothing observable.
package numbering

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Kind is a document number prefix.
type Kind string

const (
	KindQuote   Kind = "QT"
	KindInvoice Kind = "INV"
)

// DBTX is the slice of pgx shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next allocates the next number for (kind, year). The counter row is created
// on first use and incremented under the row lock the upsert takes, so two
// concurrent transactions can never observe the same sequence value.
func Next(ctx context.Context, q DBTX, kind Kind, year int) (string, error) {
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, year, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type, year)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, string(kind), year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s-%d: %w", kind, year, err)
	}
	return Format(kind, year, seq), nil
}

// Format renders a document number.
func Format(kind Kind, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", kind, year, seq)
}

// Parse splits a document number into its parts. A malformed number wraps
// shared.ErrSequenceCorrupted: stored numbers are only ever produced by
// Format, so failure to parse one means the data is damaged.
func Parse(number string) (Kind, int, int64, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", 0, 0, fmt.Errorf("%w: %q", shared.ErrSequenceCorrupted, number)
	}
	kind := Kind(parts[0])
	if kind != KindQuote && kind != KindInvoice {
		return "", 0, 0, fmt.Errorf("%w: unknown prefix in %q", shared.ErrSequenceCorrupted, number)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1970 {
		return "", 0, 0, fmt.Errorf("%w: bad year in %q", shared.ErrSequenceCorrupted, number)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return "", 0, 0, fmt.Errorf("%w: bad sequence in %q", shared.ErrSequenceCorrupted, number)
	}
	return kind, year, seq, nil
}
