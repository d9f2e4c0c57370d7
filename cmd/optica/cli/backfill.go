// Package cli holds operational subcommands for the optica binary.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/optica-erp/optica-erp/internal/numbering"
	"github.com/optica-erp/optica-erp/internal/platform/db"
)

type seqKey struct {
	kind numbering.Kind
	year int
}

// BackfillSequences rebuilds document_sequences from the numbers already
// stored on quotes and invoices. It is meant for restoring a database
// imported from another system where the counter table is missing or stale.
// Any stored number that fails to parse aborts the run: continuing would
// risk allocating a duplicate.
func BackfillSequences(ctx context.Context, dsn string, logger *slog.Logger) error {
	pool, err := db.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("backfill: connect: %w", err)
	}
	defer pool.Close()

	maxima := make(map[seqKey]int64)

	for _, table := range []string{"quotes", "invoices"} {
		rows, err := pool.Query(ctx, fmt.Sprintf("SELECT number FROM %s", table))
		if err != nil {
			return fmt.Errorf("backfill: scan %s: %w", table, err)
		}
		for rows.Next() {
			var number string
			if err := rows.Scan(&number); err != nil {
				rows.Close()
				return fmt.Errorf("backfill: scan %s: %w", table, err)
			}
			kind, year, seq, err := numbering.Parse(number)
			if err != nil {
				rows.Close()
				return fmt.Errorf("backfill: %s: %w", table, err)
			}
			key := seqKey{kind: kind, year: year}
			if seq > maxima[key] {
				maxima[key] = seq
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("backfill: scan %s: %w", table, err)
		}
		rows.Close()
	}

	for key, seq := range maxima {
		_, err := pool.Exec(ctx, `
			INSERT INTO document_sequences (doc_type, year, seq)
			VALUES ($1, $2, $3)
			ON CONFLICT (doc_type, year)
			DO UPDATE SET seq = GREATEST(document_sequences.seq, EXCLUDED.seq)
		`, string(key.kind), key.year, seq)
		if err != nil {
			return fmt.Errorf("backfill: upsert %s-%d: %w", key.kind, key.year, err)
		}
		logger.Info("sequence backfilled",
			slog.String("doc_type", string(key.kind)),
			slog.Int("year", key.year),
			slog.Int64("seq", seq),
		)
	}

	logger.Info("backfill complete", slog.Int("counters", len(maxima)))
	return nil
}
