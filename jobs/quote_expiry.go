package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/quote"
)

// QuoteExpiryJob moves SENT quotes past their validity date to EXPIRED.
type QuoteExpiryJob struct {
	quotes *quote.Service
	logger *slog.Logger
}

// NewQuoteExpiryJob constructs the job.
func NewQuoteExpiryJob(quotes *quote.Service, logger *slog.Logger) *QuoteExpiryJob {
	return &QuoteExpiryJob{quotes: quotes, logger: logger}
}

// Handle runs one expiry pass.
func (j *QuoteExpiryJob) Handle(ctx context.Context, task *asynq.Task) error {
	expired, err := j.quotes.ExpireStale(ctx)
	if err != nil {
		j.logger.Error("quote expiry failed", slog.Any("error", err))
		return err
	}
	if expired > 0 {
		j.logger.Info("expired stale quotes", slog.Int64("count", expired))
	}
	return nil
}
