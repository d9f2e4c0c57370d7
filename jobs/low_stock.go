package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// LowStockScanJob reports products at or below their reorder point so the
// shop can restock before selling out. Delivery is a log line for now;
// wiring it to a notifier is a deployment concern.
type LowStockScanJob struct {
	inventory *inventory.Service
	logger    *slog.Logger
}

// NewLowStockScanJob constructs the job.
func NewLowStockScanJob(inv *inventory.Service, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{inventory: inv, logger: logger}
}

// Handle runs one scan across all owners.
func (j *LowStockScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload LowStockScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return err
		}
	}

	scanner := shared.Actor{Role: shared.RoleManager}
	products, err := j.inventory.ListLowStock(ctx, scanner)
	if err != nil {
		j.logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	if payload.Limit > 0 && len(products) > payload.Limit {
		products = products[:payload.Limit]
	}

	for _, p := range products {
		j.logger.Warn("low stock",
			slog.String("sku", p.SKU),
			slog.String("name", p.Name),
			slog.Int("quantity", p.Quantity),
			slog.Int("reorder_point", p.ReorderPoint),
		)
	}
	return nil
}
