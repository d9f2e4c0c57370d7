// Package jobs holds the background task definitions and the Asynq worker
// wiring: quote expiry and the low-stock scan.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Queue and task type identifiers.
const (
	QueueDefault = "default"

	TaskQuoteExpire  = "quote:expire"
	TaskLowStockScan = "inventory:lowstock"
)

// QuoteExpirePayload configures a quote expiry run. Empty is fine: the run
// always expires everything past validity at execution time.
type QuoteExpirePayload struct{}

// LowStockScanPayload configures a low-stock scan run.
type LowStockScanPayload struct {
	// Limit caps how many products a single notification lists.
	Limit int `json:"limit"`
}

// NewQuoteExpireTask builds the quote expiry task.
func NewQuoteExpireTask() (*asynq.Task, error) {
	payload, err := json.Marshal(QuoteExpirePayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpire, payload), nil
}

// NewLowStockScanTask builds the low-stock scan task.
func NewLowStockScanTask(limit int) (*asynq.Task, error) {
	payload, err := json.Marshal(LowStockScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, payload), nil
}
