package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/billing"
	"github.com/optica-erp/optica-erp/internal/inventory"
	"github.com/optica-erp/optica-erp/internal/quote"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Service implements the invoice engine on top of the Repository port.
type Service struct {
	repo   Repository
	audit  *shared.AuditLogger
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs the invoice service.
func NewService(repo Repository, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

func validateLines(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one line is required", shared.ErrValidation)
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", shared.ErrValidation, i+1)
		}
		if item.UnitPrice < 0 || item.Discount < 0 {
			return fmt.Errorf("%w: line %d price and discount must not be negative", shared.ErrValidation, i+1)
		}
		if billing.LineTotal(item.Quantity, item.UnitPrice, item.Discount) < 0 {
			return fmt.Errorf("%w: line %d discount exceeds the line value", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// Create issues an invoice: number allocation, totals, lines, the optional
// quote conversion and the OUT stock deductions all commit or roll back as
// one transaction. A serialization conflict is retried once with a fresh
// transaction before surfacing to the caller.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput, actor shared.Actor) (*Invoice, error) {
	if err := validateLines(input.Items); err != nil {
		return nil, err
	}
	if input.TaxRate < 0 || input.TaxRate > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	}
	if input.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", shared.ErrValidation)
	}

	inv, err := s.create(ctx, input, actor)
	if errors.Is(err, shared.ErrConflict) {
		s.logger.Info("invoice create retrying after conflict")
		inv, err = s.create(ctx, input, actor)
	}
	return inv, err
}

func (s *Service) create(ctx context.Context, input CreateInvoiceInput, actor shared.Actor) (*Invoice, error) {
	lines := make([]billing.LineInput, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, billing.LineInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount})
	}
	totals := billing.ComputeTotals(lines, input.TaxRate)

	inv := Invoice{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		QuoteID:    input.QuoteID,
		OwnerID:    actor.UserID,
		Status:     StatusPending,
		Subtotal:   totals.Subtotal,
		TaxRate:    input.TaxRate,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		AmountPaid: 0,
		BalanceDue: totals.Total,
		DueDate:    input.DueDate,
		Notes:      input.Notes,
		Terms:      input.Terms,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if input.QuoteID != nil {
			ref, err := tx.QuoteForConversion(ctx, *input.QuoteID, actor.Scope())
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("%w: quote %s", shared.ErrNotFound, *input.QuoteID)
				}
				return err
			}
			if ref.ConvertedToInvoiceID != nil {
				return fmt.Errorf("%w: quote already converted to an invoice", shared.ErrInvalidState)
			}
			if ref.Status != quote.StatusAccepted && ref.Status != quote.StatusSent {
				return fmt.Errorf("%w: quote is %s and cannot be converted", shared.ErrInvalidState, ref.Status)
			}
		}

		number, err := tx.NextNumber(ctx, s.now().Year())
		if err != nil {
			return err
		}
		inv.Number = number

		if err := tx.Insert(ctx, inv); err != nil {
			return err
		}
		for _, item := range input.Items {
			line := Item{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				ProductID:   item.ProductID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Discount:    item.Discount,
				Total:       billing.LineTotal(item.Quantity, item.UnitPrice, item.Discount),
			}
			if err := tx.InsertItem(ctx, line); err != nil {
				return err
			}
			inv.Items = append(inv.Items, line)
		}

		if input.QuoteID != nil {
			if err := tx.MarkQuoteConverted(ctx, *input.QuoteID, inv.ID); err != nil {
				return err
			}
		}

		for _, item := range inv.Items {
			if item.ProductID == nil {
				continue
			}
			_, err := tx.AdjustStock(ctx, inventory.Adjustment{
				ProductID:     *item.ProductID,
				Delta:         -item.Quantity,
				Type:          inventory.MovementOut,
				ActorID:       actor.UserID,
				ReferenceID:   &inv.ID,
				ReferenceType: inventory.RefInvoice,
				Reason:        "Invoice " + inv.Number,
			})
			if err != nil {
				// Lines may reference products that were since removed;
				// billing proceeds without a stock deduction for those.
				if errors.Is(err, inventory.ErrProductMissing) {
					continue
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Get returns an invoice with items and payments.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor shared.Actor) (*Invoice, error) {
	return s.repo.Get(ctx, id, actor.Scope())
}

// List returns invoices matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, actor shared.Actor) ([]Invoice, int, error) {
	return s.repo.List(ctx, filter, actor.Scope())
}

// ListOverdue returns the derived overdue set.
func (s *Service) ListOverdue(ctx context.Context, actor shared.Actor) ([]Invoice, int, error) {
	return s.repo.List(ctx, ListFilter{Overdue: true}, actor.Scope())
}

// Update edits scheduling and free-text fields only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInvoiceInput, actor shared.Actor) (*Invoice, error) {
	if _, err := s.repo.Get(ctx, id, actor.Scope()); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if input.DueDate != nil {
		updates["due_date"] = *input.DueDate
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.Terms != nil {
		updates["terms"] = *input.Terms
	}
	if err := s.repo.UpdateFields(ctx, id, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id, actor.Scope())
}

// Cancel undoes an invoice: every line that deducted stock gets a
// compensating IN movement, then payments, items and the invoice itself are
// deleted, all in one transaction. Paid invoices cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, id, actor.Scope())
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: invoice %s is paid and cannot be cancelled", shared.ErrInvalidState, inv.Number)
		}
		if inv.Status == StatusCancelled {
			return fmt.Errorf("%w: invoice %s is already cancelled", shared.ErrInvalidState, inv.Number)
		}
		number = inv.Number

		for _, item := range inv.Items {
			if item.ProductID == nil {
				continue
			}
			_, err := tx.AdjustStock(ctx, inventory.Adjustment{
				ProductID:     *item.ProductID,
				Delta:         item.Quantity,
				Type:          inventory.MovementIn,
				ActorID:       actor.UserID,
				ReferenceID:   &inv.ID,
				ReferenceType: inventory.RefInvoiceCancelled,
				Reason:        "Invoice " + inv.Number + " cancelled",
			})
			if err != nil {
				if errors.Is(err, inventory.ErrProductMissing) {
					continue
				}
				return err
			}
		}

		if err := tx.DeletePayments(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "invoice.cancel",
		Entity:   "invoice",
		EntityID: id.String(),
		Meta:     map[string]any{"number": number},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return nil
}

// AddPayment records a payment and rolls the invoice status forward:
// PENDING or PARTIAL become PAID once the balance reaches zero, PARTIAL
// otherwise. Overpayment is accepted and leaves a negative balance. paidAt
// is stamped only on the transition into PAID.
func (s *Service) AddPayment(ctx context.Context, id uuid.UUID, input AddPaymentInput, actor shared.Actor) (*Invoice, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	switch input.Method {
	case MethodCash, MethodCheck, MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodInsurance, MethodOther:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, input.Method)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		inv, err := tx.GetForUpdate(ctx, id, actor.Scope())
		if err != nil {
			return err
		}
		if inv.Status == StatusPaid {
			return fmt.Errorf("%w: invoice %s is already fully paid", shared.ErrInvalidState, inv.Number)
		}
		if inv.Status == StatusCancelled {
			return fmt.Errorf("%w: invoice %s is cancelled", shared.ErrInvalidState, inv.Number)
		}

		amountPaid := inv.AmountPaid + input.Amount
		balanceDue := inv.Total - amountPaid
		status := StatusPartial
		if balanceDue <= 0 {
			status = StatusPaid
		}

		return tx.RecordPayment(ctx, Payment{
			ID:        uuid.New(),
			InvoiceID: id,
			Amount:    input.Amount,
			Method:    input.Method,
			Reference: input.Reference,
			Notes:     input.Notes,
		}, amountPaid, balanceDue, status, status == StatusPaid)
	})
	if err != nil {
		return nil, err
	}

	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   "invoice.payment",
		Entity:   "invoice",
		EntityID: id.String(),
		Meta:     map[string]any{"amount": input.Amount, "method": string(input.Method)},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return s.repo.Get(ctx, id, actor.Scope())
}
