package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/optica-erp/optica-erp/internal/billing"
	"github.com/optica-erp/optica-erp/internal/shared"
)

// Service implements the quote engine on top of the Repository port.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the quote service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func toBillingLines(items []ItemInput) []billing.LineInput {
	lines := make([]billing.LineInput, 0, len(items))
	for _, item := range items {
		lines = append(lines, billing.LineInput{
			ProductID:   item.ProductID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
		})
	}
	return lines
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

// Create builds a DRAFT quote with a freshly allocated number. Number
// allocation and the document insert share one transaction so a failed
// create burns no sequence value.
func (s *Service) Create(ctx context.Context, input CreateQuoteInput, actor shared.Actor) (*Quote, error) {
	if err := validateLines(input.Items); err != nil {
		return nil, err
	}
	if input.TaxRate < 0 || input.TaxRate > 100 {
		return nil, fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
	}

	totals := billing.ComputeTotals(toBillingLines(input.Items), input.TaxRate)
	q := Quote{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		OwnerID:    actor.UserID,
		Status:     StatusDraft,
		Subtotal:   totals.Subtotal,
		TaxRate:    input.TaxRate,
		TaxAmount:  totals.TaxAmount,
		Total:      totals.Total,
		ValidUntil: input.ValidUntil,
		Notes:      input.Notes,
		Terms:      input.Terms,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		number, err := tx.NextNumber(ctx, s.now().Year())
		if err != nil {
			return err
		}
		q.Number = number
		if err := tx.Insert(ctx, q); err != nil {
			return err
		}
		for _, item := range input.Items {
			line := Item{
				ID:          uuid.New(),
				QuoteID:     q.ID,
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
			q.Items = append(q.Items, line)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Get returns a quote with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor shared.Actor) (*Quote, error) {
	return s.repo.Get(ctx, id, actor.Scope())
}

// List returns quotes matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter, actor shared.Actor) ([]Quote, int, error) {
	return s.repo.List(ctx, filter, actor.Scope())
}

// Update edits fields, replaces the line set, or moves the status. Items are
// replaced wholesale and totals recomputed whenever they are present. Status
// moves follow the lifecycle; a no-op move to the current status is allowed
// and stamps nothing.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateQuoteInput, actor shared.Actor) (*Quote, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id, actor.Scope())
		if err != nil {
			return err
		}

		contentChange := input.Items != nil || input.TaxRate != nil || input.ValidUntil != nil || input.Notes != nil || input.Terms != nil
		if contentChange && current.Status != StatusDraft && current.Status != StatusSent {
			return fmt.Errorf("%w: quote %s is %s and can no longer be edited", shared.ErrInvalidState, current.Number, current.Status)
		}

		updates := map[string]any{}
		if input.ValidUntil != nil {
			updates["valid_until"] = *input.ValidUntil
		}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		if input.Terms != nil {
			updates["terms"] = *input.Terms
		}

		if input.Items != nil || input.TaxRate != nil {
			taxRate := current.TaxRate
			if input.TaxRate != nil {
				if *input.TaxRate < 0 || *input.TaxRate > 100 {
					return fmt.Errorf("%w: tax rate must be between 0 and 100", shared.ErrValidation)
				}
				taxRate = *input.TaxRate
			}

			items := input.Items
			if items != nil {
				if err := validateLines(*items); err != nil {
					return err
				}
				if err := tx.DeleteItems(ctx, id); err != nil {
					return err
				}
				for _, item := range *items {
					if err := tx.InsertItem(ctx, Item{
						ID:          uuid.New(),
						QuoteID:     id,
						ProductID:   item.ProductID,
						Description: item.Description,
						Quantity:    item.Quantity,
						UnitPrice:   item.UnitPrice,
						Discount:    item.Discount,
						Total:       billing.LineTotal(item.Quantity, item.UnitPrice, item.Discount),
					}); err != nil {
						return err
					}
				}
			}

			lines := make([]billing.LineInput, 0)
			if items != nil {
				lines = toBillingLines(*items)
			} else {
				for _, item := range current.Items {
					lines = append(lines, billing.LineInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount})
				}
			}
			totals := billing.ComputeTotals(lines, taxRate)
			updates["subtotal"] = totals.Subtotal
			updates["tax_rate"] = taxRate
			updates["tax_amount"] = totals.TaxAmount
			updates["total"] = totals.Total
		}

		if err := tx.UpdateFields(ctx, id, updates); err != nil {
			return err
		}

		if input.Status != nil && *input.Status != current.Status {
			if !CanTransition(current.Status, *input.Status) {
				return fmt.Errorf("%w: quote %s cannot move from %s to %s", shared.ErrInvalidState, current.Number, current.Status, *input.Status)
			}
			if err := tx.UpdateStatus(ctx, id, *input.Status); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id, actor.Scope())
}

// Delete removes a quote and its lines. Quotes never touch stock, so there
// is nothing to compensate; converted quotes are kept for the invoice trail.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor shared.Actor) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		current, err := tx.GetForUpdate(ctx, id, actor.Scope())
		if err != nil {
			return err
		}
		if current.ConvertedToInvoiceID != nil {
			return fmt.Errorf("%w: quote %s was converted to an invoice", shared.ErrInvalidState, current.Number)
		}
		return tx.Delete(ctx, id)
	})
}

// ExpireStale flips every SENT quote past its validity date to EXPIRED.
// Called by the scheduled expiry job.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	return s.repo.ExpireStale(ctx, s.now())
}
