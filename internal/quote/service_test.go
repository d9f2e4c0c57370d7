package quote

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/optica-erp/optica-erp/internal/numbering"
	"github.com/optica-erp/optica-erp/internal/shared"
)

type memoryQuoteRepo struct {
	quotes   map[uuid.UUID]*Quote
	items    map[uuid.UUID][]Item
	counters map[int]int64
	now      func() time.Time
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{
		quotes:   make(map[uuid.UUID]*Quote),
		items:    make(map[uuid.UUID][]Item),
		counters: make(map[int]int64),
		now:      time.Now,
	}
}

func (r *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryQuoteRepo) NextNumber(ctx context.Context, year int) (string, error) {
	r.counters[year]++
	return numbering.Format(numbering.KindQuote, year, r.counters[year]), nil
}

func (r *memoryQuoteRepo) Insert(ctx context.Context, q Quote) error {
	q.CreatedAt = r.now()
	q.UpdatedAt = q.CreatedAt
	q.Items = nil
	r.quotes[q.ID] = &q
	return nil
}

func (r *memoryQuoteRepo) InsertItem(ctx context.Context, item Item) error {
	r.items[item.QuoteID] = append(r.items[item.QuoteID], item)
	return nil
}

func (r *memoryQuoteRepo) DeleteItems(ctx context.Context, quoteID uuid.UUID) error {
	delete(r.items, quoteID)
	return nil
}

func (r *memoryQuoteRepo) lookup(id uuid.UUID, scope shared.Scope) (*Quote, error) {
	q, ok := r.quotes[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if scope.Restricted() && q.OwnerID != *scope.OwnerID {
		return nil, shared.ErrNotFound
	}
	copied := *q
	copied.Items = append([]Item(nil), r.items[id]...)
	return &copied, nil
}

func (r *memoryQuoteRepo) Get(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error) {
	return r.lookup(id, scope)
}

func (r *memoryQuoteRepo) GetForUpdate(ctx context.Context, id uuid.UUID, scope shared.Scope) (*Quote, error) {
	return r.lookup(id, scope)
}

func (r *memoryQuoteRepo) List(ctx context.Context, filter ListFilter, scope shared.Scope) ([]Quote, int, error) {
	var out []Quote
	for id, q := range r.quotes {
		if scope.Restricted() && q.OwnerID != *scope.OwnerID {
			continue
		}
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		copied := *q
		copied.Items = append([]Item(nil), r.items[id]...)
		out = append(out, copied)
	}
	return out, len(out), nil
}

func (r *memoryQuoteRepo) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	q, ok := r.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	if v, ok := updates["subtotal"]; ok {
		q.Subtotal = v.(float64)
	}
	if v, ok := updates["tax_rate"]; ok {
		q.TaxRate = v.(float64)
	}
	if v, ok := updates["tax_amount"]; ok {
		q.TaxAmount = v.(float64)
	}
	if v, ok := updates["total"]; ok {
		q.Total = v.(float64)
	}
	if v, ok := updates["valid_until"]; ok {
		t := v.(time.Time)
		q.ValidUntil = &t
	}
	if v, ok := updates["notes"]; ok {
		s := v.(string)
		q.Notes = &s
	}
	if v, ok := updates["terms"]; ok {
		s := v.(string)
		q.Terms = &s
	}
	q.UpdatedAt = r.now()
	return nil
}

func (r *memoryQuoteRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	q, ok := r.quotes[id]
	if !ok {
		return shared.ErrNotFound
	}
	q.Status = status
	now := r.now()
	switch status {
	case StatusSent:
		if q.SentAt == nil {
			q.SentAt = &now
		}
	case StatusAccepted:
		if q.AcceptedAt == nil {
			q.AcceptedAt = &now
		}
	case StatusRejected:
		if q.RejectedAt == nil {
			q.RejectedAt = &now
		}
	}
	q.UpdatedAt = now
	return nil
}

func (r *memoryQuoteRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.quotes, id)
	delete(r.items, id)
	return nil
}

func (r *memoryQuoteRepo) ExpireStale(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for _, q := range r.quotes {
		if q.Status == StatusSent && q.ValidUntil != nil && q.ValidUntil.Before(asOf) {
			q.Status = StatusExpired
			n++
		}
	}
	return n, nil
}

func quoteActor() shared.Actor {
	return shared.Actor{UserID: uuid.New(), Role: shared.RoleManager}
}

func statusPtr(s Status) *Status { return &s }

func TestCreateQuoteAllocatesSequentialNumbers(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()
	year := time.Now().Year()

	input := CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
		TaxRate:    20,
	}

	first, err := svc.Create(context.Background(), input, actor)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), input, actor)
	require.NoError(t, err)

	require.Equal(t, numbering.Format(numbering.KindQuote, year, 1), first.Number)
	require.Equal(t, numbering.Format(numbering.KindQuote, year, 2), second.Number)
	require.Equal(t, StatusDraft, first.Status)
	require.InDelta(t, 120.0, first.Total, 1e-9)
}

func TestCreateQuoteRejectsNegativeLineTotal(t *testing.T) {
	svc := NewService(newMemoryQuoteRepo())
	_, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100, Discount: 150}},
	}, quoteActor())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestQuoteStatusTimestampsAreFirstEntryOnly(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()

	q, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Lens", Quantity: 2, UnitPrice: 80}},
	}, actor)
	require.NoError(t, err)

	sent, err := svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)
	firstSentAt := *sent.SentAt

	// A repeated move to the same status is a no-op and must not restamp.
	again, err := svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.NoError(t, err)
	require.Equal(t, firstSentAt, *again.SentAt)

	accepted, err := svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusAccepted)}, actor)
	require.NoError(t, err)
	require.NotNil(t, accepted.AcceptedAt)
	require.Equal(t, firstSentAt, *accepted.SentAt)
}

func TestQuoteInvalidTransitionsRejected(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()

	q, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Lens", Quantity: 1, UnitPrice: 60}},
	}, actor)
	require.NoError(t, err)

	// DRAFT cannot jump straight to ACCEPTED.
	_, err = svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusAccepted)}, actor)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusRejected)}, actor)
	require.NoError(t, err)

	// REJECTED is terminal.
	_, err = svc.Update(context.Background(), q.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestQuoteUpdateReplacesItemsAndRecomputes(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()

	q, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
		TaxRate:    20,
	}, actor)
	require.NoError(t, err)

	newItems := []ItemInput{
		{Description: "Frame", Quantity: 2, UnitPrice: 100},
		{Description: "Case", Quantity: 1, UnitPrice: 15, Discount: 5},
	}
	updated, err := svc.Update(context.Background(), q.ID, UpdateQuoteInput{Items: &newItems}, actor)
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	require.InDelta(t, 210.0, updated.Subtotal, 1e-9)
	require.InDelta(t, 42.0, updated.TaxAmount, 1e-9)
	require.InDelta(t, 252.0, updated.Total, 1e-9)
	require.Equal(t, q.Number, updated.Number)
}

func TestQuoteDeleteIsHardAndGuardsConversion(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()

	q, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
	}, actor)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), q.ID, actor))
	_, err = svc.Get(context.Background(), q.ID, actor)
	require.ErrorIs(t, err, shared.ErrNotFound)

	converted, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
	}, actor)
	require.NoError(t, err)
	invoiceID := uuid.New()
	repo.quotes[converted.ID].ConvertedToInvoiceID = &invoiceID

	err = svc.Delete(context.Background(), converted.ID, actor)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestExpireStaleOnlyTouchesSentPastValidity(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	actor := quoteActor()

	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	stale, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
		ValidUntil: &past,
	}, actor)
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), stale.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.NoError(t, err)

	fresh, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
		ValidUntil: &future,
	}, actor)
	require.NoError(t, err)
	_, err = svc.Update(context.Background(), fresh.ID, UpdateQuoteInput{Status: statusPtr(StatusSent)}, actor)
	require.NoError(t, err)

	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.Equal(t, StatusExpired, repo.quotes[stale.ID].Status)
	require.Equal(t, StatusSent, repo.quotes[fresh.ID].Status)
}

func TestQuoteOwnershipScope(t *testing.T) {
	repo := newMemoryQuoteRepo()
	svc := NewService(repo)
	owner := shared.Actor{UserID: uuid.New(), Role: shared.RoleUser}
	other := shared.Actor{UserID: uuid.New(), Role: shared.RoleUser}

	q, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []ItemInput{{Description: "Frame", Quantity: 1, UnitPrice: 100}},
	}, owner)
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), q.ID, other)
	require.ErrorIs(t, err, shared.ErrNotFound)

	list, total, err := svc.List(context.Background(), ListFilter{}, other)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, list)
}
