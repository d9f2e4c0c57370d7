package report

import (
	"context"
	"fmt"
	"time"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Service exposes the reporting queries.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs the report service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Dashboard returns the landing page stats for the actor's scope.
func (s *Service) Dashboard(ctx context.Context, actor shared.Actor) (*DashboardStats, error) {
	return s.repo.DashboardStats(ctx, actor.Scope(), s.now())
}

// Sales returns the per-day sales report for the range. The range is
// inclusive of from and exclusive of to, and may not exceed one year.
func (s *Service) Sales(ctx context.Context, from, to time.Time, actor shared.Actor) ([]SalesRow, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: report range is empty", shared.ErrValidation)
	}
	if to.Sub(from) > 366*24*time.Hour {
		return nil, fmt.Errorf("%w: report range exceeds one year", shared.ErrValidation)
	}
	return s.repo.SalesReport(ctx, from, to, actor.Scope())
}
