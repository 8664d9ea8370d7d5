package service

import (
	"context"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

type DashboardService struct {
	rentals domain.RentalReader
}

func NewDashboardService(rentals domain.RentalReader) *DashboardService {
	return &DashboardService{rentals: rentals}
}

// Stats counts rentals waiting for delivery and pickup, and sums the totals of
// non-cancelled rentals starting in the month containing now.
func (s *DashboardService) Stats(ctx context.Context, now time.Time) (*models.DashboardStats, error) {
	toDeliver, err := s.rentals.CountRentalsByStatus(ctx, models.StatusCreated)
	if err != nil {
		return nil, err
	}
	toPickUp, err := s.rentals.CountRentalsByStatus(ctx, models.StatusDelivered)
	if err != nil {
		return nil, err
	}

	from, to := monthBounds(now)
	income, err := s.rentals.SumRentalTotals(ctx, from, to, models.RevenueStatuses())
	if err != nil {
		return nil, err
	}

	return &models.DashboardStats{
		ToDeliver:   toDeliver,
		ToPickUp:    toPickUp,
		MonthIncome: income,
	}, nil
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first, first.AddDate(0, 1, 0)
}
