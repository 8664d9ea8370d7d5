package service

import (
	"context"
	"fmt"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

// AvailabilityCalculator answers how much of a product is free over a window.
// It never writes.
type AvailabilityCalculator struct {
	statuses []models.RentalStatus
}

func NewAvailabilityCalculator() *AvailabilityCalculator {
	return &AvailabilityCalculator{statuses: models.ActiveStatuses()}
}

// CommittedQuantity is the quantity held by active rentals overlapping w.
func (c *AvailabilityCalculator) CommittedQuantity(
	ctx context.Context,
	rentals domain.RentalReader,
	productID int64,
	w models.Window,
	excludeRentalID int64,
) (int64, error) {
	committed, err := rentals.CommittedQuantity(ctx, productID, w, c.statuses, excludeRentalID)
	if err != nil {
		return 0, fmt.Errorf("committed quantity for product %d: %w", productID, err)
	}
	return committed, nil
}

func (c *AvailabilityCalculator) AvailableStock(
	ctx context.Context,
	rentals domain.RentalReader,
	product *models.Product,
	w models.Window,
	excludeRentalID int64,
) (int64, error) {
	committed, err := c.CommittedQuantity(ctx, rentals, product.ID, w, excludeRentalID)
	if err != nil {
		return 0, err
	}
	return product.Stock - committed, nil
}

func (c *AvailabilityCalculator) Availability(
	ctx context.Context,
	rentals domain.RentalReader,
	product *models.Product,
	w models.Window,
) (*models.Availability, error) {
	committed, err := c.CommittedQuantity(ctx, rentals, product.ID, w, 0)
	if err != nil {
		return nil, err
	}
	return &models.Availability{
		ProductID:   product.ID,
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Color:       product.Color,
		ImageRef:    product.ImageRef,
		Window:      w,
		TotalStock:  product.Stock,
		Committed:   committed,
		Available:   product.Stock - committed,
	}, nil
}

// PeakCommitted is the largest quantity of the product that active rentals hold
// at any one instant. Closed windows peak at the start of one of them.
func (c *AvailabilityCalculator) PeakCommitted(
	ctx context.Context,
	rentals domain.RentalReader,
	productID int64,
) (int64, error) {
	all, err := rentals.ListRentals(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rentals: %w", err)
	}

	var peak int64
	for _, r := range all {
		if !r.Status.IsActive() || !holdsProduct(r, productID) {
			continue
		}
		committed, err := c.CommittedQuantity(ctx, rentals, productID, models.NewWindow(r.StartAt, r.StartAt), 0)
		if err != nil {
			return 0, err
		}
		if committed > peak {
			peak = committed
		}
	}
	return peak, nil
}

func holdsProduct(r *models.Rental, productID int64) bool {
	for _, it := range r.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}
