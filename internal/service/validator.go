package service

import (
	"context"
	"math"

	"rentalhub/internal/domain"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"
)

// ResolvedItem is a validated request line carrying the product's current price.
type ResolvedItem struct {
	Product   *models.Product
	Quantity  int64
	UnitPrice int64
}

type validationSource interface {
	domain.ProductCatalog
	domain.RentalReader
}

type Validator struct {
	availability *AvailabilityCalculator
}

func NewValidator(availability *AvailabilityCalculator) *Validator {
	return &Validator{availability: availability}
}

// Validate checks the request against stock and stops at the first failing item.
func (v *Validator) Validate(
	ctx context.Context,
	src validationSource,
	items []models.ItemRequest,
	w models.Window,
	excludeRentalID int64,
) ([]ResolvedItem, error) {
	if len(items) == 0 {
		return nil, &EmptyRentalError{}
	}
	if !w.Valid() {
		return nil, &InvalidWindowError{Start: w.Start, End: w.End}
	}

	merged, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedItem, 0, len(merged))
	for _, it := range merged {
		product, err := src.GetProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, &NotFoundError{Entity: "product", ID: it.ProductID}
		}

		available, err := v.availability.AvailableStock(ctx, src, product, w, excludeRentalID)
		if err != nil {
			return nil, err
		}
		if it.Quantity > available {
			metrics.IncStockRejection(product.ID)
			return nil, &InsufficientStockError{
				ProductID: product.ID,
				Requested: it.Quantity,
				Available: available,
			}
		}

		resolved = append(resolved, ResolvedItem{
			Product:   product,
			Quantity:  it.Quantity,
			UnitPrice: product.Price,
		})
	}
	return resolved, nil
}

// mergeItems folds repeated product ids into one line, keeping first-seen order.
func mergeItems(items []models.ItemRequest) ([]models.ItemRequest, error) {
	index := make(map[int64]int, len(items))
	merged := make([]models.ItemRequest, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if i, ok := index[it.ProductID]; ok {
			if merged[i].Quantity > math.MaxInt64-it.Quantity {
				return nil, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
			}
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	return merged, nil
}

func requestedProductIDs(items []models.ItemRequest) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
