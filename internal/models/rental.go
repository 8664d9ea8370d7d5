package models

import "time"

// Rental is a booking of one or more products for a window.
// It exclusively owns its items and payments.
type Rental struct {
	ID        int64        `json:"id"`
	StartAt   time.Time    `json:"start_at"`
	EndAt     time.Time    `json:"end_at"`
	Address   string       `json:"address"`
	Status    RentalStatus `json:"status"`
	ClientID  int64        `json:"client_id"`
	UserID    int64        `json:"user_id"`
	Total     int64        `json:"total"`
	Items     []RentalItem `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Version   int64        `json:"version"`
}

// RentalItem carries the unit price frozen when the rental was priced.
type RentalItem struct {
	ID        int64 `json:"id"`
	RentalID  int64 `json:"rental_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// ItemRequest is a requested product quantity before validation.
type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func (r *Rental) Window() Window {
	return Window{Start: r.StartAt, End: r.EndAt}
}

// ComputeTotal sums quantity * frozen unit price over all items.
func (r *Rental) ComputeTotal() int64 {
	var total int64
	for _, it := range r.Items {
		total += it.Subtotal()
	}
	return total
}

func (it RentalItem) Subtotal() int64 {
	return it.Quantity * it.UnitPrice
}

// ProductIDs returns the distinct product ids referenced by the items.
func (r *Rental) ProductIDs() []int64 {
	seen := make(map[int64]struct{}, len(r.Items))
	var ids []int64
	for _, it := range r.Items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
