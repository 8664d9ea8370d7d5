package models

import "time"

type Payment struct {
	ID        int64     `json:"id"`
	RentalID  int64     `json:"rental_id"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentSummary is the paid/pending picture for a rental.
type PaymentSummary struct {
	RentalID  int64        `json:"rental_id"`
	Total     int64        `json:"total"`
	TotalPaid int64        `json:"total_paid"`
	Pending   int64        `json:"pending"`
	Status    RentalStatus `json:"status"`
}

type DashboardStats struct {
	ToDeliver   int64 `json:"to_deliver"`
	ToPickUp    int64 `json:"to_pick_up"`
	MonthIncome int64 `json:"month_income"`
}
