package domain

import (
	"context"
	"time"

	"rentalhub/internal/models"
)

// Getters return (nil, nil) when the row does not exist.

type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
}

type ClientDirectory interface {
	GetClient(ctx context.Context, id int64) (*models.Client, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type RentalReader interface {
	GetRental(ctx context.Context, id int64) (*models.Rental, error)
	ListRentals(ctx context.Context) ([]*models.Rental, error)
	// CommittedQuantity sums item quantities of rentals in the given statuses whose
	// window overlaps w. excludeRentalID == 0 disables the exclusion.
	CommittedQuantity(ctx context.Context, productID int64, w models.Window, statuses []models.RentalStatus, excludeRentalID int64) (int64, error)
	CountRentalsByStatus(ctx context.Context, status models.RentalStatus) (int64, error)
	// SumRentalTotals sums totals of rentals starting in [from, to).
	SumRentalTotals(ctx context.Context, from, to time.Time, statuses []models.RentalStatus) (int64, error)
	ListRentalsStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Rental, error)
}

type PaymentStore interface {
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	ListPaymentsByRental(ctx context.Context, rentalID int64) ([]*models.Payment, error)
	SumPaymentsByRental(ctx context.Context, rentalID int64) (int64, error)
	// ListPaymentsBetween and SumPaymentsBetween use from <= paid_at < to.
	ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error)
	SumPaymentsBetween(ctx context.Context, from, to time.Time) (int64, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	DeletePayment(ctx context.Context, id int64) error
}

// Tx is a unit of work; reads through it observe the transaction's snapshot.
type Tx interface {
	ProductCatalog
	ClientDirectory
	UserDirectory
	RentalReader
	// LockProducts blocks concurrent reservations of the given products until the tx ends.
	LockProducts(ctx context.Context, ids []int64) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	// SaveRental inserts when ID == 0, otherwise updates and replaces all items.
	SaveRental(ctx context.Context, r *models.Rental) error
	// UpdateRentalStatus fails with a concurrent-modification error when the row's
	// version no longer equals version.
	UpdateRentalStatus(ctx context.Context, id, version int64, status models.RentalStatus) error
	// DeleteRental removes the rental together with its items and payments.
	DeleteRental(ctx context.Context, id int64) error
}

type Store interface {
	ProductCatalog
	ClientDirectory
	UserDirectory
	RentalReader
	PaymentStore
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	CreateClient(ctx context.Context, c *models.Client) error
	UpdateClient(ctx context.Context, c *models.Client) error
	ListClients(ctx context.Context) ([]*models.Client, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context) ([]*models.User, error)
	// DeleteProduct, DeleteClient and DeleteUser return ErrInUse while any rental
	// points at the row, whatever its status.
	DeleteProduct(ctx context.Context, id int64) error
	DeleteClient(ctx context.Context, id int64) error
	DeleteUser(ctx context.Context, id int64) error
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Locker serializes work on a key across goroutines (and processes for shared backends).
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlocker, error)
}

type Unlocker interface {
	Release(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
