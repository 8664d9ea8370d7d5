package service

import (
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

var (
	ErrEmptyRental   = errors.New("rental must contain at least one product")
	ErrInvalidWindow = errors.New("rental start must not be after its end")
)

// InvalidStatusError is produced by models.ParseRentalStatus.
type InvalidStatusError = models.InvalidStatusError

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

type EmptyRentalError struct{}

func (e *EmptyRentalError) Error() string { return ErrEmptyRental.Error() }
func (e *EmptyRentalError) Unwrap() error { return ErrEmptyRental }

type InvalidWindowError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("%s: start=%s end=%s", ErrInvalidWindow, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

func (e *InvalidWindowError) Unwrap() error { return ErrInvalidWindow }

type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

type InvalidQuantityError struct {
	ProductID int64
	Quantity  int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %d", e.Quantity, e.ProductID)
}

type InvalidTransitionError struct {
	From models.RentalStatus
	To   models.RentalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("rental status cannot change from %s to %s", e.From, e.To)
}

type InvalidAmountError struct {
	Amount int64
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("payment amount must be positive, got %d", e.Amount)
}

// InvalidFieldError rejects a malformed catalog or directory entry.
type InvalidFieldError struct {
	Field  string
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InUseError rejects deleting a catalog or directory entry that rentals reference.
type InUseError struct {
	Entity string
	ID     int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is referenced by rentals", e.Entity, e.ID)
}

func (e *InUseError) Unwrap() error { return domain.ErrInUse }

// StockBelowCommittedError rejects a stock cut under what active rentals already hold.
type StockBelowCommittedError struct {
	ProductID int64
	Stock     int64
	Committed int64
}

func (e *StockBelowCommittedError) Error() string {
	return fmt.Sprintf("stock %d for product %d is below the %d units held by active rentals",
		e.Stock, e.ProductID, e.Committed)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidationError reports whether err was caused by caller input.
func IsValidationError(err error) bool {
	var (
		empty      *EmptyRentalError
		window     *InvalidWindowError
		stock      *InsufficientStockError
		quantity   *InvalidQuantityError
		status     *InvalidStatusError
		transition *InvalidTransitionError
		amount     *InvalidAmountError
		field      *InvalidFieldError
	)
	return errors.As(err, &empty) ||
		errors.As(err, &window) ||
		errors.As(err, &stock) ||
		errors.As(err, &quantity) ||
		errors.As(err, &status) ||
		errors.As(err, &transition) ||
		errors.As(err, &amount) ||
		errors.As(err, &field)
}
