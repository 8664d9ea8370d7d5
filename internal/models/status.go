package models

import (
	"fmt"
	"strings"
)

// RentalStatus is the lifecycle state of a rental.
type RentalStatus string

const (
	StatusCreated   RentalStatus = "CREATED"
	StatusDelivered RentalStatus = "DELIVERED"
	StatusPickedUp  RentalStatus = "PICKED_UP"
	StatusCancelled RentalStatus = "CANCELLED"
)

var allStatuses = []RentalStatus{StatusCreated, StatusDelivered, StatusPickedUp, StatusCancelled}

// InvalidStatusError is returned when a value is not part of the status vocabulary.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid rental status: %q", e.Value)
}

// ParseRentalStatus maps user input onto the closed status set.
func ParseRentalStatus(raw string) (RentalStatus, error) {
	candidate := RentalStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", &InvalidStatusError{Value: raw}
}

// ActiveStatuses are the statuses that still hold inventory.
func ActiveStatuses() []RentalStatus {
	return []RentalStatus{StatusCreated, StatusDelivered}
}

// RevenueStatuses are the statuses counted as income.
func RevenueStatuses() []RentalStatus {
	return []RentalStatus{StatusCreated, StatusDelivered, StatusPickedUp}
}

func AllStatuses() []RentalStatus {
	out := make([]RentalStatus, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s RentalStatus) IsActive() bool {
	return s == StatusCreated || s == StatusDelivered
}

func (s RentalStatus) IsTerminal() bool {
	return s == StatusPickedUp || s == StatusCancelled
}

func (s RentalStatus) String() string {
	return string(s)
}

// StatusStrings converts statuses into plain strings for SQL parameters.
func StatusStrings(statuses []RentalStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
