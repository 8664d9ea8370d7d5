package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const rentalColumns = `id, start_at, end_at, address, status, client_id, user_id, total, version, created_at, updated_at`

func scanRental(row rowScanner) (*models.Rental, error) {
	var (
		r      models.Rental
		status string
	)
	if err := row.Scan(&r.ID, &r.StartAt, &r.EndAt, &r.Address, &status, &r.ClientID, &r.UserID,
		&r.Total, &r.Version, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = models.RentalStatus(status)
	return &r, nil
}

func (s queries) GetRental(ctx context.Context, id int64) (*models.Rental, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = ?`, id)
	r, err := scanRental(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental %d: %w", id, err)
	}

	items, err := s.itemsFor(ctx, `WHERE rental_id = ?`, id)
	if err != nil {
		return nil, err
	}
	r.Items = items[id]
	return r, nil
}

func (s queries) ListRentals(ctx context.Context) ([]*models.Rental, error) {
	return s.listRentals(ctx, ``)
}

func (s queries) ListRentalsStartingBetween(ctx context.Context, from, to time.Time) ([]*models.Rental, error) {
	return s.listRentals(ctx, `WHERE start_at >= ? AND start_at < ?`, utc(from), utc(to))
}

func (s queries) listRentals(ctx context.Context, where string, args ...any) ([]*models.Rental, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+rentalColumns+` FROM rentals `+where+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}

	var rentals []*models.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(rentals) == 0 {
		return rentals, nil
	}

	itemWhere := `WHERE rental_id IN (SELECT id FROM rentals ` + where + `)`
	items, err := s.itemsFor(ctx, itemWhere, args...)
	if err != nil {
		return nil, err
	}
	for _, r := range rentals {
		r.Items = items[r.ID]
	}
	return rentals, nil
}

// itemsFor loads rental items grouped by rental id.
func (s queries) itemsFor(ctx context.Context, where string, args ...any) (map[int64][]models.RentalItem, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, rental_id, product_id, quantity, unit_price
		FROM rental_items `+where+` ORDER BY rental_id, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load rental items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.RentalItem)
	for rows.Next() {
		var it models.RentalItem
		if err := rows.Scan(&it.ID, &it.RentalID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan rental item: %w", err)
		}
		out[it.RentalID] = append(out[it.RentalID], it)
	}
	return out, rows.Err()
}

func (s queries) CommittedQuantity(
	ctx context.Context,
	productID int64,
	w models.Window,
	statuses []models.RentalStatus,
	excludeRentalID int64,
) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	in, statusVals := statusArgs(statuses)

	args := []any{productID}
	args = append(args, statusVals...)
	args = append(args, utc(w.End), utc(w.Start), excludeRentalID)

	var committed int64
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(ri.quantity), 0)
		FROM rental_items ri
		JOIN rentals r ON r.id = ri.rental_id
		WHERE ri.product_id = ?
		AND r.status IN `+in+`
		AND r.start_at <= ? AND r.end_at >= ?
		AND r.id != ?`, args...).Scan(&committed)
	if err != nil {
		return 0, fmt.Errorf("failed to sum committed quantity for product %d: %w", productID, err)
	}
	return committed, nil
}

func (s queries) CountRentalsByStatus(ctx context.Context, status models.RentalStatus) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rentals WHERE status = ?`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rentals: %w", err)
	}
	return n, nil
}

func (s queries) SumRentalTotals(ctx context.Context, from, to time.Time, statuses []models.RentalStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	in, statusVals := statusArgs(statuses)
	args := append([]any{utc(from), utc(to)}, statusVals...)

	var sum int64
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(SUM(total), 0) FROM rentals
		WHERE start_at >= ? AND start_at < ? AND status IN `+in, args...).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum rental totals: %w", err)
	}
	return sum, nil
}
