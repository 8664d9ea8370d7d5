package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"

	"github.com/jackc/pgx/v5"
)

const rentalColumns = `id, start_at, end_at, address, status, client_id, user_id, total, version, created_at, updated_at`

func scanRental(row pgx.Row) (*models.Rental, error) {
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
	r, err := scanRental(s.q.QueryRow(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rental %d: %w", id, err)
	}

	items, err := s.itemsFor(ctx, []int64{id})
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
	return s.listRentals(ctx, `WHERE start_at >= $1 AND start_at < $2`, from, to)
}

func (s queries) listRentals(ctx context.Context, where string, args ...any) ([]*models.Rental, error) {
	rows, err := s.q.Query(ctx, `SELECT `+rentalColumns+` FROM rentals `+where+` ORDER BY start_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list rentals: %w", err)
	}
	var (
		rentals []*models.Rental
		ids     []int64
	)
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rentals = append(rentals, r)
		ids = append(ids, r.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return rentals, nil
	}

	items, err := s.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range rentals {
		r.Items = items[r.ID]
	}
	return rentals, nil
}

func (s queries) itemsFor(ctx context.Context, rentalIDs []int64) (map[int64][]models.RentalItem, error) {
	rows, err := s.q.Query(ctx, `SELECT id, rental_id, product_id, quantity, unit_price
		FROM rental_items WHERE rental_id = ANY($1) ORDER BY rental_id, id`, rentalIDs)
	if err != nil {
		return nil, fmt.Errorf("load rental items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.RentalItem, len(rentalIDs))
	for rows.Next() {
		var it models.RentalItem
		if err := rows.Scan(&it.ID, &it.RentalID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
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
	var committed int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(ri.quantity), 0)::bigint
		FROM rental_items ri
		JOIN rentals r ON r.id = ri.rental_id
		WHERE ri.product_id = $1
		AND r.status = ANY($2)
		AND r.start_at <= $3 AND r.end_at >= $4
		AND r.id <> $5`,
		productID, models.StatusStrings(statuses), w.End, w.Start, excludeRentalID).Scan(&committed)
	if err != nil {
		return 0, fmt.Errorf("committed quantity for product %d: %w", productID, err)
	}
	return committed, nil
}

func (s queries) CountRentalsByStatus(ctx context.Context, status models.RentalStatus) (int64, error) {
	var n int64
	if err := s.q.QueryRow(ctx, `SELECT COUNT(*) FROM rentals WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rentals: %w", err)
	}
	return n, nil
}

func (s queries) SumRentalTotals(ctx context.Context, from, to time.Time, statuses []models.RentalStatus) (int64, error) {
	var sum int64
	err := s.q.QueryRow(ctx, `SELECT COALESCE(SUM(total), 0)::bigint FROM rentals
		WHERE start_at >= $1 AND start_at < $2 AND status = ANY($3)`,
		from, to, models.StatusStrings(statuses)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum rental totals: %w", err)
	}
	return sum, nil
}
