package pgstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rentalhub/internal/models"

	"github.com/jackc/pgx/v5"
)

type txStore struct {
	queries
	tx pgx.Tx
}

// LockProducts takes row locks on the products in ascending id order.
func (t *txStore) LockProducts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.tx.Query(ctx, `SELECT id FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	rows.Close()
	return rows.Err()
}

func (t *txStore) SaveRental(ctx context.Context, r *models.Rental) error {
	if r.ID == 0 {
		return t.insertRental(ctx, r)
	}

	tag, err := t.tx.Exec(ctx, `UPDATE rentals
		SET start_at = $2, end_at = $3, address = $4, status = $5, client_id = $6, user_id = $7,
			total = $8, version = version + 1, updated_at = $9
		WHERE id = $1 AND version = $10`,
		r.ID, r.StartAt, r.EndAt, r.Address, string(r.Status), r.ClientID, r.UserID,
		r.Total, r.UpdatedAt, r.Version)
	if err != nil {
		return fmt.Errorf("update rental %d: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	r.Version++

	if _, err := t.tx.Exec(ctx, `DELETE FROM rental_items WHERE rental_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear rental items: %w", err)
	}
	return t.insertItems(ctx, r)
}

func (t *txStore) insertRental(ctx context.Context, r *models.Rental) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	err := t.tx.QueryRow(ctx, `INSERT INTO rentals
		(start_at, end_at, address, status, client_id, user_id, total, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9) RETURNING id`,
		r.StartAt, r.EndAt, r.Address, string(r.Status), r.ClientID, r.UserID, r.Total,
		r.CreatedAt, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("create rental: %w", err)
	}
	r.Version = 1
	return t.insertItems(ctx, r)
}

func (t *txStore) insertItems(ctx context.Context, r *models.Rental) error {
	for i := range r.Items {
		it := &r.Items[i]
		it.RentalID = r.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO rental_items (rental_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4) RETURNING id`, it.RentalID, it.ProductID, it.Quantity, it.UnitPrice).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert rental item for product %d: %w", it.ProductID, err)
		}
	}
	return nil
}

func (t *txStore) UpdateRentalStatus(ctx context.Context, id, version int64, status models.RentalStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE rentals SET status = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4`,
		id, string(status), time.Now().UTC(), version)
	if err != nil {
		return fmt.Errorf("update rental status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txStore) DeleteRental(ctx context.Context, id int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM rentals WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete rental %d: %w", id, err)
	}
	return nil
}
