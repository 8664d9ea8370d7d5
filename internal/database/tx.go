package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

type txStore struct {
	queries
	tx *sql.Tx
}

// RunInTx runs fn inside BEGIN IMMEDIATE. fn must only use the tx it is
// given: the pool has a single connection.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(ctx, &txStore{queries: queries{q: tx}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockProducts is a no-op: the immediate transaction already holds the
// database write lock.
func (t *txStore) LockProducts(context.Context, []int64) error {
	return nil
}

func (t *txStore) SaveRental(ctx context.Context, r *models.Rental) error {
	if r.ID == 0 {
		return t.insertRental(ctx, r)
	}

	res, err := t.tx.ExecContext(ctx, `UPDATE rentals
		SET start_at = ?, end_at = ?, address = ?, status = ?, client_id = ?, user_id = ?,
			total = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		utc(r.StartAt), utc(r.EndAt), r.Address, string(r.Status), r.ClientID, r.UserID,
		r.Total, utc(r.UpdatedAt), r.ID, r.Version)
	if err != nil {
		return fmt.Errorf("failed to update rental %d: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return ErrConcurrentModification
	}
	r.Version++

	if _, err := t.tx.ExecContext(ctx, `DELETE FROM rental_items WHERE rental_id = ?`, r.ID); err != nil {
		return fmt.Errorf("failed to clear rental items: %w", err)
	}
	return t.insertItems(ctx, r)
}

func (t *txStore) insertRental(ctx context.Context, r *models.Rental) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO rentals
		(start_at, end_at, address, status, client_id, user_id, total, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		utc(r.StartAt), utc(r.EndAt), r.Address, string(r.Status), r.ClientID, r.UserID,
		r.Total, utc(r.CreatedAt), utc(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create rental: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	r.ID = id
	r.Version = 1
	return t.insertItems(ctx, r)
}

func (t *txStore) insertItems(ctx context.Context, r *models.Rental) error {
	for i := range r.Items {
		it := &r.Items[i]
		it.RentalID = r.ID
		res, err := t.tx.ExecContext(ctx, `INSERT INTO rental_items (rental_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?)`, it.RentalID, it.ProductID, it.Quantity, it.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert rental item for product %d: %w", it.ProductID, err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

func (t *txStore) UpdateRentalStatus(ctx context.Context, id, version int64, status models.RentalStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE rentals SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`, string(status), utc(time.Now()), id, version)
	if err != nil {
		return fmt.Errorf("failed to update rental status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (t *txStore) DeleteRental(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM rentals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rental %d: %w", id, err)
	}
	return nil
}
