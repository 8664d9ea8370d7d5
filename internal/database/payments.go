package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const paymentColumns = `id, rental_id, amount, paid_at, note, created_at`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.RentalID, &p.Amount, &p.PaidAt, &p.Note, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", id, err)
	}
	return p, nil
}

func (db *DB) ListPaymentsByRental(ctx context.Context, rentalID int64) ([]*models.Payment, error) {
	return db.listPayments(ctx, `WHERE rental_id = ?`, rentalID)
}

func (db *DB) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error) {
	return db.listPayments(ctx, `WHERE paid_at >= ? AND paid_at < ?`, utc(from), utc(to))
}

func (db *DB) listPayments(ctx context.Context, where string, args ...any) ([]*models.Payment, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments `+where+` ORDER BY paid_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (db *DB) SumPaymentsByRental(ctx context.Context, rentalID int64) (int64, error) {
	var sum int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE rental_id = ?`, rentalID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments for rental %d: %w", rentalID, err)
	}
	return sum, nil
}

func (db *DB) SumPaymentsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var sum int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE paid_at >= ? AND paid_at < ?`, utc(from), utc(to)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum payments: %w", err)
	}
	return sum, nil
}

func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	now := utc(time.Now())
	res, err := db.ExecContext(ctx, `INSERT INTO payments (rental_id, amount, paid_at, note, created_at)
		VALUES (?, ?, ?, ?, ?)`, p.RentalID, p.Amount, utc(p.PaidAt), p.Note, now)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

func (db *DB) DeletePayment(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete payment %d: %w", id, err)
	}
	return nil
}
