package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, rental_id, amount, paid_at, note, created_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.RentalID, &p.Amount, &p.PaidAt, &p.Note, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListPaymentsByRental(ctx context.Context, rentalID int64) ([]*models.Payment, error) {
	return s.listPayments(ctx, `WHERE rental_id = $1`, rentalID)
}

func (s *Store) ListPaymentsBetween(ctx context.Context, from, to time.Time) ([]*models.Payment, error) {
	return s.listPayments(ctx, `WHERE paid_at >= $1 AND paid_at < $2`, from, to)
}

func (s *Store) listPayments(ctx context.Context, where string, args ...any) ([]*models.Payment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments `+where+` ORDER BY paid_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SumPaymentsByRental(ctx context.Context, rentalID int64) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM payments WHERE rental_id = $1`,
		rentalID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum payments for rental %d: %w", rentalID, err)
	}
	return sum, nil
}

func (s *Store) SumPaymentsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0)::bigint FROM payments
		WHERE paid_at >= $1 AND paid_at < $2`, from, to).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	return sum, nil
}

func (s *Store) CreatePayment(ctx context.Context, p *models.Payment) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO payments (rental_id, amount, paid_at, note, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`, p.RentalID, p.Amount, p.PaidAt, p.Note, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (s *Store) DeletePayment(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}
	return nil
}
