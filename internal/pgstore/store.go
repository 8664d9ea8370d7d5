// Package pgstore is the PostgreSQL implementation of domain.Store.
//
// Reservations lock the touched product rows with SELECT ... FOR UPDATE in
// ascending id order, which serializes overlapping writers across every API
// process connected to the same database.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrConcurrentModification is returned when a rental row changed under an update.
var ErrConcurrentModification = errors.New("concurrent modification detected")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

type Store struct {
	queries
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// Connect opens a pool and ensures the schema exists.
func Connect(ctx context.Context, cfg config.PostgresConfig, logger *zerolog.Logger) (*Store, error) {
	return ConnectDSN(ctx, cfg.DSN(), int32(cfg.MaxConnections), logger)
}

func ConnectDSN(ctx context.Context, dsn string, maxConns int32, logger *zerolog.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MinConns = 1
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{queries: queries{q: pool}, pool: pool, logger: logger}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info().Str("host", poolCfg.ConnConfig.Host).Str("database", poolCfg.ConnConfig.Database).
		Msg("postgres store initialized")
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price BIGINT NOT NULL DEFAULT 0,
			color TEXT NOT NULL DEFAULT '',
			stock BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0),
			image_ref TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rentals (
			id BIGSERIAL PRIMARY KEY,
			start_at TIMESTAMPTZ NOT NULL,
			end_at TIMESTAMPTZ NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			client_id BIGINT NOT NULL REFERENCES clients(id),
			user_id BIGINT NOT NULL REFERENCES users(id),
			total BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rental_items (
			id BIGSERIAL PRIMARY KEY,
			rental_id BIGINT NOT NULL REFERENCES rentals(id) ON DELETE CASCADE,
			product_id BIGINT NOT NULL REFERENCES products(id),
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			unit_price BIGINT NOT NULL,
			UNIQUE (rental_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGSERIAL PRIMARY KEY,
			rental_id BIGINT NOT NULL REFERENCES rentals(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			paid_at TIMESTAMPTZ NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_status ON rentals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_window ON rentals(start_at, end_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rental_items_product ON rental_items(product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_rental ON payments(rental_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// RunInTx runs fn in a READ COMMITTED transaction. Stock checks stay correct
// because writers first take the product row locks via LockProducts.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &txStore{queries: queries{q: tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
