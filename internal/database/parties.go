package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"
)

func (s queries) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var c models.Client
	err := s.q.QueryRowContext(ctx, `SELECT id, name, phone, email, address, created_at, updated_at
		FROM clients WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client %d: %w", id, err)
	}
	return &c, nil
}

func (s queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.q.QueryRowContext(ctx, `SELECT id, username, full_name, email, created_at, updated_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

func (db *DB) CreateClient(ctx context.Context, c *models.Client) error {
	now := utc(time.Now())
	res, err := db.ExecContext(ctx, `INSERT INTO clients (name, phone, email, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, c.Name, c.Phone, c.Email, c.Address, now, now)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (db *DB) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, phone, email, address, created_at, updated_at
		FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, &c)
	}
	return clients, rows.Err()
}

func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	now := utc(time.Now())
	res, err := db.ExecContext(ctx, `INSERT INTO users (username, full_name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, u.Username, u.FullName, u.Email, now, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (db *DB) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, username, full_name, email, created_at, updated_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (db *DB) UpdateClient(ctx context.Context, c *models.Client) error {
	now := utc(time.Now())
	res, err := db.ExecContext(ctx, `UPDATE clients SET name = ?, phone = ?, email = ?, address = ?, updated_at = ?
		WHERE id = ?`, c.Name, c.Phone, c.Email, c.Address, now, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update client %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("client %d: %w", c.ID, sql.ErrNoRows)
	}
	c.UpdatedAt = now
	return nil
}

func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	now := utc(time.Now())
	res, err := db.ExecContext(ctx, `UPDATE users SET username = ?, full_name = ?, email = ?, updated_at = ?
		WHERE id = ?`, u.Username, u.FullName, u.Email, now, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", u.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, sql.ErrNoRows)
	}
	u.UpdatedAt = now
	return nil
}

func (db *DB) DeleteClient(ctx context.Context, id int64) error {
	return db.deleteUnreferenced(ctx, "clients", `SELECT 1 FROM rentals WHERE client_id = ?`, id)
}

func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return db.deleteUnreferenced(ctx, "users", `SELECT 1 FROM rentals WHERE user_id = ?`, id)
}

// deleteUnreferenced removes row id from table unless refQuery finds a row for it.
// A missing row is not an error.
func (db *DB) deleteUnreferenced(ctx context.Context, table, refQuery string, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ? AND NOT EXISTS (`+refQuery+`)`, id, id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s %d: %w", table, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s %d: %w", table, id, err)
	}
	if exists > 0 {
		return fmt.Errorf("%s %d: %w", table, id, domain.ErrInUse)
	}
	return nil
}
