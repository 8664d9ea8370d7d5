package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/jackc/pgx/v5"
)

const productColumns = `id, name, description, price, color, stock, image_ref, created_at, updated_at`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Color, &p.Stock,
		&p.ImageRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s queries) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := scanProduct(s.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s queries) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.q.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	var err error
	if p.ID != 0 {
		_, err = s.pool.Exec(ctx, `INSERT INTO products (`+productColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			p.ID, p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now)
		if err == nil {
			// keep the sequence ahead of explicitly seeded ids
			_, err = s.pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('products', 'id'),
				GREATEST((SELECT MAX(id) FROM products), 1))`)
		}
	} else {
		err = s.pool.QueryRow(ctx, `INSERT INTO products
			(name, description, price, color, stock, image_ref, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
			p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now).Scan(&p.ID)
	}
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	tag, err := s.q.Exec(ctx, `UPDATE products
		SET name = $2, description = $3, price = $4, color = $5, stock = $6, image_ref = $7, updated_at = $8
		WHERE id = $1`, p.ID, p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %d: %w", p.ID, pgx.ErrNoRows)
	}
	p.UpdatedAt = now
	return nil
}

func (s queries) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	var c models.Client
	err := s.q.QueryRow(ctx, `SELECT id, name, phone, email, address, created_at, updated_at
		FROM clients WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return &c, nil
}

func (s queries) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.q.QueryRow(ctx, `SELECT id, username, full_name, email, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO clients (name, phone, email, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`, c.Name, c.Phone, c.Email, c.Address, now).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (s *Store) ListClients(ctx context.Context) ([]*models.Client, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, phone, email, address, created_at, updated_at
		FROM clients ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []*models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO users (username, full_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4) RETURNING id`, u.Username, u.FullName, u.Email, now).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, full_name, email, created_at, updated_at
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClient(ctx context.Context, c *models.Client) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE clients SET name = $2, phone = $3, email = $4, address = $5, updated_at = $6
		WHERE id = $1`, c.ID, c.Name, c.Phone, c.Email, c.Address, now)
	if err != nil {
		return fmt.Errorf("update client %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("client %d: %w", c.ID, pgx.ErrNoRows)
	}
	c.UpdatedAt = now
	return nil
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `UPDATE users SET username = $2, full_name = $3, email = $4, updated_at = $5
		WHERE id = $1`, u.ID, u.Username, u.FullName, u.Email, now)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", u.ID, pgx.ErrNoRows)
	}
	u.UpdatedAt = now
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteUnreferenced(ctx, "products", `SELECT 1 FROM rental_items WHERE product_id = $1`, id)
}

func (s *Store) DeleteClient(ctx context.Context, id int64) error {
	return s.deleteUnreferenced(ctx, "clients", `SELECT 1 FROM rentals WHERE client_id = $1`, id)
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteUnreferenced(ctx, "users", `SELECT 1 FROM rentals WHERE user_id = $1`, id)
}

// deleteUnreferenced removes row id from table unless refQuery finds a row for it.
// A missing row is not an error.
func (s *Store) deleteUnreferenced(ctx context.Context, table, refQuery string, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND NOT EXISTS (`+refQuery+`)`, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s %d: %w", table, id, err)
	}
	if exists {
		return fmt.Errorf("%s %d: %w", table, id, domain.ErrInUse)
	}
	return nil
}
