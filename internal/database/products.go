package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const productColumns = `id, name, description, price, color, stock, image_ref, created_at, updated_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Color, &p.Stock,
		&p.ImageRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s queries) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

func (s queries) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct inserts p. A non-zero p.ID is kept, which lets seeded catalogs
// use stable ids.
func (db *DB) CreateProduct(ctx context.Context, p *models.Product) error {
	now := utc(time.Now())
	var (
		res sql.Result
		err error
	)
	if p.ID != 0 {
		res, err = db.ExecContext(ctx, `INSERT INTO products (`+productColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now, now)
	} else {
		res, err = db.ExecContext(ctx, `INSERT INTO products
			(name, description, price, color, stock, image_ref, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now, now)
	}
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s queries) UpdateProduct(ctx context.Context, p *models.Product) error {
	now := utc(time.Now())
	res, err := s.q.ExecContext(ctx, `UPDATE products
		SET name = ?, description = ?, price = ?, color = ?, stock = ?, image_ref = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Color, p.Stock, p.ImageRef, now, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, sql.ErrNoRows)
	}
	p.UpdatedAt = now
	return nil
}

func (db *DB) DeleteProduct(ctx context.Context, id int64) error {
	return db.deleteUnreferenced(ctx, "products",
		`SELECT 1 FROM rental_items WHERE product_id = ?`, id)
}
