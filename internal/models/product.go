package models

import "time"

type Product struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Price       int64     `json:"price" yaml:"price"`
	Color       string    `json:"color" yaml:"color"`
	Stock       int64     `json:"stock" yaml:"stock"`
	ImageRef    string    `json:"image_ref" yaml:"image_ref"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// Availability is the stock picture of one product over a window.
type Availability struct {
	ProductID   int64  `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Color       string `json:"color"`
	ImageRef    string `json:"image_ref"`
	Window      Window `json:"window"`
	TotalStock  int64  `json:"total_stock"`
	Committed   int64  `json:"committed"`
	Available   int64  `json:"available"`
}
