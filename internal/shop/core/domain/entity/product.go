package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNegativePrice = errors.New("price must not be negative")
	ErrNegativeStock = errors.New("stock must not be negative")
)

// Product is a catalog item.
type Product struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features"`
	// ImageRef is an absolute URL or a storage key under {api}/uploads/.
	ImageRef string `json:"image_url,omitempty"`
}

// Validate checks the non-negative invariants.
func (p Product) Validate() error {
	if p.Price < 0 {
		return fmt.Errorf("product %q: %w", p.Name, ErrNegativePrice)
	}
	if p.Stock < 0 {
		return fmt.Errorf("product %q: %w", p.Name, ErrNegativeStock)
	}
	return nil
}

// Snapshot returns the display fields a cart line needs.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price, ImageRef: p.ImageRef}
}

// ProductSnapshot is the denormalized part of a product copied into cart lines.
type ProductSnapshot struct {
	ID       string  `json:"product_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	ImageRef string  `json:"image,omitempty"`
}
