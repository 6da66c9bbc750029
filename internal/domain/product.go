package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the main catalog section a product is listed under
type Category string

const (
	CategoryMen   Category = "men"
	CategoryWomen Category = "women"
	CategoryChild Category = "child"
)

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	switch c {
	case CategoryMen, CategoryWomen, CategoryChild:
		return true
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID           int64           `json:"product_id" db:"product_id"`
	Name         string          `json:"name" db:"name"`
	AltNames     string          `json:"alt_names" db:"alt_names"`
	Description  string          `json:"description" db:"description"`
	Price        decimal.Decimal `json:"price" db:"price"`
	MainCategory Category        `json:"main_category" db:"main_category"`
	Color        string          `json:"color" db:"color"`
	Country      string          `json:"country" db:"country"`
	Images       []string        `json:"images" db:"images"`
	Active       bool            `json:"is_active" db:"is_active"`
	Sizes        []ProductSize   `json:"sizes"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductSize holds the stock of one size of a product.
// Stock is never negative; it only moves when orders are placed or cancelled.
type ProductSize struct {
	ID        int64  `json:"size_id" db:"size_id"`
	ProductID int64  `json:"product_id" db:"product_id"`
	SizeValue string `json:"size_value" db:"size_value"`
	Stock     int    `json:"stock" db:"stock"`
}

// SizedProduct is a product joined with one of its sizes, as seen while
// reserving stock for an order line.
type SizedProduct struct {
	ProductID   int64
	ProductName string
	UnitPrice   decimal.Decimal
	SizeID      int64
	SizeValue   string
	Stock       int
}
