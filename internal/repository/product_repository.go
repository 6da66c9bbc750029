package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrDuplicateProductSize = errors.New("product already has this size")
	ErrInvalidProduct       = errors.New("product violates catalog constraints")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductFilter narrows and pages a product listing
type ProductFilter struct {
	Category   *domain.Category
	ActiveOnly bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  SortOrder
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `product_id, name, alt_names, description, price, main_category, color, country, images, is_active, created_at, updated_at`

// Create inserts a product and all of its sizes in one transaction
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	images, err := json.Marshal(nonNilImages(product.Images))
	if err != nil {
		return fmt.Errorf("failed to encode product images: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (name, alt_names, description, price, main_category, color, country, images, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING product_id, created_at, updated_at
	`

	err = tx.QueryRowContext(
		ctx,
		query,
		product.Name,
		product.AltNames,
		product.Description,
		product.Price,
		product.MainCategory,
		product.Color,
		product.Country,
		string(images),
		product.Active,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if constraintViolation(err, pgCheckViolation, "") {
			return ErrInvalidProduct
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	for i := range product.Sizes {
		size := &product.Sizes[i]
		size.ProductID = product.ID

		err := tx.QueryRowContext(
			ctx,
			`INSERT INTO product_sizes (product_id, size_value, stock) VALUES ($1, $2, $3) RETURNING size_id`,
			size.ProductID,
			size.SizeValue,
			size.Stock,
		).Scan(&size.ID)
		if err != nil {
			if constraintViolation(err, pgUniqueViolation, "product_sizes_product_size_key") {
				return ErrDuplicateProductSize
			}
			if constraintViolation(err, pgCheckViolation, "") {
				return ErrInvalidProduct
			}
			return fmt.Errorf("failed to create product size: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}

	return nil
}

// FindByID retrieves a product with its sizes
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE product_id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	sizes, err := r.sizesFor(ctx, []int64{product.ID})
	if err != nil {
		return nil, err
	}
	product.Sizes = sizes[product.ID]

	return product, nil
}

// List retrieves products with optional category filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price":      true,
		"created_at": true,
	}

	sortBy := filter.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	whereClause := "WHERE TRUE"
	args := []interface{}{}
	argIndex := 1

	if filter.Category != nil {
		whereClause += fmt.Sprintf(" AND main_category = $%d", argIndex)
		args = append(args, *filter.Category)
		argIndex++
	}
	if filter.ActiveOnly {
		whereClause += " AND is_active = TRUE"
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s, product_id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	ids := []int64{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
		ids = append(ids, product.ID)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	sizes, err := r.sizesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for _, product := range products {
		product.Sizes = sizes[product.ID]
	}

	return products, total, nil
}

func (r *productRepository) sizesFor(ctx context.Context, productIDs []int64) (map[int64][]domain.ProductSize, error) {
	out := make(map[int64][]domain.ProductSize, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT size_id, product_id, size_value, stock
		FROM product_sizes
		WHERE product_id = ANY($1)
		ORDER BY product_id, size_id
	`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list product sizes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var size domain.ProductSize
		if err := rows.Scan(&size.ID, &size.ProductID, &size.SizeValue, &size.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product size: %w", err)
		}
		out[size.ProductID] = append(out[size.ProductID], size)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product sizes: %w", err)
	}

	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var images []byte
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.AltNames,
		&product.Description,
		&product.Price,
		&product.MainCategory,
		&product.Color,
		&product.Country,
		&images,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(images, &product.Images); err != nil {
		return nil, fmt.Errorf("failed to decode product images: %w", err)
	}

	return product, nil
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
