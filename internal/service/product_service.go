package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SizeInput is one size of a product being created
type SizeInput struct {
	SizeValue string
	Stock     int
}

// CreateProductInput carries a new catalog entry with its sizes
type CreateProductInput struct {
	Name         string
	AltNames     string
	Description  string
	Price        decimal.Decimal
	MainCategory domain.Category
	Color        string
	Country      string
	Images       []string
	Sizes        []SizeInput
}

// ProductPage is one page of a product listing
type ProductPage struct {
	Products []*domain.Product
	Total    int
	Page     int
	PageSize int
}

// ProductService defines the interface for catalog business logic
type ProductService interface {
	CreateProduct(ctx context.Context, userID int64, in CreateProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error)
}

type productService struct {
	products   repository.ProductRepository
	authorizer Authorizer
	logger     *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, authorizer Authorizer, logger *zap.Logger) ProductService {
	return &productService{
		products:   products,
		authorizer: authorizer,
		logger:     logger,
	}
}

func (s *productService) CreateProduct(ctx context.Context, userID int64, in CreateProductInput) (*domain.Product, error) {
	if userID <= 0 {
		return nil, domain.Unauthorized("authentication required")
	}
	ok, err := s.authorizer.HasRole(ctx, userID, domain.RoleAdmin)
	if err != nil {
		return nil, domain.Internal("failed to check role", err)
	}
	if !ok {
		return nil, domain.Forbidden("Only admins can create products")
	}

	if err := validateProduct(&in); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Name:         in.Name,
		AltNames:     in.AltNames,
		Description:  in.Description,
		Price:        in.Price.Round(2),
		MainCategory: in.MainCategory,
		Color:        in.Color,
		Country:      in.Country,
		Images:       in.Images,
		Active:       true,
	}
	for _, size := range in.Sizes {
		product.Sizes = append(product.Sizes, domain.ProductSize{
			SizeValue: size.SizeValue,
			Stock:     size.Stock,
		})
	}

	if err := s.products.Create(ctx, product); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateProductSize):
			return nil, domain.Conflict("product sizes must be unique")
		case errors.Is(err, repository.ErrInvalidProduct):
			return nil, domain.BadRequest("product violates catalog constraints")
		}
		return nil, domain.Internal("failed to create product", err)
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int("sizes", len(product.Sizes)),
	)

	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.BadRequest("invalid product id")
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound("product %d not found", id)
		}
		return nil, domain.Internal("failed to get product", err)
	}
	return product, nil
}

func (s *productService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*ProductPage, error) {
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, domain.BadRequest("unknown category %q", *filter.Category)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	filter.ActiveOnly = true

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, domain.Internal("failed to list products", err)
	}

	return &ProductPage{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func validateProduct(in *CreateProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if n := utf8.RuneCountInString(in.Name); n < 2 || n > 100 {
		return domain.BadRequest("name must be between 2 and 100 characters")
	}
	if !in.Price.IsPositive() {
		return domain.BadRequest("price must be greater than 0")
	}
	if !in.MainCategory.Valid() {
		return domain.BadRequest("main_category must be one of men, women, child")
	}
	for _, image := range in.Images {
		u, err := url.Parse(image)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.BadRequest("image %q is not an http(s) URL", image)
		}
	}
	if len(in.Sizes) == 0 {
		return domain.BadRequest("at least one size is required")
	}

	seen := make(map[string]bool, len(in.Sizes))
	for i := range in.Sizes {
		size := &in.Sizes[i]
		size.SizeValue = strings.TrimSpace(size.SizeValue)
		if n := utf8.RuneCountInString(size.SizeValue); n < 1 || n > 20 {
			return domain.BadRequest("size_value must be between 1 and 20 characters")
		}
		if size.Stock < 0 {
			return domain.BadRequest("stock for size %s must not be negative", size.SizeValue)
		}
		if seen[size.SizeValue] {
			return domain.Conflict("size %s is listed more than once", size.SizeValue)
		}
		seen[size.SizeValue] = true
	}

	return nil
}
