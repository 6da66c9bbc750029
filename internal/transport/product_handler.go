package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SizeRequest is one size of a product being created
type SizeRequest struct {
	SizeValue string `json:"size_value" validate:"required,max=20"`
	Stock     *int   `json:"stock" validate:"required,gte=0"`
}

// CreateProductRequest represents the product creation payload
type CreateProductRequest struct {
	Name         string          `json:"name" validate:"required,min=2,max=100"`
	AltNames     string          `json:"alt_names" validate:"max=255"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	MainCategory string          `json:"main_category" validate:"required,oneof=men women child"`
	Color        string          `json:"color" validate:"max=50"`
	Country      string          `json:"country" validate:"max=100"`
	Images       []string        `json:"images" validate:"omitempty,dive,http_url"`
	Sizes        []SizeRequest   `json:"sizes" validate:"required,min=1,unique=SizeValue,dive"`
}

func (r CreateProductRequest) input() service.CreateProductInput {
	in := service.CreateProductInput{
		Name:         r.Name,
		AltNames:     r.AltNames,
		Description:  r.Description,
		Price:        r.Price,
		MainCategory: domain.Category(r.MainCategory),
		Color:        r.Color,
		Country:      r.Country,
		Images:       r.Images,
	}
	for _, size := range r.Sizes {
		in.Sizes = append(in.Sizes, service.SizeInput{SizeValue: size.SizeValue, Stock: *size.Stock})
	}
	return in
}

// SizeResponse is one size of a product with its stock
type SizeResponse struct {
	ID        int64  `json:"size_id"`
	SizeValue string `json:"size_value"`
	Stock     int    `json:"stock"`
}

// ProductResponse represents a catalog entry
type ProductResponse struct {
	ID           int64           `json:"product_id"`
	Name         string          `json:"name"`
	AltNames     string          `json:"alt_names,omitempty"`
	Description  string          `json:"description,omitempty"`
	Price        json.Number     `json:"price"`
	MainCategory domain.Category `json:"main_category"`
	Color        string          `json:"color,omitempty"`
	Country      string          `json:"country,omitempty"`
	Images       []string        `json:"images"`
	Active       bool            `json:"is_active"`
	Sizes        []SizeResponse  `json:"sizes"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProductListResponse is one page of products
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func productOf(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:           p.ID,
		Name:         p.Name,
		AltNames:     p.AltNames,
		Description:  p.Description,
		Price:        money(p.Price),
		MainCategory: p.MainCategory,
		Color:        p.Color,
		Country:      p.Country,
		Images:       p.Images,
		Active:       p.Active,
		Sizes:        make([]SizeResponse, 0, len(p.Sizes)),
		CreatedAt:    p.CreatedAt,
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	for _, s := range p.Sizes {
		resp.Sizes = append(resp.Sizes, SizeResponse{ID: s.ID, SizeValue: s.SizeValue, Stock: s.Stock})
	}
	return resp
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, guards Guards) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
		r.With(guards.Auth, guards.RequireRole(domain.RoleAdmin)).Post("/", h.CreateProduct)
	})
}

// CreateProduct handles an admin adding a product with its sizes
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.GetUserID(r.Context())

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithRequestError(w, err)
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), userID, req.input())
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, productOf(product))
}

// GetProduct returns a product with its sizes
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.GetProduct(r.Context(), pathID(r, "id"))
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, productOf(product))
}

// ListProducts returns active products. Supported query parameters are
// category, page, page_size, sort_by and sort_order.
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.ProductFilter{
		SortBy:    q.Get("sort_by"),
		SortOrder: repository.SortOrder(strings.ToUpper(q.Get("sort_order"))),
	}
	if c := q.Get("category"); c != "" {
		category := domain.Category(c)
		filter.Category = &category
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	page, err := h.productService.ListProducts(r.Context(), filter)
	if err != nil {
		middleware.RespondWithDomainError(w, r, err, h.logger)
		return
	}

	resp := ProductListResponse{
		Products: make([]ProductResponse, 0, len(page.Products)),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}
	for _, p := range page.Products {
		resp.Products = append(resp.Products, productOf(p))
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}
