package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProductService struct {
	created service.CreateProductInput
	filter  repository.ProductFilter
}

func (s *stubProductService) CreateProduct(ctx context.Context, userID int64, in service.CreateProductInput) (*domain.Product, error) {
	s.created = in
	p := &domain.Product{ID: 1, Name: in.Name, Price: in.Price, MainCategory: in.MainCategory, Active: true}
	for i, size := range in.Sizes {
		p.Sizes = append(p.Sizes, domain.ProductSize{ID: int64(i + 1), ProductID: 1, SizeValue: size.SizeValue, Stock: size.Stock})
	}
	return p, nil
}

func (s *stubProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if id != 1 {
		return nil, domain.NotFound("product %d not found", id)
	}
	return &domain.Product{ID: 1, Name: "Linen Shirt", Price: decimal.RequireFromString("49.9")}, nil
}

func (s *stubProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) (*service.ProductPage, error) {
	s.filter = filter
	return &service.ProductPage{Products: []*domain.Product{}, Page: 1, PageSize: 20}, nil
}

func TestCreateProduct_AdminOnly(t *testing.T) {
	body := `{"name":"Linen Shirt","price":"49.90","main_category":"men",
		"images":["https://cdn.example.com/a.jpg"],
		"sizes":[{"size_value":"M","stock":5},{"size_value":"L","stock":0}]}`

	svc := &stubProductService{}
	roles := map[int64]domain.Role{1: domain.RoleAdmin, 2: domain.RoleCustomer}

	w := httptest.NewRecorder()
	newRouter(NewProductHandler(svc, zap.NewNop()), testGuards(1, roles)).
		ServeHTTP(w, httptest.NewRequest("POST", "/api/products", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, svc.created.Sizes, 2)
	assert.Equal(t, 0, svc.created.Sizes[1].Stock)
	assert.Contains(t, w.Body.String(), `"price":49.90`)

	w = httptest.NewRecorder()
	newRouter(NewProductHandler(svc, zap.NewNop()), testGuards(2, roles)).
		ServeHTTP(w, httptest.NewRequest("POST", "/api/products", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateProduct_ValidationErrors(t *testing.T) {
	roles := map[int64]domain.Role{1: domain.RoleAdmin}
	router := newRouter(NewProductHandler(&stubProductService{}, zap.NewNop()), testGuards(1, roles))

	tests := map[string]string{
		"category":        `{"name":"Shirt","price":1,"main_category":"pets","sizes":[{"size_value":"M","stock":1}]}`,
		"duplicate sizes": `{"name":"Shirt","price":1,"main_category":"men","sizes":[{"size_value":"M","stock":1},{"size_value":"M","stock":2}]}`,
		"missing stock":   `{"name":"Shirt","price":1,"main_category":"men","sizes":[{"size_value":"M"}]}`,
		"negative stock":  `{"name":"Shirt","price":1,"main_category":"men","sizes":[{"size_value":"M","stock":-1}]}`,
		"bad image":       `{"name":"Shirt","price":1,"main_category":"men","images":["ftp://x"],"sizes":[{"size_value":"M","stock":1}]}`,
		"no sizes":        `{"name":"Shirt","price":1,"main_category":"men","sizes":[]}`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("POST", "/api/products", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestGetAndListProducts(t *testing.T) {
	svc := &stubProductService{}
	router := newRouter(NewProductHandler(svc, zap.NewNop()), testGuards(0, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/products/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var product ProductResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &product))
	assert.Equal(t, json.Number("49.90"), product.Price)
	assert.Equal(t, []string{}, product.Images)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/products/2", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/products?category=women&page=2&page_size=5&sort_by=price&sort_order=asc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.filter.Category)
	assert.Equal(t, domain.CategoryWomen, *svc.filter.Category)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Equal(t, repository.SortOrderAsc, svc.filter.SortOrder)
}
