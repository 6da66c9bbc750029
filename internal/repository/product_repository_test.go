package repository

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func createProduct(t *testing.T, name string, price string, sizes map[string]int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		Name:         name,
		Price:        decimal.RequireFromString(price),
		MainCategory: domain.CategoryMen,
		Images:       []string{"https://cdn.example.com/" + name + ".jpg"},
		Active:       true,
	}
	for value, stock := range sizes {
		product.Sizes = append(product.Sizes, domain.ProductSize{SizeValue: value, Stock: stock})
	}
	if err := NewProductRepository(testDB).Create(context.Background(), product); err != nil {
		t.Fatalf("Failed to create product %s: %v", name, err)
	}
	return product
}

// Property: creating and reading back a product preserves its attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, description string, cents int64, stock int, category string) bool {
			ctx := context.Background()

			product := &domain.Product{
				Name:         name,
				Description:  description,
				Price:        decimal.New(cents, -2),
				MainCategory: domain.Category(category),
				Images:       []string{"https://img.example.com/a.png", "https://img.example.com/b.png"},
				Active:       true,
				Sizes: []domain.ProductSize{
					{SizeValue: "M", Stock: stock},
					{SizeValue: "42", Stock: stock + 1},
				},
			}

			if err := repo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := repo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.Description != product.Description {
				t.Logf("FAIL: text mismatch %+v", retrieved)
				return false
			}

			if !retrieved.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
				return false
			}

			if retrieved.MainCategory != product.MainCategory {
				t.Logf("FAIL: Category mismatch. Expected %s, got %s", product.MainCategory, retrieved.MainCategory)
				return false
			}

			if len(retrieved.Images) != 2 || retrieved.Images[1] != product.Images[1] {
				t.Logf("FAIL: Images mismatch: %v", retrieved.Images)
				return false
			}

			if len(retrieved.Sizes) != 2 {
				t.Logf("FAIL: expected 2 sizes, got %d", len(retrieved.Sizes))
				return false
			}
			for i, size := range retrieved.Sizes {
				if size.ID != product.Sizes[i].ID || size.Stock != product.Sizes[i].Stock {
					t.Logf("FAIL: size mismatch %+v vs %+v", size, product.Sizes[i])
					return false
				}
			}

			if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
				t.Logf("FAIL: timestamps not set")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Z][a-z]{2,20}`),
		gen.AlphaString(),
		gen.Int64Range(1, 99999999),
		gen.IntRange(0, 1000),
		gen.OneConstOf("men", "women", "child"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_DuplicateSizeRollsBack(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)

	product := &domain.Product{
		Name:         "Sneaker",
		Price:        decimal.RequireFromString("59.90"),
		MainCategory: domain.CategoryWomen,
		Active:       true,
		Sizes: []domain.ProductSize{
			{SizeValue: "38", Stock: 1},
			{SizeValue: "38", Stock: 2},
		},
	}

	err := repo.Create(context.Background(), product)
	if !errors.Is(err, ErrDuplicateProductSize) {
		t.Fatalf("expected ErrDuplicateProductSize, got %v", err)
	}

	var count int
	if err := testDB.QueryRow(`SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected product insert to roll back, found %d products", count)
	}
}

func TestProductRepository_ListFiltersByCategory(t *testing.T) {
	resetTables(t)
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	createProduct(t, "Shirt", "20.00", map[string]int{"M": 1})
	kid := &domain.Product{
		Name:         "Onesie",
		Price:        decimal.RequireFromString("9.99"),
		MainCategory: domain.CategoryChild,
		Active:       true,
		Sizes:        []domain.ProductSize{{SizeValue: "S", Stock: 3}},
	}
	if err := repo.Create(ctx, kid); err != nil {
		t.Fatal(err)
	}

	child := domain.CategoryChild
	products, total, err := repo.List(ctx, ProductFilter{Category: &child, ActiveOnly: true, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if total != 1 || len(products) != 1 || products[0].Name != "Onesie" {
		t.Fatalf("unexpected listing: total=%d products=%v", total, products)
	}
	if len(products[0].Sizes) != 1 || products[0].Sizes[0].Stock != 3 {
		t.Errorf("sizes not attached: %+v", products[0].Sizes)
	}

	if _, err := repo.FindByID(ctx, 424242); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}
