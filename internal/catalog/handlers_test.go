package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/catalog"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

type fakeQueries struct {
	categories []db.Category
	products   []db.Product
	lastList   db.ListProductsParams
}

func (f *fakeQueries) ListActiveCategories(context.Context) ([]db.Category, error) {
	var out []db.Category
	for _, c := range f.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeQueries) GetCategoryByID(_ context.Context, id int64) (db.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return db.Category{}, pgx.ErrNoRows
}

func (f *fakeQueries) CreateCategory(_ context.Context, arg db.CreateCategoryParams) (db.Category, error) {
	c := db.Category{ID: int64(len(f.categories) + 1), Name: arg.Name, Slug: arg.Slug, IsActive: arg.IsActive}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeQueries) UpdateCategory(_ context.Context, arg db.UpdateCategoryParams) (db.Category, error) {
	for i, c := range f.categories {
		if c.ID == arg.ID {
			c.Name = arg.Name
			c.Slug = arg.Slug
			c.IsActive = arg.IsActive
			f.categories[i] = c
			return c, nil
		}
	}
	return db.Category{}, pgx.ErrNoRows
}

func (f *fakeQueries) DeleteCategory(_ context.Context, id int64) (int64, error) {
	for i, c := range f.categories {
		if c.ID == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQueries) ListProducts(_ context.Context, arg db.ListProductsParams) ([]db.Product, error) {
	f.lastList = arg
	var out []db.Product
	for _, p := range f.products {
		if arg.IsActive != nil && p.IsActive != *arg.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeQueries) GetProductByID(_ context.Context, id int64) (db.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeQueries) GetProductBySlug(_ context.Context, slug string) (db.Product, error) {
	for _, p := range f.products {
		if p.Slug == slug {
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeQueries) CreateProduct(_ context.Context, arg db.CreateProductParams) (db.Product, error) {
	for _, p := range f.products {
		if arg.SKU.Valid && p.SKU.Valid && p.SKU.String == arg.SKU.String {
			return db.Product{}, &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"}
		}
	}
	p := db.Product{ID: int64(len(f.products) + 1), Name: arg.Name, Slug: arg.Slug, Price: arg.Price, SKU: arg.SKU, IsActive: arg.IsActive}
	f.products = append(f.products, p)
	return p, nil
}

func (f *fakeQueries) UpdateProduct(_ context.Context, arg db.UpdateProductParams) (db.Product, error) {
	for i, p := range f.products {
		if p.ID == arg.ID {
			p.Name = arg.Name
			p.Slug = arg.Slug
			p.Price = arg.Price
			f.products[i] = p
			return p, nil
		}
	}
	return db.Product{}, pgx.ErrNoRows
}

func (f *fakeQueries) DeleteProduct(_ context.Context, id int64) (int64, error) {
	for i, p := range f.products {
		if p.ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func newService(t *testing.T, q *fakeQueries) *catalog.Service {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{Queries: q})
	require.NoError(t, err)
	return svc
}

func TestParseListParamsDefaultsToActive(t *testing.T) {
	svc := newService(t, &fakeQueries{})

	params, err := svc.ParseListParams(url.Values{})
	require.NoError(t, err)
	require.NotNil(t, params.IsActive)
	require.True(t, *params.IsActive, "public listing must default to active products")

	params, err = svc.ParseListParams(url.Values{"isActive": {"false"}})
	require.NoError(t, err)
	require.False(t, *params.IsActive)
}

func TestParseListParamsRejectsBadPriceRange(t *testing.T) {
	svc := newService(t, &fakeQueries{})

	_, err := svc.ParseListParams(url.Values{"minPrice": {"100"}, "maxPrice": {"50"}})
	require.Error(t, err)

	_, err = svc.ParseListParams(url.Values{"minPrice": {"abc"}})
	require.Error(t, err)
}

func TestProductsHandlerFiltersInactive(t *testing.T) {
	q := &fakeQueries{products: []db.Product{
		{ID: 1, Name: "Kaftan", Slug: "kaftan", Price: decimal.NewFromInt(120), IsActive: true},
		{ID: 2, Name: "Archived", Slug: "archived", Price: decimal.NewFromInt(10), IsActive: false},
	}}
	h := catalog.NewHandler(newService(t, q))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rr := httptest.NewRecorder()
	h.Products(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []catalog.ProductView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, "kaftan", body.Data[0].Slug)
}

func TestProductByIDNotFound(t *testing.T) {
	h := catalog.NewHandler(newService(t, &fakeQueries{}))

	router := chi.NewRouter()
	router.Get("/products/{id}", h.ProductByID)

	req := httptest.NewRequest(http.MethodGet, "/products/99", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProductBySlug(t *testing.T) {
	q := &fakeQueries{products: []db.Product{{ID: 5, Name: "Fouta", Slug: "fouta", Price: decimal.NewFromInt(25), IsActive: true}}}
	h := catalog.NewHandler(newService(t, q))

	router := chi.NewRouter()
	router.Get("/products/slug/{slug}", h.ProductBySlug)

	req := httptest.NewRequest(http.MethodGet, "/products/slug/fouta", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminCreateProductDuplicateSKU(t *testing.T) {
	q := &fakeQueries{}
	admin := catalog.NewAdminHandler(newService(t, q), validator.New())

	create := func() *httptest.ResponseRecorder {
		body := `{"name":"Chechia","slug":"chechia","price":"35.00","sku":"CHE-01"}`
		req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(body))
		rr := httptest.NewRecorder()
		admin.CreateProduct(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, create().Code)
	dup := create()
	require.Equal(t, http.StatusConflict, dup.Code)
	require.Contains(t, dup.Body.String(), "CONFLICT")
}

func TestAdminCreateProductValidation(t *testing.T) {
	admin := catalog.NewAdminHandler(newService(t, &fakeQueries{}), validator.New())

	req := httptest.NewRequest(http.MethodPost, "/admin/products", strings.NewReader(`{"slug":"x"}`))
	rr := httptest.NewRecorder()
	admin.CreateProduct(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAdminDeleteCategoryNotFound(t *testing.T) {
	admin := catalog.NewAdminHandler(newService(t, &fakeQueries{}), validator.New())

	router := chi.NewRouter()
	router.Delete("/admin/categories/{id}", admin.DeleteCategory)

	req := httptest.NewRequest(http.MethodDelete, "/admin/categories/7", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
