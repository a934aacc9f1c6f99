package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

type queryProvider interface {
	ListActiveCategories(ctx context.Context) ([]db.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (db.Category, error)
	CreateCategory(ctx context.Context, arg db.CreateCategoryParams) (db.Category, error)
	UpdateCategory(ctx context.Context, arg db.UpdateCategoryParams) (db.Category, error)
	DeleteCategory(ctx context.Context, id int64) (int64, error)
	ListProducts(ctx context.Context, arg db.ListProductsParams) ([]db.Product, error)
	GetProductByID(ctx context.Context, id int64) (db.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (db.Product, error)
	CreateProduct(ctx context.Context, arg db.CreateProductParams) (db.Product, error)
	UpdateProduct(ctx context.Context, arg db.UpdateProductParams) (db.Product, error)
	DeleteProduct(ctx context.Context, id int64) (int64, error)
}

// Service orchestrates catalog queries, DTO assembly, and caching.
type Service struct {
	queries      queryProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries      queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing. IsActive defaults to
// true so the public catalog only shows live products; admins can pass
// isActive=false explicitly.
type ListParams struct {
	CategoryID *int64
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	IsActive   *bool
	IsFeatured *bool
	Sort       string
	Limit      int
	Page       int
}

// CategoryView is the public category payload.
type CategoryView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	ParentID    *int64 `json:"parentId,omitempty"`
	IsActive    bool   `json:"isActive"`
}

// ProductView is the public product payload.
type ProductView struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Slug             string              `json:"slug"`
	Description      string              `json:"description,omitempty"`
	ShortDescription string              `json:"shortDescription,omitempty"`
	Price            decimal.Decimal     `json:"price"`
	SalePrice        decimal.NullDecimal `json:"salePrice,omitempty"`
	SKU              string              `json:"sku,omitempty"`
	StockQuantity    int32               `json:"stockQuantity"`
	CategoryID       *int64              `json:"categoryId,omitempty"`
	Images           []string            `json:"images"`
	Sizes            []string            `json:"sizes"`
	Colors           []string            `json:"colors"`
	Tags             []string            `json:"tags"`
	IsActive         bool                `json:"isActive"`
	IsFeatured       bool                `json:"isFeatured"`
	AverageRating    decimal.Decimal     `json:"averageRating"`
	ReviewsCount     int32               `json:"reviewsCount"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		queries:      cfg.Queries,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	active := true
	params := ListParams{
		Limit:    s.defaultLimit,
		Page:     1,
		IsActive: &active,
	}
	params.Search = strings.TrimSpace(values.Get("search"))

	if v := strings.TrimSpace(values.Get("categoryId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			return params, badRequest("categoryId", "categoryId must be a positive integer", err)
		}
		params.CategoryID = &id
	}
	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return params, badRequest("minPrice", "minPrice must be a non-negative number", err)
		}
		params.MinPrice = &d
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return params, badRequest("maxPrice", "maxPrice must be a non-negative number", err)
		}
		params.MaxPrice = &d
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}
	if v := strings.TrimSpace(values.Get("isActive")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("isActive", "isActive must be true or false", err)
		}
		params.IsActive = &b
	}
	if v := strings.TrimSpace(values.Get("isFeatured")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("isFeatured", "isFeatured must be true or false", err)
		}
		params.IsFeatured = &b
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListCategories returns active categories ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]CategoryView, error) {
	if s.cache != nil {
		var cached []CategoryView
		ok, err := s.cache.GetJSON(ctx, categoriesCacheKey, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	rows, err := s.queries.ListActiveCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	result := make([]CategoryView, 0, len(rows))
	for _, row := range rows {
		result = append(result, convertCategory(row))
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, categoriesCacheKey, result)
	}
	return result, nil
}

// ListProducts returns the filtered product list.
func (s *Service) ListProducts(ctx context.Context, params ListParams) ([]ProductView, error) {
	key, cacheable := s.listCacheKey(params)
	if cacheable && s.cache != nil {
		var cached []ProductView
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil && ok {
			return cached, nil
		}
	}
	offset := int32((params.Page - 1) * params.Limit)
	if offset < 0 {
		offset = 0
	}
	rows, err := s.queries.ListProducts(ctx, db.ListProductsParams{
		CategoryID: params.CategoryID,
		Search:     params.Search,
		MinPrice:   params.MinPrice,
		MaxPrice:   params.MaxPrice,
		IsActive:   params.IsActive,
		IsFeatured: params.IsFeatured,
		Sort:       params.Sort,
		Limit:      int32(params.Limit),
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	items := make([]ProductView, 0, len(rows))
	for _, row := range rows {
		items = append(items, convertProduct(row))
	}
	if cacheable && s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, items)
	}
	return items, nil
}

// GetProduct returns one product by numeric id.
func (s *Service) GetProduct(ctx context.Context, id int64) (ProductView, error) {
	row, err := s.queries.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, notFound("product not found", err)
		}
		return ProductView{}, fmt.Errorf("get product: %w", err)
	}
	return convertProduct(row), nil
}

// GetProductBySlug returns one product by slug.
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (ProductView, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return ProductView{}, badRequest("slug", "slug is required", nil)
	}
	row, err := s.queries.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, notFound("product not found", err)
		}
		return ProductView{}, fmt.Errorf("get product by slug: %w", err)
	}
	return convertProduct(row), nil
}

// CategoryInput carries admin category create/update fields.
type CategoryInput struct {
	Name        string `json:"name" validate:"required"`
	Slug        string `json:"slug" validate:"required"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	ParentID    *int64 `json:"parentId"`
	IsActive    *bool  `json:"isActive"`
}

// CreateCategory inserts a category and invalidates the list cache.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (CategoryView, error) {
	row, err := s.queries.CreateCategory(ctx, db.CreateCategoryParams{
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.TrimSpace(in.Slug),
		Description: pgText(in.Description),
		ImageURL:    pgText(in.ImageURL),
		ParentID:    pgInt8(in.ParentID),
		IsActive:    boolOrTrue(in.IsActive),
	})
	if err != nil {
		return CategoryView{}, wrapWriteError("create category", err)
	}
	s.cache.Invalidate(ctx, categoriesCacheKey)
	return convertCategory(row), nil
}

// UpdateCategory replaces a category's fields.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (CategoryView, error) {
	row, err := s.queries.UpdateCategory(ctx, db.UpdateCategoryParams{
		ID:          id,
		Name:        strings.TrimSpace(in.Name),
		Slug:        strings.TrimSpace(in.Slug),
		Description: pgText(in.Description),
		ImageURL:    pgText(in.ImageURL),
		ParentID:    pgInt8(in.ParentID),
		IsActive:    boolOrTrue(in.IsActive),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CategoryView{}, notFound("category not found", err)
		}
		return CategoryView{}, wrapWriteError("update category", err)
	}
	s.cache.Invalidate(ctx, categoriesCacheKey)
	return convertCategory(row), nil
}

// DeleteCategory removes a category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteCategory(ctx, id)
	if err != nil {
		return wrapWriteError("delete category", err)
	}
	if affected == 0 {
		return notFound("category not found", nil)
	}
	s.cache.Invalidate(ctx, categoriesCacheKey)
	return nil
}

// ProductInput carries admin product create/update fields.
type ProductInput struct {
	Name             string   `json:"name" validate:"required"`
	Slug             string   `json:"slug" validate:"required"`
	Description      string   `json:"description"`
	ShortDescription string   `json:"shortDescription"`
	Price            string   `json:"price" validate:"required"`
	SalePrice        *string  `json:"salePrice"`
	SKU              string   `json:"sku"`
	StockQuantity    int32    `json:"stockQuantity" validate:"gte=0"`
	CategoryID       *int64   `json:"categoryId"`
	Images           []string `json:"images"`
	Sizes            []string `json:"sizes"`
	Colors           []string `json:"colors"`
	Tags             []string `json:"tags"`
	IsActive         *bool    `json:"isActive"`
	IsFeatured       bool     `json:"isFeatured"`
}

func (in ProductInput) toCreateParams() (db.CreateProductParams, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(in.Price))
	if err != nil || price.IsNegative() {
		return db.CreateProductParams{}, badRequest("price", "price must be a non-negative number", err)
	}
	var sale decimal.NullDecimal
	if in.SalePrice != nil && strings.TrimSpace(*in.SalePrice) != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(*in.SalePrice))
		if err != nil || d.IsNegative() {
			return db.CreateProductParams{}, badRequest("salePrice", "salePrice must be a non-negative number", err)
		}
		sale = decimal.NewNullDecimal(d)
	}
	return db.CreateProductParams{
		Name:             strings.TrimSpace(in.Name),
		Slug:             strings.TrimSpace(in.Slug),
		Description:      pgText(in.Description),
		ShortDescription: pgText(in.ShortDescription),
		Price:            price.Round(2),
		SalePrice:        sale,
		SKU:              pgText(in.SKU),
		StockQuantity:    in.StockQuantity,
		CategoryID:       pgInt8(in.CategoryID),
		Images:           emptyIfNil(in.Images),
		Sizes:            emptyIfNil(in.Sizes),
		Colors:           emptyIfNil(in.Colors),
		Tags:             emptyIfNil(in.Tags),
		IsActive:         boolOrTrue(in.IsActive),
		IsFeatured:       in.IsFeatured,
	}, nil
}

// CreateProduct inserts a product; duplicate SKU or slug answers 409.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (ProductView, error) {
	params, err := in.toCreateParams()
	if err != nil {
		return ProductView{}, err
	}
	row, err := s.queries.CreateProduct(ctx, params)
	if err != nil {
		return ProductView{}, wrapWriteError("create product", err)
	}
	s.cache.Invalidate(ctx, productsCacheKey)
	return convertProduct(row), nil
}

// UpdateProduct replaces a product's fields.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (ProductView, error) {
	params, err := in.toCreateParams()
	if err != nil {
		return ProductView{}, err
	}
	row, err := s.queries.UpdateProduct(ctx, db.UpdateProductParams{
		ID:               id,
		Name:             params.Name,
		Slug:             params.Slug,
		Description:      params.Description,
		ShortDescription: params.ShortDescription,
		Price:            params.Price,
		SalePrice:        params.SalePrice,
		SKU:              params.SKU,
		StockQuantity:    params.StockQuantity,
		CategoryID:       params.CategoryID,
		Images:           params.Images,
		Sizes:            params.Sizes,
		Colors:           params.Colors,
		Tags:             params.Tags,
		IsActive:         params.IsActive,
		IsFeatured:       params.IsFeatured,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductView{}, notFound("product not found", err)
		}
		return ProductView{}, wrapWriteError("update product", err)
	}
	s.cache.Invalidate(ctx, productsCacheKey)
	return convertProduct(row), nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteProduct(ctx, id)
	if err != nil {
		return wrapWriteError("delete product", err)
	}
	if affected == 0 {
		return notFound("product not found", nil)
	}
	s.cache.Invalidate(ctx, productsCacheKey)
	return nil
}

const (
	categoriesCacheKey = "catalog:categories"
	productsCacheKey   = "catalog:products:default"
)

// listCacheKey caches only the unfiltered default listing, the hot path
// for the storefront home page.
func (s *Service) listCacheKey(params ListParams) (string, bool) {
	if params.Page != 1 || params.Limit != s.defaultLimit || params.Sort != "" {
		return "", false
	}
	if params.CategoryID != nil || params.Search != "" || params.MinPrice != nil || params.MaxPrice != nil || params.IsFeatured != nil {
		return "", false
	}
	if params.IsActive == nil || !*params.IsActive {
		return "", false
	}
	return productsCacheKey, true
}

func convertCategory(row db.Category) CategoryView {
	view := CategoryView{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: textString(row.Description),
		ImageURL:    textString(row.ImageURL),
		IsActive:    row.IsActive,
	}
	if row.ParentID.Valid {
		parent := row.ParentID.Int64
		view.ParentID = &parent
	}
	return view
}

func convertProduct(row db.Product) ProductView {
	view := ProductView{
		ID:               row.ID,
		Name:             row.Name,
		Slug:             row.Slug,
		Description:      textString(row.Description),
		ShortDescription: textString(row.ShortDescription),
		Price:            row.Price,
		SalePrice:        row.SalePrice,
		SKU:              textString(row.SKU),
		StockQuantity:    row.StockQuantity,
		Images:           emptyIfNil(row.Images),
		Sizes:            emptyIfNil(row.Sizes),
		Colors:           emptyIfNil(row.Colors),
		Tags:             emptyIfNil(row.Tags),
		IsActive:         row.IsActive,
		IsFeatured:       row.IsFeatured,
		AverageRating:    row.AverageRating,
		ReviewsCount:     row.ReviewsCount,
	}
	if row.CategoryID.Valid {
		id := row.CategoryID.Int64
		view.CategoryID = &id
	}
	if row.CreatedAt.Valid {
		view.CreatedAt = row.CreatedAt.Time
	}
	return view
}

func wrapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &common.AppError{Code: "CONFLICT", Message: "duplicate value for a unique field", HTTPStatus: http.StatusConflict, Err: err, Details: map[string]any{"constraint": pgErr.ConstraintName}}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(message string, err error) *common.AppError {
	return &common.AppError{Code: "NOT_FOUND", Message: message, HTTPStatus: http.StatusNotFound, Err: err}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details: map[string]any{
			"field": field,
		},
	}
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return true, nil
	case "false", "0", "no", "n":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func normalizeSort(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "newest", "price-asc", "price-desc":
		if s == "newest" {
			return ""
		}
		return s
	default:
		return ""
	}
}

func pgText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func textString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func pgInt8(value *int64) pgtype.Int8 {
	if value == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *value, Valid: true}
}

func boolOrTrue(value *bool) bool {
	if value == nil {
		return true
	}
	return *value
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
