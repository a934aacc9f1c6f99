package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, slug, description, short_description, price, sale_price, sku, stock_quantity, category_id, images, sizes, colors, tags, is_active, is_featured, average_rating, reviews_count, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.ShortDescription, &p.Price, &p.SalePrice, &p.SKU, &p.StockQuantity, &p.CategoryID, &p.Images, &p.Sizes, &p.Colors, &p.Tags, &p.IsActive, &p.IsFeatured, &p.AverageRating, &p.ReviewsCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// ListProductsParams narrows the catalog listing. IsActive defaults to
// true at the service layer; a nil pointer here means no filter at all.
type ListProductsParams struct {
	CategoryID *int64
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	IsActive   *bool
	IsFeatured *bool
	Sort       string
	Limit      int32
	Offset     int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if arg.CategoryID != nil {
		add("category_id = $%d", *arg.CategoryID)
	}
	if s := strings.TrimSpace(arg.Search); s != "" {
		add("(name ILIKE $%d OR description ILIKE $%[1]d)", "%"+s+"%")
	}
	if arg.MinPrice != nil {
		add("COALESCE(sale_price, price) >= $%d", *arg.MinPrice)
	}
	if arg.MaxPrice != nil {
		add("COALESCE(sale_price, price) <= $%d", *arg.MaxPrice)
	}
	if arg.IsActive != nil {
		add("is_active = $%d", *arg.IsActive)
	}
	if arg.IsFeatured != nil {
		add("is_featured = $%d", *arg.IsFeatured)
	}

	sql := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	switch arg.Sort {
	case "price-asc":
		sql += " ORDER BY COALESCE(sale_price, price) ASC, id"
	case "price-desc":
		sql += " ORDER BY COALESCE(sale_price, price) DESC, id"
	default:
		sql += " ORDER BY created_at DESC, id DESC"
	}
	limit := arg.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" LIMIT $%d", len(args))
	if arg.Offset > 0 {
		args = append(args, arg.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const getProductByID = `
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`

func (q *Queries) GetProductByID(ctx context.Context, id int64) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}

const getProductBySlug = `
SELECT ` + productColumns + `
FROM products
WHERE slug = $1
`

func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductBySlug, slug))
}

const getProductsByIDs = `
SELECT ` + productColumns + `
FROM products
WHERE id = ANY($1)
`

func (q *Queries) GetProductsByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	rows, err := q.db.Query(ctx, getProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const createProduct = `
INSERT INTO products (name, slug, description, short_description, price, sale_price, sku, stock_quantity, category_id, images, sizes, colors, tags, is_active, is_featured)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING ` + productColumns + `
`

type CreateProductParams struct {
	Name             string
	Slug             string
	Description      pgtype.Text
	ShortDescription pgtype.Text
	Price            decimal.Decimal
	SalePrice        decimal.NullDecimal
	SKU              pgtype.Text
	StockQuantity    int32
	CategoryID       pgtype.Int8
	Images           []string
	Sizes            []string
	Colors           []string
	Tags             []string
	IsActive         bool
	IsFeatured       bool
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, createProduct,
		arg.Name, arg.Slug, arg.Description, arg.ShortDescription, arg.Price, arg.SalePrice,
		arg.SKU, arg.StockQuantity, arg.CategoryID, arg.Images, arg.Sizes, arg.Colors, arg.Tags,
		arg.IsActive, arg.IsFeatured))
}

const updateProduct = `
UPDATE products
SET name = $2,
    slug = $3,
    description = $4,
    short_description = $5,
    price = $6,
    sale_price = $7,
    sku = $8,
    stock_quantity = $9,
    category_id = $10,
    images = $11,
    sizes = $12,
    colors = $13,
    tags = $14,
    is_active = $15,
    is_featured = $16,
    updated_at = now()
WHERE id = $1
RETURNING ` + productColumns + `
`

type UpdateProductParams struct {
	ID               int64
	Name             string
	Slug             string
	Description      pgtype.Text
	ShortDescription pgtype.Text
	Price            decimal.Decimal
	SalePrice        decimal.NullDecimal
	SKU              pgtype.Text
	StockQuantity    int32
	CategoryID       pgtype.Int8
	Images           []string
	Sizes            []string
	Colors           []string
	Tags             []string
	IsActive         bool
	IsFeatured       bool
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.Name, arg.Slug, arg.Description, arg.ShortDescription, arg.Price, arg.SalePrice,
		arg.SKU, arg.StockQuantity, arg.CategoryID, arg.Images, arg.Sizes, arg.Colors, arg.Tags,
		arg.IsActive, arg.IsFeatured))
}

const deleteProduct = `
DELETE FROM products WHERE id = $1
`

func (q *Queries) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteProduct, id)
	return tag.RowsAffected(), err
}

const updateProductRating = `
UPDATE products
SET average_rating = $2,
    reviews_count = $3,
    updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateProductRating(ctx context.Context, id int64, avg decimal.Decimal, count int32) error {
	_, err := q.db.Exec(ctx, updateProductRating, id, avg, count)
	return err
}
