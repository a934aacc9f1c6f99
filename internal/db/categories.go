package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, slug, description, image_url, parent_id, is_active, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.ParentID, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listActiveCategories = `
SELECT ` + categoryColumns + `
FROM categories
WHERE is_active
ORDER BY name
`

func (q *Queries) ListActiveCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listActiveCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const getCategoryByID = `
SELECT ` + categoryColumns + `
FROM categories
WHERE id = $1
`

func (q *Queries) GetCategoryByID(ctx context.Context, id int64) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryByID, id))
}

const createCategory = `
INSERT INTO categories (name, slug, description, image_url, parent_id, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + categoryColumns + `
`

type CreateCategoryParams struct {
	Name        string
	Slug        string
	Description pgtype.Text
	ImageURL    pgtype.Text
	ParentID    pgtype.Int8
	IsActive    bool
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory, arg.Name, arg.Slug, arg.Description, arg.ImageURL, arg.ParentID, arg.IsActive))
}

const updateCategory = `
UPDATE categories
SET name = $2,
    slug = $3,
    description = $4,
    image_url = $5,
    parent_id = $6,
    is_active = $7,
    updated_at = now()
WHERE id = $1
RETURNING ` + categoryColumns + `
`

type UpdateCategoryParams struct {
	ID          int64
	Name        string
	Slug        string
	Description pgtype.Text
	ImageURL    pgtype.Text
	ParentID    pgtype.Int8
	IsActive    bool
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory, arg.ID, arg.Name, arg.Slug, arg.Description, arg.ImageURL, arg.ParentID, arg.IsActive))
}

const deleteCategory = `
DELETE FROM categories WHERE id = $1
`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCategory, id)
	return tag.RowsAffected(), err
}
