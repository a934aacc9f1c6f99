package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const listReviewsByProduct = `
SELECT r.id, r.product_id, r.user_id, r.rating, r.title, r.comment, r.is_verified, r.created_at, r.updated_at,
       u.first_name, u.last_name
FROM reviews r
JOIN users u ON u.id = r.user_id
WHERE r.product_id = $1
ORDER BY r.created_at DESC
`

func (q *Queries) ListReviewsByProduct(ctx context.Context, productID int64) ([]ReviewWithAuthor, error) {
	rows, err := q.db.Query(ctx, listReviewsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReviewWithAuthor
	for rows.Next() {
		var r ReviewWithAuthor
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Title, &r.Comment, &r.IsVerified, &r.CreatedAt, &r.UpdatedAt, &r.AuthorFirstName, &r.AuthorLastName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const createReview = `
INSERT INTO reviews (product_id, user_id, rating, title, comment)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, user_id, rating, title, comment, is_verified, created_at, updated_at
`

type CreateReviewParams struct {
	ProductID int64
	UserID    pgtype.UUID
	Rating    int32
	Title     pgtype.Text
	Comment   pgtype.Text
}

func (q *Queries) CreateReview(ctx context.Context, arg CreateReviewParams) (Review, error) {
	row := q.db.QueryRow(ctx, createReview, arg.ProductID, arg.UserID, arg.Rating, arg.Title, arg.Comment)
	var r Review
	err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Title, &r.Comment, &r.IsVerified, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const getReviewAggregate = `
SELECT COALESCE(round(avg(rating), 1), 0), count(*)
FROM reviews
WHERE product_id = $1
`

// GetReviewAggregate returns the 1-decimal average rating and count for
// a product, recomputed from the review rows.
func (q *Queries) GetReviewAggregate(ctx context.Context, productID int64) (decimal.Decimal, int32, error) {
	var (
		avg   decimal.Decimal
		count int32
	)
	err := q.db.QueryRow(ctx, getReviewAggregate, productID).Scan(&avg, &count)
	return avg, count, err
}
