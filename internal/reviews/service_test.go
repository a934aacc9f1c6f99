package reviews_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/reviews"
)

type memReviews struct {
	product     db.Product
	rows        []db.Review
	ratingAvg   decimal.Decimal
	ratingCount int32
}

func (m *memReviews) RunTx(_ context.Context, fn func(q reviews.TxQueries) error) error {
	snapshot := append([]db.Review(nil), m.rows...)
	if err := fn(m); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

func (m *memReviews) GetProductByID(_ context.Context, id int64) (db.Product, error) {
	if m.product.ID == id {
		return m.product, nil
	}
	return db.Product{}, pgx.ErrNoRows
}

func (m *memReviews) CreateReview(_ context.Context, arg db.CreateReviewParams) (db.Review, error) {
	r := db.Review{
		ID:        int64(len(m.rows) + 1),
		ProductID: arg.ProductID,
		UserID:    arg.UserID,
		Rating:    arg.Rating,
		Title:     arg.Title,
		Comment:   arg.Comment,
	}
	m.rows = append(m.rows, r)
	return r, nil
}

func (m *memReviews) GetReviewAggregate(_ context.Context, productID int64) (decimal.Decimal, int32, error) {
	sum := int64(0)
	count := int32(0)
	for _, r := range m.rows {
		if r.ProductID == productID {
			sum += int64(r.Rating)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, 0, nil
	}
	avg := decimal.NewFromInt(sum).Div(decimal.NewFromInt32(count)).Round(1)
	return avg, count, nil
}

func (m *memReviews) UpdateProductRating(_ context.Context, id int64, avg decimal.Decimal, count int32) error {
	if m.product.ID == id {
		m.ratingAvg = avg
		m.ratingCount = count
	}
	return nil
}

func (m *memReviews) ListReviewsByProduct(_ context.Context, productID int64) ([]db.ReviewWithAuthor, error) {
	var out []db.ReviewWithAuthor
	for _, r := range m.rows {
		if r.ProductID == productID {
			out = append(out, db.ReviewWithAuthor{Review: r})
		}
	}
	return out, nil
}

func author() pgtype.UUID {
	var id pgtype.UUID
	id.Bytes[0] = 7
	id.Valid = true
	return id
}

func TestCreateRefreshesProductRating(t *testing.T) {
	store := &memReviews{product: db.Product{ID: 1, Name: "Fouta"}}
	svc, err := reviews.NewService(store, store)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 1, author(), reviews.CreateInput{Rating: 5})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 1, author(), reviews.CreateInput{Rating: 4})
	require.NoError(t, err)

	require.Equal(t, int32(2), store.ratingCount)
	require.True(t, store.ratingAvg.Equal(decimal.RequireFromString("4.5")), "got %s", store.ratingAvg)
}

func TestCreateUnknownProduct(t *testing.T) {
	store := &memReviews{product: db.Product{ID: 1}}
	svc, err := reviews.NewService(store, store)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 42, author(), reviews.CreateInput{Rating: 3})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "PRODUCT_NOT_FOUND", appErr.Code)
	require.Empty(t, store.rows)
}

func TestListFallsBackToAnonymousAuthor(t *testing.T) {
	store := &memReviews{product: db.Product{ID: 1}}
	svc, err := reviews.NewService(store, store)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), 1, author(), reviews.CreateInput{Rating: 4, Comment: "Jolie qualité"})
	require.NoError(t, err)

	views, err := svc.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "Anonyme", views[0].Author)
	require.Equal(t, "Jolie qualité", views[0].Comment)
}
