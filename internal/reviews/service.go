package reviews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

// TxQueries is what one review submission needs inside a transaction:
// the insert plus the denormalised rating refresh on the product row.
type TxQueries interface {
	GetProductByID(ctx context.Context, id int64) (db.Product, error)
	CreateReview(ctx context.Context, arg db.CreateReviewParams) (db.Review, error)
	GetReviewAggregate(ctx context.Context, productID int64) (decimal.Decimal, int32, error)
	UpdateProductRating(ctx context.Context, id int64, avg decimal.Decimal, count int32) error
}

type Runner interface {
	RunTx(ctx context.Context, fn func(q TxQueries) error) error
}

// PoolRunner runs review transactions on a pgx pool.
type PoolRunner struct {
	Pool *pgxpool.Pool
}

func (r PoolRunner) RunTx(ctx context.Context, fn func(q TxQueries) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.New(r.Pool).WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type Reader interface {
	ListReviewsByProduct(ctx context.Context, productID int64) ([]db.ReviewWithAuthor, error)
}

type Service struct {
	runner Runner
	reads  Reader
}

func NewService(runner Runner, reads Reader) (*Service, error) {
	if runner == nil || reads == nil {
		return nil, errors.New("reviews: runner and reads are required")
	}
	return &Service{runner: runner, reads: reads}, nil
}

type View struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"productId"`
	Rating     int32     `json:"rating"`
	Title      string    `json:"title,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	Author     string    `json:"author"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type CreateInput struct {
	Rating  int32  `json:"rating" validate:"required,gte=1,lte=5"`
	Title   string `json:"title,omitempty" validate:"max=150"`
	Comment string `json:"comment,omitempty" validate:"max=2000"`
}

// List returns the reviews of one product, newest first.
func (s *Service) List(ctx context.Context, productID int64) ([]View, error) {
	rows, err := s.reads.ListReviewsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out, nil
}

// Create inserts the review and refreshes the product's denormalised
// average rating and review count in the same transaction.
func (s *Service) Create(ctx context.Context, productID int64, userID pgtype.UUID, in CreateInput) (db.Review, error) {
	var created db.Review
	err := s.runner.RunTx(ctx, func(q TxQueries) error {
		product, err := q.GetProductByID(ctx, productID)
		if errors.Is(err, pgx.ErrNoRows) {
			return &common.AppError{Code: "PRODUCT_NOT_FOUND", Message: "product does not exist", HTTPStatus: http.StatusNotFound}
		}
		if err != nil {
			return err
		}

		created, err = q.CreateReview(ctx, db.CreateReviewParams{
			ProductID: product.ID,
			UserID:    userID,
			Rating:    in.Rating,
			Title:     pgText(in.Title),
			Comment:   pgText(in.Comment),
		})
		if err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		avg, count, err := q.GetReviewAggregate(ctx, product.ID)
		if err != nil {
			return fmt.Errorf("aggregate reviews: %w", err)
		}
		if err := q.UpdateProductRating(ctx, product.ID, avg, count); err != nil {
			return fmt.Errorf("refresh product rating: %w", err)
		}
		return nil
	})
	return created, err
}

func toView(row db.ReviewWithAuthor) View {
	return View{
		ID:         row.ID,
		ProductID:  row.ProductID,
		Rating:     row.Rating,
		Title:      textString(row.Title),
		Comment:    textString(row.Comment),
		Author:     authorName(row),
		IsVerified: row.IsVerified,
		CreatedAt:  row.CreatedAt.Time,
	}
}

func authorName(row db.ReviewWithAuthor) string {
	first := textString(row.AuthorFirstName)
	last := textString(row.AuthorLastName)
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		return "Anonyme"
	}
	return name
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func textString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
