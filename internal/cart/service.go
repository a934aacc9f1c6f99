package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/pricing"
)

// Querier is the slice of the query layer the cart service needs.
type Querier interface {
	ListCartItems(ctx context.Context, userID pgtype.UUID) ([]db.CartItemWithProduct, error)
	UpsertCartItem(ctx context.Context, arg db.UpsertCartItemParams) (db.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, id int64, userID pgtype.UUID, quantity int32) (db.CartItem, error)
	DeleteCartItem(ctx context.Context, id int64, userID pgtype.UUID) (int64, error)
	ClearCart(ctx context.Context, userID pgtype.UUID) error
	GetProductByID(ctx context.Context, id int64) (db.Product, error)
}

type Service struct {
	q      Querier
	engine pricing.Engine
}

func NewService(q Querier, engine *pricing.Engine) (*Service, error) {
	if q == nil {
		return nil, errors.New("cart: queries are required")
	}
	eng := pricing.Engine{Rules: pricing.DefaultRules()}
	if engine != nil {
		eng = *engine
	}
	return &Service{q: q, engine: eng}, nil
}

// ItemView is a cart line joined with its product, priced at the
// effective (sale-aware) unit price.
type ItemView struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"productId"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Image         string          `json:"image,omitempty"`
	Size          *string         `json:"size,omitempty"`
	Color         *string         `json:"color,omitempty"`
	Quantity      int32           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	LineTotal     decimal.Decimal `json:"lineTotal"`
	Available     bool            `json:"available"`
	StockQuantity int32           `json:"stockQuantity"`
}

// View is the full cart payload, including the price preview the
// storefront shows before checkout.
type View struct {
	Items   []ItemView      `json:"items"`
	Summary pricing.Summary `json:"summary"`
}

// Get returns the cart with a discount-free price preview. The real
// discount decision happens at order time.
func (s *Service) Get(ctx context.Context, userID pgtype.UUID) (View, error) {
	rows, err := s.q.ListCartItems(ctx, userID)
	if err != nil {
		return View{}, err
	}

	items := make([]ItemView, 0, len(rows))
	lines := make([]pricing.CartLine, 0, len(rows))
	for _, row := range rows {
		line := pricing.CartLine{
			ProductID: row.ProductID,
			Quantity:  int(row.Quantity),
			UnitPrice: row.Price,
			SalePrice: row.SalePrice,
		}
		unit := line.EffectivePrice()
		item := ItemView{
			ID:            row.ID,
			ProductID:     row.ProductID,
			Name:          row.ProductName,
			Slug:          row.ProductSlug,
			Size:          textPtr(row.Size),
			Color:         textPtr(row.Color),
			Quantity:      row.Quantity,
			UnitPrice:     unit,
			LineTotal:     unit.Mul(decimal.NewFromInt32(row.Quantity)).Round(2),
			Available:     row.ProductAlive,
			StockQuantity: row.StockQty,
		}
		if len(row.Images) > 0 {
			item.Image = row.Images[0]
		}
		items = append(items, item)
		if row.ProductAlive {
			lines = append(lines, line)
		}
	}

	summary, err := s.engine.Quote(lines, false)
	if err != nil {
		return View{}, err
	}
	return View{Items: items, Summary: summary}, nil
}

// AddInput is validated by the handler before the service runs.
type AddInput struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  int32   `json:"quantity" validate:"required,gt=0,lte=99"`
	Size      *string `json:"size,omitempty"`
	Color     *string `json:"color,omitempty"`
}

// Add merges the line into the cart. Adding the same product with the
// same size and color bumps the existing quantity.
func (s *Service) Add(ctx context.Context, userID pgtype.UUID, in AddInput) (View, error) {
	product, err := s.q.GetProductByID(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, &common.AppError{Code: "PRODUCT_NOT_FOUND", Message: "product does not exist", HTTPStatus: http.StatusNotFound}
		}
		return View{}, err
	}
	if !product.IsActive {
		return View{}, &common.AppError{Code: "PRODUCT_UNAVAILABLE", Message: "product is not available", HTTPStatus: http.StatusUnprocessableEntity}
	}

	_, err = s.q.UpsertCartItem(ctx, db.UpsertCartItemParams{
		UserID:    userID,
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		Size:      pgText(in.Size),
		Color:     pgText(in.Color),
	})
	if err != nil {
		return View{}, err
	}
	return s.Get(ctx, userID)
}

// UpdateQuantity replaces the quantity of one line. Quantity zero is
// rejected; removal goes through Remove.
func (s *Service) UpdateQuantity(ctx context.Context, userID pgtype.UUID, itemID int64, quantity int32) (View, error) {
	if quantity <= 0 || quantity > 99 {
		return View{}, &common.AppError{Code: "INVALID_QUANTITY", Message: "quantity must be between 1 and 99", HTTPStatus: http.StatusUnprocessableEntity}
	}
	_, err := s.q.UpdateCartItemQuantity(ctx, itemID, userID, quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, errItemNotFound()
		}
		return View{}, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID pgtype.UUID, itemID int64) (View, error) {
	affected, err := s.q.DeleteCartItem(ctx, itemID, userID)
	if err != nil {
		return View{}, err
	}
	if affected == 0 {
		return View{}, errItemNotFound()
	}
	return s.Get(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID pgtype.UUID) error {
	return s.q.ClearCart(ctx, userID)
}

func errItemNotFound() *common.AppError {
	return &common.AppError{Code: "CART_ITEM_NOT_FOUND", Message: "cart item not found", HTTPStatus: http.StatusNotFound}
}

func pgText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.String
	return &v
}
