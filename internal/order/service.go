package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/newsletter"
	"github.com/tunisianchic/backend-boutique/internal/obs"
	"github.com/tunisianchic/backend-boutique/internal/pricing"
)

// TxQueries is the slice of the query layer checkout runs inside one
// database transaction.
type TxQueries interface {
	ListCartItems(ctx context.Context, userID pgtype.UUID) ([]db.CartItemWithProduct, error)
	CreateOrder(ctx context.Context, arg db.CreateOrderParams) (db.Order, error)
	CreateOrderItem(ctx context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error)
	ClearCart(ctx context.Context, userID pgtype.UUID) error
	InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) error
	MarkDiscountUsed(ctx context.Context, email string) (int64, error)
}

// Runner executes fn atomically. The production runner wraps a pgx
// transaction; tests substitute an in-memory one.
type Runner interface {
	RunTx(ctx context.Context, fn func(q TxQueries) error) error
}

// PoolRunner runs checkout transactions on a pgx pool.
type PoolRunner struct {
	Pool *pgxpool.Pool
}

func (r PoolRunner) RunTx(ctx context.Context, fn func(q TxQueries) error) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(db.New(r.Pool).WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ReadQueries covers the order read side and status administration.
type ReadQueries interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]db.Order, error)
	ListAllOrders(ctx context.Context, limit, offset int32) ([]db.Order, error)
	GetOrderByID(ctx context.Context, id int64) (db.Order, error)
	ListOrderItems(ctx context.Context, orderID int64) ([]db.OrderItemWithProduct, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (db.Order, error)
}

// Eligibility resolves whether an email still has its newsletter
// discount available. Failures must degrade to false.
type Eligibility interface {
	Eligible(ctx context.Context, email string) bool
}

type Service struct {
	runner Runner
	reads  ReadQueries
	news   Eligibility
	engine pricing.Engine
	log    zerolog.Logger
	events []Notifier
	now    func() time.Time
}

// Notifier receives committed orders. Delivery runs after commit and
// never fails the checkout.
type Notifier interface {
	OrderCreated(ctx context.Context, o Created)
}

type ServiceConfig struct {
	Runner    Runner
	Reads     ReadQueries
	News      Eligibility
	Engine    *pricing.Engine
	Logger    zerolog.Logger
	Notifiers []Notifier
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Runner == nil {
		return nil, errors.New("order: runner is required")
	}
	if cfg.Reads == nil {
		return nil, errors.New("order: read queries are required")
	}
	eng := pricing.Engine{Rules: pricing.DefaultRules()}
	if cfg.Engine != nil {
		eng = *cfg.Engine
	}
	return &Service{
		runner: cfg.Runner,
		reads:  cfg.Reads,
		news:   cfg.News,
		engine: eng,
		log:    cfg.Logger,
		events: cfg.Notifiers,
		now:    time.Now,
	}, nil
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Address is the structured shipping/billing payload stored on the order.
type Address struct {
	FullName   string `json:"fullName" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// CreateInput is a checkout request. Billing defaults to shipping.
type CreateInput struct {
	ShippingAddress Address  `json:"shippingAddress" validate:"required"`
	BillingAddress  *Address `json:"billingAddress,omitempty"`
	PaymentMethod   string   `json:"paymentMethod,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// ItemView is one committed order line.
type ItemView struct {
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	ProductSlug string          `json:"productSlug,omitempty"`
	Image       string          `json:"image,omitempty"`
	Quantity    int32           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Size        *string         `json:"size,omitempty"`
	Color       *string         `json:"color,omitempty"`
}

// View is the order as returned by the API.
type View struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	Status        string          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	PaymentStatus string          `json:"paymentStatus"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Items         []ItemView      `json:"items,omitempty"`
}

// Created carries the committed order to notifiers.
type Created struct {
	Order View
	Email string
}

var validStatuses = map[string]bool{
	"pending":    true,
	"processing": true,
	"shipped":    true,
	"delivered":  true,
	"cancelled":  true,
}

// Create turns the user's cart into an order. The cart read, the
// discount flip, the order rows, the cart wipe and the outbox event
// all commit or roll back together.
func (s *Service) Create(ctx context.Context, userID pgtype.UUID, in CreateInput) (View, error) {
	user, err := s.reads.GetUserByID(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load checkout user: %w", err)
	}

	eligible := false
	if s.news != nil {
		eligible = s.news.Eligible(ctx, user.Email)
	}

	shippingJSON, err := json.Marshal(in.ShippingAddress)
	if err != nil {
		return View{}, fmt.Errorf("encode shipping address: %w", err)
	}
	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = *in.BillingAddress
	}
	billingJSON, err := json.Marshal(billing)
	if err != nil {
		return View{}, fmt.Errorf("encode billing address: %w", err)
	}

	var (
		created       db.Order
		items         []ItemView
		discountState = "not_eligible"
	)
	err = s.runner.RunTx(ctx, func(q TxQueries) error {
		rows, err := q.ListCartItems(ctx, userID)
		if err != nil {
			return fmt.Errorf("read cart: %w", err)
		}

		lines := make([]pricing.CartLine, 0, len(rows))
		active := make([]db.CartItemWithProduct, 0, len(rows))
		for _, row := range rows {
			if !row.ProductAlive {
				continue
			}
			lines = append(lines, pricing.CartLine{
				ProductID: row.ProductID,
				Quantity:  int(row.Quantity),
				UnitPrice: row.Price,
				SalePrice: row.SalePrice,
			})
			active = append(active, row)
		}
		if len(active) == 0 {
			return &common.AppError{Code: "EMPTY_CART", Message: "cart has no purchasable items", HTTPStatus: http.StatusUnprocessableEntity}
		}

		summary, err := s.engine.Quote(lines, eligible)
		if err != nil {
			return &common.AppError{Code: "INVALID_CART", Message: err.Error(), HTTPStatus: http.StatusUnprocessableEntity, Err: err}
		}

		if eligible {
			claimed, err := newsletter.ClaimDiscount(ctx, q, user.Email)
			if err != nil {
				return fmt.Errorf("claim newsletter discount: %w", err)
			}
			if claimed {
				discountState = "applied"
			} else {
				// A concurrent checkout won the flip; reprice without it.
				discountState = "lost_race"
				summary = s.engine.WithoutDiscount(summary)
			}
		}

		created, err = q.CreateOrder(ctx, db.CreateOrderParams{
			OrderNumber:     s.newOrderNumber(),
			UserID:          userID,
			Subtotal:        summary.Subtotal,
			Tax:             summary.Tax,
			Shipping:        summary.Shipping,
			Discount:        summary.Discount,
			Total:           summary.Total,
			ShippingAddress: shippingJSON,
			BillingAddress:  billingJSON,
			PaymentMethod:   pgText(in.PaymentMethod),
			Notes:           pgText(in.Notes),
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		items = items[:0]
		for i, row := range active {
			item, err := q.CreateOrderItem(ctx, db.CreateOrderItemParams{
				OrderID:   created.ID,
				ProductID: row.ProductID,
				Quantity:  row.Quantity,
				Price:     lines[i].EffectivePrice(),
				Size:      row.Size,
				Color:     row.Color,
			})
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
			iv := ItemView{
				ProductID:   item.ProductID,
				ProductName: row.ProductName,
				ProductSlug: row.ProductSlug,
				Quantity:    item.Quantity,
				Price:       item.Price,
				Size:        textPtr(row.Size),
				Color:       textPtr(row.Color),
			}
			if len(row.Images) > 0 {
				iv.Image = row.Images[0]
			}
			items = append(items, iv)
		}

		if err := q.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		payload, err := json.Marshal(map[string]any{
			"orderId":     created.ID,
			"orderNumber": created.OrderNumber,
			"email":       user.Email,
			"total":       created.Total,
		})
		if err != nil {
			return fmt.Errorf("encode order event: %w", err)
		}
		if err := q.InsertDomainEvent(ctx, "order.created", created.OrderNumber, payload); err != nil {
			return fmt.Errorf("record order event: %w", err)
		}
		return nil
	})
	if err != nil {
		obs.OrdersCreatedTotal.WithLabelValues("failed").Inc()
		return View{}, err
	}

	obs.OrdersCreatedTotal.WithLabelValues("created").Inc()
	obs.NewsletterDiscountTotal.WithLabelValues(discountState).Inc()
	obs.OrderTotalValue.Observe(created.Total.InexactFloat64())

	view := toView(created)
	view.Items = items
	for _, n := range s.events {
		n.OrderCreated(ctx, Created{Order: view, Email: user.Email})
	}

	s.log.Info().
		Str("order_number", created.OrderNumber).
		Str("discount", discountState).
		Str("total", created.Total.StringFixed(2)).
		Msg("order created")
	return view, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID pgtype.UUID, p common.Pagination) ([]View, error) {
	rows, err := s.reads.ListOrdersByUser(ctx, userID, int32(p.PerPage), int32(p.Offset()))
	if err != nil {
		return nil, err
	}
	return toViews(rows), nil
}

// ListAll is the admin listing.
func (s *Service) ListAll(ctx context.Context, p common.Pagination) ([]View, error) {
	rows, err := s.reads.ListAllOrders(ctx, int32(p.PerPage), int32(p.Offset()))
	if err != nil {
		return nil, err
	}
	return toViews(rows), nil
}

// Get returns one order with its lines. Non-admin callers only see
// their own orders.
func (s *Service) Get(ctx context.Context, id int64, userID pgtype.UUID, admin bool) (View, error) {
	row, err := s.reads.GetOrderByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return View{}, errOrderNotFound()
	}
	if err != nil {
		return View{}, err
	}
	if !admin && row.UserID != userID {
		// Hide existence from other customers.
		return View{}, errOrderNotFound()
	}

	items, err := s.reads.ListOrderItems(ctx, id)
	if err != nil {
		return View{}, err
	}
	view := toView(row)
	for _, it := range items {
		iv := ItemView{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSlug: it.ProductSlug,
			Quantity:    it.Quantity,
			Price:       it.Price,
			Size:        textPtr(it.Size),
			Color:       textPtr(it.Color),
		}
		if len(it.Images) > 0 {
			iv.Image = it.Images[0]
		}
		view.Items = append(view.Items, iv)
	}
	return view, nil
}

// UpdateStatus is the admin status transition.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (View, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return View{}, &common.AppError{Code: "INVALID_STATUS", Message: "unknown order status", HTTPStatus: http.StatusUnprocessableEntity}
	}
	row, err := s.reads.UpdateOrderStatus(ctx, id, status)
	if errors.Is(err, pgx.ErrNoRows) {
		return View{}, errOrderNotFound()
	}
	if err != nil {
		return View{}, err
	}
	return toView(row), nil
}

// IsAdmin reports whether the user holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID pgtype.UUID) bool {
	user, err := s.reads.GetUserByID(ctx, userID)
	if err != nil {
		return false
	}
	return user.Role == "admin"
}

func (s *Service) newOrderNumber() string {
	var suffix [3]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		// Fall back to the clock; uniqueness is enforced by the DB.
		return fmt.Sprintf("ORD-%s-%06d", s.now().UTC().Format("20060102"), s.now().UnixNano()%1000000)
	}
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix[:])))
}

func toViews(rows []db.Order) []View {
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, toView(row))
	}
	return out
}

func toView(o db.Order) View {
	return View{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Shipping:      o.Shipping,
		Discount:      o.Discount,
		Total:         o.Total,
		PaymentMethod: textString(o.PaymentMethod),
		PaymentStatus: o.PaymentStatus,
		Notes:         textString(o.Notes),
		CreatedAt:     o.CreatedAt.Time,
	}
}

func errOrderNotFound() *common.AppError {
	return &common.AppError{Code: "ORDER_NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound}
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

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.String
	return &v
}
