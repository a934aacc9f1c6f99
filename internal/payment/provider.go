package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/obs"
)

// InitRequest asks a gateway to open a hosted checkout session. The
// amount is always the committed order total, never a client value.
type InitRequest struct {
	Amount      decimal.Decimal
	OrderNumber string
	ReturnURL   string
}

// Provider opens a hosted checkout session with one payment gateway.
type Provider interface {
	Name() string
	Init(ctx context.Context, req InitRequest) (redirectURL string, err error)
}

var errGatewayResponse = errors.New("payment: gateway returned no redirect url")

// Queries is the order access the payment service needs.
type Queries interface {
	GetOrderByID(ctx context.Context, id int64) (db.Order, error)
	UpdateOrderPayment(ctx context.Context, id int64, method pgtype.Text, status string) (db.Order, error)
}

type Service struct {
	providers map[string]Provider
	q         Queries
	log       zerolog.Logger
}

func NewService(q Queries, log zerolog.Logger, providers ...Provider) (*Service, error) {
	if q == nil {
		return nil, errors.New("payment: queries are required")
	}
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Service{providers: m, q: q, log: log}, nil
}

// Providers lists the configured gateway names, sorted.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Session is the payload returned to the storefront.
type Session struct {
	Provider string `json:"provider"`
	URL      string `json:"url"`
}

// Start opens a gateway session for an order the caller owns. The
// charged amount comes from the order row; the client only chooses the
// gateway and the return URL.
func (s *Service) Start(ctx context.Context, provider string, orderID int64, userID pgtype.UUID, returnURL string) (Session, error) {
	p, ok := s.providers[strings.ToLower(provider)]
	if !ok {
		return Session{}, &common.AppError{Code: "UNKNOWN_PROVIDER", Message: "unsupported payment provider", HTTPStatus: http.StatusNotFound}
	}

	order, err := s.q.GetOrderByID(ctx, orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, orderNotFound()
	}
	if err != nil {
		return Session{}, err
	}
	if order.UserID != userID {
		return Session{}, orderNotFound()
	}
	if order.PaymentStatus == "paid" {
		return Session{}, &common.AppError{Code: "ALREADY_PAID", Message: "order is already paid", HTTPStatus: http.StatusConflict}
	}

	url, err := p.Init(ctx, InitRequest{
		Amount:      order.Total,
		OrderNumber: order.OrderNumber,
		ReturnURL:   returnURL,
	})
	if err != nil {
		obs.PaymentIntentTotal.WithLabelValues(p.Name(), "failed").Inc()
		s.log.Error().Err(err).Str("provider", p.Name()).Str("order_number", order.OrderNumber).Msg("payment session init failed")
		return Session{}, &common.AppError{Code: "GATEWAY_ERROR", Message: "payment gateway unavailable", HTTPStatus: http.StatusBadGateway, Err: err}
	}

	if _, err := s.q.UpdateOrderPayment(ctx, order.ID, pgtype.Text{String: p.Name(), Valid: true}, "pending"); err != nil {
		return Session{}, fmt.Errorf("record payment method: %w", err)
	}

	obs.PaymentIntentTotal.WithLabelValues(p.Name(), "created").Inc()
	return Session{Provider: p.Name(), URL: url}, nil
}

// millimes converts a TND amount to the integer millime unit the
// Tunisian gateways expect.
func millimes(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(1000)).Round(0).IntPart()
}

func orderNotFound() *common.AppError {
	return &common.AppError{Code: "ORDER_NOT_FOUND", Message: "order not found", HTTPStatus: http.StatusNotFound}
}
