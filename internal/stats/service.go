package stats

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tunisianchic/backend-boutique/internal/catalog"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

const dashboardCacheKey = "stats:dashboard"

// Querier is the aggregate slice of the query layer the dashboard uses.
type Querier interface {
	GetOrderStats(ctx context.Context) (db.OrderStatsRow, error)
	GetSalesByMonth(ctx context.Context, year int32) ([]db.MonthlySalesRow, error)
	GetOrdersByPaymentMethod(ctx context.Context) ([]db.PaymentMethodRow, error)
	GetProductStats(ctx context.Context) (db.ProductStatsRow, error)
	CountCustomers(ctx context.Context) (int64, error)
}

type Service struct {
	q     Querier
	cache *catalog.Cache
	now   func() time.Time
}

func NewService(q Querier, cache *catalog.Cache) (*Service, error) {
	if q == nil {
		return nil, errors.New("stats: queries are required")
	}
	return &Service{q: q, cache: cache, now: time.Now}, nil
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

type MonthPoint struct {
	Month   int32           `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

type MethodPoint struct {
	Method string `json:"method"`
	Orders int64  `json:"orders"`
}

// Dashboard is the admin statistics payload. Monthly sales cover the
// current and the previous year.
type Dashboard struct {
	TotalOrders     int64           `json:"totalOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	PendingOrders   int64           `json:"pendingOrders"`
	CompletedOrders int64           `json:"completedOrders"`
	TotalCustomers  int64           `json:"totalCustomers"`
	TotalProducts   int64           `json:"totalProducts"`
	ActiveProducts  int64           `json:"activeProducts"`
	LowStock        int64           `json:"lowStock"`
	OutOfStock      int64           `json:"outOfStock"`
	SalesThisYear   []MonthPoint    `json:"salesThisYear"`
	SalesLastYear   []MonthPoint    `json:"salesLastYear"`
	PaymentMethods  []MethodPoint   `json:"paymentMethods"`
}

// Get assembles the dashboard, served from cache when fresh. The
// aggregates are cheap enough that a short TTL keeps them honest.
func (s *Service) Get(ctx context.Context) (Dashboard, error) {
	if s.cache != nil {
		var cached Dashboard
		if ok, err := s.cache.GetJSON(ctx, dashboardCacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	orders, err := s.q.GetOrderStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	products, err := s.q.GetProductStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	customers, err := s.q.CountCustomers(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	year := int32(s.now().Year())
	thisYear, err := s.q.GetSalesByMonth(ctx, year)
	if err != nil {
		return Dashboard{}, err
	}
	lastYear, err := s.q.GetSalesByMonth(ctx, year-1)
	if err != nil {
		return Dashboard{}, err
	}
	methods, err := s.q.GetOrdersByPaymentMethod(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		TotalOrders:     orders.TotalOrders,
		TotalRevenue:    orders.TotalRevenue,
		PendingOrders:   orders.PendingOrders,
		CompletedOrders: orders.CompletedOrders,
		TotalCustomers:  customers,
		TotalProducts:   products.TotalProducts,
		ActiveProducts:  products.ActiveCount,
		LowStock:        products.LowStock,
		OutOfStock:      products.OutOfStock,
		SalesThisYear:   toMonthPoints(thisYear),
		SalesLastYear:   toMonthPoints(lastYear),
		PaymentMethods:  toMethodPoints(methods),
	}
	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, dashboardCacheKey, d)
	}
	return d, nil
}

func toMonthPoints(rows []db.MonthlySalesRow) []MonthPoint {
	out := make([]MonthPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, MonthPoint{Month: r.Month, Revenue: r.Revenue, Orders: r.Orders})
	}
	return out
}

func toMethodPoints(rows []db.PaymentMethodRow) []MethodPoint {
	out := make([]MethodPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, MethodPoint{Method: r.Method, Orders: r.Orders})
	}
	return out
}
