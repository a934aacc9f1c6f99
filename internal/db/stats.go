package db

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderStatsRow aggregates the admin dashboard order figures.
type OrderStatsRow struct {
	TotalOrders     int64
	TotalRevenue    decimal.Decimal
	PendingOrders   int64
	CompletedOrders int64
}

const getOrderStats = `
SELECT count(*),
       COALESCE(sum(total), 0),
       count(*) FILTER (WHERE status = 'pending'),
       count(*) FILTER (WHERE status = 'delivered')
FROM orders
`

func (q *Queries) GetOrderStats(ctx context.Context) (OrderStatsRow, error) {
	var s OrderStatsRow
	err := q.db.QueryRow(ctx, getOrderStats).Scan(&s.TotalOrders, &s.TotalRevenue, &s.PendingOrders, &s.CompletedOrders)
	return s, err
}

// MonthlySalesRow is one month of revenue for the dashboard chart.
type MonthlySalesRow struct {
	Month   int32
	Revenue decimal.Decimal
	Orders  int64
}

const getSalesByMonth = `
SELECT extract(month FROM created_at)::int,
       COALESCE(sum(total), 0),
       count(*)
FROM orders
WHERE extract(year FROM created_at) = $1
GROUP BY 1
ORDER BY 1
`

func (q *Queries) GetSalesByMonth(ctx context.Context, year int32) ([]MonthlySalesRow, error) {
	rows, err := q.db.Query(ctx, getSalesByMonth, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MonthlySalesRow
	for rows.Next() {
		var r MonthlySalesRow
		if err := rows.Scan(&r.Month, &r.Revenue, &r.Orders); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PaymentMethodRow counts orders per payment channel.
type PaymentMethodRow struct {
	Method string
	Orders int64
}

const getOrdersByPaymentMethod = `
SELECT COALESCE(payment_method, 'unset'), count(*)
FROM orders
GROUP BY 1
ORDER BY 2 DESC
`

func (q *Queries) GetOrdersByPaymentMethod(ctx context.Context) ([]PaymentMethodRow, error) {
	rows, err := q.db.Query(ctx, getOrdersByPaymentMethod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentMethodRow
	for rows.Next() {
		var r PaymentMethodRow
		if err := rows.Scan(&r.Method, &r.Orders); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ProductStatsRow aggregates inventory health for the dashboard.
type ProductStatsRow struct {
	TotalProducts int64
	ActiveCount   int64
	LowStock      int64
	OutOfStock    int64
}

const getProductStats = `
SELECT count(*),
       count(*) FILTER (WHERE is_active),
       count(*) FILTER (WHERE stock_quantity > 0 AND stock_quantity <= 5),
       count(*) FILTER (WHERE stock_quantity = 0)
FROM products
`

func (q *Queries) GetProductStats(ctx context.Context) (ProductStatsRow, error) {
	var s ProductStatsRow
	err := q.db.QueryRow(ctx, getProductStats).Scan(&s.TotalProducts, &s.ActiveCount, &s.LowStock, &s.OutOfStock)
	return s, err
}
