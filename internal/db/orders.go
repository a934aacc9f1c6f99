package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, order_number, user_id, status, subtotal, tax, shipping, discount, total, shipping_address, billing_address, payment_method, payment_status, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Subtotal, &o.Tax, &o.Shipping, &o.Discount, &o.Total, &o.ShippingAddress, &o.BillingAddress, &o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const createOrder = `
INSERT INTO orders (order_number, user_id, status, subtotal, tax, shipping, discount, total, shipping_address, billing_address, payment_method, payment_status, notes)
VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, $10, 'pending', $11)
RETURNING ` + orderColumns + `
`

type CreateOrderParams struct {
	OrderNumber     string
	UserID          pgtype.UUID
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress []byte
	BillingAddress  []byte
	PaymentMethod   pgtype.Text
	Notes           pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.UserID, arg.Subtotal, arg.Tax, arg.Shipping, arg.Discount, arg.Total,
		arg.ShippingAddress, arg.BillingAddress, arg.PaymentMethod, arg.Notes))
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, quantity, price, size, color)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, quantity, price, size, color, created_at
`

type CreateOrderItemParams struct {
	OrderID   int64
	ProductID int64
	Quantity  int32
	Price     decimal.Decimal
	Size      pgtype.Text
	Color     pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.ProductID, arg.Quantity, arg.Price, arg.Size, arg.Color)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Size, &it.Color, &it.CreatedAt)
	return it, err
}

const listOrdersByUser = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listAllOrders = `
SELECT ` + orderColumns + `
FROM orders
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

func (q *Queries) ListAllOrders(ctx context.Context, limit, offset int32) ([]Order, error) {
	rows, err := q.db.Query(ctx, listAllOrders, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const getOrderByID = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrderByID(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const listOrderItems = `
SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, oi.size, oi.color, oi.created_at,
       p.name, p.slug, p.images
FROM order_items oi
JOIN products p ON p.id = oi.product_id
WHERE oi.order_id = $1
ORDER BY oi.id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID int64) ([]OrderItemWithProduct, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OrderItemWithProduct
	for rows.Next() {
		var it OrderItemWithProduct
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.Size, &it.Color, &it.CreatedAt, &it.ProductName, &it.ProductSlug, &it.Images); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns + `
`

func (q *Queries) UpdateOrderStatus(ctx context.Context, id int64, status string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, id, status))
}

const updateOrderPayment = `
UPDATE orders
SET payment_method = $2, payment_status = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns + `
`

func (q *Queries) UpdateOrderPayment(ctx context.Context, id int64, method pgtype.Text, status string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPayment, id, method, status))
}
