package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listCartItems = `
SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.size, ci.color, ci.created_at, ci.updated_at,
       p.name, p.slug, p.price, p.sale_price, p.images, p.stock_quantity, p.is_active
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
ORDER BY ci.created_at
`

func (q *Queries) ListCartItems(ctx context.Context, userID pgtype.UUID) ([]CartItemWithProduct, error) {
	rows, err := q.db.Query(ctx, listCartItems, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CartItemWithProduct
	for rows.Next() {
		var it CartItemWithProduct
		if err := rows.Scan(
			&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Size, &it.Color, &it.CreatedAt, &it.UpdatedAt,
			&it.ProductName, &it.ProductSlug, &it.Price, &it.SalePrice, &it.Images, &it.StockQty, &it.ProductAlive,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Same product in the same size and color merges into one line.
const upsertCartItem = `
INSERT INTO cart_items (user_id, product_id, quantity, size, color)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id, size, color)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING id, user_id, product_id, quantity, size, color, created_at, updated_at
`

type UpsertCartItemParams struct {
	UserID    pgtype.UUID
	ProductID int64
	Quantity  int32
	Size      pgtype.Text
	Color     pgtype.Text
}

func (q *Queries) UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, upsertCartItem, arg.UserID, arg.ProductID, arg.Quantity, arg.Size, arg.Color)
	var it CartItem
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Size, &it.Color, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

const updateCartItemQuantity = `
UPDATE cart_items
SET quantity = $3, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, product_id, quantity, size, color, created_at, updated_at
`

func (q *Queries) UpdateCartItemQuantity(ctx context.Context, id int64, userID pgtype.UUID, quantity int32) (CartItem, error) {
	row := q.db.QueryRow(ctx, updateCartItemQuantity, id, userID, quantity)
	var it CartItem
	err := row.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Size, &it.Color, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

const deleteCartItem = `
DELETE FROM cart_items WHERE id = $1 AND user_id = $2
`

func (q *Queries) DeleteCartItem(ctx context.Context, id int64, userID pgtype.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteCartItem, id, userID)
	return tag.RowsAffected(), err
}

const clearCart = `
DELETE FROM cart_items WHERE user_id = $1
`

func (q *Queries) ClearCart(ctx context.Context, userID pgtype.UUID) error {
	_, err := q.db.Exec(ctx, clearCart, userID)
	return err
}
