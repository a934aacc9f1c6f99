package db

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// User is a storefront account. Role is either "customer" or "admin".
type User struct {
	ID           pgtype.UUID
	Email        string
	PasswordHash string
	FirstName    pgtype.Text
	LastName     pgtype.Text
	Phone        pgtype.Text
	Address      pgtype.Text
	City         pgtype.Text
	PostalCode   pgtype.Text
	Role         string
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Session stores a hashed refresh token for cookie-based rotation.
type Session struct {
	ID           pgtype.UUID
	UserID       pgtype.UUID
	RefreshToken string
	UserAgent    pgtype.Text
	IP           pgtype.Text
	ExpiresAt    pgtype.Timestamptz
	CreatedAt    pgtype.Timestamptz
}

type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description pgtype.Text
	ImageURL    pgtype.Text
	ParentID    pgtype.Int8
	IsActive    bool
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

// Product money columns are NUMERIC(10,2) scanned as shopspring decimals.
type Product struct {
	ID               int64
	Name             string
	Slug             string
	Description      pgtype.Text
	ShortDescription pgtype.Text
	Price            decimal.Decimal
	SalePrice        decimal.NullDecimal
	SKU              pgtype.Text
	StockQuantity    int32
	CategoryID       pgtype.Int8
	Images           []string
	Sizes            []string
	Colors           []string
	Tags             []string
	IsActive         bool
	IsFeatured       bool
	AverageRating    decimal.Decimal
	ReviewsCount     int32
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

type CartItem struct {
	ID        int64
	UserID    pgtype.UUID
	ProductID int64
	Quantity  int32
	Size      pgtype.Text
	Color     pgtype.Text
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

// CartItemWithProduct joins the cart row with the product fields the
// storefront needs to render a line.
type CartItemWithProduct struct {
	CartItem
	ProductName  string
	ProductSlug  string
	Price        decimal.Decimal
	SalePrice    decimal.NullDecimal
	Images       []string
	StockQty     int32
	ProductAlive bool
}

type Order struct {
	ID              int64
	OrderNumber     string
	UserID          pgtype.UUID
	Status          string
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Shipping        decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	ShippingAddress []byte
	BillingAddress  []byte
	PaymentMethod   pgtype.Text
	PaymentStatus   string
	Notes           pgtype.Text
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int32
	Price     decimal.Decimal
	Size      pgtype.Text
	Color     pgtype.Text
	CreatedAt pgtype.Timestamptz
}

// OrderItemWithProduct carries the product name for order detail payloads.
type OrderItemWithProduct struct {
	OrderItem
	ProductName string
	ProductSlug string
	Images      []string
}

type Review struct {
	ID         int64
	ProductID  int64
	UserID     pgtype.UUID
	Rating     int32
	Title      pgtype.Text
	Comment    pgtype.Text
	IsVerified bool
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

// ReviewWithAuthor joins reviews with the author's display name.
type ReviewWithAuthor struct {
	Review
	AuthorFirstName pgtype.Text
	AuthorLastName  pgtype.Text
}

type NewsletterSubscription struct {
	ID           int64
	Email        string
	DiscountUsed bool
	CreatedAt    pgtype.Timestamptz
}

type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}
