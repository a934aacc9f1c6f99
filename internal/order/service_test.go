package order_test

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/obs"
	"github.com/tunisianchic/backend-boutique/internal/order"
)

func TestMain(m *testing.M) {
	obs.MustRegisterDomainMetrics("boutique_test", prometheus.NewRegistry())
	os.Exit(m.Run())
}

// memStore backs both the transactional and read interfaces. RunTx
// snapshots state and restores it when fn fails, mimicking rollback.
type memStore struct {
	user         db.User
	cart         []db.CartItemWithProduct
	orders       []db.Order
	items        []db.OrderItem
	events       []string
	discountLeft bool
	claimErr     error
	nextOrderID  int64
}

func (m *memStore) RunTx(_ context.Context, fn func(q order.TxQueries) error) error {
	snapshot := *m
	cart := append([]db.CartItemWithProduct(nil), m.cart...)
	orders := append([]db.Order(nil), m.orders...)
	items := append([]db.OrderItem(nil), m.items...)
	events := append([]string(nil), m.events...)
	if err := fn(m); err != nil {
		*m = snapshot
		m.cart, m.orders, m.items, m.events = cart, orders, items, events
		return err
	}
	return nil
}

func (m *memStore) ListCartItems(_ context.Context, userID pgtype.UUID) ([]db.CartItemWithProduct, error) {
	var out []db.CartItemWithProduct
	for _, it := range m.cart {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) CreateOrder(_ context.Context, arg db.CreateOrderParams) (db.Order, error) {
	m.nextOrderID++
	o := db.Order{
		ID:            m.nextOrderID,
		OrderNumber:   arg.OrderNumber,
		UserID:        arg.UserID,
		Status:        "pending",
		Subtotal:      arg.Subtotal,
		Tax:           arg.Tax,
		Shipping:      arg.Shipping,
		Discount:      arg.Discount,
		Total:         arg.Total,
		PaymentStatus: "pending",
		PaymentMethod: arg.PaymentMethod,
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) CreateOrderItem(_ context.Context, arg db.CreateOrderItemParams) (db.OrderItem, error) {
	it := db.OrderItem{
		ID:        int64(len(m.items) + 1),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Quantity:  arg.Quantity,
		Price:     arg.Price,
		Size:      arg.Size,
		Color:     arg.Color,
	}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memStore) ClearCart(_ context.Context, userID pgtype.UUID) error {
	kept := m.cart[:0]
	for _, it := range m.cart {
		if it.UserID != userID {
			kept = append(kept, it)
		}
	}
	m.cart = kept
	return nil
}

func (m *memStore) InsertDomainEvent(_ context.Context, topic, aggregateID string, _ []byte) error {
	m.events = append(m.events, topic+":"+aggregateID)
	return nil
}

func (m *memStore) MarkDiscountUsed(context.Context, string) (int64, error) {
	if m.claimErr != nil {
		return 0, m.claimErr
	}
	if m.discountLeft {
		m.discountLeft = false
		return 1, nil
	}
	return 0, nil
}

func (m *memStore) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	if m.user.ID == id {
		return m.user, nil
	}
	return db.User{}, pgx.ErrNoRows
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID pgtype.UUID, _, _ int32) ([]db.Order, error) {
	var out []db.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) ListAllOrders(context.Context, int32, int32) ([]db.Order, error) {
	return append([]db.Order(nil), m.orders...), nil
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (db.Order, error) {
	for _, o := range m.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return db.Order{}, pgx.ErrNoRows
}

func (m *memStore) ListOrderItems(_ context.Context, orderID int64) ([]db.OrderItemWithProduct, error) {
	var out []db.OrderItemWithProduct
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, db.OrderItemWithProduct{OrderItem: it, ProductName: "Fouta"})
		}
	}
	return out, nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id int64, status string) (db.Order, error) {
	for i, o := range m.orders {
		if o.ID == id {
			m.orders[i].Status = status
			return m.orders[i], nil
		}
	}
	return db.Order{}, pgx.ErrNoRows
}

// lockedStore serializes transactions the way the ledger row lock does
// when two checkouts run at once, and serves accounts sharing an email.
type lockedStore struct {
	mu sync.Mutex
	memStore
	users []db.User
}

func (l *lockedStore) RunTx(ctx context.Context, fn func(q order.TxQueries) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.memStore.RunTx(ctx, fn)
}

func (l *lockedStore) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	for _, u := range l.users {
		if u.ID == id {
			return u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

type fixedEligibility bool

func (f fixedEligibility) Eligible(context.Context, string) bool { return bool(f) }

type captureNotifier struct{ got []order.Created }

func (c *captureNotifier) OrderCreated(_ context.Context, o order.Created) {
	c.got = append(c.got, o)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func uid(b byte) pgtype.UUID {
	var id pgtype.UUID
	id.Bytes[0] = b
	id.Valid = true
	return id
}

func cartRow(user pgtype.UUID, productID int64, qty int32, price string) db.CartItemWithProduct {
	return db.CartItemWithProduct{
		CartItem: db.CartItem{
			UserID:    user,
			ProductID: productID,
			Quantity:  qty,
		},
		ProductName:  "Fouta",
		ProductSlug:  "fouta",
		Price:        dec(price),
		ProductAlive: true,
	}
}

func newStore(eligible bool) *memStore {
	user := uid(1)
	return &memStore{
		user:         db.User{ID: user, Email: "amel@example.tn", Role: "customer"},
		discountLeft: eligible,
	}
}

func newService(t *testing.T, store *memStore, eligible bool, notifiers ...order.Notifier) *order.Service {
	t.Helper()
	svc, err := order.NewService(order.ServiceConfig{
		Runner:    store,
		Reads:     store,
		News:      fixedEligibility(eligible),
		Logger:    zerolog.Nop(),
		Notifiers: notifiers,
	})
	require.NoError(t, err)
	return svc.WithNow(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func checkout() order.CreateInput {
	return order.CreateInput{
		ShippingAddress: order.Address{
			FullName:   "Amel Ben Salah",
			Street:     "12 Rue de Marseille",
			City:       "Tunis",
			PostalCode: "1000",
			Country:    "TN",
		},
	}
}

func TestCreateAppliesDiscountAndClearsCart(t *testing.T) {
	store := newStore(true)
	store.cart = append(store.cart, cartRow(uid(1), 1, 2, "100.00"))
	notifier := &captureNotifier{}
	svc := newService(t, store, true, notifier)

	view, err := svc.Create(context.Background(), uid(1), checkout())
	require.NoError(t, err)

	// 200 subtotal, 10% discount, free shipping, 19% tax.
	require.True(t, view.Subtotal.Equal(dec("200.00")))
	require.True(t, view.Discount.Equal(dec("20.00")))
	require.True(t, view.Shipping.IsZero())
	require.True(t, view.Tax.Equal(dec("38.00")))
	require.True(t, view.Total.Equal(dec("218.00")), "got total %s", view.Total)

	require.Empty(t, store.cart, "cart must be wiped in the same transaction")
	require.False(t, store.discountLeft, "ledger flip must commit with the order")
	require.Len(t, store.events, 1)
	require.Contains(t, store.events[0], "order.created:")
	require.Len(t, notifier.got, 1)
	require.Equal(t, "amel@example.tn", notifier.got[0].Email)
	require.Regexp(t, `^ORD-20250601-[0-9A-F]{6}$`, view.OrderNumber)
}

func TestCreateLostRaceReprices(t *testing.T) {
	// Eligible at read time, but another checkout already flipped the
	// ledger row: zero rows affected, so the order reprices without
	// the discount.
	store := newStore(false)
	store.cart = append(store.cart, cartRow(uid(1), 1, 2, "100.00"))
	svc := newService(t, store, true)

	view, err := svc.Create(context.Background(), uid(1), checkout())
	require.NoError(t, err)
	require.True(t, view.Discount.IsZero())
	require.True(t, view.Total.Equal(dec("238.00")), "got total %s", view.Total)
}

func TestCreateConcurrentCheckoutsShareOneDiscount(t *testing.T) {
	// Two accounts subscribed with the same address check out at the
	// same time. Only one may keep the 10% discount; the other must
	// reprice inside its transaction.
	store := &lockedStore{
		memStore: memStore{discountLeft: true},
		users: []db.User{
			{ID: uid(1), Email: "amel@example.tn", Role: "customer"},
			{ID: uid(2), Email: "amel@example.tn", Role: "customer"},
		},
	}
	store.cart = append(store.cart,
		cartRow(uid(1), 1, 2, "100.00"),
		cartRow(uid(2), 1, 2, "100.00"),
	)
	svc, err := order.NewService(order.ServiceConfig{
		Runner: store,
		Reads:  store,
		News:   fixedEligibility(true),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		views [2]order.View
		errs  [2]error
	)
	for i, user := range []pgtype.UUID{uid(1), uid(2)} {
		wg.Add(1)
		go func(i int, user pgtype.UUID) {
			defer wg.Done()
			views[i], errs[i] = svc.Create(context.Background(), user, checkout())
		}(i, user)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	totals := []string{views[0].Total.StringFixed(2), views[1].Total.StringFixed(2)}
	sort.Strings(totals)
	require.Equal(t, []string{"218.00", "238.00"}, totals, "exactly one checkout keeps the discount")
	require.False(t, store.discountLeft, "ledger row flips once")
	require.Len(t, store.orders, 2)
	require.Empty(t, store.cart, "both carts wiped")
}

func TestCreateEmptyCartRejected(t *testing.T) {
	store := newStore(false)
	svc := newService(t, store, false)

	_, err := svc.Create(context.Background(), uid(1), checkout())
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "EMPTY_CART", appErr.Code)
	require.Empty(t, store.orders)
}

func TestCreateSkipsDeadProducts(t *testing.T) {
	store := newStore(false)
	dead := cartRow(uid(1), 9, 1, "50.00")
	dead.ProductAlive = false
	store.cart = append(store.cart, dead, cartRow(uid(1), 1, 1, "30.00"))
	svc := newService(t, store, false)

	view, err := svc.Create(context.Background(), uid(1), checkout())
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.True(t, view.Subtotal.Equal(dec("30.00")))
	// Below the threshold: flat shipping applies.
	require.True(t, view.Shipping.Equal(dec("7.00")))
}

func TestCreateRollsBackOnClaimFailure(t *testing.T) {
	store := newStore(true)
	store.cart = append(store.cart, cartRow(uid(1), 1, 1, "10.00"))
	store.claimErr = errors.New("ledger down")
	svc := newService(t, store, true)

	_, err := svc.Create(context.Background(), uid(1), checkout())
	require.Error(t, err)
	require.Empty(t, store.orders, "failed checkout must leave no order behind")
	require.Len(t, store.cart, 1, "failed checkout must keep the cart")
}

func TestGetHidesForeignOrders(t *testing.T) {
	store := newStore(false)
	store.cart = append(store.cart, cartRow(uid(1), 1, 1, "30.00"))
	svc := newService(t, store, false)

	view, err := svc.Create(context.Background(), uid(1), checkout())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), view.ID, uid(2), false)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ORDER_NOT_FOUND", appErr.Code)

	got, err := svc.Get(context.Background(), view.ID, uid(2), true)
	require.NoError(t, err)
	require.Equal(t, view.OrderNumber, got.OrderNumber)
}

func TestUpdateStatusValidation(t *testing.T) {
	store := newStore(false)
	store.cart = append(store.cart, cartRow(uid(1), 1, 1, "30.00"))
	svc := newService(t, store, false)

	view, err := svc.Create(context.Background(), uid(1), checkout())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), view.ID, "teleported")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATUS", appErr.Code)

	updated, err := svc.UpdateStatus(context.Background(), view.ID, "Shipped")
	require.NoError(t, err)
	require.Equal(t, "shipped", updated.Status)

	_, err = svc.UpdateStatus(context.Background(), 404, "shipped")
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "ORDER_NOT_FOUND", appErr.Code)
}
