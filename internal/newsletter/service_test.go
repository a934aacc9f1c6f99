package newsletter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
	"github.com/tunisianchic/backend-boutique/internal/newsletter"
)

type fakeLedger struct {
	rows     map[string]*db.NewsletterSubscription
	failWith error
	flips    int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: map[string]*db.NewsletterSubscription{}}
}

func (f *fakeLedger) InsertSubscription(_ context.Context, email string) (db.NewsletterSubscription, bool, error) {
	if f.failWith != nil {
		return db.NewsletterSubscription{}, false, f.failWith
	}
	if existing, ok := f.rows[email]; ok {
		return *existing, false, nil
	}
	sub := &db.NewsletterSubscription{ID: int64(len(f.rows) + 1), Email: email}
	f.rows[email] = sub
	return *sub, true, nil
}

func (f *fakeLedger) GetSubscriptionByEmail(_ context.Context, email string) (db.NewsletterSubscription, error) {
	if f.failWith != nil {
		return db.NewsletterSubscription{}, f.failWith
	}
	if sub, ok := f.rows[strings.ToLower(email)]; ok {
		return *sub, nil
	}
	return db.NewsletterSubscription{}, pgx.ErrNoRows
}

func (f *fakeLedger) MarkDiscountUsed(_ context.Context, email string) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	sub, ok := f.rows[strings.ToLower(email)]
	if !ok || sub.DiscountUsed {
		return 0, nil
	}
	sub.DiscountUsed = true
	f.flips++
	return 1, nil
}

func newService(ledger *fakeLedger) *newsletter.Service {
	return &newsletter.Service{Q: ledger, Log: zerolog.Nop()}
}

func TestSubscribeNormalisesAndDeduplicates(t *testing.T) {
	ledger := newFakeLedger()
	svc := newService(ledger)

	created, err := svc.Subscribe(context.Background(), "  Amira@Example.COM ")
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.Subscribe(context.Background(), "amira@example.com")
	require.NoError(t, err)
	require.False(t, created)

	require.Len(t, ledger.rows, 1)
	_, ok := ledger.rows["amira@example.com"]
	require.True(t, ok, "row must be stored lowercased")
}

func TestRepeatSignupDoesNotResetDiscount(t *testing.T) {
	ledger := newFakeLedger()
	svc := newService(ledger)

	_, err := svc.Subscribe(context.Background(), "sami@example.com")
	require.NoError(t, err)
	won, err := newsletter.ClaimDiscount(context.Background(), ledger, "sami@example.com")
	require.NoError(t, err)
	require.True(t, won)

	created, err := svc.Subscribe(context.Background(), "SAMI@example.com")
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, ledger.rows["sami@example.com"].DiscountUsed, "repeat signup must not reset the flag")
}

func TestGetStatus(t *testing.T) {
	ledger := newFakeLedger()
	svc := newService(ledger)

	status, err := svc.GetStatus(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.False(t, status.Subscribed)
	require.False(t, status.DiscountAvailable)

	_, err = svc.Subscribe(context.Background(), "leila@example.com")
	require.NoError(t, err)

	status, err = svc.GetStatus(context.Background(), "Leila@Example.com")
	require.NoError(t, err)
	require.True(t, status.Subscribed)
	require.True(t, status.DiscountAvailable)

	_, err = newsletter.ClaimDiscount(context.Background(), ledger, "leila@example.com")
	require.NoError(t, err)

	status, err = svc.GetStatus(context.Background(), "leila@example.com")
	require.NoError(t, err)
	require.True(t, status.Subscribed)
	require.False(t, status.DiscountAvailable)
}

func TestClaimDiscountIsExclusive(t *testing.T) {
	ledger := newFakeLedger()
	svc := newService(ledger)

	_, err := svc.Subscribe(context.Background(), "yosr@example.com")
	require.NoError(t, err)

	won, err := newsletter.ClaimDiscount(context.Background(), ledger, "yosr@example.com")
	require.NoError(t, err)
	require.True(t, won)

	won, err = newsletter.ClaimDiscount(context.Background(), ledger, "yosr@example.com")
	require.NoError(t, err)
	require.False(t, won, "second claim must lose")
	require.Equal(t, 1, ledger.flips)
}

func TestEligibleFailsSoft(t *testing.T) {
	ledger := newFakeLedger()
	ledger.failWith = context.DeadlineExceeded
	svc := newService(ledger)

	require.False(t, svc.Eligible(context.Background(), "any@example.com"))
}

func TestSubscribeHandlerStatusCodes(t *testing.T) {
	ledger := newFakeLedger()
	h := newsletter.NewHandler(newService(ledger), fakeUsers{})

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/newsletter", strings.NewReader(body))
		rr := httptest.NewRecorder()
		h.Subscribe(rr, req)
		return rr
	}

	require.Equal(t, http.StatusCreated, do(`{"email":"nour@example.com"}`).Code)
	require.Equal(t, http.StatusOK, do(`{"email":"Nour@Example.com"}`).Code)
	require.Equal(t, http.StatusUnprocessableEntity, do(`{"email":"not-an-email"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(`{`).Code)
}

type fakeUsers map[string]db.User

func (f fakeUsers) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	u, ok := f[uuidString(id)]
	if !ok {
		return db.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func uuidString(id pgtype.UUID) string {
	v, _ := id.Value()
	s, _ := v.(string)
	return s
}

func statusRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/newsletter/status", nil)
	return req.WithContext(common.WithUserID(req.Context(), userID))
}

func TestStatusUsesAccountEmail(t *testing.T) {
	const uid = "bbbbbbbb-0000-0000-0000-000000000001"
	ledger := newFakeLedger()
	_, err := newService(ledger).Subscribe(context.Background(), "ines@example.com")
	require.NoError(t, err)

	users := fakeUsers{uid: {Email: "ines@example.com"}}
	h := newsletter.NewHandler(newService(ledger), users)

	rr := httptest.NewRecorder()
	h.Status(rr, statusRequest(uid))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"subscribed":true`)
	require.Contains(t, rr.Body.String(), `"discountAvailable":true`)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestStatusIgnoresEmailQueryParam(t *testing.T) {
	const uid = "bbbbbbbb-0000-0000-0000-000000000002"
	ledger := newFakeLedger()
	_, err := newService(ledger).Subscribe(context.Background(), "victim@example.com")
	require.NoError(t, err)

	users := fakeUsers{uid: {Email: "curious@example.com"}}
	h := newsletter.NewHandler(newService(ledger), users)

	req := httptest.NewRequest(http.MethodGet, "/newsletter/status?email=victim@example.com", nil)
	req = req.WithContext(common.WithUserID(req.Context(), uid))
	rr := httptest.NewRecorder()
	h.Status(rr, req)

	// answers for the caller's own (unsubscribed) address
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"subscribed":false`)
}

func TestStatusWithoutAuth(t *testing.T) {
	h := newsletter.NewHandler(newService(newFakeLedger()), fakeUsers{})
	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/newsletter/status", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
