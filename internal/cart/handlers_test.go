package cart_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/cart"
	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

const testUserRaw = "aaaaaaaa-0000-0000-0000-000000000001"

func newCartRouter(t *testing.T, store *fakeStore) chi.Router {
	t.Helper()
	svc, err := cart.NewService(store, nil)
	require.NoError(t, err)
	h := cart.NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithUserID(req.Context(), testUserRaw)))
		})
	})
	r.Get("/cart", h.Get)
	r.Post("/cart", h.Add)
	r.Put("/cart/{itemId}", h.UpdateQuantity)
	r.Delete("/cart/{itemId}", h.Remove)
	r.Delete("/cart", h.Clear)
	return r
}

func TestHandlerUpdateByNumericID(t *testing.T) {
	store := newFakeStore()
	store.products[1] = db.Product{ID: 1, Name: "Fouta", Slug: "fouta", Price: dec("25.00"), IsActive: true}
	router := newCartRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cart",
		strings.NewReader(`{"productId":1,"quantity":2}`)))
	require.Equal(t, http.StatusCreated, rr.Code)

	require.Len(t, store.items, 1)
	require.Equal(t, int64(1), store.items[0].ID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/cart/1",
		strings.NewReader(`{"quantity":4}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"quantity":4`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/cart/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerRejectsNonNumericItemID(t *testing.T) {
	store := newFakeStore()
	router := newCartRouter(t, store)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/cart/not-a-number",
		strings.NewReader(`{"quantity":2}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_ID")
}
