package contact_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/contact"
)

func submit(t *testing.T, h *contact.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Submit(rr, req)
	return rr
}

func TestSubmitRelaysToInbox(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := contact.NewHandler(outbox, "contact@tunisianchic.tn", nil, zerolog.Nop())

	rr := submit(t, h, `{"name":"Amel","email":"amel@example.tn","subject":"Livraison","message":"Où est ma commande ?"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, outbox.Outbox, 1)
	require.Equal(t, "contact@tunisianchic.tn", outbox.Outbox[0].To)
	require.Contains(t, outbox.Outbox[0].Subject, "Livraison")
	require.Contains(t, outbox.Outbox[0].HTML, "amel@example.tn")
}

func TestSubmitHoneypotDropsSilently(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := contact.NewHandler(outbox, "contact@tunisianchic.tn", nil, zerolog.Nop())

	rr := submit(t, h, `{"name":"bot","email":"bot@spam.io","subject":"x","message":"x","website":"https://spam.io"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, "bots must see the same response as humans")
	require.Empty(t, outbox.Outbox)
}

func TestSubmitValidation(t *testing.T) {
	h := contact.NewHandler(&common.InMemoryEmail{}, "contact@tunisianchic.tn", nil, zerolog.Nop())

	require.Equal(t, http.StatusUnprocessableEntity, submit(t, h, `{"name":"Amel"}`).Code)
	require.Equal(t, http.StatusBadRequest, submit(t, h, `{`).Code)
}

func TestSubmitEscapesHTML(t *testing.T) {
	outbox := &common.InMemoryEmail{}
	h := contact.NewHandler(outbox, "contact@tunisianchic.tn", nil, zerolog.Nop())

	rr := submit(t, h, `{"name":"<script>","email":"a@b.tn","subject":"s","message":"<img src=x>"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.NotContains(t, outbox.Outbox[0].HTML, "<script>")
	require.NotContains(t, outbox.Outbox[0].HTML, "<img")
}
