package payment

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tunisianchic/backend-boutique/internal/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /payments/providers.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Providers()})
}

// Start handles POST /payments/{provider}.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var userID pgtype.UUID
	if err := userID.Scan(raw); err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}

	var in struct {
		OrderID   int64  `json:"orderId"`
		ReturnURL string `json:"returnUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be valid JSON", nil)
		return
	}
	if in.OrderID <= 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "orderId is required", nil)
		return
	}
	if !validReturnURL(in.ReturnURL) {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "returnUrl must be an absolute http(s) URL", nil)
		return
	}

	session, err := h.service.Start(r.Context(), chi.URLParam(r, "provider"), in.OrderID, userID, in.ReturnURL)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": session})
}

func validReturnURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != "" && !strings.Contains(raw, " ")
}
