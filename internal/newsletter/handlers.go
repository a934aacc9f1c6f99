package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tunisianchic/backend-boutique/internal/common"
	"github.com/tunisianchic/backend-boutique/internal/db"
)

// UserReader resolves the subscriber email from the account record.
type UserReader interface {
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// Handler exposes the newsletter endpoints.
type Handler struct {
	service *Service
	users   UserReader
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, users UserReader) *Handler {
	return &Handler{service: service, users: users}
}

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe handles POST /api/v1/newsletter. A fresh signup answers
// 201, a repeat signup answers 200 without touching the ledger row.
func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "newsletter service not configured", nil)
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	created, err := h.service.Subscribe(r.Context(), req.Email)
	if errors.Is(err, ErrInvalidEmail) {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "a valid email is required", nil)
		return
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if created {
		common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"subscribed": true, "created": true}})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"subscribed": true, "created": false}})
}

// Status handles GET /api/v1/newsletter/status. The email comes from
// the authenticated account, never from the client, so one user cannot
// probe another address's ledger state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || h.users == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "newsletter service not configured", nil)
		return
	}
	raw, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var uid pgtype.UUID
	if err := uid.Scan(raw); err != nil {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	user, err := h.users.GetUserByID(r.Context(), uid)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	status, err := h.service.GetStatus(r.Context(), user.Email)
	if errors.Is(err, ErrInvalidEmail) {
		// account without a usable email: simply not subscribed
		common.JSON(w, http.StatusOK, map[string]any{"data": Status{}})
		return
	}
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": status})
}
