package stats

import (
	"net/http"

	"github.com/tunisianchic/backend-boutique/internal/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Dashboard handles the admin GET /admin/stats.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// Orders serves the order-side aggregates only.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"totalOrders":     d.TotalOrders,
		"totalRevenue":    d.TotalRevenue,
		"pendingOrders":   d.PendingOrders,
		"completedOrders": d.CompletedOrders,
		"salesThisYear":   d.SalesThisYear,
		"salesLastYear":   d.SalesLastYear,
		"paymentMethods":  d.PaymentMethods,
	}})
}

// Products serves the stock aggregates only.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"totalProducts":  d.TotalProducts,
		"activeProducts": d.ActiveProducts,
		"lowStock":       d.LowStock,
		"outOfStock":     d.OutOfStock,
	}})
}

// Customers serves the customer count.
func (h *Handler) Customers(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"totalCustomers": d.TotalCustomers,
	}})
}
