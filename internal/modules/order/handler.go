package order

import (
	"net/http"

	"github.com/example/storefront-backend/internal/modules/auth"
	"github.com/example/storefront-backend/internal/shared/web"
	"github.com/go-chi/chi/v5"
)

// Handler exposes order HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux, authed, admin func(http.Handler) http.Handler) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(authed)
		r.Post("/checkout", h.checkout)
		r.Get("/", h.listMyOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.With(admin).Put("/{id}/status", h.updateStatus)
	})
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	o, err := h.service.Checkout(r.Context(), auth.CustomerID(r.Context()), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Order created successfully", o)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListCustomerOrders(r.Context(),
		auth.CustomerID(r.Context()), r.URL.Query().Get("status"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.GetOrder(r.Context(), auth.CustomerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.CancelOrder(r.Context(), auth.CustomerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Order cancelled successfully", o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Order status updated successfully", o)
}
