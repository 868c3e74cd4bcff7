package cart

import (
	"net/http"

	"github.com/example/storefront-backend/internal/modules/auth"
	"github.com/example/storefront-backend/internal/shared/web"
	"github.com/go-chi/chi/v5"
)

// Handler exposes cart HTTP endpoints. All routes require authentication.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux, authed func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authed)
		r.Get("/", h.listLines)
		r.Post("/", h.addLine)
		r.Put("/{id}", h.updateLine)
		r.Delete("/{id}", h.removeLine)
		r.Delete("/", h.clear)
	})
}

func (h *Handler) listLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ListLines(r.Context(), auth.CustomerID(r.Context()))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", lines)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	var req AddLineRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	line, err := h.service.AddLine(r.Context(), auth.CustomerID(r.Context()), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Item added to cart", line)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	var req UpdateLineRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	line, err := h.service.UpdateLine(r.Context(), auth.CustomerID(r.Context()), chi.URLParam(r, "id"), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Cart item updated", line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveLine(r.Context(), auth.CustomerID(r.Context()), chi.URLParam(r, "id")); err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Cart item removed", nil)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearAll(r.Context(), auth.CustomerID(r.Context())); err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Cart cleared", nil)
}
