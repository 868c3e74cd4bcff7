package catalog

import (
	"net/http"

	"github.com/example/storefront-backend/internal/shared/web"
	"github.com/go-chi/chi/v5"
)

// Handler exposes catalog HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

// RegisterRoutes mounts the public catalog routes; admin guards the writes.
func (h *Handler) RegisterRoutes(r *chi.Mux, admin func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Get("/{id}", h.getProduct)
		r.With(admin).Post("/", h.createProduct)
		r.With(admin).Patch("/{id}/stock", h.adjustStock)
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Product created successfully", p)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	p, err := h.service.AdjustStock(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Stock adjusted", p)
}
