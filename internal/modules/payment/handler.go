package payment

import (
	"io"
	"net/http"

	"github.com/example/storefront-backend/internal/modules/auth"
	"github.com/example/storefront-backend/internal/shared/web"
	"github.com/go-chi/chi/v5"
)

// Handler exposes payment HTTP endpoints. The webhook route carries no auth
// middleware; the HMAC signature is its authentication.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux, authed func(http.Handler) http.Handler) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/webhook", h.webhook)
		r.With(authed).Post("/initialize", h.initialize)
		r.With(authed).Get("/verify/{reference}", h.verify)
		r.With(authed).Get("/", h.listMyPayments)
		r.With(authed).Get("/{id}", h.getPayment)
	})
}

func (h *Handler) initialize(w http.ResponseWriter, r *http.Request) {
	var req InitializeRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}
	result, err := h.service.Initialize(r.Context(), auth.CustomerID(r.Context()), req)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Payment initialized successfully", result)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Verify(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Payment "+string(p.Status), p)
}

// webhook reads the raw body before any decoding so the signature check
// covers exactly the bytes the provider signed.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		web.RespondError(w, err)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), r.Header.Get("x-paystack-signature"), body); err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "Webhook received", nil)
}

func (h *Handler) listMyPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListByCustomer(r.Context(), auth.CustomerID(r.Context()))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", payments)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByID(r.Context(), auth.CustomerID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusOK, "", p)
}
