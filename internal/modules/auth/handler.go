package auth

import (
	"net/http"

	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/example/storefront-backend/internal/shared/web"
	"github.com/go-chi/chi/v5"
)

// Handler exposes authentication HTTP endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}

	u, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		web.RespondError(w, err)
		return
	}
	web.Respond(w, http.StatusCreated, "Account created successfully", u)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := web.DecodeJSON(r, &req); err != nil {
		web.RespondError(w, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		web.RespondError(w, apperr.ErrUnauthorized)
		return
	}
	web.Respond(w, http.StatusOK, "Login successful", map[string]string{"token": token})
}
