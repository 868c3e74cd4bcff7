package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/example/storefront-backend/internal/shared/apperr"
	"github.com/example/storefront-backend/internal/shared/web"
)

type contextKey string

const (
	ctxCustomerID contextKey = "customer_id"
	ctxRole       contextKey = "role"
)

// CustomerID returns the authenticated customer id stored by Middleware.
func CustomerID(ctx context.Context) string {
	id, _ := ctx.Value(ctxCustomerID).(string)
	return id
}

// Middleware validates the bearer token and stores the customer id and role
// in the request context.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				web.RespondError(w, apperr.ErrUnauthorized)
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
				func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return secret, nil
				})
			if err != nil || !token.Valid {
				web.RespondError(w, apperr.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxCustomerID, claims.Subject)
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose token does not carry the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxRole).(string)
		if role != "admin" {
			web.RespondError(w, apperr.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
