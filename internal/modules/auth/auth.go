package auth

import (
	"context"

	"github.com/example/storefront-backend/internal/modules/user"
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	// Register creates a new customer account with a bcrypt-hashed password.
	Register(ctx context.Context, name, email, password string) (*user.User, error)

	// Login verifies credentials and returns a signed JWT.
	Login(ctx context.Context, email, password string) (string, error)
}

// Config carries the signing secret instead of a package-level variable so
// the key is injected at construction time.
type Config struct {
	JWTSecret []byte
}
