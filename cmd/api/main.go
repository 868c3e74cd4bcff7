package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/example/storefront-backend/internal/modules/auth"
	"github.com/example/storefront-backend/internal/modules/cart"
	"github.com/example/storefront-backend/internal/modules/catalog"
	"github.com/example/storefront-backend/internal/modules/order"
	"github.com/example/storefront-backend/internal/modules/payment"
	"github.com/example/storefront-backend/internal/modules/user"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}

	db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Successfully connected to the database!")

	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		log.Fatal("JWT_SECRET is required")
	}
	paystackSecret := os.Getenv("PAYSTACK_SECRET_KEY")
	if paystackSecret == "" {
		log.Fatal("PAYSTACK_SECRET_KEY is required")
	}

	// ── Router ──────────────────────────────────────────────
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	authed := auth.Middleware(jwtSecret)
	admin := func(next http.Handler) http.Handler {
		return authed(auth.RequireAdmin(next))
	}

	// ── Identity ────────────────────────────────────────────
	userRepo := user.NewPostgresRepository(db)
	authService := auth.NewService(userRepo, auth.Config{JWTSecret: jwtSecret})
	auth.NewHandler(authService).RegisterRoutes(router)

	// ── Catalog & Cart ──────────────────────────────────────
	catalogRepo := catalog.NewPostgresRepository(db)
	catalogService := catalog.NewService(catalogRepo)
	catalog.NewHandler(catalogService).RegisterRoutes(router, admin)

	cartRepo := cart.NewPostgresRepository(db)
	cartService := cart.NewService(cartRepo, catalogRepo)
	cart.NewHandler(cartService).RegisterRoutes(router, authed)

	// ── Orders ──────────────────────────────────────────────
	orderRepo := order.NewPostgresRepository(db)
	orderService := order.NewService(orderRepo, cartRepo, catalogRepo, order.DefaultCheckoutConfig())
	order.NewHandler(orderService).RegisterRoutes(router, authed, admin)

	// ── Payments ────────────────────────────────────────────
	gateway := payment.NewPaystackGateway(payment.PaystackConfig{
		SecretKey:   paystackSecret,
		BaseURL:     os.Getenv("PAYSTACK_BASE_URL"),
		CallbackURL: os.Getenv("PAYMENT_CALLBACK_URL"),
	})
	paymentRepo := payment.NewPostgresRepository(db)
	paymentService := payment.NewService(paymentRepo, gateway, orderService, []byte(paystackSecret))
	payment.NewHandler(paymentService).RegisterRoutes(router, authed)

	// ── Start Server ────────────────────────────────────────
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	fmt.Printf("Storefront API server starting on :%s\n", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}
