/**
 * @description
 * This file sets up the HTTP router for the payments portal API. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies middleware: request logging, panic recovery, timeouts, CORS with
 * credentials (the portal frontend sends the bearer token cross-origin), and
 * the session/capability gates on protected groups.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/portalbank/payments-portal/internal/app"
)

// NewRouter creates the portal router with all routes registered.
func NewRouter(h *PortalHandlers, service *app.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.SignupHandler)
		r.Post("/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(service))
			r.Post("/logout", h.LogoutHandler)
		})
	})

	r.Post("/employee/auth/login", h.EmployeeLoginHandler)

	r.Route("/payments", func(r chi.Router) {
		r.Use(AuthMiddleware(service))

		r.Group(func(r chi.Router) {
			r.Use(RequireCustomer)
			r.Post("/create", h.CreatePaymentHandler)
		})

		// Owner-or-employee checks happen inside these handlers.
		r.Get("/user/{userID}", h.ListUserPaymentsHandler)
		r.Get("/{paymentID}", h.GetPaymentHandler)

		r.Group(func(r chi.Router) {
			r.Use(RequireEmployee)
			r.Get("/", h.ListAllPaymentsHandler)
			r.Post("/verify/{paymentID}", h.VerifyPaymentHandler)
		})
	})

	return r
}
