package http

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/contactly/server/internal/auth"
	"github.com/contactly/server/internal/http/handlers"
	"github.com/contactly/server/internal/middleware"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(authHandler *handlers.AuthHandler, contactsHandler *handlers.ContactsHandler, tokens *auth.TokenService) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handlers.NewHealthHandler()
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/send-reset-email", authHandler.HandleSendResetEmail)
		r.Get("/reset-password", authHandler.HandleVerifyResetToken)
		r.Post("/reset-password", authHandler.HandleResetPassword)
	})

	// Protected routes (require valid access token)
	r.Route("/contacts", func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens))
		r.Get("/", contactsHandler.HandleList)
		r.Post("/", contactsHandler.HandleCreate)
		r.Get("/{contactId}", contactsHandler.HandleGet)
		r.Patch("/{contactId}", contactsHandler.HandleUpdate)
		r.Delete("/{contactId}", contactsHandler.HandleDelete)
	})

	return r
}
