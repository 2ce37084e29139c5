package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/contactly/server/internal/auth"
	"github.com/contactly/server/internal/config"
	"github.com/contactly/server/internal/contacts"
	"github.com/contactly/server/internal/db"
	httphandler "github.com/contactly/server/internal/http"
	"github.com/contactly/server/internal/http/handlers"
	"github.com/contactly/server/internal/mail"
	"github.com/contactly/server/internal/media"
	"github.com/contactly/server/internal/repo"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	userRepo := repo.NewUserRepo(database)
	sessionRepo := repo.NewSessionRepo(database)
	contactRepo := repo.NewContactRepo(database)

	// Collaborators
	tokens := auth.NewTokenService(cfg.JWTSecret)
	mailer := mail.NewSMTPMailer(cfg.SMTP)
	mediaStore, err := media.NewS3Store(ctx, cfg.Media)
	if err != nil {
		log.Fatalf("Failed to init media store: %v", err)
	}

	// Services
	authService := auth.NewAuthService(
		userRepo, sessionRepo, tokens, auth.BcryptHasher{}, mailer,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ResetTokenTTL,
		cfg.ResetRevokesSessions,
	)
	contactService := contacts.NewService(contactRepo, mediaStore)

	// Handlers
	secureCookie := os.Getenv("ENV") == "production"
	authHandler := handlers.NewAuthHandler(authService, secureCookie)
	contactsHandler := handlers.NewContactsHandler(contactService)

	router := httphandler.NewRouter(authHandler, contactsHandler, tokens)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the module root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}
