package config

import (
	"fmt"
	"os"
	"time"

	"github.com/contactly/server/internal/mail"
	"github.com/contactly/server/internal/media"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	JWTSecret   string
	AppDomain   string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	// Whether a successful password reset deletes the user's active session.
	ResetRevokesSessions bool

	SMTP  mail.Config
	Media media.Config
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8080", // default port
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
		ResetTokenTTL:   5 * time.Minute,
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	cfg.DatabaseURL = databaseURL

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	cfg.JWTSecret = jwtSecret

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	cfg.AppDomain = getenv("APP_DOMAIN", "http://localhost:"+cfg.Port)

	var err error
	if cfg.AccessTokenTTL, err = durationEnv("ACCESS_TOKEN_TTL", cfg.AccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv("REFRESH_TOKEN_TTL", cfg.RefreshTokenTTL); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = durationEnv("RESET_TOKEN_TTL", cfg.ResetTokenTTL); err != nil {
		return nil, err
	}

	cfg.ResetRevokesSessions = os.Getenv("RESET_REVOKES_SESSIONS") == "true"

	cfg.SMTP = mail.Config{
		Host:      os.Getenv("SMTP_HOST"),
		Port:      getenv("SMTP_PORT", "465"),
		Username:  os.Getenv("SMTP_USER"),
		Password:  os.Getenv("SMTP_PASSWORD"),
		From:      os.Getenv("SMTP_FROM"),
		AppDomain: cfg.AppDomain,
	}

	cfg.Media = media.Config{
		Region:       getenv("S3_REGION", "us-east-1"),
		BaseEndpoint: os.Getenv("S3_ENDPOINT"),
		Bucket:       os.Getenv("S3_BUCKET"),
		AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		SecretKey:    os.Getenv("S3_SECRET_KEY"),
		PublicURL:    os.Getenv("S3_PUBLIC_URL"),
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
