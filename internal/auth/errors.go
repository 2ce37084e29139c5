package auth

import "errors"

// Business-rule failures returned by AuthService. Callers match these with
// errors.Is; anything else is an infrastructure failure (store, mail, signing)
// and surfaces generically.
var (
	ErrEmailInUse            = errors.New("email in use")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrNoActiveSession       = errors.New("no active session for refresh token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrSessionNotFound       = errors.New("session not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrDeliveryFailure       = errors.New("failed to send email")
)

// Token verification failures returned by TokenService. The service boundary
// collapses both into ErrInvalidOrExpiredToken; the distinction exists for logs.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
