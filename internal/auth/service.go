package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/contactly/server/internal/repo"
)

// Mailer dispatches the password-reset email. Implemented by mail.SMTPMailer.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

// TokenPair bundles the access/refresh tokens minted for one session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    uuid.UUID
}

// UserSummary is what registration returns to the caller. Never the hash.
type UserSummary struct {
	ID    uuid.UUID
	Name  string
	Email string
}

// AuthService orchestrates registration, login, token rotation, and password
// reset over the credential store, session store, and token service.
type AuthService struct {
	userRepo    repo.UserRepo
	sessionRepo repo.SessionRepo
	tokens      *TokenService
	hasher      PasswordHasher
	mailer      Mailer

	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration

	// When true, a successful password reset also deletes the user's
	// active session.
	resetRevokesSessions bool

	now func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repo.UserRepo,
	sessionRepo repo.SessionRepo,
	tokens *TokenService,
	hasher PasswordHasher,
	mailer Mailer,
	accessTTL, refreshTTL, resetTTL time.Duration,
	resetRevokesSessions bool,
) *AuthService {
	return &AuthService{
		userRepo:             userRepo,
		sessionRepo:          sessionRepo,
		tokens:               tokens,
		hasher:               hasher,
		mailer:               mailer,
		accessTTL:            accessTTL,
		refreshTTL:           refreshTTL,
		resetTTL:             resetTTL,
		resetRevokesSessions: resetRevokesSessions,
		now:                  time.Now,
	}
}

// Register creates a new user with a bcrypt-hashed password.
// Returns ErrEmailInUse if a user already exists for the normalized email.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (UserSummary, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return UserSummary{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, name, email, hash)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return UserSummary{}, ErrEmailInUse
		}
		return UserSummary{}, fmt.Errorf("create user: %w", err)
	}

	return UserSummary{ID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// Login verifies credentials and establishes a fresh session, replacing any
// prior session for the user. A missing account and a wrong password both
// return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if repo.IsNotFound(err) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.establishSession(ctx, user.ID)
}

// Refresh rotates a session's token pair. The presented refresh token is
// single-use: whether rotation succeeds or verification fails, the matched
// session row is deleted, so a replayed token finds no session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	session, err := s.sessionRepo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if repo.IsNotFound(err) {
			return TokenPair{}, ErrNoActiveSession
		}
		return TokenPair{}, fmt.Errorf("find session: %w", err)
	}

	if _, err := s.tokens.Verify(refreshToken, PurposeRefresh); err != nil {
		// The stale row must not be usable for another attempt.
		if _, delErr := s.sessionRepo.DeleteByID(ctx, session.ID); delErr != nil {
			log.Printf("delete stale session %s: %v", session.ID, delErr)
		}
		log.Printf("refresh token rejected for user %s: %v", session.UserID, err)
		return TokenPair{}, ErrInvalidOrExpiredToken
	}

	return s.establishSession(ctx, session.UserID)
}

// Logout deletes the session by its identifier. A second logout for the same
// session returns ErrSessionNotFound, which callers treat as already logged out.
func (s *AuthService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	deleted, err := s.sessionRepo.DeleteByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return ErrSessionNotFound
	}
	return nil
}

// RequestPasswordReset mints a short-lived reset token for the account and
// dispatches it by email. Returns ErrUserNotFound for unknown addresses and
// ErrDeliveryFailure when the mail collaborator fails.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := s.tokens.IssueReset(user.Email, s.resetTTL)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		log.Printf("send reset email: %v", err)
		return ErrDeliveryFailure
	}
	return nil
}

// ResetPassword verifies a reset token and overwrites the stored credential
// with a fresh hash of newPassword.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(token, PurposeReset)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	user, err := s.userRepo.GetByEmail(ctx, claims.Email)
	if err != nil {
		if repo.IsNotFound(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find user: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if s.resetRevokesSessions {
		if _, err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
			log.Printf("revoke sessions after password reset for user %s: %v", user.ID, err)
		}
	}
	return nil
}

// VerifyResetToken checks a reset token without consuming it and returns the
// embedded email. Used by the pre-reset probe endpoint.
func (s *AuthService) VerifyResetToken(token string) (string, error) {
	claims, err := s.tokens.Verify(token, PurposeReset)
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	return claims.Email, nil
}

// establishSession mints a fresh token pair and atomically replaces the user's
// session with it.
func (s *AuthService) establishSession(ctx context.Context, userID uuid.UUID) (TokenPair, error) {
	accessToken, err := s.tokens.Issue(userID, PurposeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.tokens.Issue(userID, PurposeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	now := s.now()
	sessionID, err := s.sessionRepo.Replace(ctx, userID,
		accessToken, refreshToken,
		now.Add(s.accessTTL), now.Add(s.refreshTTL),
	)
	if err != nil {
		return TokenPair{}, fmt.Errorf("replace session: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
	}, nil
}

// RefreshTokenMaxAge is the cookie lifetime for refresh/session cookies.
func (s *AuthService) RefreshTokenMaxAge() time.Duration {
	return s.refreshTTL
}
