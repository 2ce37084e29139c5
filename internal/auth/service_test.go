package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactly/server/internal/model"
	"github.com/contactly/server/internal/repo"
)

// fakeUserRepo is an in-memory repo.UserRepo keyed by normalized email
type fakeUserRepo struct {
	byEmail map[string]model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]model.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, name, email, passwordHash string) (model.User, error) {
	norm := repo.NormalizeEmail(email)
	if _, exists := f.byEmail[norm]; exists {
		return model.User{}, fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"})
	}
	user := model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        norm,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.byEmail[norm] = user
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	user, ok := f.byEmail[repo.NormalizeEmail(email)]
	if !ok {
		return model.User{}, fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return user, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	for _, user := range f.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return model.User{}, fmt.Errorf("user not found: %w", sql.ErrNoRows)
}

func (f *fakeUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	for email, user := range f.byEmail {
		if user.ID == id {
			user.PasswordHash = passwordHash
			f.byEmail[email] = user
			return nil
		}
	}
	return fmt.Errorf("user not found: %w", sql.ErrNoRows)
}

// fakeSessionRepo is an in-memory repo.SessionRepo holding one session per user
type fakeSessionRepo struct {
	byUser map[uuid.UUID]model.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byUser: map[uuid.UUID]model.Session{}}
}

func (f *fakeSessionRepo) Replace(ctx context.Context, userID uuid.UUID, accessToken, refreshToken string, accessExpiry, refreshExpiry time.Time) (uuid.UUID, error) {
	session := model.Session{
		ID:                     uuid.New(),
		UserID:                 userID,
		AccessToken:            accessToken,
		RefreshToken:           refreshToken,
		AccessTokenValidUntil:  accessExpiry,
		RefreshTokenValidUntil: refreshExpiry,
		CreatedAt:              time.Now(),
	}
	f.byUser[userID] = session
	return session.ID, nil
}

func (f *fakeSessionRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (model.Session, error) {
	for _, s := range f.byUser {
		if s.RefreshToken == refreshToken {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("session not found: %w", sql.ErrNoRows)
}

func (f *fakeSessionRepo) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	for userID, s := range f.byUser {
		if s.ID == id {
			delete(f.byUser, userID)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSessionRepo) DeleteByUserID(ctx context.Context, userID uuid.UUID) (bool, error) {
	if _, ok := f.byUser[userID]; !ok {
		return false, nil
	}
	delete(f.byUser, userID)
	return true, nil
}

// fakeMailer records sent reset tokens; fails on demand
type fakeMailer struct {
	sentTo     []string
	lastToken  string
	shouldFail bool
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	if f.shouldFail {
		return fmt.Errorf("smtp unreachable")
	}
	f.sentTo = append(f.sentTo, to)
	f.lastToken = token
	return nil
}

// fakeHasher avoids bcrypt cost in unit tests
type fakeHasher struct{}

func (fakeHasher) Hash(plaintext string) (string, error) { return "hashed:" + plaintext, nil }
func (fakeHasher) Compare(plaintext, digest string) bool { return digest == "hashed:"+plaintext }

type serviceFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	mailer   *fakeMailer
	tokens   *TokenService
}

func newServiceFixture(t *testing.T, resetRevokesSessions bool) *serviceFixture {
	t.Helper()
	users := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	mailer := &fakeMailer{}
	tokens := NewTokenService("test-jwt-secret-at-least-32-characters-long")
	svc := NewAuthService(users, sessions, tokens, fakeHasher{}, mailer,
		AccessTokenTTL, RefreshTokenTTL, ResetTokenTTL, resetRevokesSessions)
	return &serviceFixture{svc: svc, users: users, sessions: sessions, mailer: mailer, tokens: tokens}
}

func (f *serviceFixture) register(t *testing.T, email, password string) UserSummary {
	t.Helper()
	summary, err := f.svc.Register(context.Background(), "Alice", email, password)
	require.NoError(t, err)
	return summary
}

func TestRegister(t *testing.T) {
	f := newServiceFixture(t, false)

	summary := f.register(t, "alice@example.com", "secret1")
	assert.Equal(t, "Alice", summary.Name)
	assert.Equal(t, "alice@example.com", summary.Email)
	assert.NotEqual(t, uuid.Nil, summary.ID)

	// Same email, different case, still a conflict
	_, err := f.svc.Register(context.Background(), "Mallory", "Alice@Example.COM", "other")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestLogin(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, uuid.Nil, pair.SessionID)

	// The minted tokens verify for their own purposes only
	_, err = f.tokens.Verify(pair.AccessToken, PurposeAccess)
	assert.NoError(t, err)
	_, err = f.tokens.Verify(pair.RefreshToken, PurposeRefresh)
	assert.NoError(t, err)
	_, err = f.tokens.Verify(pair.RefreshToken, PurposeAccess)
	assert.Error(t, err)
}

func TestLogin_invalidCredentials(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	_, err := f.svc.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown account yields the same error as a wrong password
	_, err = f.svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_replacesPriorSession(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	first, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)
	second, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	assert.Len(t, f.sessions.byUser, 1, "second login must replace, not accumulate")

	// The first session's refresh token no longer matches any session
	_, err = f.svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// The second one still works
	_, err = f.svc.Refresh(context.Background(), second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_rotatesAndIsSingleUse(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")
	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	rotated, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, rotated.AccessToken)
	assert.Len(t, f.sessions.byUser, 1)

	// Replaying the original refresh token finds no session
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRefresh_unknownToken(t *testing.T) {
	f := newServiceFixture(t, false)

	_, err := f.svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestRefresh_expiredTokenDeletesStaleSession(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	// Mint the session with a clock far enough in the past that the refresh
	// token is already expired when presented.
	past := time.Now().Add(-31 * 24 * time.Hour)
	f.tokens.now = func() time.Time { return past }
	f.svc.now = func() time.Time { return past }
	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	f.tokens.now = time.Now
	f.svc.now = time.Now
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	assert.Empty(t, f.sessions.byUser, "the stale session must be deleted on rejection")

	// And the replay now finds nothing at all
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNoActiveSession)
}

func TestLogout(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")
	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), pair.SessionID))

	// Refresh with the invalidated token fails
	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Second logout reports the session gone
	err = f.svc.Logout(context.Background(), pair.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRequestPasswordReset_unknownEmail(t *testing.T) {
	f := newServiceFixture(t, false)

	err := f.svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, f.mailer.sentTo, "no email may be dispatched for unknown addresses")
}

func TestRequestPasswordReset_deliveryFailure(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")
	f.mailer.shouldFail = true

	err := f.svc.RequestPasswordReset(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrDeliveryFailure)
}

func TestPasswordReset_roundTrip(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	require.Equal(t, []string{"alice@example.com"}, f.mailer.sentTo)
	require.NotEmpty(t, f.mailer.lastToken)

	require.NoError(t, f.svc.ResetPassword(context.Background(), f.mailer.lastToken, "brand-new"))

	// New password works, old one does not
	_, err := f.svc.Login(context.Background(), "alice@example.com", "brand-new")
	assert.NoError(t, err)
	_, err = f.svc.Login(context.Background(), "alice@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestResetPassword_badToken(t *testing.T) {
	f := newServiceFixture(t, false)

	err := f.svc.ResetPassword(context.Background(), "garbage", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// A session token is not a reset token
	f.register(t, "alice@example.com", "secret1")
	pair, loginErr := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, loginErr)
	err = f.svc.ResetPassword(context.Background(), pair.AccessToken, "newpassword")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword_expiredToken(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")

	past := time.Now().Add(-10 * time.Minute)
	f.tokens.now = func() time.Time { return past }
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	f.tokens.now = time.Now

	err := f.svc.ResetPassword(context.Background(), f.mailer.lastToken, "brand-new")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPassword_revokesSessionsWhenConfigured(t *testing.T) {
	f := newServiceFixture(t, true)
	f.register(t, "alice@example.com", "secret1")
	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	require.NoError(t, f.svc.ResetPassword(context.Background(), f.mailer.lastToken, "brand-new"))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrNoActiveSession, "reset must revoke the active session when the policy is on")
}

func TestResetPassword_keepsSessionsByDefault(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")
	pair, err := f.svc.Login(context.Background(), "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))
	require.NoError(t, f.svc.ResetPassword(context.Background(), f.mailer.lastToken, "brand-new"))

	_, err = f.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.NoError(t, err, "default policy leaves the session alone")
}

func TestVerifyResetToken(t *testing.T) {
	f := newServiceFixture(t, false)
	f.register(t, "alice@example.com", "secret1")
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "alice@example.com"))

	email, err := f.svc.VerifyResetToken(f.mailer.lastToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	_, err = f.svc.VerifyResetToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}
