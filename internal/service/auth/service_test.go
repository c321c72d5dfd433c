package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T) (*auth.Service, *clock) {
	t.Helper()

	c := &clock{now: time.Now().UTC().Truncate(time.Second)}
	svc, err := auth.NewService(
		memory.NewUserRepository(),
		memory.NewTokenRevocationRepository(),
		auth.Config{Secret: testSecret, TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		auth.WithClock(c.Now),
	)
	require.NoError(t, err)
	return svc, c
}

func TestNewService_RejectsWeakSecret(t *testing.T) {
	_, err := auth.NewService(memory.NewUserRepository(), memory.NewTokenRevocationRepository(), auth.Config{Secret: "short"})
	assert.ErrorIs(t, err, auth.ErrWeakSecret)
}

func TestSignUpAndSignIn(t *testing.T) {
	svc, c := newService(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, " Maria@Example.com ", "secret1", "Maria Silva")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "maria@example.com", session.User.Email)
	assert.Equal(t, "Maria Silva", session.User.FullName)
	assert.True(t, session.ExpiresAt.Equal(c.now.Add(time.Hour)))

	signedIn, err := svc.SignIn(ctx, "MARIA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, signedIn.User.ID)

	user, err := svc.CurrentUser(ctx, signedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, user.ID)
}

func TestSignUp_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "invalid", "12345", "")
	assert.ErrorIs(t, err, domain.ErrEmailInvalid)
	assert.ErrorIs(t, err, domain.ErrPasswordTooShort)

	_, err = svc.SignUp(ctx, "user@example.com", strings.Repeat("x", 73), "")
	assert.ErrorIs(t, err, domain.ErrPasswordTooLong)

	_, err = svc.SignUp(ctx, "user@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "USER@example.com", "another1", "")
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestSignIn_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.SignUp(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	_, wrongPassword := svc.SignIn(ctx, "ana@example.com", "wrong-password")
	_, unknownEmail := svc.SignIn(ctx, "nobody@example.com", "secret1")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthenticate_Expiry(t *testing.T) {
	svc, c := newService(t)
	ctx := context.Background()
	session, err := svc.SignUp(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	c.now = c.now.Add(59 * time.Minute)
	_, err = svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)

	c.now = c.now.Add(2 * time.Minute)
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_RejectsForgedAndForeignTokens(t *testing.T) {
	svc, c := newService(t)
	ctx := context.Background()
	session, err := svc.SignUp(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, session.Token+"x")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "jti",
		Subject:   session.User.ID,
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
	})
	signed, err := foreign.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        "jti",
		Subject:   session.User.ID,
		Issuer:    auth.Issuer,
		ExpiresAt: jwt.NewNumericDate(c.now.Add(time.Hour)),
	})
	signed, err = otherKey.SignedString([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, signed)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSignOut_RevokesToken(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	session, err := svc.SignUp(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx, session.Token))

	_, err = svc.Authenticate(ctx, session.Token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.ErrorIs(t, svc.SignOut(ctx, session.Token), domain.ErrUnauthorized)
}

func TestRefresh_RotatesToken(t *testing.T) {
	svc, c := newService(t)
	ctx := context.Background()
	session, err := svc.SignUp(ctx, "ana@example.com", "secret1", "")
	require.NoError(t, err)

	c.now = c.now.Add(30 * time.Minute)
	refreshed, err := svc.Refresh(ctx, session.Token)
	require.NoError(t, err)
	assert.NotEqual(t, session.Token, refreshed.Token)
	assert.True(t, refreshed.ExpiresAt.After(session.ExpiresAt))

	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Authenticate(ctx, refreshed.Token)
	assert.NoError(t, err)
}

func TestSignUp_TimestampsMatchStoragePrecision(t *testing.T) {
	svc, c := newService(t)
	c.now = c.now.Add(123456789 * time.Nanosecond)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, "nanos@example.com", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, 123456000, session.User.CreatedAt.Nanosecond())
	assert.Zero(t, session.ExpiresAt.Nanosecond())
	assert.True(t, session.ExpiresAt.Equal(c.now.Add(time.Hour).Truncate(time.Second)))

	user, err := svc.CurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.True(t, user.CreatedAt.Equal(session.User.CreatedAt))
}
