package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "filmtorget/internal/domain/auth"
	domainuser "filmtorget/internal/domain/user"
	"filmtorget/internal/security"
	"filmtorget/internal/storage/memory"
)

func newService() *Service {
	return &Service{
		Users:      memory.NewUserRepository(),
		Profiles:   memory.NewProfileRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}
}

func TestRegisterCreatesUserProfileAndSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterParams{
		Email:    "Jonas@Example.com",
		Username: "jonas",
		Password: "long enough",
	})
	require.NoError(t, err)
	assert.Equal(t, "jonas@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)
	assert.NotEqual(t, "long enough", result.User.PasswordHash)

	profile, err := svc.Profiles.ByID(ctx, string(result.User.ID))
	require.NoError(t, err)
	assert.Equal(t, "jonas", profile.Username)

	resolved, err := svc.ResolveToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, resolved.User.ID)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newService()
	_, err := svc.Register(context.Background(), RegisterParams{
		Email:    "jonas@example.com",
		Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterParams{Email: "jonas@example.com", Password: "long enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterParams{Email: "JONAS@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
}

func TestLogin(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterParams{Email: "jonas@example.com", Password: "long enough"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginParams{Email: "jonas@example.com", Password: "long enough"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = svc.Login(ctx, LoginParams{Email: "jonas@example.com", Password: "wrong password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginParams{Email: "nobody@example.com", Password: "long enough"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutInvalidatesToken(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	result, err := svc.Register(ctx, RegisterParams{Email: "jonas@example.com", Password: "long enough"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Token))
	_, err = svc.ResolveToken(ctx, result.Token)
	assert.ErrorIs(t, err, domainauth.ErrSessionNotFound)
}
