package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func newAuthFixture() (*AuthService, *memStore) {
	store := newMemStore()
	cfg := config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 5,
			BcryptCost:            4,
		},
	}
	return NewAuthService(cfg, &memUserRepo{store: store}), store
}

func TestRegisterNewCustomer(t *testing.T) {
	svc, _ := newAuthFixture()

	user, token, expiresAt, err := svc.Register(context.Background(), "carol", "carol@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, user.Role)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, token)
	assert.False(t, expiresAt.IsZero())
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, domain.RoleCustomer, claims.Role)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	_, _, _, err := svc.Register(ctx, "carol", "carol@example.com", "hunter22")
	require.NoError(t, err)

	_, _, _, err = svc.Register(ctx, "other carol", "carol@example.com", "hunter23")
	assert.Equal(t, "CONFLICT", domainCode(t, err))
}

func TestLogin(t *testing.T) {
	svc, _ := newAuthFixture()
	ctx := context.Background()

	registered, _, _, err := svc.Register(ctx, "carol", "carol@example.com", "hunter22")
	require.NoError(t, err)

	user, token, _, err := svc.Login(ctx, "carol@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token)

	_, _, _, err = svc.Login(ctx, "carol@example.com", "wrong")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))

	_, _, _, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.Equal(t, "UNAUTHORIZED", domainCode(t, err))
}
