package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"order-sync/domain"
	"order-sync/errors"
)

func TestTokenManager_IssueAndVerify(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	token, err := manager.Issue("staff-42", domain.RoleKitchen)
	req.NoError(err)

	role, err := manager.Verify(token)
	req.NoError(err)
	req.Equal(domain.RoleKitchen, role)

	claims, err := manager.Parse(token)
	req.NoError(err)
	req.Equal("staff-42", claims.StaffID)
}

func TestTokenManager_RejectsForeignSignature(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Issue("staff-42", domain.RoleWaiter)
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", -time.Minute)

	token, err := manager.Issue("staff-42", domain.RoleAdmin)
	req.NoError(err)

	_, err = manager.Verify(token)
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("test-secret", time.Hour)

	_, err := manager.Verify("not-a-token")
	req.ErrorIs(err, errors.ErrInvalidCredential)
}

func TestPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("kitchen-pass-1", bcrypt.MinCost)
	req.NoError(err)

	req.NoError(CheckPassword(hash, "kitchen-pass-1"))
	req.ErrorIs(CheckPassword(hash, "wrong"), errors.ErrInvalidCredential)
}
