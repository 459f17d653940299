package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"order-sync/domain"
	"order-sync/errors"
)

// StaffClaims is the payload of a staff terminal's credential. The role
// claim is what the gateway checks against the announced role.
type StaffClaims struct {
	StaffID string `json:"staff_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the HS256 tokens staff dashboards
// present on login and during the socket handshake.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) Issue(staffID string, role domain.Role) (string, error) {
	now := time.Now()
	claims := &StaffClaims{
		StaffID: staffID,
		Role:    string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "order-sync",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify implements gateway.TokenVerifier: it validates signature and
// expiry and returns the role baked into the credential.
func (m *TokenManager) Verify(tokenString string) (domain.Role, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return domain.ParseRole(claims.Role)
}

// Parse returns the full claims for callers that also need the staff id.
func (m *TokenManager) Parse(tokenString string) (*StaffClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &StaffClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidCredential, err)
	}
	claims, ok := token.Claims.(*StaffClaims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidCredential
	}
	return claims, nil
}
