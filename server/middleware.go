package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"order-sync/auth"
)

const claimsKey = "staff_claims"

// staffAuth guards mutation routes: it validates the Bearer token and
// stashes the claims for the handler. The handler still runs the state
// machine's own role check; this middleware only establishes identity.
func (s *Server) staffAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := s.tokens.Parse(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

func staffClaims(c echo.Context) *auth.StaffClaims {
	claims, _ := c.Get(claimsKey).(*auth.StaffClaims)
	return claims
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}
