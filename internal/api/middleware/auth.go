package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/projexia/projexia/internal/core/domain"
	"github.com/projexia/projexia/internal/core/ports"
)

// Context keys set by Auth.
const (
	CallerKey    = "caller"
	TokenIDKey   = "jti"
	ExpiresAtKey = "exp"
)

// Auth validates the bearer JWT, rejects revoked tokens and injects the
// caller into the context.
func Auth(jwtSecret string, blacklist ports.TokenBlacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			if err := authenticate(c, authHeader, jwtSecret, blacklist); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// OptionalAuth behaves like Auth when an Authorization header is present and
// lets anonymous requests through otherwise.
func OptionalAuth(jwtSecret string, blacklist ports.TokenBlacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}
			if err := authenticate(c, authHeader, jwtSecret, blacklist); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func authenticate(c echo.Context, authHeader, jwtSecret string, blacklist ports.TokenBlacklist) error {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	claims := jwt.MapClaims{}
	tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !tkn.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	caller := domain.Caller{
		UserID: stringClaim(claims, "sub"),
		Email:  stringClaim(claims, "email"),
		Name:   stringClaim(claims, "name"),
		Role:   stringClaim(claims, "role"),
	}
	if caller.UserID == "" || caller.Email == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "token missing identity")
	}

	jti := stringClaim(claims, "jti")
	if jti != "" && blacklist != nil {
		revoked, err := blacklist.IsRevoked(c.Request().Context(), jti)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "token check unavailable").SetInternal(err)
		}
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
		}
	}

	c.Set(CallerKey, caller)
	c.Set(TokenIDKey, jti)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.Set(ExpiresAtKey, exp.Time)
	}
	return nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

// CallerFrom returns the caller injected by Auth.
func CallerFrom(c echo.Context) (domain.Caller, bool) {
	caller, ok := c.Get(CallerKey).(domain.Caller)
	return caller, ok
}

// TokenFrom returns the jti and expiry of the verified token.
func TokenFrom(c echo.Context) (string, time.Time) {
	jti, _ := c.Get(TokenIDKey).(string)
	exp, _ := c.Get(ExpiresAtKey).(time.Time)
	return jti, exp
}
