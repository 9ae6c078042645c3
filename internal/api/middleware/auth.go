package middleware

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKeySessionKey is the echo context key under which the caller's
// session key is stored once the bearer token has been verified.
const ContextKeySessionKey = "session_key"

// MintSessionToken signs an HS256 token carrying the opaque session key. The
// token's own expiry only bounds how long the bearer credential circulates;
// session lifetime is governed by the store.
func MintSessionToken(jwtSecret, sessionKey string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sid": sessionKey,
		"exp": time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(jwtSecret))
}

// SessionToken extracts and verifies the bearer token, injecting the session
// key into context. Unlike a hard auth gate it is lenient: a missing or
// invalid token leaves the key empty and lets the route guard decide what to
// render, so an anonymous navigation gets a login redirect instead of a 401.
func SessionToken(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return next(c)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return next(c)
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return next(c)
			}

			if sid, _ := claims["sid"].(string); sid != "" {
				c.Set(ContextKeySessionKey, sid)
			}
			return next(c)
		}
	}
}
