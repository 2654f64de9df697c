// Package auth implements the shared-secret gate in front of the API.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"scribely/internal/utils"
)

const issuer = "scribely"

var (
	// ErrInvalidPassword is returned by Login for a wrong password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrDisabled is returned by Login when no password is configured.
	ErrDisabled = errors.New("authentication is disabled")
)

// Claims represents the claims in an access token
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator checks the shared password and issues HS256 tokens.
// The zero password disables the gate.
type Authenticator struct {
	password []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func New(password, secret string, ttl time.Duration) *Authenticator {
	if secret == "" {
		secret = password
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		password: []byte(password),
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Enabled reports whether requests need a token.
func (a *Authenticator) Enabled() bool {
	return len(a.password) > 0
}

// Login compares password in constant time and returns a signed token and
// its expiry.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrDisabled
	}
	if subtle.ConstantTimeCompare([]byte(password), a.password) != 1 {
		return "", time.Time{}, ErrInvalidPassword
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Validate parses and verifies a token issued by Login.
func (a *Authenticator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ExpiresAt == nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token. It lets every
// request through when the gate is disabled.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		bearer := strings.TrimPrefix(header, "Bearer ")
		if bearer == "" || bearer == header {
			utils.Error(c, http.StatusUnauthorized, "authorization bearer token is required")
			c.Abort()
			return
		}
		if _, err := a.Validate(bearer); err != nil {
			utils.Error(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}
		c.Next()
	}
}
