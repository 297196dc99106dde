// Package auth issues and verifies identity tokens. Credentials are checked
// elsewhere; a token only names an identity the core then trusts as-is.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"raaibar/backend/internal/apperr"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "raaibar-service"

	// IdentityKey is the gin context key holding the caller's identity.
	IdentityKey = "identity"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the identity in the registered subject.
type Claims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a HS256 token for identity.
func (i *Issuer) Issue(identity string) (string, error) {
	now := i.now()
	claims := Claims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse verifies raw and returns the identity it names.
func (i *Issuer) Parse(raw string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Identity == "" {
		return "", ErrInvalidToken
	}
	return claims.Identity, nil
}

// Middleware resolves the caller from "Authorization: Bearer <token>" or,
// for websocket upgrades from browsers, a token query parameter.
func (i *Issuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c.GetHeader("Authorization"))
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": apperr.CodeUnauthorized, "error": "authorization token missing"})
			return
		}
		identity, err := i.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": apperr.CodeUnauthorized, "error": ErrInvalidToken.Error()})
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// Identity returns the identity set by Middleware.
func Identity(c *gin.Context) string {
	return c.GetString(IdentityKey)
}

func bearer(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
