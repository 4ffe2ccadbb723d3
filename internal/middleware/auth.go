// Package middleware holds the gin middleware guarding the store API.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/tm-acme-shop/acme-shop-store-service/internal/models"
)

// ActorKey is the gin context key holding the authenticated models.Actor.
const ActorKey = "actor"

// Claims is the payload of an access token. Tokens are minted by the auth
// service and signed with the shared HMAC secret.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

var errSecretNotConfigured = errors.New("JWT secret not configured")

// Authenticator verifies bearer tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	a := &Authenticator{}
	if s := strings.TrimSpace(secret); s != "" {
		a.secret = []byte(s)
	}
	return a
}

// ParseToken validates tokenStr and returns the actor it identifies.
func (a *Authenticator) ParseToken(tokenStr string) (models.Actor, error) {
	if a.secret == nil {
		return models.Actor{}, errSecretNotConfigured
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return models.Actor{}, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return models.Actor{}, errors.New("token has no subject")
	}

	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return models.Actor{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   role,
	}, nil
}

// RequireAuth rejects requests without a valid bearer token with 401.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}

		actor, err := a.ParseToken(strings.TrimSpace(tokenStr))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid or expired token"})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role differs with 403.
// It must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unauthorized"})
			return
		}
		if actor.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "permission denied"})
			return
		}
		c.Next()
	}
}

// ActorFrom returns the actor set by RequireAuth.
func ActorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(ActorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
