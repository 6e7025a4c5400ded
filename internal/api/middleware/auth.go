package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocomet/ride-pooling/internal/service/lifecycle"
	apperrors "github.com/gocomet/ride-pooling/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleSystem marks tokens issued to platform tooling
const RoleSystem = "system"

const actorKey = "actor"

// Claims are the JWT claims the service accepts. Subject carries the user ID.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates HMAC signed tokens
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// GenerateToken creates a token for the user
func (a *Authenticator) GenerateToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Actor validates a token and returns the actor it identifies
func (a *Authenticator) Actor(tokenString string) (lifecycle.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return lifecycle.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return lifecycle.Actor{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return lifecycle.Actor{}, fmt.Errorf("invalid subject: %w", err)
	}
	return lifecycle.Actor{UserID: userID, System: claims.Role == RoleSystem}, nil
}

// RequireActor authenticates the bearer token and stores the actor on the context
func RequireActor(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			abort(c, apperrors.Unauthorized("Missing or malformed Authorization header", nil))
			return
		}

		actor, err := auth.Actor(token)
		if err != nil {
			abort(c, apperrors.Unauthorized("Invalid or expired token", err))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireSystem rejects actors that are not platform tooling
func RequireSystem() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).System {
			abort(c, apperrors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated actor
func ActorFrom(c *gin.Context) lifecycle.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(lifecycle.Actor); ok {
			return actor
		}
	}
	return lifecycle.Actor{}
}

// bearer reads the token from the Authorization header. Browsers cannot set
// headers on a WebSocket handshake, so the token query parameter is accepted
// on upgrade requests.
func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func abort(c *gin.Context, appErr *apperrors.AppError) {
	status := appErr.Status
	if status == 0 {
		status = http.StatusUnauthorized
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
