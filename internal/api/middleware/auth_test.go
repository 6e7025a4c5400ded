package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestAuthenticator_Actor tests token validation
func TestAuthenticator_Actor(t *testing.T) {
	auth := NewAuthenticator("s3cret", "ride-pooling")
	userID := uuid.New()

	valid, err := auth.GenerateToken(userID, "rider", time.Hour)
	require.NoError(t, err)
	system, err := auth.GenerateToken(userID, RoleSystem, time.Hour)
	require.NoError(t, err)
	expired, err := auth.GenerateToken(userID, "rider", -time.Minute)
	require.NoError(t, err)
	foreign, err := NewAuthenticator("other", "ride-pooling").GenerateToken(userID, "rider", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewAuthenticator("s3cret", "someone-else").GenerateToken(userID, "rider", time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantErr    bool
		wantSystem bool
	}{
		{name: "valid", token: valid},
		{name: "system role", token: system, wantSystem: true},
		{name: "expired", token: expired, wantErr: true},
		{name: "wrong secret", token: foreign, wantErr: true},
		{name: "wrong issuer", token: wrongIssuer, wantErr: true},
		{name: "unsigned", token: none, wantErr: true},
		{name: "garbage", token: "not-a-token", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := auth.Actor(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, actor.UserID)
			assert.Equal(t, tt.wantSystem, actor.System)
		})
	}
}

// TestRequireActor tests the bearer token middleware
func TestRequireActor(t *testing.T) {
	auth := NewAuthenticator("s3cret", "ride-pooling")
	userID := uuid.New()
	token, err := auth.GenerateToken(userID, "rider", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireActor(auth), func(c *gin.Context) {
		c.String(http.StatusOK, ActorFrom(c).UserID.String())
	})
	r.GET("/admin", RequireActor(auth), RequireSystem(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "authenticated", path: "/me", header: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "missing header", path: "/me", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "bad token", path: "/me", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "not system", path: "/admin", header: "Bearer " + token, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}
