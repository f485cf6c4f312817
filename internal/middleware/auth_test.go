package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID string) Claims {
	return Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newAuthRouter(handler gin.HandlerFunc, middleware gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", middleware, handler)
	return router
}

func echoUserID(c *gin.Context) {
	c.String(http.StatusOK, UserID(c))
}

func TestOptionalAuth(t *testing.T) {
	verifier := NewJWTVerifier(testSecret, "accessToken")

	t.Run("passes through without a token", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.OptionalAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("resolves identity from bearer token", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.OptionalAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("u1")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
	})

	t.Run("resolves identity from cookie", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.OptionalAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: signToken(t, testSecret, validClaims("u2"))})
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u2", w.Body.String())
	})

	t.Run("invalid token degrades to anonymous", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.OptionalAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong-secret", validClaims("u1")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("expired token degrades to anonymous", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.OptionalAuth())

		claims := validClaims("u1")
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestRequireAuth(t *testing.T) {
	verifier := NewJWTVerifier(testSecret, "accessToken")

	t.Run("rejects missing token", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.RequireAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "missing access token")
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.RequireAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("accepts valid token", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.RequireAuth())

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("u1")))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "u1", w.Body.String())
	})

	t.Run("falls back to subject claim", func(t *testing.T) {
		router := newAuthRouter(echoUserID, verifier.RequireAuth())

		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "subject-user",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "subject-user", w.Body.String())
	})
}
