// Package middleware provides gin middleware for the HTTP API.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SyedJoN/mytube-backend/internal/models"
	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	bearerPrefix = "Bearer "

	// UserIDKey is the gin context key holding the authenticated user ID.
	UserIDKey = "userID"
)

// Claims is the access token payload issued by the auth service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// JWTVerifier validates HS256 access tokens.
type JWTVerifier struct {
	secret     []byte
	cookieName string
}

// NewJWTVerifier creates a verifier for tokens signed with secret. The
// cookie name is where browser clients carry the token.
func NewJWTVerifier(secret, cookieName string) *JWTVerifier {
	return &JWTVerifier{
		secret:     []byte(secret),
		cookieName: cookieName,
	}
}

// Parse validates a token string and returns its claims.
func (v *JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// userIDFromClaims prefers the explicit _id claim and falls back to the
// registered subject.
func userIDFromClaims(claims *Claims) string {
	if claims.UserID != "" {
		return claims.UserID
	}
	return claims.Subject
}

// extractToken pulls the access token from the auth cookie or the
// Authorization header, cookie first.
func (v *JWTVerifier) extractToken(c *gin.Context) string {
	if v.cookieName != "" {
		if token, err := c.Cookie(v.cookieName); err == nil && token != "" {
			return token
		}
	}

	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, bearerPrefix) {
		return strings.TrimPrefix(authHeader, bearerPrefix)
	}

	return ""
}

// OptionalAuth resolves the user identity when a valid token is present
// and otherwise lets the request through anonymously. Ingestion accepts
// guest traffic, so a bad token only drops the identity, never the batch.
func (v *JWTVerifier) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := v.extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := v.Parse(token)
		if err != nil {
			c.Next()
			return
		}

		if uid := userIDFromClaims(claims); uid != "" {
			c.Set(UserIDKey, uid)
		}
		c.Next()
	}
}

// RequireAuth aborts with 401 unless the request carries a valid token.
func (v *JWTVerifier) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := v.extractToken(c)
		if token == "" {
			abortUnauthorized(c, "missing access token")
			return
		}

		claims, err := v.Parse(token)
		if err != nil {
			abortUnauthorized(c, "invalid access token")
			return
		}

		uid := userIDFromClaims(claims)
		if uid == "" {
			abortUnauthorized(c, "token has no subject")
			return
		}

		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// UserID returns the authenticated user ID, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Timestamp: time.Now(),
		Status:    http.StatusUnauthorized,
		Error:     "Unauthorized",
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}
