package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ceramica-booking/internal/booking"
)

const (
	userKey  = "auth.user"
	tokenKey = "auth.token"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the session token payload.
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs an HS256 session token for user.
func Issue(secret string, user booking.User, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth: signing secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Name:  user.Name,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates tokenStr and returns the user it was issued for.
func Parse(secret, tokenStr string) (*booking.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidToken)
	}
	return &booking.User{Name: claims.Name, Email: claims.Email}, nil
}

// Middleware attaches the bearer token's user to the request when present.
// Requests without a valid token continue anonymously.
func Middleware(secret string) gin.HandlerFunc {
	secret = strings.TrimSpace(secret)
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c.GetHeader("Authorization"))
		if !ok || secret == "" {
			c.Next()
			return
		}
		if user, err := Parse(secret, tokenStr); err == nil {
			c.Set(userKey, user)
			c.Set(tokenKey, tokenStr)
		}
		c.Next()
	}
}

// Require aborts with 401 unless Middleware found a user.
func Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserFromContext(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

func UserFromContext(c *gin.Context) *booking.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*booking.User)
	return u
}

// ViewerFromContext is the authentication context the wizard evaluates.
func ViewerFromContext(c *gin.Context) booking.Viewer {
	return booking.Viewer{User: UserFromContext(c)}
}

// TokenFromContext returns the raw bearer token so it can be forwarded.
func TokenFromContext(c *gin.Context) string {
	return c.GetString(tokenKey)
}

func bearer(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
