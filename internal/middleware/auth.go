package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/travel-behavior-backend-go/pkg/response"
)

// SubjectKey is the gin context key holding the authenticated subject
const SubjectKey = "subject"

var errNoSecret = errors.New("jwt secret not configured")

// IssueToken signs an HS256 token for subject valid for ttl
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates an HS256 token and returns its subject
func ParseToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", errNoSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Auth middleware requires a valid bearer token. With an empty secret every request is rejected.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "Missing bearer token")
			return
		}

		subject, err := ParseToken(secret, token)
		if err != nil {
			_ = c.Error(err)
			response.Unauthorized(c, "Invalid token")
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}
