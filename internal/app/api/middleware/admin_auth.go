package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/fatflowers/paysync/pkg/response"
)

// OperatorKey holds the token subject of an authenticated admin request.
const OperatorKey = "operator"

// AdminAuthMiddleware requires an HS256 bearer token signed with secret.
// An empty secret disables the check, for local development.
func AdminAuthMiddleware(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.PaymentError("authorization header missing or invalid"))
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(strings.TrimPrefix(authHeader, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.PaymentError(fmt.Sprintf("invalid token: %v", err)))
			return
		}

		c.Set(OperatorKey, claims.Subject)
		c.Next()
	}
}
