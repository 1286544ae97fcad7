package middleware

import (
	"net/http"
	"strings"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware проверяет токен оператора
type AuthMiddleware struct {
	issuer *services.TokenIssuer
}

// NewAuthMiddleware создает новый экземпляр AuthMiddleware
func NewAuthMiddleware(issuer *services.TokenIssuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// RequireAuth middleware для проверки аутентификации
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Authorization header is required",
			})
			c.Abort()
			return
		}

		token := extractToken(authHeader)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Invalid authorization format",
			})
			c.Abort()
			return
		}

		claims, err := am.issuer.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Invalid or expired token: " + err.Error(),
			})
			c.Abort()
			return
		}

		// Сохраняем оператора в контексте, user_id нужен генератору ключей rate limiting
		c.Set("operator", claims.Operator)
		c.Set("user_id", claims.Operator)
		c.Set("claims", claims)
		c.Set("token", token)

		c.Next()
	}
}

func extractToken(header string) string {
	header = strings.TrimSpace(header)
	switch {
	case strings.HasPrefix(header, "Bearer "):
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	case strings.HasPrefix(header, "Token "):
		return strings.TrimSpace(strings.TrimPrefix(header, "Token "))
	}
	return header
}

// GetCurrentOperator возвращает оператора из контекста
func GetCurrentOperator(c *gin.Context) string {
	return c.GetString("operator")
}

// GetCurrentClaims возвращает разобранные claims токена
func GetCurrentClaims(c *gin.Context) *services.OperatorClaims {
	if claims, exists := c.Get("claims"); exists {
		if oc, ok := claims.(*services.OperatorClaims); ok {
			return oc
		}
	}
	return nil
}

// GetCurrentToken возвращает текущий токен из контекста
func GetCurrentToken(c *gin.Context) string {
	return c.GetString("token")
}
