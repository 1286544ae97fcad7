package api

import (
	"net/http"
	"time"

	"backend_panelhub/middleware"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// AuthAPI информация о текущем операторе и продление токена
type AuthAPI struct {
	issuer *services.TokenIssuer
}

// NewAuthAPI создает новый экземпляр AuthAPI
func NewAuthAPI(issuer *services.TokenIssuer) *AuthAPI {
	return &AuthAPI{issuer: issuer}
}

// RegisterRoutes регистрирует маршруты, группа должна быть закрыта RequireAuth
func (aa *AuthAPI) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	{
		auth.GET("/me", aa.Me)
		auth.POST("/refresh", aa.Refresh)
	}
}

// Me возвращает оператора и срок действия текущего токена
func (aa *AuthAPI) Me(c *gin.Context) {
	claims := middleware.GetCurrentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Пользователь не авторизован",
		})
		return
	}

	data := gin.H{"operator": claims.Operator}
	if claims.ExpiresAt != nil {
		data["expires_at"] = claims.ExpiresAt.Time
	}
	respondSuccess(c, http.StatusOK, data)
}

// Refresh выпускает новый токен для текущего оператора
func (aa *AuthAPI) Refresh(c *gin.Context) {
	operator := middleware.GetCurrentOperator(c)
	if operator == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"error":  "Пользователь не авторизован",
		})
		return
	}

	token, err := aa.issuer.IssueToken(operator, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"token": token})
}
