package api

import (
	"net/http"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// SubscriptionsAPI предоставляет API жизненного цикла подписок
type SubscriptionsAPI struct {
	subscriptions *services.SubscriptionService
	warningDays   int
}

// NewSubscriptionsAPI создает новый экземпляр SubscriptionsAPI
func NewSubscriptionsAPI(subscriptions *services.SubscriptionService, warningDays int) *SubscriptionsAPI {
	return &SubscriptionsAPI{subscriptions: subscriptions, warningDays: warningDays}
}

// RegisterRoutes регистрирует маршруты подписок
func (sa *SubscriptionsAPI) RegisterRoutes(router *gin.RouterGroup) {
	subs := router.Group("/subscriptions")
	{
		subs.GET("", sa.GetSubscriptions)
		subs.POST("", sa.CreateSubscription)
		subs.GET("/expiring", sa.GetExpiring)
		subs.GET("/overdue", sa.GetOverdue)
		subs.POST("/mark-expired", sa.MarkExpired)
		subs.GET("/:id", sa.GetSubscription)
		subs.PUT("/:id", sa.UpdateSubscription)
		subs.DELETE("/:id", sa.DeleteSubscription)
		subs.POST("/:id/renew", sa.Renew)
		subs.POST("/:id/cancel", sa.Cancel)
	}
}

// GetSubscriptions возвращает подписки, state фильтрует по фактическому состоянию
func (sa *SubscriptionsAPI) GetSubscriptions(c *gin.Context) {
	var filter services.SubscriptionFilter
	var err error
	if filter.ClientID, err = queryUint(c, "client_id"); err != nil {
		respondError(c, err)
		return
	}
	if filter.ServiceID, err = queryUint(c, "service_id"); err != nil {
		respondError(c, err)
		return
	}
	if filter.PanelID, err = queryUint(c, "panel_id"); err != nil {
		respondError(c, err)
		return
	}
	filter.State = models.SubscriptionState(c.Query("state"))

	subs, err := sa.subscriptions.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subs,
		"count":  len(subs),
	})
}

// GetSubscription возвращает подписку по ID
func (sa *SubscriptionsAPI) GetSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, err := sa.subscriptions.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sub)
}

// CreateSubscription создает подписку
func (sa *SubscriptionsAPI) CreateSubscription(c *gin.Context) {
	var input services.SubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	sub, err := sa.subscriptions.Create(input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, sub)
}

// UpdateSubscription редактирует подписку
func (sa *SubscriptionsAPI) UpdateSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.SubscriptionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	sub, err := sa.subscriptions.Update(id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sub)
}

// DeleteSubscription удаляет подписку
func (sa *SubscriptionsAPI) DeleteSubscription(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := sa.subscriptions.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Подписка удалена",
	})
}

// Renew продлевает подписку на 30 дней с сегодняшнего дня
func (sa *SubscriptionsAPI) Renew(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, err := sa.subscriptions.Renew(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, sub)
}

// Cancel отменяет подписку, повторная отмена возвращает changed=false
func (sa *SubscriptionsAPI) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, changed, err := sa.subscriptions.Cancel(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"data":    sub,
		"changed": changed,
	})
}

// GetExpiring подписки, которые заканчиваются в ближайшие days дней
func (sa *SubscriptionsAPI) GetExpiring(c *gin.Context) {
	days, err := queryInt(c, "days", sa.warningDays)
	if err != nil {
		respondError(c, err)
		return
	}
	subs, err := sa.subscriptions.ExpiringWithin(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subs,
		"count":  len(subs),
	})
}

// GetOverdue просроченные подписки
func (sa *SubscriptionsAPI) GetOverdue(c *gin.Context) {
	subs, err := sa.subscriptions.Overdue()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subs,
		"count":  len(subs),
	})
}

// MarkExpired сохраняет состояние vencida для просроченных подписок
func (sa *SubscriptionsAPI) MarkExpired(c *gin.Context) {
	marked, err := sa.subscriptions.MarkExpired()
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"marked": marked})
}
