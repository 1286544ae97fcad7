package api

import (
	"net/http"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// ClientsAPI предоставляет API для работы с клиентами
type ClientsAPI struct {
	clients *services.ClientService
}

// NewClientsAPI создает новый экземпляр ClientsAPI
func NewClientsAPI(clients *services.ClientService) *ClientsAPI {
	return &ClientsAPI{clients: clients}
}

// RegisterRoutes регистрирует маршруты клиентов
func (ca *ClientsAPI) RegisterRoutes(router *gin.RouterGroup) {
	clients := router.Group("/clients")
	{
		clients.GET("", ca.GetClients)
		clients.POST("", ca.CreateClient)
		clients.GET("/:id", ca.GetClient)
		clients.PUT("/:id", ca.UpdateClient)
		clients.DELETE("/:id", ca.DeleteClient)
		clients.GET("/:id/history", ca.GetHistory)
	}
}

// GetClients возвращает клиентов с фильтрами project_id, country и search
func (ca *ClientsAPI) GetClients(c *gin.Context) {
	projectID, err := queryUint(c, "project_id")
	if err != nil {
		respondError(c, err)
		return
	}

	clients, err := ca.clients.ListClients(services.ClientFilter{
		ProjectID: projectID,
		Country:   c.Query("country"),
		Search:    c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   clients,
		"count":  len(clients),
	})
}

// GetClient возвращает клиента с подписками
func (ca *ClientsAPI) GetClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	client, err := ca.clients.GetClient(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, client)
}

// CreateClient создает клиента вместе с подписками одной операцией
func (ca *ClientsAPI) CreateClient(c *gin.Context) {
	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	client, err := ca.clients.CreateClient(req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, client)
}

// UpdateClient обновляет данные клиента
func (ca *ClientsAPI) UpdateClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input models.Client
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	client, err := ca.clients.UpdateClient(id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, client)
}

// DeleteClient удаляет клиента вместе с подписками
func (ca *ClientsAPI) DeleteClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ca.clients.DeleteClient(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Клиент удален",
	})
}

// GetHistory хронология подписок и платежей клиента
func (ca *ClientsAPI) GetHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	events, err := ca.clients.History(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, events)
}
