package api

import (
	"net/http"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// CatalogAPI предоставляет API каталога сервисов
type CatalogAPI struct {
	catalog *services.CatalogService
}

// NewCatalogAPI создает новый экземпляр CatalogAPI
func NewCatalogAPI(catalog *services.CatalogService) *CatalogAPI {
	return &CatalogAPI{catalog: catalog}
}

// RegisterRoutes регистрирует маршруты каталога
func (ca *CatalogAPI) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("/services")
	{
		catalog.GET("", ca.GetServices)
		catalog.POST("", ca.CreateService)
		catalog.GET("/:id", ca.GetService)
		catalog.PUT("/:id", ca.UpdateService)
		catalog.DELETE("/:id", ca.DeleteService)
	}
}

// GetServices возвращает список сервисов, ?active=true только активные
func (ca *CatalogAPI) GetServices(c *gin.Context) {
	list, err := ca.catalog.ListServices(c.Query("active") == "true")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   list,
		"count":  len(list),
	})
}

// GetService возвращает сервис по ID
func (ca *CatalogAPI) GetService(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	service, err := ca.catalog.GetService(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, service)
}

// CreateService создает сервис
func (ca *CatalogAPI) CreateService(c *gin.Context) {
	var service models.Service
	if err := c.ShouldBindJSON(&service); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := ca.catalog.CreateService(&service); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, service)
}

// UpdateService обновляет сервис
func (ca *CatalogAPI) UpdateService(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input models.Service
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	service, err := ca.catalog.UpdateService(id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, service)
}

// DeleteService удаляет сервис без активных подписок
func (ca *CatalogAPI) DeleteService(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ca.catalog.DeleteService(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Сервис удален",
	})
}
