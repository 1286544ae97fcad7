package api

import (
	"net/http"

	"backend_panelhub/models"
	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// PanelsAPI предоставляет API для работы с панелями
type PanelsAPI struct {
	panels    *services.PanelService
	alertDays int
}

// NewPanelsAPI создает новый экземпляр PanelsAPI. alertDays горизонт
// списка панелей с заканчивающейся оплатой по умолчанию
func NewPanelsAPI(panels *services.PanelService, alertDays int) *PanelsAPI {
	return &PanelsAPI{panels: panels, alertDays: alertDays}
}

// RegisterRoutes регистрирует маршруты панелей
func (pa *PanelsAPI) RegisterRoutes(router *gin.RouterGroup) {
	panels := router.Group("/panels")
	{
		panels.GET("", pa.GetPanels)
		panels.POST("", pa.CreatePanel)
		panels.GET("/occupancy", pa.GetOccupancy)
		panels.GET("/expiring", pa.GetExpiringPanels)
		panels.GET("/:id", pa.GetPanel)
		panels.PUT("/:id", pa.UpdatePanel)
		panels.DELETE("/:id", pa.DeletePanel)

		panels.GET("/:id/available-slots", pa.GetAvailableSlots)
		panels.POST("/:id/mark-down", pa.MarkDown)
		panels.POST("/:id/reactivate", pa.Reactivate)
		panels.GET("/:id/rotations", pa.GetRotations)
		panels.GET("/:id/events", pa.GetEvents)
	}
}

// GetPanels возвращает панели с фильтрами service_id и state
func (pa *PanelsAPI) GetPanels(c *gin.Context) {
	serviceID, err := queryUint(c, "service_id")
	if err != nil {
		respondError(c, err)
		return
	}

	panels, err := pa.panels.ListPanels(services.PanelFilter{
		ServiceID: serviceID,
		State:     models.PanelState(c.Query("state")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   panels,
		"count":  len(panels),
	})
}

// GetPanel возвращает панель по ID
func (pa *PanelsAPI) GetPanel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	panel, err := pa.panels.GetPanel(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, panel)
}

// CreatePanel создает панель
func (pa *PanelsAPI) CreatePanel(c *gin.Context) {
	var panel models.Panel
	if err := c.ShouldBindJSON(&panel); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := pa.panels.CreatePanel(&panel); err != nil {
		respondError(c, err)
		return
	}
	created, err := pa.panels.GetPanel(panel.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, created)
}

// UpdatePanel обновляет панель, смена email сохраняет старые учетные данные
func (pa *PanelsAPI) UpdatePanel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input models.Panel
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	panel, err := pa.panels.UpdatePanel(id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, panel)
}

// DeletePanel удаляет пустую панель
func (pa *PanelsAPI) DeletePanel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pa.panels.DeletePanel(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Панель удалена",
	})
}

// GetAvailableSlots свободные места панели, ?exclude_subscription_id не учитывает редактируемую подписку
func (pa *PanelsAPI) GetAvailableSlots(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	exclude, err := queryUint(c, "exclude_subscription_id")
	if err != nil {
		respondError(c, err)
		return
	}
	available, err := pa.panels.AvailableSlotsExcluding(id, exclude)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"panel_id":        id,
		"available_slots": available,
	})
}

// GetOccupancy сводка заполненности панелей
func (pa *PanelsAPI) GetOccupancy(c *gin.Context) {
	occupancy, err := pa.panels.Occupancy()
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, occupancy)
}

// GetExpiringPanels панели, оплату которых нужно продлить
func (pa *PanelsAPI) GetExpiringPanels(c *gin.Context) {
	days, err := queryInt(c, "days", pa.alertDays)
	if err != nil {
		respondError(c, err)
		return
	}
	panels, err := pa.panels.ExpiringPanels(days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   panels,
		"count":  len(panels),
	})
}

// MarkDown выводит панель из работы с переносом подписок
func (pa *PanelsAPI) MarkDown(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.MarkDownRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err)
			return
		}
	}
	result, err := pa.panels.MarkDown(id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// Reactivate возвращает панель в работу
func (pa *PanelsAPI) Reactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	panel, err := pa.panels.Reactivate(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, panel)
}

// GetRotations история смены учетных данных
func (pa *PanelsAPI) GetRotations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rotations, err := pa.panels.Rotations(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, rotations)
}

// GetEvents история событий панели
func (pa *PanelsAPI) GetEvents(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	events, err := pa.panels.Events(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, events)
}
