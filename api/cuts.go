package api

import (
	"net/http"
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CutsAPI предоставляет API недельных кортов по странам
type CutsAPI struct {
	cuts *services.CutService
	loc  *time.Location
}

// NewCutsAPI создает новый экземпляр CutsAPI
func NewCutsAPI(cuts *services.CutService, loc *time.Location) *CutsAPI {
	return &CutsAPI{cuts: cuts, loc: loc}
}

// RegisterRoutes регистрирует маршруты кортов
func (ca *CutsAPI) RegisterRoutes(router *gin.RouterGroup) {
	cuts := router.Group("/cuts")
	{
		cuts.GET("", ca.GetCuts)
		cuts.POST("", ca.CreateCut)
		cuts.POST("/preview", ca.PreviewCut)
		cuts.GET("/:id", ca.GetCut)
		cuts.DELETE("/:id", ca.DeleteCut)
	}
}

// CutRequest тело запроса корте, неделя задается датой начала YYYY-MM-DD
type CutRequest struct {
	Country           string          `json:"country" binding:"required"`
	WeekStart         string          `json:"week_start" binding:"required"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	P2PRate           decimal.Decimal `json:"p2p_rate"`
	USDTReceived      decimal.Decimal `json:"usdt_received"`
	Notes             string          `json:"notes"`
}

func (ca *CutsAPI) bindRequest(c *gin.Context) (services.CutRequest, bool) {
	var req CutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return services.CutRequest{}, false
	}
	weekStart, err := time.ParseInLocation(DateLayout, req.WeekStart, ca.loc)
	if err != nil {
		respondError(c, &services.ValidationError{Field: "week_start", Message: "ожидается дата в формате YYYY-MM-DD"})
		return services.CutRequest{}, false
	}
	return services.CutRequest{
		Country:           req.Country,
		WeekStart:         weekStart,
		CommissionPercent: req.CommissionPercent,
		P2PRate:           req.P2PRate,
		USDTReceived:      req.USDTReceived,
		Notes:             req.Notes,
	}, true
}

// GetCuts возвращает корте, ?country фильтрует по стране
func (ca *CutsAPI) GetCuts(c *gin.Context) {
	cuts, err := ca.cuts.List(c.Query("country"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   cuts,
		"count":  len(cuts),
	})
}

// GetCut возвращает корте с платежами
func (ca *CutsAPI) GetCut(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cut, err := ca.cuts.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, cut)
}

// PreviewCut считает корте без сохранения
func (ca *CutsAPI) PreviewCut(c *gin.Context) {
	req, ok := ca.bindRequest(c)
	if !ok {
		return
	}
	preview, err := ca.cuts.Preview(req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, preview)
}

// CreateCut сохраняет корте и привязывает к нему платежи недели
func (ca *CutsAPI) CreateCut(c *gin.Context) {
	req, ok := ca.bindRequest(c)
	if !ok {
		return
	}
	cut, err := ca.cuts.Create(req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, cut)
}

// DeleteCut удаляет корте и отвязывает платежи
func (ca *CutsAPI) DeleteCut(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := ca.cuts.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Корте удален",
	})
}
