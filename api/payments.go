package api

import (
	"net/http"
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// PaymentsAPI предоставляет API для работы с платежами
type PaymentsAPI struct {
	payments *services.PaymentService
	loc      *time.Location
}

// NewPaymentsAPI создает новый экземпляр PaymentsAPI
func NewPaymentsAPI(payments *services.PaymentService, loc *time.Location) *PaymentsAPI {
	return &PaymentsAPI{payments: payments, loc: loc}
}

// RegisterRoutes регистрирует маршруты платежей
func (pa *PaymentsAPI) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	{
		payments.GET("", pa.GetPayments)
		payments.POST("", pa.CreatePayment)
		payments.GET("/:id", pa.GetPayment)
		payments.PUT("/:id", pa.UpdatePayment)
		payments.DELETE("/:id", pa.DeletePayment)
	}
}

// GetPayments возвращает платежи с фильтрами client_id, currency, from, to и unlinked
func (pa *PaymentsAPI) GetPayments(c *gin.Context) {
	var filter services.PaymentFilter
	var err error
	if filter.ClientID, err = queryUint(c, "client_id"); err != nil {
		respondError(c, err)
		return
	}
	if filter.From, err = queryDate(c, "from", pa.loc); err != nil {
		respondError(c, err)
		return
	}
	if filter.To, err = queryDate(c, "to", pa.loc); err != nil {
		respondError(c, err)
		return
	}
	filter.Currency = c.Query("currency")
	filter.Unlinked = c.Query("unlinked") == "true"

	payments, err := pa.payments.List(filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   payments,
		"count":  len(payments),
	})
}

// GetPayment возвращает платеж по ID
func (pa *PaymentsAPI) GetPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	payment, err := pa.payments.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payment)
}

// CreatePayment регистрирует платеж. Сумма в местной валюте переводится в USD один раз
func (pa *PaymentsAPI) CreatePayment(c *gin.Context) {
	var input services.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	payment, err := pa.payments.Create(input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, payment)
}

// UpdatePayment обновляет описательные поля платежа, сумма USD не пересчитывается
func (pa *PaymentsAPI) UpdatePayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input services.PaymentUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err)
		return
	}
	payment, err := pa.payments.Update(id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payment)
}

// DeletePayment удаляет платеж, не вошедший в корте
func (pa *PaymentsAPI) DeletePayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := pa.payments.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Платеж удален",
	})
}
