package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"backend_panelhub/services"

	"github.com/gin-gonic/gin"
)

// DateLayout формат дат в параметрах запроса
const DateLayout = "2006-01-02"

// respondSuccess отправляет успешный ответ
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

// respondError переводит ошибку сервиса в HTTP статус
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrPanelFull),
		errors.Is(err, services.ErrPanelDown),
		errors.Is(err, services.ErrInvalidTransition):
		status = http.StatusConflict
	case services.IsValidationError(err):
		status = http.StatusBadRequest
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Детали ошибок БД наружу не отдаем
		_ = c.Error(err)
		message = "Внутренняя ошибка сервера"
	}

	c.JSON(status, gin.H{
		"status": "error",
		"error":  message,
	})
}

// respondBadRequest ответ на некорректное тело запроса
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": "error",
		"error":  "Неверный формат данных: " + err.Error(),
	})
}

// parseID разбирает числовой параметр пути
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  fmt.Sprintf("Неверный параметр %s", name),
		})
		return 0, false
	}
	return uint(id), true
}

// queryUint разбирает необязательный числовой параметр запроса
func queryUint(c *gin.Context, name string) (uint, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, &services.ValidationError{Field: name, Message: "ожидается число"}
	}
	return uint(id), nil
}

// queryInt разбирает необязательный целый параметр со значением по умолчанию
func queryInt(c *gin.Context, name string, fallback int) (int, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, &services.ValidationError{Field: name, Message: "ожидается неотрицательное число"}
	}
	return n, nil
}

// queryDate разбирает необязательную дату YYYY-MM-DD в часовом поясе loc
func queryDate(c *gin.Context, name string, loc *time.Location) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return nil, nil
	}
	date, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return nil, &services.ValidationError{Field: name, Message: "ожидается дата в формате YYYY-MM-DD"}
	}
	return &date, nil
}

// requireDate как queryDate, но параметр обязателен
func requireDate(c *gin.Context, name string, loc *time.Location) (time.Time, error) {
	date, err := queryDate(c, name, loc)
	if err != nil {
		return time.Time{}, err
	}
	if date == nil {
		return time.Time{}, &services.ValidationError{Field: name, Message: "обязательный параметр"}
	}
	return *date, nil
}
