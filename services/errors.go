package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrPanelFull         = errors.New("в панели нет свободных мест")
	ErrPanelDown         = errors.New("панель не работает")
	ErrInvalidTransition = errors.New("недопустимый переход состояния")
)

// ValidationError ошибка валидации входных данных
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError проверяет, что ошибка вызвана неверными входными данными
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// notFound приводит gorm.ErrRecordNotFound к ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("ошибка получения %s: %w", what, err)
}
