package services

import (
	"fmt"
	"strings"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService управляет каталогом сервисов
type CatalogService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCatalogService создает новый экземпляр CatalogService
func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{db: db, log: logger.OrNop(log).Named("catalog")}
}

// ListServices возвращает сервисы каталога, при activeOnly только активные
func (s *CatalogService) ListServices(activeOnly bool) ([]models.Service, error) {
	var services []models.Service
	query := s.db.Order("name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&services).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения сервисов: %w", err)
	}
	return services, nil
}

// GetService возвращает сервис по ID
func (s *CatalogService) GetService(id uint) (*models.Service, error) {
	var service models.Service
	if err := s.db.First(&service, id).Error; err != nil {
		return nil, notFound(err, "сервиса")
	}
	return &service, nil
}

// CreateService добавляет сервис в каталог
func (s *CatalogService) CreateService(service *models.Service) error {
	if err := validateService(service); err != nil {
		return err
	}

	isActive := service.IsActive
	if err := s.db.Create(service).Error; err != nil {
		return fmt.Errorf("ошибка создания сервиса: %w", err)
	}
	// default:true в теге подставляется вместо нулевого значения
	if !isActive {
		if err := s.db.Model(service).Update("is_active", false).Error; err != nil {
			return fmt.Errorf("ошибка создания сервиса: %w", err)
		}
		service.IsActive = false
	}

	s.log.Info("Сервис добавлен в каталог", zap.Uint("service_id", service.ID), zap.String("name", service.Name))
	return nil
}

// UpdateService полностью заменяет изменяемые поля сервиса
func (s *CatalogService) UpdateService(id uint, input *models.Service) (*models.Service, error) {
	if err := validateService(input); err != nil {
		return nil, err
	}

	service, err := s.GetService(id)
	if err != nil {
		return nil, err
	}

	err = s.db.Model(service).
		Select("name", "description", "base_price", "is_active").
		Updates(models.Service{
			Name:        input.Name,
			Description: input.Description,
			BasePrice:   input.BasePrice,
			IsActive:    input.IsActive,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления сервиса: %w", err)
	}

	return s.GetService(id)
}

// DeleteService удаляет сервис, если на него не ссылаются панели и подписки
func (s *CatalogService) DeleteService(id uint) error {
	if _, err := s.GetService(id); err != nil {
		return err
	}

	var panels, subs int64
	if err := s.db.Model(&models.Panel{}).Where("service_id = ?", id).Count(&panels).Error; err != nil {
		return fmt.Errorf("ошибка проверки панелей сервиса: %w", err)
	}
	if err := s.db.Model(&models.Subscription{}).
		Where("service_id = ? AND state <> ?", id, models.SubscriptionCancelled).
		Count(&subs).Error; err != nil {
		return fmt.Errorf("ошибка проверки подписок сервиса: %w", err)
	}
	if panels > 0 || subs > 0 {
		return invalid("service_id", "сервис используется панелями или подписками")
	}

	if err := s.db.Delete(&models.Service{}, id).Error; err != nil {
		return fmt.Errorf("ошибка удаления сервиса: %w", err)
	}
	return nil
}

func validateService(service *models.Service) error {
	service.Name = strings.TrimSpace(service.Name)
	if service.Name == "" {
		return invalid("name", "название сервиса обязательно")
	}
	if service.BasePrice.IsNegative() {
		return invalid("base_price", "цена не может быть отрицательной")
	}
	return nil
}
