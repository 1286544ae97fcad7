package services

import (
	"errors"
	"fmt"
	"strings"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PanelService управляет панелями и их вместимостью
type PanelService struct {
	db    *gorm.DB
	vault *CredentialVault
	clock Clock
	log   *zap.Logger
}

// NewPanelService создает новый экземпляр PanelService
func NewPanelService(db *gorm.DB, vault *CredentialVault, clock Clock, log *zap.Logger) *PanelService {
	return &PanelService{db: db, vault: vault, clock: clock, log: logger.OrNop(log).Named("panels")}
}

// PanelFilter фильтры списка панелей
type PanelFilter struct {
	ServiceID uint
	State     models.PanelState
}

// MarkDownRequest параметры вывода панели из работы.
// Замена задается либо существующей панелью, либо описанием новой
type MarkDownRequest struct {
	ReplacementPanelID *uint         `json:"replacement_panel_id"`
	NewPanel           *models.Panel `json:"new_panel"`
	Reason             string        `json:"reason"`
}

// MigrationResult итог вывода панели из работы
type MigrationResult struct {
	Panel       *models.Panel `json:"panel"`
	Replacement *models.Panel `json:"replacement,omitempty"`
	Moved       int           `json:"moved"`
}

// ListPanels возвращает панели с занятыми и свободными местами
func (s *PanelService) ListPanels(filter PanelFilter) ([]models.Panel, error) {
	var panels []models.Panel
	query := s.db.Preload("Service").Order("id ASC")
	if filter.ServiceID != 0 {
		query = query.Where("service_id = ?", filter.ServiceID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}
	if err := query.Find(&panels).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения панелей: %w", err)
	}

	usage, err := slotUsage(s.db)
	if err != nil {
		return nil, err
	}
	AnnotateSlots(panels, usage)
	for i := range panels {
		s.reveal(&panels[i])
	}
	return panels, nil
}

// GetPanel возвращает панель по ID
func (s *PanelService) GetPanel(id uint) (*models.Panel, error) {
	panel, err := loadPanel(s.db.Preload("Service"), id)
	if err != nil {
		return nil, err
	}

	used, err := usedSlots(s.db, id, 0)
	if err != nil {
		return nil, err
	}
	panel.UsedSlots = used
	panel.AvailableSlots = AvailableSlots(panel.Capacity, used)
	s.reveal(panel)
	return panel, nil
}

// CreatePanel создает панель и записывает событие в историю
func (s *PanelService) CreatePanel(panel *models.Panel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.createPanel(tx, panel, "")
	})
}

func (s *PanelService) createPanel(tx *gorm.DB, panel *models.Panel, description string) error {
	if err := validatePanel(tx, panel); err != nil {
		return err
	}

	panel.ID = 0
	panel.State = models.PanelStateActive
	encrypted, err := s.vault.Encrypt(panel.Password)
	if err != nil {
		return fmt.Errorf("ошибка шифрования пароля панели: %w", err)
	}
	panel.PasswordEncrypted = encrypted

	if err := tx.Create(panel).Error; err != nil {
		return fmt.Errorf("ошибка создания панели: %w", err)
	}
	panel.AvailableSlots = panel.Capacity

	if description == "" {
		description = "Панель создана"
	}
	if err := recordPanelEvent(tx, &models.PanelEvent{
		PanelID:     panel.ID,
		Kind:        models.PanelEventCreated,
		Description: description,
	}); err != nil {
		return err
	}

	s.log.Info("Панель создана",
		zap.Uint("panel_id", panel.ID),
		zap.Uint("service_id", panel.ServiceID),
		zap.Int("capacity", panel.Capacity))
	return nil
}

// UpdatePanel полностью заменяет изменяемые поля панели. Пустой пароль
// оставляет текущий. Смена учетных данных сохраняется в истории ротаций
func (s *PanelService) UpdatePanel(id uint, input *models.Panel) (*models.Panel, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		panel, err := loadPanel(tx, id)
		if err != nil {
			return err
		}

		input.ServiceID = defaultUint(input.ServiceID, panel.ServiceID)
		if err := validatePanel(tx, input); err != nil {
			return err
		}

		used, err := usedSlots(tx, id, 0)
		if err != nil {
			return err
		}
		if input.Capacity < used {
			return invalid("capacity", fmt.Sprintf("вместимость меньше числа активных подписок (%d)", used))
		}

		emailChanged := input.Email != panel.Email
		passwordChanged := false
		if input.Password != "" {
			current, err := s.vault.Decrypt(panel.PasswordEncrypted)
			if err != nil {
				s.log.Warn("Не удалось расшифровать текущий пароль панели", zap.Uint("panel_id", id), zap.Error(err))
			}
			passwordChanged = err != nil || current != input.Password
		}

		encrypted := panel.PasswordEncrypted
		if passwordChanged {
			if encrypted, err = s.vault.Encrypt(input.Password); err != nil {
				return fmt.Errorf("ошибка шифрования пароля панели: %w", err)
			}
		}

		if emailChanged || passwordChanged {
			if err := s.rotate(tx, panel, input.Email); err != nil {
				return err
			}
		}

		return tx.Model(panel).
			Select("name", "service_id", "email", "password_encrypted", "capacity",
				"purchase_date", "expiration_date", "monthly_cost", "provider", "notes").
			Updates(models.Panel{
				Name:              input.Name,
				ServiceID:         input.ServiceID,
				Email:             input.Email,
				PasswordEncrypted: encrypted,
				Capacity:          input.Capacity,
				PurchaseDate:      input.PurchaseDate,
				ExpirationDate:    input.ExpirationDate,
				MonthlyCost:       input.MonthlyCost,
				Provider:          input.Provider,
				Notes:             input.Notes,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetPanel(id)
}

func (s *PanelService) rotate(tx *gorm.DB, panel *models.Panel, newEmail string) error {
	rotation := &models.PanelCredentialRotation{
		PanelID:           panel.ID,
		PreviousEmail:     panel.Email,
		PasswordEncrypted: panel.PasswordEncrypted,
		RotatedAt:         s.clock.Now(),
	}
	if err := tx.Create(rotation).Error; err != nil {
		return fmt.Errorf("ошибка сохранения ротации учетных данных: %w", err)
	}

	s.log.Info("Учетные данные панели изменены", zap.Uint("panel_id", panel.ID))
	return recordPanelEvent(tx, &models.PanelEvent{
		PanelID:     panel.ID,
		Kind:        models.PanelEventCredentialsRotated,
		Description: "Учетные данные изменены",
		Metadata: datatypes.JSONMap{
			"previous_email": panel.Email,
			"email":          newEmail,
		},
	})
}

// DeletePanel удаляет панель без активных подписок
func (s *PanelService) DeletePanel(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadPanel(tx, id); err != nil {
			return err
		}

		used, err := usedSlots(tx, id, 0)
		if err != nil {
			return err
		}
		if used > 0 {
			return invalid("panel_id", fmt.Sprintf("на панели %d активных подписок, сначала перенесите их", used))
		}

		if err := tx.Model(&models.Subscription{}).Where("panel_id = ?", id).Update("panel_id", nil).Error; err != nil {
			return fmt.Errorf("ошибка отвязки подписок от панели: %w", err)
		}
		if err := tx.Delete(&models.Panel{}, id).Error; err != nil {
			return fmt.Errorf("ошибка удаления панели: %w", err)
		}
		return nil
	})
}

// UsedSlots число активных подписок на панели
func (s *PanelService) UsedSlots(panelID uint) (int, error) {
	if _, err := loadPanel(s.db, panelID); err != nil {
		return 0, err
	}
	return usedSlots(s.db, panelID, 0)
}

// AvailableSlotsExcluding свободные места на панели без учета места подписки subscriptionID.
// Используется формой редактирования, чтобы подписка не занимала место сама у себя
func (s *PanelService) AvailableSlotsExcluding(panelID, subscriptionID uint) (int, error) {
	panel, err := loadPanel(s.db, panelID)
	if err != nil {
		return 0, err
	}
	used, err := usedSlots(s.db, panelID, subscriptionID)
	if err != nil {
		return 0, err
	}
	return AvailableSlots(panel.Capacity, used), nil
}

// CanAssign проверяет, можно ли назначить подписку на панель
func (s *PanelService) CanAssign(panelID, excludeSubscriptionID uint) (bool, error) {
	_, err := ensureAssignable(s.db, panelID, excludeSubscriptionID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPanelFull), errors.Is(err, ErrPanelDown):
		return false, nil
	default:
		return false, err
	}
}

// Occupancy сводка заполненности всех панелей
func (s *PanelService) Occupancy() ([]PanelOccupancy, error) {
	panels, err := s.ListPanels(PanelFilter{})
	if err != nil {
		return nil, err
	}
	return Occupancy(panels), nil
}

// MarkDown выводит панель из работы и, если задана замена, переносит на нее
// все подписки панели. Все изменения выполняются в одной транзакции
func (s *PanelService) MarkDown(id uint, req MarkDownRequest) (*MigrationResult, error) {
	if req.ReplacementPanelID != nil && req.NewPanel != nil {
		return nil, invalid("replacement", "укажите либо существующую панель, либо новую")
	}
	if req.ReplacementPanelID != nil && *req.ReplacementPanelID == id {
		return nil, invalid("replacement_panel_id", "панель не может заменить сама себя")
	}

	result := &MigrationResult{}
	var replacementID uint

	err := s.db.Transaction(func(tx *gorm.DB) error {
		panel, err := loadPanel(tx, id)
		if err != nil {
			return err
		}

		var replacement *models.Panel
		switch {
		case req.ReplacementPanelID != nil:
			if replacement, err = loadPanel(tx, *req.ReplacementPanelID); err != nil {
				return err
			}
			if !replacement.IsActive() {
				return fmt.Errorf("панель замены %d: %w", replacement.ID, ErrPanelDown)
			}
			if replacement.ServiceID != panel.ServiceID {
				return invalid("replacement_panel_id", "панель замены обслуживает другой сервис")
			}
		case req.NewPanel != nil:
			replacement = req.NewPanel
			replacement.ServiceID = defaultUint(replacement.ServiceID, panel.ServiceID)
			if replacement.ServiceID != panel.ServiceID {
				return invalid("new_panel.service_id", "панель замены обслуживает другой сервис")
			}
			if err := s.createPanel(tx, replacement, fmt.Sprintf("Создана как замена панели %d", panel.ID)); err != nil {
				return err
			}
		}

		if panel.IsActive() {
			if err := tx.Model(panel).Update("state", models.PanelStateDown).Error; err != nil {
				return fmt.Errorf("ошибка изменения состояния панели: %w", err)
			}
			event := &models.PanelEvent{
				PanelID:     panel.ID,
				Kind:        models.PanelEventDown,
				Description: defaultString(req.Reason, "Панель не работает"),
			}
			if replacement != nil {
				event.TargetPanelID = &replacement.ID
			}
			if err := recordPanelEvent(tx, event); err != nil {
				return err
			}
		}

		if replacement != nil {
			moved := tx.Model(&models.Subscription{}).Where("panel_id = ?", panel.ID).Update("panel_id", replacement.ID)
			if moved.Error != nil {
				return fmt.Errorf("ошибка переноса подписок: %w", moved.Error)
			}
			result.Moved = int(moved.RowsAffected)

			if err := recordPanelEvent(tx, &models.PanelEvent{
				PanelID:            panel.ID,
				Kind:               models.PanelEventMigrated,
				TargetPanelID:      &replacement.ID,
				MovedSubscriptions: result.Moved,
				Description:        fmt.Sprintf("Подписки перенесены на панель %d", replacement.ID),
				Metadata:           datatypes.JSONMap{"reason": req.Reason},
			}); err != nil {
				return err
			}
			replacementID = replacement.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Panel, err = s.GetPanel(id); err != nil {
		return nil, err
	}
	if replacementID != 0 {
		if result.Replacement, err = s.GetPanel(replacementID); err != nil {
			return nil, err
		}
		if result.Replacement.AvailableSlots < 0 {
			s.log.Warn("Панель замены переполнена после переноса",
				zap.Uint("panel_id", replacementID),
				zap.Int("available_slots", result.Replacement.AvailableSlots))
		}
	}

	s.log.Info("Панель выведена из работы",
		zap.Uint("panel_id", id),
		zap.Uint("replacement_id", replacementID),
		zap.Int("moved", result.Moved))
	return result, nil
}

// Reactivate возвращает панель в работу
func (s *PanelService) Reactivate(id uint) (*models.Panel, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		panel, err := loadPanel(tx, id)
		if err != nil {
			return err
		}
		if panel.IsActive() {
			return nil
		}

		if err := tx.Model(panel).Update("state", models.PanelStateActive).Error; err != nil {
			return fmt.Errorf("ошибка изменения состояния панели: %w", err)
		}
		return recordPanelEvent(tx, &models.PanelEvent{
			PanelID:     panel.ID,
			Kind:        models.PanelEventReactivated,
			Description: "Панель снова работает",
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetPanel(id)
}

// ExpiringPanels работающие панели, оплата которых заканчивается в ближайшие days дней
// (включая уже просроченные)
func (s *PanelService) ExpiringPanels(days int) ([]models.Panel, error) {
	panels, err := s.ListPanels(PanelFilter{State: models.PanelStateActive})
	if err != nil {
		return nil, err
	}

	today := Today(s.clock)
	result := make([]models.Panel, 0)
	for _, p := range panels {
		if p.IsExpiringWithin(today, days) {
			result = append(result, p)
		}
	}
	return result, nil
}

// Rotations история смены учетных данных панели
func (s *PanelService) Rotations(panelID uint) ([]models.PanelCredentialRotation, error) {
	if _, err := loadPanel(s.db, panelID); err != nil {
		return nil, err
	}

	var rotations []models.PanelCredentialRotation
	if err := s.db.Where("panel_id = ?", panelID).Order("rotated_at DESC, id DESC").Find(&rotations).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения ротаций: %w", err)
	}
	for i := range rotations {
		plain, err := s.vault.Decrypt(rotations[i].PasswordEncrypted)
		if err != nil {
			s.log.Warn("Не удалось расшифровать старый пароль", zap.Uint("rotation_id", rotations[i].ID), zap.Error(err))
			continue
		}
		rotations[i].PreviousPassword = plain
	}
	return rotations, nil
}

// Events история событий панели
func (s *PanelService) Events(panelID uint) ([]models.PanelEvent, error) {
	if _, err := loadPanel(s.db.Unscoped(), panelID); err != nil {
		return nil, err
	}

	var events []models.PanelEvent
	if err := s.db.Where("panel_id = ?", panelID).Order("id ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения истории панели: %w", err)
	}
	return events, nil
}

// reveal расшифровывает пароль панели для оператора
func (s *PanelService) reveal(panel *models.Panel) {
	plain, err := s.vault.Decrypt(panel.PasswordEncrypted)
	if err != nil {
		s.log.Warn("Не удалось расшифровать пароль панели", zap.Uint("panel_id", panel.ID), zap.Error(err))
		return
	}
	panel.Password = plain
}

func validatePanel(tx *gorm.DB, panel *models.Panel) error {
	panel.Name = strings.TrimSpace(panel.Name)
	if panel.Name == "" {
		return invalid("name", "название панели обязательно")
	}
	if panel.Capacity <= 0 {
		return invalid("capacity", "вместимость должна быть больше нуля")
	}
	if panel.MonthlyCost.IsNegative() {
		return invalid("monthly_cost", "стоимость не может быть отрицательной")
	}
	if panel.PurchaseDate != nil && panel.ExpirationDate != nil && panel.ExpirationDate.Before(*panel.PurchaseDate) {
		return invalid("expiration_date", "дата окончания раньше даты покупки")
	}
	if panel.ServiceID == 0 {
		return invalid("service_id", "сервис обязателен")
	}

	var count int64
	if err := tx.Model(&models.Service{}).Where("id = ?", panel.ServiceID).Count(&count).Error; err != nil {
		return fmt.Errorf("ошибка проверки сервиса: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("сервис %d: %w", panel.ServiceID, ErrNotFound)
	}
	return nil
}

func loadPanel(tx *gorm.DB, id uint) (*models.Panel, error) {
	var panel models.Panel
	if err := tx.First(&panel, id).Error; err != nil {
		return nil, notFound(err, "панели")
	}
	return &panel, nil
}

// usedSlots активные подписки на панели без учета excludeID
func usedSlots(tx *gorm.DB, panelID, excludeID uint) (int, error) {
	var count int64
	query := tx.Model(&models.Subscription{}).Where("panel_id = ? AND state = ?", panelID, models.SubscriptionActive)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("ошибка подсчета мест панели: %w", err)
	}
	return int(count), nil
}

func slotUsage(tx *gorm.DB) (map[uint]int, error) {
	var rows []struct {
		PanelID uint
		Used    int
	}
	err := tx.Model(&models.Subscription{}).
		Select("panel_id, COUNT(*) AS used").
		Where("panel_id IS NOT NULL AND state = ?", models.SubscriptionActive).
		Group("panel_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета мест панелей: %w", err)
	}

	usage := make(map[uint]int, len(rows))
	for _, r := range rows {
		usage[r.PanelID] = r.Used
	}
	return usage, nil
}

// ensureAssignable проверяет, что на панель можно назначить подписку.
// Проверка не атомарна: две одновременные записи могут переполнить панель
func ensureAssignable(tx *gorm.DB, panelID, excludeID uint) (*models.Panel, error) {
	panel, err := loadPanel(tx, panelID)
	if err != nil {
		return nil, err
	}
	if !panel.IsActive() {
		return nil, fmt.Errorf("панель %d: %w", panelID, ErrPanelDown)
	}

	used, err := usedSlots(tx, panelID, excludeID)
	if err != nil {
		return nil, err
	}
	if AvailableSlots(panel.Capacity, used) <= 0 {
		return nil, fmt.Errorf("панель %d: %w", panelID, ErrPanelFull)
	}
	return panel, nil
}

func recordPanelEvent(tx *gorm.DB, event *models.PanelEvent) error {
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("ошибка записи истории панели: %w", err)
	}
	return nil
}

func defaultUint(value, fallback uint) uint {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
