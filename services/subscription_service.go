package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backend_panelhub/config"
	"backend_panelhub/logger"
	"backend_panelhub/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubscriptionService управляет подписками и их жизненным циклом
type SubscriptionService struct {
	db         *gorm.DB
	vault      *CredentialVault
	currencies config.CurrencyTable
	clock      Clock
	log        *zap.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService
func NewSubscriptionService(db *gorm.DB, vault *CredentialVault, currencies config.CurrencyTable, clock Clock, log *zap.Logger) *SubscriptionService {
	if currencies == nil {
		currencies = config.DefaultCurrencyTable()
	}
	return &SubscriptionService{
		db:         db,
		vault:      vault,
		currencies: currencies,
		clock:      clock,
		log:        logger.OrNop(log).Named("subscriptions"),
	}
}

// SubscriptionInput данные для создания и редактирования подписки
type SubscriptionInput struct {
	ClientID  uint       `json:"client_id"`
	ServiceID uint       `json:"service_id"`
	PanelID   *uint      `json:"panel_id"`
	StartDate *time.Time `json:"start_date"`
	// DueDate учитывается только при редактировании
	DueDate       *time.Time       `json:"due_date"`
	Price         *decimal.Decimal `json:"price"` // по умолчанию базовая цена сервиса
	LocalPrice    *decimal.Decimal `json:"local_price"`
	LocalCurrency string           `json:"local_currency"`
	Email         string           `json:"email"`
	Password      string           `json:"password"` // пустой при редактировании оставляет текущий
	Notes         string           `json:"notes"`
}

// SubscriptionFilter фильтры списка подписок. State сравнивается с вычисленным состоянием
type SubscriptionFilter struct {
	ClientID  uint
	ServiceID uint
	PanelID   uint
	State     models.SubscriptionState
}

// List возвращает подписки с вычисленным состоянием
func (s *SubscriptionService) List(filter SubscriptionFilter) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := s.db.Preload("Client").Preload("Service").Preload("Panel").Order("due_date ASC, id ASC")
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.ServiceID != 0 {
		query = query.Where("service_id = ?", filter.ServiceID)
	}
	if filter.PanelID != 0 {
		query = query.Where("panel_id = ?", filter.PanelID)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения подписок: %w", err)
	}

	s.annotate(subs)
	if filter.State == "" {
		return subs, nil
	}

	result := make([]models.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.EffectiveState == filter.State {
			result = append(result, sub)
		}
	}
	return result, nil
}

// Get возвращает подписку по ID
func (s *SubscriptionService) Get(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.Preload("Client").Preload("Service").Preload("Panel").First(&sub, id).Error; err != nil {
		return nil, notFound(err, "подписки")
	}

	subs := []models.Subscription{sub}
	s.annotate(subs)
	return &subs[0], nil
}

// Create создает подписку: состояние activa, окончание через 30 дней после начала
func (s *SubscriptionService) Create(input SubscriptionInput) (*models.Subscription, error) {
	var created *models.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sub, err := s.create(tx, input)
		created = sub
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(created.ID)
}

func (s *SubscriptionService) create(tx *gorm.DB, input SubscriptionInput) (*models.Subscription, error) {
	var client models.Client
	if err := tx.First(&client, input.ClientID).Error; err != nil {
		return nil, notFound(err, "клиента")
	}

	service, err := s.resolveService(tx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if input.PanelID != nil {
		if err := s.checkPanel(tx, *input.PanelID, service.ID, 0); err != nil {
			return nil, err
		}
	}

	sub := &models.Subscription{
		ClientID:  client.ID,
		ServiceID: service.ID,
		PanelID:   input.PanelID,
		Price:     service.BasePrice,
		Email:     strings.TrimSpace(input.Email),
		Notes:     input.Notes,
	}
	if err := s.applyPricing(sub, input, &client); err != nil {
		return nil, err
	}
	if sub.PasswordEncrypted, err = s.vault.Encrypt(input.Password); err != nil {
		return nil, fmt.Errorf("ошибка шифрования пароля подписки: %w", err)
	}

	now := s.clock.Now()
	start := now
	if input.StartDate != nil {
		start = CalendarDate(*input.StartDate, now.Location())
	}
	ApplyCreation(sub, start)

	if err := tx.Create(sub).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания подписки: %w", err)
	}

	s.log.Info("Подписка создана",
		zap.Uint("subscription_id", sub.ID),
		zap.Uint("client_id", sub.ClientID),
		zap.Time("due_date", sub.DueDate))
	return sub, nil
}

// Update полностью заменяет изменяемые поля подписки. Новая дата начала
// пересчитывает окончание, если в той же правке окончание не изменено явно.
// Окончание, совпадающее с сохраненным, изменением не считается
func (s *SubscriptionService) Update(id uint, input SubscriptionInput) (*models.Subscription, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.Preload("Client").First(&sub, id).Error; err != nil {
			return notFound(err, "подписки")
		}

		service, err := s.resolveService(tx, defaultUint(input.ServiceID, sub.ServiceID))
		if err != nil {
			return err
		}
		if input.PanelID != nil && !samePanel(sub.PanelID, input.PanelID) && sub.State == models.SubscriptionActive {
			if err := s.checkPanel(tx, *input.PanelID, service.ID, sub.ID); err != nil {
				return err
			}
		}

		client := sub.Client
		sub.Client = nil
		sub.ServiceID = service.ID
		sub.PanelID = input.PanelID
		sub.Email = strings.TrimSpace(input.Email)
		sub.Notes = input.Notes
		if err := s.applyPricing(&sub, input, client); err != nil {
			return err
		}
		if input.Password != "" {
			if sub.PasswordEncrypted, err = s.vault.Encrypt(input.Password); err != nil {
				return fmt.Errorf("ошибка шифрования пароля подписки: %w", err)
			}
		}

		start, due := s.dateEdits(&sub, input)
		ApplyDateEdit(&sub, start, due)
		if sub.DueDate.Before(sub.StartDate) {
			return invalid("due_date", "дата окончания раньше даты начала")
		}

		return tx.Model(&sub).
			Select("service_id", "panel_id", "start_date", "due_date", "price", "local_price",
				"local_currency", "email", "password_encrypted", "notes").
			Updates(&sub).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Renew продлевает подписку из любого состояния: начало сегодня, окончание через 30 дней.
// Заполненная или неработающая панель продление не блокирует, только пишется предупреждение
func (s *SubscriptionService) Renew(id uint) (*models.Subscription, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.First(&sub, id).Error; err != nil {
			return notFound(err, "подписки")
		}

		if sub.PanelID != nil && sub.State != models.SubscriptionActive {
			if _, err := ensureAssignable(tx, *sub.PanelID, sub.ID); err != nil {
				if !errors.Is(err, ErrPanelFull) && !errors.Is(err, ErrPanelDown) {
					return err
				}
				s.log.Warn("Подписка продлена на недоступной панели",
					zap.Uint("subscription_id", sub.ID),
					zap.Uint("panel_id", *sub.PanelID),
					zap.Error(err))
			}
		}

		ApplyRenewal(&sub, s.clock.Now())
		return tx.Model(&sub).
			Select("state", "start_date", "due_date", "cancelled_at").
			Updates(&sub).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Подписка продлена", zap.Uint("subscription_id", id))
	return s.Get(id)
}

// Cancel отменяет подписку. Повторная отмена не является ошибкой, changed = false
func (s *SubscriptionService) Cancel(id uint) (*models.Subscription, bool, error) {
	changed := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.First(&sub, id).Error; err != nil {
			return notFound(err, "подписки")
		}

		var err error
		if changed, err = ApplyCancellation(&sub, s.clock.Now()); err != nil || !changed {
			return err
		}
		return tx.Model(&sub).Select("state", "cancelled_at").Updates(&sub).Error
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.log.Info("Подписка отменена", zap.Uint("subscription_id", id))
	}
	sub, err := s.Get(id)
	return sub, changed, err
}

// Delete удаляет подписку
func (s *SubscriptionService) Delete(id uint) error {
	result := s.db.Delete(&models.Subscription{}, id)
	if result.Error != nil {
		return fmt.Errorf("ошибка удаления подписки: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("подписка %d: %w", id, ErrNotFound)
	}
	return nil
}

// ExpiringWithin активные подписки, которые заканчиваются в ближайшие days дней (сегодня включительно)
func (s *SubscriptionService) ExpiringWithin(days int) ([]models.Subscription, error) {
	if days < 0 {
		return nil, invalid("days", "количество дней не может быть отрицательным")
	}

	subs, err := s.List(SubscriptionFilter{State: models.SubscriptionActive})
	if err != nil {
		return nil, err
	}

	today := Today(s.clock)
	result := make([]models.Subscription, 0)
	for _, sub := range subs {
		if left := DaysUntilDue(sub.DueDate, today); left >= 0 && left <= days {
			result = append(result, sub)
		}
	}
	return result, nil
}

// Overdue подписки в состоянии vencida, включая не сохраненные
func (s *SubscriptionService) Overdue() ([]models.Subscription, error) {
	subs, err := s.List(SubscriptionFilter{State: models.SubscriptionExpired})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].DueDate.Before(subs[j].DueDate)
	})
	return subs, nil
}

// MarkExpired сохраняет состояние vencida у просроченных активных подписок.
// Чтение от этого не зависит, запускается вручную или планировщиком
func (s *SubscriptionService) MarkExpired() (int, error) {
	var active []models.Subscription
	if err := s.db.Where("state = ?", models.SubscriptionActive).Find(&active).Error; err != nil {
		return 0, fmt.Errorf("ошибка получения подписок: %w", err)
	}

	today := Today(s.clock)
	ids := make([]uint, 0)
	for _, sub := range active {
		if EffectiveState(sub.State, sub.DueDate, today) == models.SubscriptionExpired {
			ids = append(ids, sub.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := s.db.Model(&models.Subscription{}).Where("id IN ?", ids).Update("state", models.SubscriptionExpired).Error; err != nil {
		return 0, fmt.Errorf("ошибка обновления просроченных подписок: %w", err)
	}

	s.log.Info("Просроченные подписки помечены", zap.Int("count", len(ids)))
	return len(ids), nil
}

func (s *SubscriptionService) resolveService(tx *gorm.DB, serviceID uint) (*models.Service, error) {
	if serviceID == 0 {
		return nil, invalid("service_id", "сервис обязателен")
	}
	var service models.Service
	if err := tx.First(&service, serviceID).Error; err != nil {
		return nil, notFound(err, "сервиса")
	}
	return &service, nil
}

// dateEdits возвращает явно измененные даты начала и окончания. Даты из
// запроса читаются как календарные дни в часовом поясе оператора
func (s *SubscriptionService) dateEdits(sub *models.Subscription, input SubscriptionInput) (start, due *time.Time) {
	now := s.clock.Now()
	loc := now.Location()

	if input.StartDate != nil {
		d := CalendarDate(*input.StartDate, loc)
		if !d.Equal(inLocationOf(sub.StartDate, now)) {
			start = &d
		}
	}
	if input.DueDate != nil {
		d := CalendarDate(*input.DueDate, loc)
		if !d.Equal(inLocationOf(sub.DueDate, now)) {
			due = &d
		}
	}
	return start, due
}

func (s *SubscriptionService) checkPanel(tx *gorm.DB, panelID, serviceID, excludeID uint) error {
	panel, err := ensureAssignable(tx, panelID, excludeID)
	if err != nil {
		return err
	}
	if panel.ServiceID != serviceID {
		return invalid("panel_id", "панель относится к другому сервису")
	}
	return nil
}

func (s *SubscriptionService) applyPricing(sub *models.Subscription, input SubscriptionInput, client *models.Client) error {
	if input.Price != nil {
		sub.Price = *input.Price
	}
	if sub.Price.IsNegative() {
		return invalid("price", "цена не может быть отрицательной")
	}

	sub.LocalPrice = input.LocalPrice
	sub.LocalCurrency = strings.ToUpper(strings.TrimSpace(input.LocalCurrency))
	if sub.LocalPrice == nil {
		sub.LocalCurrency = ""
		return nil
	}
	if sub.LocalPrice.IsNegative() {
		return invalid("local_price", "цена не может быть отрицательной")
	}
	if sub.LocalCurrency == "" && client != nil {
		sub.LocalCurrency = s.currencies.CurrencyFor(client.Country)
	}
	if len(sub.LocalCurrency) != 3 {
		return invalid("local_currency", "код валюты должен состоять из 3 букв")
	}
	return nil
}

// annotate вычисляет состояние и расшифровывает пароли
func (s *SubscriptionService) annotate(subs []models.Subscription) {
	AnnotateState(subs, Today(s.clock))
	for i := range subs {
		plain, err := s.vault.Decrypt(subs[i].PasswordEncrypted)
		if err != nil {
			s.log.Warn("Не удалось расшифровать пароль подписки", zap.Uint("subscription_id", subs[i].ID), zap.Error(err))
			continue
		}
		subs[i].Password = plain
	}
}

func samePanel(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
