package services

import (
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

// ClientService управляет клиентами
type ClientService struct {
	db            *gorm.DB
	subscriptions *SubscriptionService
	currencies    config.CurrencyTable
	log           *zap.Logger
}

// NewClientService создает новый экземпляр ClientService
func NewClientService(db *gorm.DB, subscriptions *SubscriptionService, currencies config.CurrencyTable, log *zap.Logger) *ClientService {
	if currencies == nil {
		currencies = config.DefaultCurrencyTable()
	}
	return &ClientService{
		db:            db,
		subscriptions: subscriptions,
		currencies:    currencies,
		log:           logger.OrNop(log).Named("clients"),
	}
}

// CreateClientRequest клиент вместе с начальными подписками
type CreateClientRequest struct {
	Client        models.Client       `json:"client"`
	Subscriptions []SubscriptionInput `json:"subscriptions"`
}

// ClientFilter фильтры списка клиентов
type ClientFilter struct {
	ProjectID uint
	Country   string
	Search    string
}

// Типы событий в истории клиента
const (
	ClientEventSubscriptionStarted   = "subscription_started"
	ClientEventSubscriptionCancelled = "subscription_cancelled"
	ClientEventPayment               = "payment"
)

// ClientEvent событие в истории клиента
type ClientEvent struct {
	Date           time.Time        `json:"date"`
	Kind           string           `json:"kind"`
	SubscriptionID *uint            `json:"subscription_id,omitempty"`
	PaymentID      *uint            `json:"payment_id,omitempty"`
	ServiceName    string           `json:"service_name,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Description    string           `json:"description"`
}

// ListClients возвращает клиентов с валютой по умолчанию
func (s *ClientService) ListClients(filter ClientFilter) ([]models.Client, error) {
	var clients []models.Client
	query := s.db.Preload("Project").Order("name ASC")
	if filter.ProjectID != 0 {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.Country != "" {
		query = query.Where("country = ?", strings.ToUpper(filter.Country))
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR whatsapp LIKE ?", pattern, pattern)
	}
	if err := query.Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения клиентов: %w", err)
	}

	for i := range clients {
		clients[i].DefaultCurrency = s.currencies.CurrencyFor(clients[i].Country)
	}
	return clients, nil
}

// GetClient возвращает клиента вместе с подписками
func (s *ClientService) GetClient(id uint) (*models.Client, error) {
	var client models.Client
	if err := s.db.Preload("Project").First(&client, id).Error; err != nil {
		return nil, notFound(err, "клиента")
	}

	subs, err := s.subscriptions.List(SubscriptionFilter{ClientID: id})
	if err != nil {
		return nil, err
	}
	for i := range subs {
		subs[i].Client = nil
	}
	client.Subscriptions = subs
	client.DefaultCurrency = s.currencies.CurrencyFor(client.Country)
	return &client, nil
}

// CreateClient создает клиента и его начальные подписки в одной транзакции
func (s *ClientService) CreateClient(req CreateClientRequest) (*models.Client, error) {
	client := req.Client
	if err := s.validate(&client); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		client.ID = 0
		client.Subscriptions = nil
		client.Project = nil
		if err := tx.Create(&client).Error; err != nil {
			return fmt.Errorf("ошибка создания клиента: %w", err)
		}

		for i, input := range req.Subscriptions {
			input.ClientID = client.ID
			if _, err := s.subscriptions.create(tx, input); err != nil {
				return fmt.Errorf("подписка #%d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Клиент создан",
		zap.Uint("client_id", client.ID),
		zap.Int("subscriptions", len(req.Subscriptions)))
	return s.GetClient(client.ID)
}

// UpdateClient полностью заменяет изменяемые поля клиента
func (s *ClientService) UpdateClient(id uint, input *models.Client) (*models.Client, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	var client models.Client
	if err := s.db.First(&client, id).Error; err != nil {
		return nil, notFound(err, "клиента")
	}

	err := s.db.Model(&client).
		Select("name", "whatsapp", "country", "notes", "project_id").
		Updates(models.Client{
			Name:      input.Name,
			WhatsApp:  input.WhatsApp,
			Country:   input.Country,
			Notes:     input.Notes,
			ProjectID: input.ProjectID,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления клиента: %w", err)
	}
	return s.GetClient(id)
}

// DeleteClient удаляет клиента вместе с подписками и платежами. Клиента с
// платежами в закрытых корте удалить нельзя, итоги корте не должны расходиться
func (s *ClientService) DeleteClient(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, id).Error; err != nil {
			return notFound(err, "клиента")
		}

		var inCuts int64
		if err := tx.Model(&models.Payment{}).Where("client_id = ? AND cut_id IS NOT NULL", id).Count(&inCuts).Error; err != nil {
			return fmt.Errorf("ошибка проверки платежей клиента: %w", err)
		}
		if inCuts > 0 {
			return invalid("client", fmt.Sprintf("у клиента %d платежей в корте, сначала удалите корте", inCuts))
		}

		subs := tx.Where("client_id = ?", id).Delete(&models.Subscription{})
		if subs.Error != nil {
			return fmt.Errorf("ошибка удаления подписок клиента: %w", subs.Error)
		}
		payments := tx.Where("client_id = ?", id).Delete(&models.Payment{})
		if payments.Error != nil {
			return fmt.Errorf("ошибка удаления платежей клиента: %w", payments.Error)
		}
		if err := tx.Delete(&client).Error; err != nil {
			return fmt.Errorf("ошибка удаления клиента: %w", err)
		}

		s.log.Info("Клиент удален",
			zap.Uint("client_id", id),
			zap.Int64("subscriptions", subs.RowsAffected),
			zap.Int64("payments", payments.RowsAffected))
		return nil
	})
}

// History восстанавливает хронологию клиента по подпискам и платежам
func (s *ClientService) History(id uint) ([]ClientEvent, error) {
	if _, err := s.GetClient(id); err != nil {
		return nil, err
	}

	var subs []models.Subscription
	if err := s.db.Preload("Service").Where("client_id = ?", id).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения подписок клиента: %w", err)
	}
	var payments []models.Payment
	if err := s.db.Where("client_id = ?", id).Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения платежей клиента: %w", err)
	}

	return clientTimeline(subs, payments), nil
}

func clientTimeline(subs []models.Subscription, payments []models.Payment) []ClientEvent {
	events := make([]ClientEvent, 0, len(subs)+len(payments))
	for i := range subs {
		sub := &subs[i]
		serviceName := ""
		if sub.Service != nil {
			serviceName = sub.Service.Name
		}
		price := sub.Price

		events = append(events, ClientEvent{
			Date:           sub.StartDate,
			Kind:           ClientEventSubscriptionStarted,
			SubscriptionID: &sub.ID,
			ServiceName:    serviceName,
			Amount:         &price,
			Currency:       models.BaseCurrency,
			Description:    fmt.Sprintf("Подписка %s до %s", serviceName, sub.DueDate.Format("2006-01-02")),
		})
		if sub.State == models.SubscriptionCancelled {
			events = append(events, ClientEvent{
				Date:           CancellationDate(sub),
				Kind:           ClientEventSubscriptionCancelled,
				SubscriptionID: &sub.ID,
				ServiceName:    serviceName,
				Description:    fmt.Sprintf("Подписка %s отменена", serviceName),
			})
		}
	}

	for i := range payments {
		p := &payments[i]
		amount := p.Amount
		description := fmt.Sprintf("Платеж %s USD", amount.StringFixed(2))
		if p.IsLocalCurrency() {
			description = fmt.Sprintf("Платеж %s %s (%s USD)", LocalAmount(p).StringFixed(2), p.Currency, amount.StringFixed(2))
		}
		events = append(events, ClientEvent{
			Date:        p.PaidAt,
			Kind:        ClientEventPayment,
			PaymentID:   &p.ID,
			Amount:      &amount,
			Currency:    models.BaseCurrency,
			Description: description,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	return events
}

func (s *ClientService) validate(client *models.Client) error {
	client.Name = strings.TrimSpace(client.Name)
	if client.Name == "" {
		return invalid("name", "имя клиента обязательно")
	}
	client.Country = strings.ToUpper(strings.TrimSpace(client.Country))
	if client.Country != "" && len(client.Country) != 2 {
		return invalid("country", "код страны должен состоять из 2 букв")
	}
	if client.ProjectID != nil {
		var count int64
		if err := s.db.Model(&models.Project{}).Where("id = ?", *client.ProjectID).Count(&count).Error; err != nil {
			return fmt.Errorf("ошибка проверки проекта: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("проект %d: %w", *client.ProjectID, ErrNotFound)
		}
	}
	return nil
}
