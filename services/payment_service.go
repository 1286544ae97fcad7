package services

import (
	"fmt"
	"strings"
	"time"

	"backend_panelhub/logger"
	"backend_panelhub/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService управляет платежами клиентов
type PaymentService struct {
	db    *gorm.DB
	clock Clock
	log   *zap.Logger
}

// NewPaymentService создает новый экземпляр PaymentService
func NewPaymentService(db *gorm.DB, clock Clock, log *zap.Logger) *PaymentService {
	return &PaymentService{db: db, clock: clock, log: logger.OrNop(log).Named("payments")}
}

// PaymentInput данные нового платежа. Для USD задается Amount, для
// локальной валюты OriginalAmount и ExchangeRate
type PaymentInput struct {
	ClientID       uint             `json:"client_id"`
	SubscriptionID *uint            `json:"subscription_id"`
	Amount         *decimal.Decimal `json:"amount"`
	OriginalAmount *decimal.Decimal `json:"original_amount"`
	Currency       string           `json:"currency"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate"` // единиц локальной валюты за 1 USD
	Method         string           `json:"method"`
	PaidAt         *time.Time       `json:"paid_at"`
	ReceiptRef     string           `json:"receipt_ref"`
	Notes          string           `json:"notes"`
}

// PaymentUpdate изменяемые поля платежа. Сумма в USD не пересчитывается
type PaymentUpdate struct {
	Method       string           `json:"method"`
	PaidAt       *time.Time       `json:"paid_at"`
	ReceiptRef   string           `json:"receipt_ref"`
	Notes        string           `json:"notes"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
}

// PaymentFilter фильтры списка платежей
type PaymentFilter struct {
	ClientID uint
	Currency string
	From     *time.Time
	To       *time.Time
	Unlinked bool
}

// List возвращает платежи по фильтру, новые первыми
func (s *PaymentService) List(filter PaymentFilter) ([]models.Payment, error) {
	var payments []models.Payment
	query := s.db.Preload("Client").Order("paid_at DESC, id DESC")
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", strings.ToUpper(filter.Currency))
	}
	if filter.Unlinked {
		query = query.Where("cut_id IS NULL")
	}
	if err := query.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения платежей: %w", err)
	}

	if filter.From == nil && filter.To == nil {
		return payments, nil
	}

	from := time.Time{}
	if filter.From != nil {
		from = *filter.From
	}
	to := s.clock.Now()
	if filter.To != nil {
		to = *filter.To
	}
	period, err := NewPeriod(from, to)
	if err != nil {
		return nil, err
	}
	return PaymentsIn(payments, period), nil
}

// Get возвращает платеж по ID
func (s *PaymentService) Get(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.Preload("Client").First(&payment, id).Error; err != nil {
		return nil, notFound(err, "платежа")
	}
	return &payment, nil
}

// Create регистрирует платеж. Сумма в локальной валюте переводится в USD
// один раз при вводе
func (s *PaymentService) Create(input PaymentInput) (*models.Payment, error) {
	payment, err := s.build(input)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, payment.ClientID).Error; err != nil {
			return notFound(err, "клиента")
		}
		if payment.SubscriptionID != nil {
			var sub models.Subscription
			if err := tx.First(&sub, *payment.SubscriptionID).Error; err != nil {
				return notFound(err, "подписки")
			}
			if sub.ClientID != client.ID {
				return invalid("subscription_id", "подписка принадлежит другому клиенту")
			}
		}
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("ошибка создания платежа: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Платеж зарегистрирован",
		zap.Uint("payment_id", payment.ID),
		zap.Uint("client_id", payment.ClientID),
		zap.String("amount_usd", payment.Amount.StringFixed(2)),
		zap.String("currency", payment.Currency))
	return s.Get(payment.ID)
}

func (s *PaymentService) build(input PaymentInput) (*models.Payment, error) {
	if input.ClientID == 0 {
		return nil, invalid("client_id", "клиент обязателен")
	}

	payment := &models.Payment{
		ClientID:       input.ClientID,
		SubscriptionID: input.SubscriptionID,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		Method:         strings.TrimSpace(input.Method),
		PaidAt:         s.clock.Now(),
		ReceiptRef:     input.ReceiptRef,
		Notes:          input.Notes,
	}
	if input.PaidAt != nil {
		payment.PaidAt = *input.PaidAt
	}
	if payment.Currency == "" {
		payment.Currency = models.BaseCurrency
	}
	if len(payment.Currency) != 3 {
		return nil, invalid("currency", "код валюты должен состоять из 3 букв")
	}

	if payment.Currency == models.BaseCurrency {
		if input.Amount == nil || !input.Amount.IsPositive() {
			return nil, invalid("amount", "сумма должна быть больше нуля")
		}
		payment.Amount = Round2(*input.Amount)
		return payment, nil
	}

	if input.OriginalAmount == nil || !input.OriginalAmount.IsPositive() {
		return nil, invalid("original_amount", "сумма в локальной валюте должна быть больше нуля")
	}
	if input.ExchangeRate == nil {
		return nil, invalid("exchange_rate", "курс обязателен для платежа не в USD")
	}
	usd, err := ConvertToUSD(*input.OriginalAmount, *input.ExchangeRate)
	if err != nil {
		return nil, err
	}

	original := *input.OriginalAmount
	rate := *input.ExchangeRate
	payment.Amount = usd
	payment.OriginalAmount = &original
	payment.ExchangeRate = &rate
	return payment, nil
}

// Update меняет способ, дату, примечания и сохраненный курс. Сумма в USD
// остается той, что была рассчитана при вводе. Дата платежа из корте не меняется
func (s *PaymentService) Update(id uint, input PaymentUpdate) (*models.Payment, error) {
	payment, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if input.ExchangeRate != nil {
		if !payment.IsLocalCurrency() {
			return nil, invalid("exchange_rate", "у платежа в USD нет курса")
		}
		if !input.ExchangeRate.IsPositive() {
			return nil, invalid("exchange_rate", "курс должен быть больше нуля")
		}
	}

	updates := models.Payment{
		Method:       strings.TrimSpace(input.Method),
		PaidAt:       payment.PaidAt,
		ReceiptRef:   input.ReceiptRef,
		Notes:        input.Notes,
		ExchangeRate: payment.ExchangeRate,
	}
	if input.PaidAt != nil {
		if payment.CutID != nil && !sameInstant(*input.PaidAt, payment.PaidAt) {
			return nil, invalid("paid_at", fmt.Sprintf("платеж входит в корте %d, дату оплаты менять нельзя", *payment.CutID))
		}
		updates.PaidAt = *input.PaidAt
	}
	if input.ExchangeRate != nil {
		updates.ExchangeRate = input.ExchangeRate
	}

	payment.Client = nil
	err = s.db.Model(payment).
		Select("method", "paid_at", "receipt_ref", "notes", "exchange_rate").
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления платежа: %w", err)
	}
	return s.Get(id)
}

// Delete удаляет платеж, не вошедший в корте
func (s *PaymentService) Delete(id uint) error {
	payment, err := s.Get(id)
	if err != nil {
		return err
	}
	if payment.CutID != nil {
		return invalid("cut_id", fmt.Sprintf("платеж входит в корте %d, сначала удалите корте", *payment.CutID))
	}
	if err := s.db.Delete(&models.Payment{}, id).Error; err != nil {
		return fmt.Errorf("ошибка удаления платежа: %w", err)
	}
	return nil
}

// sameInstant сравнивает моменты с точностью до секунды, JSON и база могут срезать доли
func sameInstant(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
