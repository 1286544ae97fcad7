package services

import (
	"fmt"
	"strings"
	"time"

	"backend_panelhub/config"
	"backend_panelhub/logger"
	"backend_panelhub/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CutService рассчитывает и сохраняет корте: недельную конвертацию
// собранной локальной валюты в USDT
type CutService struct {
	db         *gorm.DB
	currencies config.CurrencyTable
	log        *zap.Logger
}

// NewCutService создает новый экземпляр CutService
func NewCutService(db *gorm.DB, currencies config.CurrencyTable, log *zap.Logger) *CutService {
	if currencies == nil {
		currencies = config.DefaultCurrencyTable()
	}
	return &CutService{db: db, currencies: currencies, log: logger.OrNop(log).Named("cuts")}
}

// CutRequest параметры корте
type CutRequest struct {
	Country           string          `json:"country"`
	WeekStart         time.Time       `json:"week_start"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	P2PRate           decimal.Decimal `json:"p2p_rate"`
	USDTReceived      decimal.Decimal `json:"usdt_received"`
	Notes             string          `json:"notes"`
}

// CutPreview расчет корте без сохранения
type CutPreview struct {
	Country     string           `json:"country"`
	Currency    string           `json:"currency"`
	Period      Period           `json:"period"`
	Calculation CutCalculation   `json:"calculation"`
	Payments    []models.Payment `json:"payments"`
}

// Preview считает корте по еще не привязанным платежам страны за неделю
func (s *CutService) Preview(req CutRequest) (*CutPreview, error) {
	return s.preview(s.db, req)
}

func (s *CutService) preview(tx *gorm.DB, req CutRequest) (*CutPreview, error) {
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if len(country) != 2 {
		return nil, invalid("country", "код страны должен состоять из 2 букв")
	}
	if req.WeekStart.IsZero() {
		return nil, invalid("week_start", "начало недели обязательно")
	}
	currency := s.currencies.CurrencyFor(country)
	if currency == models.BaseCurrency {
		return nil, invalid("country", fmt.Sprintf("страна %s работает в USD, корте не требуется", country))
	}

	period := WeekFrom(req.WeekStart)
	payments, err := unlinkedPayments(tx, currency, period)
	if err != nil {
		return nil, err
	}

	collected := decimal.Zero
	for i := range payments {
		collected = collected.Add(LocalAmount(&payments[i]))
	}

	calc, err := CalculateCut(collected, req.CommissionPercent, req.P2PRate, req.USDTReceived)
	if err != nil {
		return nil, err
	}

	return &CutPreview{
		Country:     country,
		Currency:    currency,
		Period:      period,
		Calculation: calc,
		Payments:    payments,
	}, nil
}

// Create сохраняет корте и привязывает к нему исходные платежи в одной транзакции
func (s *CutService) Create(req CutRequest) (*models.Cut, error) {
	var cut *models.Cut
	err := s.db.Transaction(func(tx *gorm.DB) error {
		preview, err := s.preview(tx, req)
		if err != nil {
			return err
		}
		if len(preview.Payments) == 0 {
			return invalid("week_start", "за эту неделю нет непривязанных платежей")
		}

		calc := preview.Calculation
		cut = &models.Cut{
			Reference:         uuid.NewString(),
			Country:           preview.Country,
			Currency:          preview.Currency,
			WeekStart:         preview.Period.Start,
			CollectedAmount:   calc.CollectedAmount,
			CommissionPercent: calc.CommissionPercent,
			CommissionAmount:  calc.CommissionAmount,
			NetAmount:         calc.NetAmount,
			P2PRate:           calc.P2PRate,
			USDTCalculated:    calc.USDTCalculated,
			USDTReceived:      calc.USDTReceived,
			Variance:          calc.Variance,
			PaymentCount:      len(preview.Payments),
			Notes:             req.Notes,
		}
		if err := tx.Create(cut).Error; err != nil {
			return fmt.Errorf("ошибка создания корте: %w", err)
		}

		ids := make([]uint, 0, len(preview.Payments))
		for _, p := range preview.Payments {
			ids = append(ids, p.ID)
		}
		if err := tx.Model(&models.Payment{}).Where("id IN ?", ids).Update("cut_id", cut.ID).Error; err != nil {
			return fmt.Errorf("ошибка привязки платежей к корте: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Корте создан",
		zap.String("reference", cut.Reference),
		zap.String("country", cut.Country),
		zap.Int("payments", cut.PaymentCount),
		zap.String("variance", cut.Variance.StringFixed(2)))
	return s.Get(cut.ID)
}

// List возвращает корте, при заданной стране только по ней
func (s *CutService) List(country string) ([]models.Cut, error) {
	var cuts []models.Cut
	query := s.db.Order("week_start DESC, id DESC")
	if country != "" {
		query = query.Where("country = ?", strings.ToUpper(country))
	}
	if err := query.Find(&cuts).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения корте: %w", err)
	}
	return cuts, nil
}

// Get возвращает корте вместе с платежами
func (s *CutService) Get(id uint) (*models.Cut, error) {
	var cut models.Cut
	if err := s.db.Preload("Payments").First(&cut, id).Error; err != nil {
		return nil, notFound(err, "корте")
	}
	return &cut, nil
}

// Delete удаляет корте и отвязывает его платежи
func (s *CutService) Delete(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var cut models.Cut
		if err := tx.First(&cut, id).Error; err != nil {
			return notFound(err, "корте")
		}
		if err := tx.Model(&models.Payment{}).Where("cut_id = ?", id).Update("cut_id", nil).Error; err != nil {
			return fmt.Errorf("ошибка отвязки платежей: %w", err)
		}
		if err := tx.Delete(&cut).Error; err != nil {
			return fmt.Errorf("ошибка удаления корте: %w", err)
		}
		return nil
	})
}

func unlinkedPayments(tx *gorm.DB, currency string, period Period) ([]models.Payment, error) {
	var payments []models.Payment
	err := tx.Where("currency = ? AND cut_id IS NULL", currency).Order("paid_at ASC, id ASC").Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения платежей для корте: %w", err)
	}
	return PaymentsIn(payments, period), nil
}
