package testutils

import (
	"testing"
	"time"

	"backend_panelhub/database"
	"backend_panelhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB создает и настраивает тестовую базу данных в памяти
// Эта функция должна использоваться во всех тестах для обеспечения консистентности
func SetupTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// Каждое подключение к :memory: получает свою базу, поэтому держим одно
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	if err := database.CreatePerformanceIndexes(db, nil); err != nil {
		return nil, err
	}

	return db, nil
}

// MustSetupTestDB то же, что SetupTestDB, но падает тест при ошибке и закрывает базу по окончании
func MustSetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// CleanupTestDB очищает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// Date возвращает полночь заданного дня в UTC
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateTestService создает тестовый сервис каталога
func CreateTestService(t *testing.T, db *gorm.DB, name string, basePrice string) *models.Service {
	t.Helper()

	service := &models.Service{
		Name:      name,
		BasePrice: decimal.RequireFromString(basePrice),
		IsActive:  true,
	}
	require.NoError(t, db.Create(service).Error)
	return service
}

// CreateTestPanel создает тестовую панель с заданной вместимостью и стоимостью
func CreateTestPanel(t *testing.T, db *gorm.DB, serviceID uint, capacity int, monthlyCost string) *models.Panel {
	t.Helper()

	panel := &models.Panel{
		Name:        "Panel test",
		ServiceID:   serviceID,
		Email:       "panel@example.com",
		Capacity:    capacity,
		State:       models.PanelStateActive,
		MonthlyCost: decimal.RequireFromString(monthlyCost),
	}
	require.NoError(t, db.Create(panel).Error)
	return panel
}

// CreateTestClient создает тестового клиента
func CreateTestClient(t *testing.T, db *gorm.DB, name, country string) *models.Client {
	t.Helper()

	client := &models.Client{
		Name:     name,
		WhatsApp: "+520000000000",
		Country:  country,
	}
	require.NoError(t, db.Create(client).Error)
	return client
}

// CreateTestSubscription создает подписку напрямую в БД, минуя проверки сервисов
func CreateTestSubscription(t *testing.T, db *gorm.DB, clientID, serviceID uint, panelID *uint, state models.SubscriptionState, start time.Time) *models.Subscription {
	t.Helper()

	sub := &models.Subscription{
		ClientID:  clientID,
		ServiceID: serviceID,
		PanelID:   panelID,
		State:     state,
		StartDate: start,
		DueDate:   start.AddDate(0, 0, 30),
		Price:     decimal.NewFromInt(10),
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

// CreateTestPayment создает платеж напрямую в БД
func CreateTestPayment(t *testing.T, db *gorm.DB, clientID uint, amount string, paidAt time.Time) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		ClientID: clientID,
		Amount:   decimal.RequireFromString(amount),
		Currency: models.BaseCurrency,
		Method:   "transferencia",
		PaidAt:   paidAt,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}
