package services

import (
	"testing"
	"time"

	"backend_panelhub/config"
	"backend_panelhub/testutils"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// testEnv набор сервисов поверх одной тестовой БД с фиксированными часами
type testEnv struct {
	db            *gorm.DB
	clock         Clock
	vault         *CredentialVault
	logs          *observer.ObservedLogs
	catalog       *CatalogService
	panels        *PanelService
	subscriptions *SubscriptionService
	clients       *ClientService
	projects      *ProjectService
	payments      *PaymentService
	cuts          *CutService
	reports       *ReportService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	db := testutils.MustSetupTestDB(t)
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	clock := FixedClock{Time: now}
	vault := NewCredentialVault("test-secret")
	currencies := config.DefaultCurrencyTable()
	subscriptions := NewSubscriptionService(db, vault, currencies, clock, log)

	return &testEnv{
		db:            db,
		clock:         clock,
		vault:         vault,
		logs:          logs,
		catalog:       NewCatalogService(db, log),
		panels:        NewPanelService(db, vault, clock, log),
		subscriptions: subscriptions,
		clients:       NewClientService(db, subscriptions, currencies, log),
		projects:      NewProjectService(db, log),
		payments:      NewPaymentService(db, clock, log),
		cuts:          NewCutService(db, currencies, log),
		reports:       NewReportService(db, clock, log),
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
