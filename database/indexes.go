package database

import (
	"fmt"
	"strings"

	"backend_panelhub/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DatabaseIndex представляет составной индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
	// Where частичный индекс, пусто для полного
	Where string
}

// PerformanceIndexes индексы под частые выборки: занятость панелей,
// окончание подписок, непривязанные к корте платежи
var PerformanceIndexes = []DatabaseIndex{
	{
		Name:    "idx_subscriptions_panel_state",
		Table:   "subscriptions",
		Columns: []string{"panel_id", "state"},
		Where:   "deleted_at IS NULL",
	},
	{
		Name:    "idx_subscriptions_state_due",
		Table:   "subscriptions",
		Columns: []string{"state", "due_date"},
		Where:   "deleted_at IS NULL",
	},
	{
		Name:    "idx_subscriptions_client_due",
		Table:   "subscriptions",
		Columns: []string{"client_id", "due_date"},
	},
	{
		Name:    "idx_payments_currency_unlinked",
		Table:   "payments",
		Columns: []string{"currency", "paid_at"},
		Where:   "cut_id IS NULL AND deleted_at IS NULL",
	},
	{
		Name:    "idx_payments_client_paid",
		Table:   "payments",
		Columns: []string{"client_id", "paid_at"},
	},
	{
		Name:    "idx_panels_service_state",
		Table:   "panels",
		Columns: []string{"service_id", "state"},
	},
	{
		Name:    "idx_panel_events_panel_created",
		Table:   "panel_events",
		Columns: []string{"panel_id", "created_at"},
	},
	{
		Name:    "idx_cuts_country_week",
		Table:   "cuts",
		Columns: []string{"country", "week_start"},
	},
}

// CreatePerformanceIndexes создает индексы после автомиграции.
// Ошибка одного индекса не останавливает создание остальных
func CreatePerformanceIndexes(db *gorm.DB, log *zap.Logger) error {
	log = logger.OrNop(log)
	failed := 0
	for _, index := range PerformanceIndexes {
		if err := CreateIndex(db, index); err != nil {
			failed++
			log.Warn("Не удалось создать индекс", zap.String("index", index.Name), zap.Error(err))
			continue
		}
		log.Debug("Индекс создан", zap.String("index", index.Name))
	}

	if failed == len(PerformanceIndexes) {
		return fmt.Errorf("не создан ни один из %d индексов", failed)
	}
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	return db.Exec(index.SQL()).Error
}

// SQL текст CREATE INDEX, совместимый с PostgreSQL и SQLite
func (i DatabaseIndex) SQL() string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, i.Name, i.Table, strings.Join(i.Columns, ", "))
	if i.Where != "" {
		sql += " WHERE " + i.Where
	}
	return sql
}

// DropIndex удаляет индекс
func DropIndex(db *gorm.DB, indexName string) error {
	return db.Exec(fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)).Error
}
