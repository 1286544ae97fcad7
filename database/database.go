package database

import (
	"database/sql"
	"fmt"

	"backend_panelhub/config"
	"backend_panelhub/models"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// CreateDatabaseIfNotExists создает базу данных, если она не существует
func CreateDatabaseIfNotExists(cfg *config.Config, log *zap.Logger) error {
	// Подключаемся к PostgreSQL без указания конкретной БД (к postgres по умолчанию)
	db, err := sql.Open("postgres", cfg.GetAdminDSN())
	if err != nil {
		return fmt.Errorf("не удалось подключиться к PostgreSQL: %w", err)
	}
	defer db.Close()

	// Проверяем подключение
	if err := db.Ping(); err != nil {
		return fmt.Errorf("не удалось проверить подключение к PostgreSQL: %w", err)
	}

	dbname := cfg.Database.Name

	// Проверяем, существует ли база данных
	var exists bool
	query := "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1);"
	if err := db.QueryRow(query, dbname).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка при проверке существования базы данных: %w", err)
	}

	if exists {
		log.Info("✅ База данных уже существует", zap.String("database", dbname))
		return nil
	}

	// Создаем базу данных
	createQuery := fmt.Sprintf("CREATE DATABASE %q;", dbname)
	if _, err := db.Exec(createQuery); err != nil {
		return fmt.Errorf("не удалось создать базу данных '%s': %w", dbname, err)
	}

	log.Info("✅ База данных успешно создана", zap.String("database", dbname))
	return nil
}

// ConnectDatabase инициализирует подключение к PostgreSQL
func ConnectDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.App.Debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("не удалось получить пул соединений: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("✅ Успешно подключено к PostgreSQL", zap.String("host", cfg.Database.Host))

	// Автомиграция моделей
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("ошибка автомиграции: %w", err)
	}
	log.Info("✅ Автомиграция моделей выполнена успешно")

	DB = db
	return db, nil
}

// GetDB возвращает экземпляр базы данных
func GetDB() *gorm.DB {
	return DB
}

// AutoMigrate выполняет автомиграцию всех моделей
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Service{},
		&models.Panel{},
		&models.PanelCredentialRotation{},
		&models.PanelEvent{},
		&models.Project{},
		&models.Client{},
		&models.Subscription{},
		&models.Cut{},
		&models.Payment{},
		&models.Goal{},
	)
}
