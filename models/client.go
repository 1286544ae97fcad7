package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Project группа клиентов, принадлежащая партнеру, с долей комиссии
type Project struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name              string          `json:"name" gorm:"uniqueIndex;not null;type:varchar(150)"`
	OwnerName         string          `json:"owner_name" gorm:"type:varchar(150)"`
	CommissionPercent decimal.Decimal `json:"commission_percent" gorm:"type:decimal(5,2);default:0"` // Наша доля от собранного
	Notes             string          `json:"notes" gorm:"type:text"`
}

// TableName задает имя таблицы для модели Project
func (Project) TableName() string {
	return "projects"
}

// Client представляет клиента реселлера
type Client struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name     string `json:"name" gorm:"not null;type:varchar(200)"`
	WhatsApp string `json:"whatsapp" gorm:"type:varchar(40)"`
	Country  string `json:"country" gorm:"type:varchar(2);index"` // ISO 3166-1 alpha-2
	Notes    string `json:"notes" gorm:"type:text"`

	ProjectID *uint    `json:"project_id" gorm:"index"`
	Project   *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`

	// Валюта по умолчанию, вычисляется по стране
	DefaultCurrency string `json:"default_currency" gorm:"-"`

	Subscriptions []Subscription `json:"subscriptions,omitempty" gorm:"foreignKey:ClientID"`
}

// TableName задает имя таблицы для модели Client
func (Client) TableName() string {
	return "clients"
}

// Goal месячная цель по собранной выручке
type Goal struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Month     string          `json:"month" gorm:"uniqueIndex;not null;type:varchar(7)"` // YYYY-MM
	TargetUSD decimal.Decimal `json:"target_usd" gorm:"type:decimal(15,2);not null"`
	Notes     string          `json:"notes" gorm:"type:text"`
}

// TableName задает имя таблицы для модели Goal
func (Goal) TableName() string {
	return "goals"
}
