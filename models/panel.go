package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PanelState состояние панели
type PanelState string

const (
	PanelStateActive PanelState = "active"
	PanelStateDown   PanelState = "down"
)

// Panel представляет общую учетную запись сервиса с ограниченным числом мест
type Panel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name      string   `json:"name" gorm:"not null;type:varchar(150)"`
	ServiceID uint     `json:"service_id" gorm:"not null;index"`
	Service   *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID"`

	// Учетные данные. Пароль хранится только в зашифрованном виде
	Email             string `json:"email" gorm:"type:varchar(200)"`
	Password          string `json:"password,omitempty" gorm:"-"`
	PasswordEncrypted string `json:"-" gorm:"column:password_encrypted;type:text"`

	Capacity int        `json:"capacity" gorm:"not null"`
	State    PanelState `json:"state" gorm:"default:'active';type:varchar(20);index"`

	PurchaseDate   *time.Time      `json:"purchase_date"`
	ExpirationDate *time.Time      `json:"expiration_date"`
	MonthlyCost    decimal.Decimal `json:"monthly_cost" gorm:"type:decimal(15,2);default:0"` // USD в месяц
	Provider       string          `json:"provider" gorm:"type:varchar(150)"`
	Notes          string          `json:"notes" gorm:"type:text"`

	// Вычисляемые поля, не хранятся в БД
	UsedSlots      int `json:"used_slots" gorm:"-"`
	AvailableSlots int `json:"available_slots" gorm:"-"`
}

// TableName задает имя таблицы для модели Panel
func (Panel) TableName() string {
	return "panels"
}

// IsActive проверяет, работает ли панель
func (p *Panel) IsActive() bool {
	return p.State == PanelStateActive
}

// IsExpiringWithin проверяет, истекает ли оплата панели в ближайшие days дней.
// Сравниваются календарные дни в часовом поясе now
func (p *Panel) IsExpiringWithin(now time.Time, days int) bool {
	if p.ExpirationDate == nil {
		return false
	}
	loc := now.Location()
	ey, em, ed := p.ExpirationDate.In(loc).Date()
	ny, nm, nd := now.Date()
	expires := time.Date(ey, em, ed, 0, 0, 0, 0, loc)
	limit := time.Date(ny, nm, nd+days, 0, 0, 0, 0, loc)
	return !expires.After(limit)
}

// PanelCredentialRotation хранит предыдущие учетные данные панели
type PanelCredentialRotation struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	PanelID           uint      `json:"panel_id" gorm:"not null;index"`
	PreviousEmail     string    `json:"previous_email" gorm:"type:varchar(200)"`
	PreviousPassword  string    `json:"previous_password,omitempty" gorm:"-"`
	PasswordEncrypted string    `json:"-" gorm:"column:password_encrypted;type:text"`
	RotatedAt         time.Time `json:"rotated_at" gorm:"not null"`
}

// TableName задает имя таблицы для модели PanelCredentialRotation
func (PanelCredentialRotation) TableName() string {
	return "panel_credential_rotations"
}

// PanelEventKind тип события в истории панели
type PanelEventKind string

const (
	PanelEventCreated            PanelEventKind = "created"
	PanelEventDown               PanelEventKind = "down"
	PanelEventMigrated           PanelEventKind = "migrated"
	PanelEventCredentialsRotated PanelEventKind = "credentials_rotated"
	PanelEventReactivated        PanelEventKind = "reactivated"
)

// PanelEvent запись в истории панели
type PanelEvent struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	PanelID            uint              `json:"panel_id" gorm:"not null;index"`
	Kind               PanelEventKind    `json:"kind" gorm:"not null;type:varchar(40)"`
	TargetPanelID      *uint             `json:"target_panel_id"`
	MovedSubscriptions int               `json:"moved_subscriptions" gorm:"default:0"`
	Description        string            `json:"description" gorm:"type:text"`
	Metadata           datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
}

// TableName задает имя таблицы для модели PanelEvent
func (PanelEvent) TableName() string {
	return "panel_events"
}
