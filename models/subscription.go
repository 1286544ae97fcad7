package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubscriptionState состояние подписки. Значения совпадают с данными,
// которые уже хранятся у операторов
type SubscriptionState string

const (
	SubscriptionActive    SubscriptionState = "activa"
	SubscriptionExpired   SubscriptionState = "vencida"
	SubscriptionCancelled SubscriptionState = "cancelada"
)

// IsValid проверяет, что состояние входит в допустимый набор
func (s SubscriptionState) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionCancelled:
		return true
	}
	return false
}

// Subscription подписка клиента на сервис, опционально на месте в панели
type Subscription struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	ClientID  uint     `json:"client_id" gorm:"not null;index"`
	Client    *Client  `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	ServiceID uint     `json:"service_id" gorm:"not null;index"`
	Service   *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
	PanelID   *uint    `json:"panel_id" gorm:"index"`
	Panel     *Panel   `json:"panel,omitempty" gorm:"foreignKey:PanelID"`

	State       SubscriptionState `json:"state" gorm:"default:'activa';type:varchar(20);index"`
	StartDate   time.Time         `json:"start_date" gorm:"not null"`
	DueDate     time.Time         `json:"due_date" gorm:"not null;index"`
	CancelledAt *time.Time        `json:"cancelled_at"`

	Price         decimal.Decimal  `json:"price" gorm:"type:decimal(15,2);not null"` // USD
	LocalPrice    *decimal.Decimal `json:"local_price" gorm:"type:decimal(15,2)"`
	LocalCurrency string           `json:"local_currency" gorm:"type:varchar(3)"`

	// Прямые учетные данные, если подписка не на панели
	Email             string `json:"email" gorm:"type:varchar(200)"`
	Password          string `json:"password,omitempty" gorm:"-"`
	PasswordEncrypted string `json:"-" gorm:"column:password_encrypted;type:text"`

	Notes string `json:"notes" gorm:"type:text"`

	// Состояние с учетом даты окончания, вычисляется при чтении
	EffectiveState SubscriptionState `json:"effective_state" gorm:"-"`
}

// TableName задает имя таблицы для модели Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// OccupiesSlot проверяет, занимает ли подписка место в панели
func (s *Subscription) OccupiesSlot() bool {
	return s.PanelID != nil && s.State == SubscriptionActive
}
