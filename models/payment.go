package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseCurrency валюта, в которой ведется вся финансовая отчетность
const BaseCurrency = "USD"

// Payment платеж клиента. Amount в USD является каноничной суммой
type Payment struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	ClientID       uint    `json:"client_id" gorm:"not null;index"`
	Client         *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	SubscriptionID *uint   `json:"subscription_id" gorm:"index"`

	// Сумма в USD, фиксируется при создании и больше не пересчитывается
	Amount decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`

	// Исходная сумма в локальной валюте
	OriginalAmount *decimal.Decimal `json:"original_amount" gorm:"type:decimal(18,2)"`
	Currency       string           `json:"currency" gorm:"default:'USD';type:varchar(3);index"`
	ExchangeRate   *decimal.Decimal `json:"exchange_rate" gorm:"type:decimal(18,6)"`

	Method     string    `json:"method" gorm:"type:varchar(50)"`
	PaidAt     time.Time `json:"paid_at" gorm:"not null;index"`
	ReceiptRef string    `json:"receipt_ref" gorm:"type:varchar(255)"`
	Notes      string    `json:"notes" gorm:"type:text"`

	CutID *uint `json:"cut_id" gorm:"index"`
}

// TableName задает имя таблицы для модели Payment
func (Payment) TableName() string {
	return "payments"
}

// IsLocalCurrency проверяет, был ли платеж внесен не в USD
func (p *Payment) IsLocalCurrency() bool {
	return p.Currency != "" && p.Currency != BaseCurrency
}

// Cut (корте) пакетная конвертация собранной локальной валюты в USDT через P2P
type Cut struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Reference string    `json:"reference" gorm:"uniqueIndex;not null;type:varchar(36)"`
	Country   string    `json:"country" gorm:"not null;type:varchar(2);index"`
	Currency  string    `json:"currency" gorm:"not null;type:varchar(3)"`
	WeekStart time.Time `json:"week_start" gorm:"not null"`

	CollectedAmount   decimal.Decimal `json:"collected_amount" gorm:"type:decimal(18,2);not null"`
	CommissionPercent decimal.Decimal `json:"commission_percent" gorm:"type:decimal(5,2);default:0"`
	CommissionAmount  decimal.Decimal `json:"commission_amount" gorm:"type:decimal(18,2);default:0"`
	NetAmount         decimal.Decimal `json:"net_amount" gorm:"type:decimal(18,2);not null"`
	P2PRate           decimal.Decimal `json:"p2p_rate" gorm:"type:decimal(18,6);not null"`
	USDTCalculated    decimal.Decimal `json:"usdt_calculated" gorm:"type:decimal(15,2);not null"`
	USDTReceived      decimal.Decimal `json:"usdt_received" gorm:"type:decimal(15,2);not null"`
	Variance          decimal.Decimal `json:"variance" gorm:"type:decimal(15,2);not null"`
	PaymentCount      int             `json:"payment_count" gorm:"default:0"`
	Notes             string          `json:"notes" gorm:"type:text"`

	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:CutID"`
}

// TableName задает имя таблицы для модели Cut
func (Cut) TableName() string {
	return "cuts"
}
