package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service представляет позицию каталога (ChatGPT, Canva, CapCut и т.д.)
type Service struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name        string          `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"`
	Description string          `json:"description" gorm:"type:text"`
	BasePrice   decimal.Decimal `json:"base_price" gorm:"type:decimal(15,2);not null"` // Базовая цена в USD
	IsActive    bool            `json:"is_active" gorm:"default:true"`
}

// TableName задает имя таблицы для модели Service
func (Service) TableName() string {
	return "services"
}
