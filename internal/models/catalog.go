package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item usable as a mix base or extra.
type Product struct {
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Name is shown as the breakdown line label.
	Name string `json:"name" gorm:"column:name;size:255;not null"`
	// BasePrice is the full product price.
	BasePrice decimal.Decimal `json:"base_price" gorm:"column:base_price;type:decimal(10,2);not null"`
	// IsActive controls whether the product can appear in a mix.
	IsActive bool `json:"is_active" gorm:"column:is_active;index;default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Modifier is a per-level add-on for a mix configuration.
type Modifier struct {
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Name is shown as the breakdown line label.
	Name string `json:"name" gorm:"column:name;size:255;not null"`
	// UnitPrice is the price contribution per level.
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"column:unit_price;type:decimal(10,2);not null"`
	// MaxLevel caps the selectable level. Nil means uncapped.
	MaxLevel *int `json:"max_level" gorm:"column:max_level"`
	// IsActive controls whether the modifier can appear in a mix.
	IsActive bool `json:"is_active" gorm:"column:is_active;index;default:true"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (Modifier) TableName() string {
	return "modifiers"
}
