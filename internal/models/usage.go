package models

import (
	"time"

	"gorm.io/datatypes"
)

// QrCodeUsage is an immutable record of one successful redemption.
// Rows are only ever inserted, never updated or deleted.
type QrCodeUsage struct {
	// ID is the unique identifier for the usage.
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// QrCodeID references the redeemed code. The composite index with
	// CustomerID keeps the per-customer usage count query cheap.
	QrCodeID uint `json:"qr_code_id" gorm:"column:qr_code_id;not null;index:idx_usages_code_customer,priority:1"`
	// CustomerID references the redeeming customer. Nullable to tolerate
	// future anonymous-scan flows.
	CustomerID *uint `json:"customer_id" gorm:"column:customer_id;index:idx_usages_code_customer,priority:2"`
	// UsedAt is when the redemption happened.
	UsedAt time.Time `json:"used_at" gorm:"column:used_at;not null"`
	// Metadata is a free-form jsonb blob. Always carries at least the
	// redemption timestamp and the per-attempt redemption id.
	Metadata datatypes.JSON `json:"metadata" gorm:"column:metadata;type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (QrCodeUsage) TableName() string {
	return "qr_code_usages"
}

// Customer is the minimal identity row the core references. Authentication
// and profile management live outside this service.
type Customer struct {
	ID    uint   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Name  string `json:"name" gorm:"column:name;size:255"`
	Email string `json:"email" gorm:"column:email;size:255;uniqueIndex"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (Customer) TableName() string {
	return "customers"
}
