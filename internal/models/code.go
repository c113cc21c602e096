package models

import "time"

// QrCode represents a redeemable QR code token.
type QrCode struct {
	// ID is the unique identifier for the QR code.
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// Code is the scannable token string. Lookup is case-sensitive exact match.
	Code string `json:"code" gorm:"column:code;size:64;uniqueIndex;not null"`
	// Title is an optional human-readable name shown to customers.
	Title string `json:"title" gorm:"column:title;size:255"`
	// Description is optional free-form admin text.
	Description string `json:"description" gorm:"column:description"`
	// PointsAwarded is the number of loyalty points credited per redemption.
	// Zero means the code awards no points.
	PointsAwarded int `json:"points_awarded" gorm:"column:points_awarded;not null;default:0"`
	// IsActive indicates whether the code can currently be redeemed.
	IsActive bool `json:"is_active" gorm:"column:is_active;index;default:true"`
	// StartAt is the start of the validity window. Nil means no lower bound.
	StartAt *time.Time `json:"start_at" gorm:"column:start_at;index"`
	// ExpiresAt is the end of the validity window. Nil means no upper bound.
	ExpiresAt *time.Time `json:"expires_at" gorm:"column:expires_at;index"`
	// PerCustomerLimit caps redemptions per customer. Nil means unlimited.
	PerCustomerLimit *int `json:"per_customer_limit" gorm:"column:per_customer_limit"`
	// TotalLimit caps redemptions across all customers. Nil means unlimited.
	TotalLimit *int `json:"total_limit" gorm:"column:total_limit"`
	// TotalUsedCount is a cached counter kept equal to count(usages) for
	// this code. Incremented only inside the locked redemption transaction.
	TotalUsedCount int `json:"total_used_count" gorm:"column:total_used_count;not null;default:0"`
	// CreatedBy references the admin who created the code.
	CreatedBy *uint `json:"created_by" gorm:"column:created_by"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (QrCode) TableName() string {
	return "qr_codes"
}

// RemainingTotalUses returns how many redemptions remain under the total
// limit, floored at zero. Nil means unlimited.
func (q *QrCode) RemainingTotalUses() *int {
	if q.TotalLimit == nil {
		return nil
	}
	remaining := *q.TotalLimit - q.TotalUsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// RemainingForCustomer returns how many redemptions remain for a customer
// who has already used the code customerUsed times, floored at zero.
// Nil means unlimited.
func (q *QrCode) RemainingForCustomer(customerUsed int64) *int {
	if q.PerCustomerLimit == nil {
		return nil
	}
	remaining := *q.PerCustomerLimit - int(customerUsed)
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// DisplayName returns the title when set, falling back to the code string.
func (q *QrCode) DisplayName() string {
	if q.Title != "" {
		return q.Title
	}
	return q.Code
}
