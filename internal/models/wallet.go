package models

import "time"

// Loyalty transaction types.
const (
	TransactionTypeEarned   = "earned"
	TransactionTypeRedeemed = "redeemed"
	TransactionTypeAdjusted = "adjusted"
)

// Ledger source kinds. A LedgerSource tags where a balance change came
// from so an entry's origin stays traceable.
const (
	LedgerSourceQrCode           = "qr_code"
	LedgerSourceOrder            = "order"
	LedgerSourceManualAdjustment = "manual_adjustment"
)

// LedgerSource identifies the event that produced a ledger entry.
// The zero value means the entry has no source reference.
type LedgerSource struct {
	Type string
	ID   uint
}

// QrCodeSource references the QR code that caused a credit.
func QrCodeSource(codeID uint) LedgerSource {
	return LedgerSource{Type: LedgerSourceQrCode, ID: codeID}
}

// OrderSource references the order that caused a deduction or credit.
func OrderSource(orderID uint) LedgerSource {
	return LedgerSource{Type: LedgerSourceOrder, ID: orderID}
}

// ManualAdjustmentSource references the admin who made a manual change.
func ManualAdjustmentSource(adminID uint) LedgerSource {
	return LedgerSource{Type: LedgerSourceManualAdjustment, ID: adminID}
}

// IsZero reports whether the source is absent.
func (s LedgerSource) IsZero() bool {
	return s.Type == ""
}

// LoyaltyWallet holds a customer's point balance. The balance is defined
// as the sum of the wallet's ledger transactions and is only ever mutated
// through AddWalletPoints, under the wallet row lock.
type LoyaltyWallet struct {
	// ID is the unique identifier for the wallet.
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// CustomerID is the owning customer. One wallet per customer.
	CustomerID uint `json:"customer_id" gorm:"column:customer_id;uniqueIndex;not null"`
	// Points is the current balance, equal to sum(transactions.points).
	Points int `json:"points" gorm:"column:points;not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (LoyaltyWallet) TableName() string {
	return "loyalty_wallets"
}

// LoyaltyTransaction is an immutable record of one balance change.
type LoyaltyTransaction struct {
	// ID is the unique identifier for the transaction.
	ID uint `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// WalletID is the owning wallet.
	WalletID uint `json:"wallet_id" gorm:"column:wallet_id;not null;index"`
	// Points is the signed delta applied to the wallet balance.
	Points int `json:"points" gorm:"column:points;not null"`
	// Type is one of the TransactionType constants.
	Type string `json:"type" gorm:"column:type;size:32;not null"`
	// Description is a human-readable explanation of the change.
	Description string `json:"description" gorm:"column:description;size:500"`
	// ReferenceType and ReferenceID persist the LedgerSource tag.
	ReferenceType string `json:"reference_type" gorm:"column:reference_type;size:64"`
	ReferenceID   *uint  `json:"reference_id" gorm:"column:reference_id"`
	// CreatedBy references the admin for manual adjustments.
	CreatedBy *uint `json:"created_by" gorm:"column:created_by"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
}

func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}

// Source reconstructs the tagged source from the persisted columns.
func (t *LoyaltyTransaction) Source() LedgerSource {
	if t.ReferenceType == "" || t.ReferenceID == nil {
		return LedgerSource{}
	}
	return LedgerSource{Type: t.ReferenceType, ID: *t.ReferenceID}
}
