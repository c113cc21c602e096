package models

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

type Repository interface {
	// Transact runs fn atomically. The Repository passed to fn is bound to
	// the transaction; if fn returns an error every write made through it
	// is rolled back.
	Transact(ctx context.Context, fn func(Repository) error) error

	// FindCodeByString looks a code up by its token string (case-sensitive
	// exact match). Returns ErrNotFound when the string does not resolve.
	FindCodeByString(ctx context.Context, code string) (*QrCode, error)
	// FindCodeForUpdate re-fetches a code by id holding an exclusive row
	// lock. Must be called inside Transact.
	FindCodeForUpdate(ctx context.Context, codeID uint) (*QrCode, error)
	// CountCustomerUsages counts usage rows for a (code, customer) pair.
	CountCustomerUsages(ctx context.Context, codeID, customerID uint) (int64, error)
	// CreateUsage appends an immutable usage record.
	CreateUsage(ctx context.Context, usage *QrCodeUsage) error
	// IncrementCodeUsage atomically bumps total_used_count by one and
	// returns the updated value.
	IncrementCodeUsage(ctx context.Context, codeID uint) (int, error)

	// GetOrCreateWalletForUpdate returns the customer's wallet, creating it
	// if absent, holding its row lock. Must be called inside Transact.
	GetOrCreateWalletForUpdate(ctx context.Context, customerID uint) (*LoyaltyWallet, error)
	// AddWalletPoints appends a ledger transaction and applies its delta to
	// the wallet balance. Callers must hold the wallet row lock.
	AddWalletPoints(ctx context.Context, walletID uint, points int, txnType, description string, source LedgerSource, createdBy *uint) (*LoyaltyTransaction, error)
	// GetWalletByCustomer returns the customer's wallet, ErrNotFound if the
	// customer never earned points.
	GetWalletByCustomer(ctx context.Context, customerID uint) (*LoyaltyWallet, error)
	// ListWalletTransactions returns a wallet's ledger, newest first.
	ListWalletTransactions(ctx context.Context, walletID uint, limit int) ([]*LoyaltyTransaction, error)

	// FindActiveProduct returns a product only when it exists and is active.
	FindActiveProduct(ctx context.Context, productID uint) (*Product, error)
	// FindActiveModifier returns a modifier only when it exists and is active.
	FindActiveModifier(ctx context.Context, modifierID uint) (*Modifier, error)

	Close() error
}
