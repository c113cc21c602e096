package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kippis-app/loyalty-core/internal/models"
)

// MemoryDB is an in-memory Repository used by tests and local tooling.
// A single mutex held for the whole of Transact plays the role of the
// code/wallet row locks: concurrent redemptions serialize exactly as they
// do against Postgres. Transact snapshots the state up front and restores
// it on error, giving the same all-or-nothing semantics as a rollback.
type MemoryDB struct {
	mu     *sync.Mutex
	state  *memState
	locked bool
}

type memState struct {
	codes        map[uint]*models.QrCode
	codeByString map[string]uint
	usages       []*models.QrCodeUsage
	wallets      map[uint]*models.LoyaltyWallet
	walletByCust map[uint]uint
	transactions []*models.LoyaltyTransaction
	products     map[uint]*models.Product
	modifiers    map[uint]*models.Modifier

	nextCodeID   uint
	nextUsageID  uint
	nextWalletID uint
	nextTxnID    uint
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		mu: &sync.Mutex{},
		state: &memState{
			codes:        make(map[uint]*models.QrCode),
			codeByString: make(map[string]uint),
			wallets:      make(map[uint]*models.LoyaltyWallet),
			walletByCust: make(map[uint]uint),
			products:     make(map[uint]*models.Product),
			modifiers:    make(map[uint]*models.Modifier),
			nextCodeID:   1,
			nextUsageID:  1,
			nextWalletID: 1,
			nextTxnID:    1,
		},
	}
}

func (db *MemoryDB) Close() error {
	return nil
}

func (db *MemoryDB) lock() func() {
	if db.locked {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (db *MemoryDB) Transact(ctx context.Context, fn func(models.Repository) error) error {
	if db.locked {
		// Already inside a transaction, join it.
		return fn(db)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.state.clone()
	tx := &MemoryDB{mu: db.mu, state: db.state, locked: true}
	if err := fn(tx); err != nil {
		*db.state = *snapshot
		return err
	}

	return nil
}

func (s *memState) clone() *memState {
	c := &memState{
		codes:        make(map[uint]*models.QrCode, len(s.codes)),
		codeByString: make(map[string]uint, len(s.codeByString)),
		usages:       make([]*models.QrCodeUsage, len(s.usages)),
		wallets:      make(map[uint]*models.LoyaltyWallet, len(s.wallets)),
		walletByCust: make(map[uint]uint, len(s.walletByCust)),
		transactions: make([]*models.LoyaltyTransaction, len(s.transactions)),
		products:     make(map[uint]*models.Product, len(s.products)),
		modifiers:    make(map[uint]*models.Modifier, len(s.modifiers)),
		nextCodeID:   s.nextCodeID,
		nextUsageID:  s.nextUsageID,
		nextWalletID: s.nextWalletID,
		nextTxnID:    s.nextTxnID,
	}
	for id, code := range s.codes {
		cp := *code
		c.codes[id] = &cp
	}
	for str, id := range s.codeByString {
		c.codeByString[str] = id
	}
	for i, usage := range s.usages {
		cp := *usage
		c.usages[i] = &cp
	}
	for id, wallet := range s.wallets {
		cp := *wallet
		c.wallets[id] = &cp
	}
	for cust, id := range s.walletByCust {
		c.walletByCust[cust] = id
	}
	for i, txn := range s.transactions {
		cp := *txn
		c.transactions[i] = &cp
	}
	for id, product := range s.products {
		cp := *product
		c.products[id] = &cp
	}
	for id, modifier := range s.modifiers {
		cp := *modifier
		c.modifiers[id] = &cp
	}
	return c
}

// AddCode seeds a code and assigns its id.
func (db *MemoryDB) AddCode(code *models.QrCode) *models.QrCode {
	defer db.lock()()

	code.ID = db.state.nextCodeID
	db.state.nextCodeID++
	code.CreatedAt = time.Now()
	db.state.codes[code.ID] = code
	db.state.codeByString[code.Code] = code.ID
	return code
}

// AddProduct seeds a catalog product and assigns its id.
func (db *MemoryDB) AddProduct(product *models.Product) *models.Product {
	defer db.lock()()

	if product.ID == 0 {
		product.ID = uint(len(db.state.products) + 1)
	}
	db.state.products[product.ID] = product
	return product
}

// AddModifier seeds a catalog modifier and assigns its id.
func (db *MemoryDB) AddModifier(modifier *models.Modifier) *models.Modifier {
	defer db.lock()()

	if modifier.ID == 0 {
		modifier.ID = uint(len(db.state.modifiers) + 1)
	}
	db.state.modifiers[modifier.ID] = modifier
	return modifier
}

// CodeSnapshot returns a copy of a code row for assertions.
func (db *MemoryDB) CodeSnapshot(codeID uint) (models.QrCode, bool) {
	defer db.lock()()

	code, ok := db.state.codes[codeID]
	if !ok {
		return models.QrCode{}, false
	}
	return *code, true
}

// UsageCount returns the number of usage rows stored for a code.
func (db *MemoryDB) UsageCount(codeID uint) int {
	defer db.lock()()

	count := 0
	for _, usage := range db.state.usages {
		if usage.QrCodeID == codeID {
			count++
		}
	}
	return count
}

// LedgerSum returns the sum of ledger deltas for a wallet.
func (db *MemoryDB) LedgerSum(walletID uint) int {
	defer db.lock()()

	sum := 0
	for _, txn := range db.state.transactions {
		if txn.WalletID == walletID {
			sum += txn.Points
		}
	}
	return sum
}

func (db *MemoryDB) FindCodeByString(ctx context.Context, code string) (*models.QrCode, error) {
	defer db.lock()()

	id, ok := db.state.codeByString[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *db.state.codes[id]
	return &cp, nil
}

func (db *MemoryDB) FindCodeForUpdate(ctx context.Context, codeID uint) (*models.QrCode, error) {
	defer db.lock()()

	code, ok := db.state.codes[codeID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *code
	return &cp, nil
}

func (db *MemoryDB) CountCustomerUsages(ctx context.Context, codeID, customerID uint) (int64, error) {
	defer db.lock()()

	var count int64
	for _, usage := range db.state.usages {
		if usage.QrCodeID == codeID && usage.CustomerID != nil && *usage.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (db *MemoryDB) CreateUsage(ctx context.Context, usage *models.QrCodeUsage) error {
	defer db.lock()()

	usage.ID = db.state.nextUsageID
	db.state.nextUsageID++
	usage.CreatedAt = time.Now()
	cp := *usage
	db.state.usages = append(db.state.usages, &cp)
	return nil
}

func (db *MemoryDB) IncrementCodeUsage(ctx context.Context, codeID uint) (int, error) {
	defer db.lock()()

	code, ok := db.state.codes[codeID]
	if !ok {
		return 0, fmt.Errorf("failed to increment usage count: code %d not found", codeID)
	}
	code.TotalUsedCount++
	return code.TotalUsedCount, nil
}

func (db *MemoryDB) GetOrCreateWalletForUpdate(ctx context.Context, customerID uint) (*models.LoyaltyWallet, error) {
	defer db.lock()()

	if id, ok := db.state.walletByCust[customerID]; ok {
		cp := *db.state.wallets[id]
		return &cp, nil
	}

	wallet := &models.LoyaltyWallet{
		ID:         db.state.nextWalletID,
		CustomerID: customerID,
		CreatedAt:  time.Now(),
	}
	db.state.nextWalletID++
	db.state.wallets[wallet.ID] = wallet
	db.state.walletByCust[customerID] = wallet.ID
	cp := *wallet
	return &cp, nil
}

func (db *MemoryDB) AddWalletPoints(ctx context.Context, walletID uint, points int, txnType, description string, source models.LedgerSource, createdBy *uint) (*models.LoyaltyTransaction, error) {
	defer db.lock()()

	wallet, ok := db.state.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("failed to apply points: wallet %d not found", walletID)
	}

	txn := &models.LoyaltyTransaction{
		ID:          db.state.nextTxnID,
		WalletID:    walletID,
		Points:      points,
		Type:        txnType,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}
	db.state.nextTxnID++
	if !source.IsZero() {
		txn.ReferenceType = source.Type
		refID := source.ID
		txn.ReferenceID = &refID
	}

	db.state.transactions = append(db.state.transactions, txn)
	wallet.Points += points

	cp := *txn
	return &cp, nil
}

func (db *MemoryDB) GetWalletByCustomer(ctx context.Context, customerID uint) (*models.LoyaltyWallet, error) {
	defer db.lock()()

	id, ok := db.state.walletByCust[customerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *db.state.wallets[id]
	return &cp, nil
}

func (db *MemoryDB) ListWalletTransactions(ctx context.Context, walletID uint, limit int) ([]*models.LoyaltyTransaction, error) {
	defer db.lock()()

	var out []*models.LoyaltyTransaction
	for i := len(db.state.transactions) - 1; i >= 0; i-- {
		txn := db.state.transactions[i]
		if txn.WalletID != walletID {
			continue
		}
		cp := *txn
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (db *MemoryDB) FindActiveProduct(ctx context.Context, productID uint) (*models.Product, error) {
	defer db.lock()()

	product, ok := db.state.products[productID]
	if !ok || !product.IsActive {
		return nil, models.ErrNotFound
	}
	cp := *product
	return &cp, nil
}

func (db *MemoryDB) FindActiveModifier(ctx context.Context, modifierID uint) (*models.Modifier, error) {
	defer db.lock()()

	modifier, ok := db.state.modifiers[modifierID]
	if !ok || !modifier.IsActive {
		return nil, models.ErrNotFound
	}
	cp := *modifier
	return &cp, nil
}
