package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/kippis-app/loyalty-core/internal/models"
	"github.com/kippis-app/loyalty-core/pkg/logger"
)

type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// postgresDSN builds the connection string. lock_timeout rides in the DSN
// options so every pooled connection gets it, bounding how long a
// redemption waits on a contested code row before failing with a
// retryable error. A session-level SET would only stick to whichever
// connection happened to execute it.
func postgresDSN(user, password, dbname, host string, port, lockTimeoutMS int) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable options='-c lock_timeout=%dms'",
		host, user, password, dbname, port, lockTimeoutMS)
}

func NewPostgresDB(user, password, dbname, host string, port, lockTimeoutMS int, logger *logger.Logger) (models.Repository, error) {
	dsn := postgresDSN(user, password, dbname, host, port, lockTimeoutMS)

	// Configure GORM logger to suppress "record not found" messages
	gormLogger := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // Use standard logger
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond, // Log queries slower than this
			LogLevel:                  gormLogger.Warn,        // Only log warnings or errors
			IgnoreRecordNotFoundError: true,                   // Suppress "record not found" errors
			Colorful:                  true,                   // Enable colorful logs
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %s", err)
	}

	if err := db.AutoMigrate(
		&models.Customer{},
		&models.QrCode{},
		&models.QrCodeUsage{},
		&models.LoyaltyWallet{},
		&models.LoyaltyTransaction{},
		&models.Product{},
		&models.Modifier{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %s", err)
	}

	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %s", err)
	}
	return sqlDB.Close()
}

// Transact runs fn inside a database transaction. Runs at READ COMMITTED:
// every write of one redemption commits atomically, so outside readers
// never observe a counter increment without its ledger entry.
func (db *PostgresDB) Transact(ctx context.Context, fn func(models.Repository) error) error {
	return db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresDB{Conn: tx, logger: db.logger})
	})
}

func (db *PostgresDB) FindCodeByString(ctx context.Context, code string) (*models.QrCode, error) {
	var qrCode models.QrCode
	if err := db.Conn.WithContext(ctx).Where("code = ?", code).First(&qrCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find code: %s", err)
	}

	return &qrCode, nil
}

// FindCodeForUpdate takes the exclusive row lock that serializes concurrent
// redemptions of the same code.
func (db *PostgresDB) FindCodeForUpdate(ctx context.Context, codeID uint) (*models.QrCode, error) {
	var qrCode models.QrCode
	if err := db.Conn.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&qrCode, codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock code row: %s", err)
	}

	return &qrCode, nil
}

func (db *PostgresDB) CountCustomerUsages(ctx context.Context, codeID, customerID uint) (int64, error) {
	var count int64
	if err := db.Conn.WithContext(ctx).Model(&models.QrCodeUsage{}).
		Where("qr_code_id = ? AND customer_id = ?", codeID, customerID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count customer usages: %s", err)
	}

	return count, nil
}

func (db *PostgresDB) CreateUsage(ctx context.Context, usage *models.QrCodeUsage) error {
	if err := db.Conn.WithContext(ctx).Create(usage).Error; err != nil {
		return fmt.Errorf("failed to create usage record: %s", err)
	}

	return nil
}

// IncrementCodeUsage bumps the cached counter with an atomic SQL increment
// rather than a read-modify-write, even though the caller already holds the
// row lock.
func (db *PostgresDB) IncrementCodeUsage(ctx context.Context, codeID uint) (int, error) {
	if err := db.Conn.WithContext(ctx).Model(&models.QrCode{}).
		Where("id = ?", codeID).
		UpdateColumn("total_used_count", gorm.Expr("total_used_count + ?", 1)).Error; err != nil {
		return 0, fmt.Errorf("failed to increment usage count: %s", err)
	}

	var qrCode models.QrCode
	if err := db.Conn.WithContext(ctx).Select("total_used_count").First(&qrCode, codeID).Error; err != nil {
		return 0, fmt.Errorf("failed to re-read usage count: %s", err)
	}

	return qrCode.TotalUsedCount, nil
}

// GetOrCreateWalletForUpdate upserts the customer's wallet and returns it
// with its row lock held. The unique index on customer_id makes the create
// race-safe: a concurrent insert loses, and the retry locks the winner's row.
func (db *PostgresDB) GetOrCreateWalletForUpdate(ctx context.Context, customerID uint) (*models.LoyaltyWallet, error) {
	var wallet models.LoyaltyWallet
	err := db.Conn.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&wallet).Error
	if err == nil {
		return &wallet, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to lock wallet row: %s", err)
	}

	wallet = models.LoyaltyWallet{CustomerID: customerID, Points: 0}
	if err := db.Conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to create wallet: %s", err)
	}

	if err := db.Conn.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", customerID).
		First(&wallet).Error; err != nil {
		return nil, fmt.Errorf("failed to lock wallet row after create: %s", err)
	}

	return &wallet, nil
}

// AddWalletPoints appends the ledger entry and applies its delta to the
// cached balance in one go. The wallet row lock must already be held so the
// balance stays equal to the ledger sum.
func (db *PostgresDB) AddWalletPoints(ctx context.Context, walletID uint, points int, txnType, description string, source models.LedgerSource, createdBy *uint) (*models.LoyaltyTransaction, error) {
	txn := &models.LoyaltyTransaction{
		WalletID:    walletID,
		Points:      points,
		Type:        txnType,
		Description: description,
		CreatedBy:   createdBy,
	}
	if !source.IsZero() {
		txn.ReferenceType = source.Type
		refID := source.ID
		txn.ReferenceID = &refID
	}

	if err := db.Conn.WithContext(ctx).Create(txn).Error; err != nil {
		return nil, fmt.Errorf("failed to create loyalty transaction: %s", err)
	}

	if err := db.Conn.WithContext(ctx).Model(&models.LoyaltyWallet{}).
		Where("id = ?", walletID).
		UpdateColumn("points", gorm.Expr("points + ?", points)).Error; err != nil {
		return nil, fmt.Errorf("failed to apply points to wallet: %s", err)
	}

	return txn, nil
}

func (db *PostgresDB) GetWalletByCustomer(ctx context.Context, customerID uint) (*models.LoyaltyWallet, error) {
	var wallet models.LoyaltyWallet
	if err := db.Conn.WithContext(ctx).Where("customer_id = ?", customerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %s", err)
	}

	return &wallet, nil
}

func (db *PostgresDB) ListWalletTransactions(ctx context.Context, walletID uint, limit int) ([]*models.LoyaltyTransaction, error) {
	var transactions []*models.LoyaltyTransaction
	if err := db.Conn.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %s", err)
	}

	return transactions, nil
}

func (db *PostgresDB) FindActiveProduct(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	if err := db.Conn.WithContext(ctx).
		Where("id = ? AND is_active = ?", productID, true).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %s", err)
	}

	return &product, nil
}

func (db *PostgresDB) FindActiveModifier(ctx context.Context, modifierID uint) (*models.Modifier, error) {
	var modifier models.Modifier
	if err := db.Conn.WithContext(ctx).
		Where("id = ? AND is_active = ?", modifierID, true).
		First(&modifier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find modifier: %s", err)
	}

	return &modifier, nil
}
