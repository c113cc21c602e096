package redemption

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kippis-app/loyalty-core/internal/models"
	"github.com/kippis-app/loyalty-core/internal/repository"
	"github.com/kippis-app/loyalty-core/pkg/logger"
)

var serviceNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(db *repository.MemoryDB) *Service {
	return NewService(db, logger.NewNop()).WithClock(func() time.Time { return serviceNow })
}

func TestRedeemValidCode(t *testing.T) {
	db := repository.NewMemoryDB()
	code := db.AddCode(&models.QrCode{
		Code:          "WELCOME-100",
		Title:         "Welcome Bonus",
		PointsAwarded: 100,
		IsActive:      true,
	})
	service := newTestService(db)

	result, err := service.Redeem(context.Background(), 1, "WELCOME-100")

	require.NoError(t, err)
	assert.Equal(t, code.ID, result.QrCode.ID)
	assert.Equal(t, "WELCOME-100", result.QrCode.Code)
	assert.Equal(t, "Welcome Bonus", result.QrCode.Title)
	assert.Equal(t, 100, result.QrCode.PointsAwarded)
	assert.NotZero(t, result.Usage.ID)
	assert.Equal(t, serviceNow, result.Usage.UsedAt)
	assert.Nil(t, result.RemainingLimits.Total)
	assert.Nil(t, result.RemainingLimits.PerCustomer)

	// Usage recorded and counter incremented.
	assert.Equal(t, 1, db.UsageCount(code.ID))
	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, 1, snapshot.TotalUsedCount)

	// Wallet credited with exactly one earned ledger entry.
	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 100, wallet.Points)
	assert.Equal(t, 100, db.LedgerSum(wallet.ID))

	ledger, err := service.Ledger(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, 100, ledger[0].Points)
	assert.Equal(t, models.TransactionTypeEarned, ledger[0].Type)
	assert.Equal(t, "Points from QR code: Welcome Bonus", ledger[0].Description)
	assert.Equal(t, models.QrCodeSource(code.ID), ledger[0].Source())
}

func TestRedeemUnknownCode(t *testing.T) {
	service := newTestService(repository.NewMemoryDB())

	result, err := service.Redeem(context.Background(), 1, "NO-SUCH-CODE")

	assert.Nil(t, result)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeNotFound, domainErr.Code)
}

func TestRedeemInactiveCodeHasNoSideEffects(t *testing.T) {
	db := repository.NewMemoryDB()
	code := db.AddCode(&models.QrCode{
		Code:          "DISABLED",
		PointsAwarded: 50,
		IsActive:      false,
	})
	service := newTestService(db)

	result, err := service.Redeem(context.Background(), 1, "DISABLED")

	assert.Nil(t, result)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInactive, domainErr.Code)
	assert.Equal(t, 0, db.UsageCount(code.ID))
}

func TestRedeemPerCustomerLimit(t *testing.T) {
	db := repository.NewMemoryDB()
	one := 1
	db.AddCode(&models.QrCode{
		Code:             "ONCE-EACH",
		PointsAwarded:    10,
		IsActive:         true,
		PerCustomerLimit: &one,
	})
	service := newTestService(db)

	result, err := service.Redeem(context.Background(), 1, "ONCE-EACH")
	require.NoError(t, err)
	require.NotNil(t, result.RemainingLimits.PerCustomer)
	assert.Equal(t, 0, *result.RemainingLimits.PerCustomer)

	_, err = service.Redeem(context.Background(), 1, "ONCE-EACH")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, PerCustomerLimitExceeded, domainErr.Code)

	// A different customer is unaffected.
	_, err = service.Redeem(context.Background(), 2, "ONCE-EACH")
	assert.NoError(t, err)
}

func TestRedeemUnlimitedCodeRepeatedly(t *testing.T) {
	db := repository.NewMemoryDB()
	code := db.AddCode(&models.QrCode{
		Code:          "OPEN-BAR",
		PointsAwarded: 5,
		IsActive:      true,
	})
	service := newTestService(db)

	for i := 0; i < 5; i++ {
		_, err := service.Redeem(context.Background(), 1, "OPEN-BAR")
		require.NoError(t, err)
	}

	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, 5, snapshot.TotalUsedCount)
	assert.Equal(t, 5, db.UsageCount(code.ID))

	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 25, wallet.Points)
	assert.Equal(t, 25, db.LedgerSum(wallet.ID))
}

func TestRedeemZeroPointCodeSkipsWallet(t *testing.T) {
	db := repository.NewMemoryDB()
	db.AddCode(&models.QrCode{
		Code:     "NO-POINTS",
		IsActive: true,
	})
	service := newTestService(db)

	result, err := service.Redeem(context.Background(), 1, "NO-POINTS")

	require.NoError(t, err)
	assert.Equal(t, 0, result.QrCode.PointsAwarded)

	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.Points)
	assert.Zero(t, wallet.ID)
}

func TestConcurrentRedemptionsRespectTotalLimit(t *testing.T) {
	db := repository.NewMemoryDB()
	one := 1
	code := db.AddCode(&models.QrCode{
		Code:          "ONE-SHOT",
		PointsAwarded: 100,
		IsActive:      true,
		TotalLimit:    &one,
	})
	service := newTestService(db)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Redeem(context.Background(), uint(i+1), "ONE-SHOT")
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < 2; i++ {
		if errs[i] == nil {
			successes++
			require.NotNil(t, results[i].RemainingLimits.Total)
			assert.Equal(t, 0, *results[i].RemainingLimits.Total)
		} else {
			var domainErr *Error
			require.ErrorAs(t, errs[i], &domainErr)
			assert.Equal(t, TotalLimitExceeded, domainErr.Code)
		}
	}
	assert.Equal(t, 1, successes)

	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, 1, snapshot.TotalUsedCount)
	assert.Equal(t, 1, db.UsageCount(code.ID))
}

func TestConcurrentRedemptionsRespectPerCustomerLimit(t *testing.T) {
	db := repository.NewMemoryDB()
	one := 1
	code := db.AddCode(&models.QrCode{
		Code:             "ONCE-EACH",
		PointsAwarded:    10,
		IsActive:         true,
		PerCustomerLimit: &one,
	})
	service := newTestService(db)

	// The same customer races itself: both attempts pass the unlocked
	// pre-check before either writes, so only the locked re-check can
	// keep the second one out.
	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = service.Redeem(context.Background(), 1, "ONCE-EACH")
		}(i)
	}
	wg.Wait()

	successes := 0
	for i := 0; i < 2; i++ {
		if errs[i] == nil {
			successes++
			require.NotNil(t, results[i].RemainingLimits.PerCustomer)
			assert.Equal(t, 0, *results[i].RemainingLimits.PerCustomer)
		} else {
			var domainErr *Error
			require.ErrorAs(t, errs[i], &domainErr)
			assert.Equal(t, PerCustomerLimitExceeded, domainErr.Code)
		}
	}
	assert.Equal(t, 1, successes)

	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, 1, snapshot.TotalUsedCount)
	assert.Equal(t, 1, db.UsageCount(code.ID))

	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, wallet.Points)
}

func TestConcurrentRedemptionsNeverOvershoot(t *testing.T) {
	db := repository.NewMemoryDB()
	limit := 5
	code := db.AddCode(&models.QrCode{
		Code:       "FIRST-FIVE",
		IsActive:   true,
		TotalLimit: &limit,
	})
	service := newTestService(db)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = service.Redeem(context.Background(), uint(i+1), "FIRST-FIVE")
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, limit, successes)

	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, limit, snapshot.TotalUsedCount)
	assert.Equal(t, limit, db.UsageCount(code.ID))
}

func TestConcurrentWalletCreditsFromDifferentCodes(t *testing.T) {
	db := repository.NewMemoryDB()
	db.AddCode(&models.QrCode{Code: "CODE-A", PointsAwarded: 10, IsActive: true})
	db.AddCode(&models.QrCode{Code: "CODE-B", PointsAwarded: 20, IsActive: true})
	service := newTestService(db)

	var wg sync.WaitGroup
	for _, code := range []string{"CODE-A", "CODE-B"} {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			_, err := service.Redeem(context.Background(), 1, code)
			assert.NoError(t, err)
		}(code)
	}
	wg.Wait()

	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 30, wallet.Points)
	assert.Equal(t, 30, db.LedgerSum(wallet.ID))
}

// failingLedgerRepo refuses the ledger write so the redemption transaction
// aborts mid-way; everything written before it must roll back.
type failingLedgerRepo struct {
	models.Repository
}

func (f *failingLedgerRepo) Transact(ctx context.Context, fn func(models.Repository) error) error {
	return f.Repository.Transact(ctx, func(tx models.Repository) error {
		return fn(&failingLedgerTx{Repository: tx})
	})
}

type failingLedgerTx struct {
	models.Repository
}

func (f *failingLedgerTx) AddWalletPoints(ctx context.Context, walletID uint, points int, txnType, description string, source models.LedgerSource, createdBy *uint) (*models.LoyaltyTransaction, error) {
	return nil, errors.New("ledger write refused")
}

func TestRedeemRollsBackOnLedgerFailure(t *testing.T) {
	db := repository.NewMemoryDB()
	code := db.AddCode(&models.QrCode{
		Code:          "FLAKY",
		PointsAwarded: 100,
		IsActive:      true,
	})
	service := NewService(&failingLedgerRepo{Repository: db}, logger.NewNop()).
		WithClock(func() time.Time { return serviceNow })

	result, err := service.Redeem(context.Background(), 1, "FLAKY")

	assert.Nil(t, result)
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, RedemptionFailed, domainErr.Code)

	// All-or-nothing: no usage, no counter increment, no ledger entry.
	assert.Equal(t, 0, db.UsageCount(code.ID))
	snapshot, _ := db.CodeSnapshot(code.ID)
	assert.Equal(t, 0, snapshot.TotalUsedCount)

	wallet, err := service.Wallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, wallet.Points)
}

func TestCheckEligibility(t *testing.T) {
	db := repository.NewMemoryDB()
	db.AddCode(&models.QrCode{Code: "LIVE", IsActive: true})
	service := newTestService(db)

	result, err := service.CheckEligibility(context.Background(), 1, "LIVE")
	require.NoError(t, err)
	assert.True(t, result.Eligible)

	result, err = service.CheckEligibility(context.Background(), 1, "GONE")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, CodeNotFound, result.Code)

	// The pre-check never writes anything.
	assert.Equal(t, 0, db.UsageCount(1))
}

func TestAdjustPoints(t *testing.T) {
	db := repository.NewMemoryDB()
	service := newTestService(db)

	txn, err := service.AdjustPoints(context.Background(), 7, -30, "Returned order", 99)

	require.NoError(t, err)
	assert.Equal(t, -30, txn.Points)
	assert.Equal(t, models.TransactionTypeAdjusted, txn.Type)
	require.NotNil(t, txn.CreatedBy)
	assert.Equal(t, uint(99), *txn.CreatedBy)
	assert.Equal(t, models.ManualAdjustmentSource(99), txn.Source())

	wallet, err := service.Wallet(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, -30, wallet.Points)
	assert.Equal(t, -30, db.LedgerSum(wallet.ID))

	_, err = service.AdjustPoints(context.Background(), 7, 0, "", 99)
	assert.ErrorIs(t, err, ErrInvalidAdjustment)
}

func TestRedeemValidityWindow(t *testing.T) {
	db := repository.NewMemoryDB()
	start := serviceNow.Add(time.Hour)
	db.AddCode(&models.QrCode{
		Code:     "TOMORROW",
		IsActive: true,
		StartAt:  &start,
	})
	expired := serviceNow.Add(-time.Hour)
	db.AddCode(&models.QrCode{
		Code:      "YESTERDAY",
		IsActive:  true,
		ExpiresAt: &expired,
	})
	service := newTestService(db)

	_, err := service.Redeem(context.Background(), 1, "TOMORROW")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeNotStarted, domainErr.Code)

	_, err = service.Redeem(context.Background(), 1, "YESTERDAY")
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeExpired, domainErr.Code)
}
