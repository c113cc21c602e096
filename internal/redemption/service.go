package redemption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/kippis-app/loyalty-core/internal/models"
	"github.com/kippis-app/loyalty-core/pkg/logger"
)

// Service orchestrates atomic QR code redemptions against the repository.
type Service struct {
	repo models.Repository
	log  *logger.Logger

	// now is injectable so tests can evaluate validity windows against
	// fixed timestamps.
	now func() time.Time
}

func NewService(repo models.Repository, log *logger.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// WithClock overrides the service clock. Used in tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Result is the success payload of a redemption.
type Result struct {
	QrCode          ResultCode      `json:"qr_code"`
	Usage           ResultUsage     `json:"usage"`
	RemainingLimits RemainingLimits `json:"remaining_limits"`
}

type ResultCode struct {
	ID            uint   `json:"id"`
	Code          string `json:"code"`
	Title         string `json:"title"`
	PointsAwarded int    `json:"points_awarded"`
}

type ResultUsage struct {
	ID     uint      `json:"id"`
	UsedAt time.Time `json:"used_at"`
}

// RemainingLimits reports how many uses remain after this redemption.
// Nil means unbounded.
type RemainingLimits struct {
	Total       *int `json:"total"`
	PerCustomer *int `json:"per_customer"`
}

// CheckEligibility runs the optimistic, unlocked eligibility check. It is
// informational only; Redeem re-checks under the row lock.
func (s *Service) CheckEligibility(ctx context.Context, customerID uint, code string) (Eligibility, error) {
	qrCode, err := s.repo.FindCodeByString(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ineligible(CodeNotFound), nil
		}
		return Eligibility{}, fmt.Errorf("eligibility lookup failed: %s", err)
	}

	customerUsed, err := s.repo.CountCustomerUsages(ctx, qrCode.ID, customerID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("eligibility usage count failed: %s", err)
	}

	return Evaluate(qrCode, customerUsed, s.now()), nil
}

// Redeem atomically redeems a code for a customer. On failure it returns a
// *redemption.Error from the taxonomy; any unexpected persistence failure
// rolls the transaction back, is logged with full context, and surfaces as
// REDEMPTION_FAILED.
func (s *Service) Redeem(ctx context.Context, customerID uint, code string) (*Result, error) {
	qrCode, err := s.repo.FindCodeByString(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, newError(CodeNotFound)
		}
		s.logFailure(customerID, code, err)
		return nil, newError(RedemptionFailed)
	}

	// Optimistic pre-check fast-fails the common case without taking the
	// row lock. It may be stale under race; the locked re-check decides.
	customerUsed, err := s.repo.CountCustomerUsages(ctx, qrCode.ID, customerID)
	if err != nil {
		s.logFailure(customerID, code, err)
		return nil, newError(RedemptionFailed)
	}
	if eligibility := Evaluate(qrCode, customerUsed, s.now()); !eligibility.Eligible {
		return nil, newError(eligibility.Code)
	}

	var result *Result
	err = s.repo.Transact(ctx, func(tx models.Repository) error {
		locked, err := tx.FindCodeForUpdate(ctx, qrCode.ID)
		if err != nil {
			return fmt.Errorf("locked re-fetch failed: %s", err)
		}

		customerUsed, err := tx.CountCustomerUsages(ctx, locked.ID, customerID)
		if err != nil {
			return fmt.Errorf("locked usage count failed: %s", err)
		}

		// Authoritative re-check against post-lock state. Two concurrent
		// attempts both passing the pre-check cannot both pass here.
		if eligibility := Evaluate(locked, customerUsed, s.now()); !eligibility.Eligible {
			return newError(eligibility.Code)
		}

		now := s.now()
		metadata, err := usageMetadata(now)
		if err != nil {
			return fmt.Errorf("metadata encoding failed: %s", err)
		}

		custID := customerID
		usage := &models.QrCodeUsage{
			QrCodeID:   locked.ID,
			CustomerID: &custID,
			UsedAt:     now,
			Metadata:   metadata,
		}
		if err := tx.CreateUsage(ctx, usage); err != nil {
			return err
		}

		newCount, err := tx.IncrementCodeUsage(ctx, locked.ID)
		if err != nil {
			return err
		}
		locked.TotalUsedCount = newCount

		pointsAwarded := 0
		if locked.PointsAwarded > 0 {
			wallet, err := tx.GetOrCreateWalletForUpdate(ctx, customerID)
			if err != nil {
				return err
			}
			description := fmt.Sprintf("Points from QR code: %s", locked.DisplayName())
			if _, err := tx.AddWalletPoints(ctx, wallet.ID, locked.PointsAwarded,
				models.TransactionTypeEarned, description,
				models.QrCodeSource(locked.ID), nil); err != nil {
				return err
			}
			pointsAwarded = locked.PointsAwarded
		}

		result = &Result{
			QrCode: ResultCode{
				ID:            locked.ID,
				Code:          locked.Code,
				Title:         locked.Title,
				PointsAwarded: pointsAwarded,
			},
			Usage: ResultUsage{
				ID:     usage.ID,
				UsedAt: usage.UsedAt,
			},
			RemainingLimits: RemainingLimits{
				Total:       locked.RemainingTotalUses(),
				PerCustomer: locked.RemainingForCustomer(customerUsed + 1),
			},
		}
		return nil
	})
	if err != nil {
		var domainErr *Error
		if errors.As(err, &domainErr) {
			return nil, domainErr
		}
		s.logFailure(customerID, code, err)
		return nil, newError(RedemptionFailed)
	}

	return result, nil
}

// ErrInvalidAdjustment marks a rejected manual adjustment request, as
// opposed to a persistence failure. Callers branch on it with errors.Is.
var ErrInvalidAdjustment = errors.New("invalid adjustment")

// AdjustPoints applies a manual, admin-attributed balance change. The
// wallet is created on first need, and the change lands as an "adjusted"
// ledger entry referencing the acting admin.
func (s *Service) AdjustPoints(ctx context.Context, customerID uint, points int, description string, adminID uint) (*models.LoyaltyTransaction, error) {
	if points == 0 {
		return nil, fmt.Errorf("%w: points must be non-zero", ErrInvalidAdjustment)
	}
	if description == "" {
		description = "Manual adjustment"
	}

	var txn *models.LoyaltyTransaction
	err := s.repo.Transact(ctx, func(tx models.Repository) error {
		wallet, err := tx.GetOrCreateWalletForUpdate(ctx, customerID)
		if err != nil {
			return err
		}

		admin := adminID
		txn, err = tx.AddWalletPoints(ctx, wallet.ID, points,
			models.TransactionTypeAdjusted, description,
			models.ManualAdjustmentSource(adminID), &admin)
		return err
	})
	if err != nil {
		s.log.Errorw("manual point adjustment failed",
			"customer_id", customerID,
			"points", points,
			"error", err,
		)
		return nil, err
	}

	return txn, nil
}

// Wallet returns the customer's wallet, or an empty zero-balance wallet if
// the customer never earned points.
func (s *Service) Wallet(ctx context.Context, customerID uint) (*models.LoyaltyWallet, error) {
	wallet, err := s.repo.GetWalletByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.LoyaltyWallet{CustomerID: customerID}, nil
		}
		return nil, err
	}
	return wallet, nil
}

// Ledger returns the customer's ledger history, newest first.
func (s *Service) Ledger(ctx context.Context, customerID uint, limit int) ([]*models.LoyaltyTransaction, error) {
	wallet, err := s.repo.GetWalletByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.repo.ListWalletTransactions(ctx, wallet.ID, limit)
}

func (s *Service) logFailure(customerID uint, code string, err error) {
	s.log.Errorw("qr code redemption failed",
		"customer_id", customerID,
		"code", code,
		"error", err,
	)
}

func usageMetadata(now time.Time) (datatypes.JSON, error) {
	raw, err := json.Marshal(map[string]string{
		"redeemed_at":   now.Format(time.RFC3339),
		"redemption_id": uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
