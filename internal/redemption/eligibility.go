package redemption

import (
	"time"

	"github.com/kippis-app/loyalty-core/internal/models"
)

// Eligibility is the outcome of an eligibility evaluation.
type Eligibility struct {
	Eligible bool      `json:"eligible"`
	Code     ErrorCode `json:"error_code,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Evaluate decides whether a code may currently be redeemed by a customer
// who has already used it customerUsed times. It is pure: the caller
// supplies already-fetched state and the current time, so it can run both
// outside a transaction (informational pre-check) and against a freshly
// locked row (authoritative re-check).
//
// Check order is fixed; the first failing check determines the reported
// reason.
func Evaluate(code *models.QrCode, customerUsed int64, now time.Time) Eligibility {
	if !code.IsActive {
		return ineligible(CodeInactive)
	}

	if code.StartAt != nil && now.Before(*code.StartAt) {
		return ineligible(CodeNotStarted)
	}

	if code.ExpiresAt != nil && now.After(*code.ExpiresAt) {
		return ineligible(CodeExpired)
	}

	if code.TotalLimit != nil && code.TotalUsedCount >= *code.TotalLimit {
		return ineligible(TotalLimitExceeded)
	}

	if code.PerCustomerLimit != nil && customerUsed >= int64(*code.PerCustomerLimit) {
		return ineligible(PerCustomerLimitExceeded)
	}

	return Eligibility{Eligible: true}
}

func ineligible(code ErrorCode) Eligibility {
	return Eligibility{Eligible: false, Code: code, Message: messageFor(code)}
}
