package redemption

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kippis-app/loyalty-core/internal/models"
)

var evalNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func activeCode() *models.QrCode {
	return &models.QrCode{
		ID:       1,
		Code:     "SUMMER-2026",
		IsActive: true,
	}
}

func TestEvaluateEligibleCode(t *testing.T) {
	result := Evaluate(activeCode(), 0, evalNow)

	assert.True(t, result.Eligible)
	assert.Empty(t, result.Code)
	assert.Empty(t, result.Message)
}

func TestEvaluateInactiveCode(t *testing.T) {
	code := activeCode()
	code.IsActive = false

	result := Evaluate(code, 0, evalNow)

	assert.False(t, result.Eligible)
	assert.Equal(t, CodeInactive, result.Code)
	assert.NotEmpty(t, result.Message)
}

func TestEvaluateNotStartedCode(t *testing.T) {
	code := activeCode()
	code.StartAt = timePtr(evalNow.Add(time.Hour))

	result := Evaluate(code, 0, evalNow)

	assert.False(t, result.Eligible)
	assert.Equal(t, CodeNotStarted, result.Code)
}

func TestEvaluateExpiredCode(t *testing.T) {
	code := activeCode()
	code.ExpiresAt = timePtr(evalNow.Add(-time.Hour))

	result := Evaluate(code, 0, evalNow)

	assert.False(t, result.Eligible)
	assert.Equal(t, CodeExpired, result.Code)
}

func TestEvaluateWindowBoundsAreInclusive(t *testing.T) {
	code := activeCode()
	code.StartAt = timePtr(evalNow)
	code.ExpiresAt = timePtr(evalNow)

	result := Evaluate(code, 0, evalNow)

	assert.True(t, result.Eligible)
}

func TestEvaluateTotalLimitExceeded(t *testing.T) {
	code := activeCode()
	code.TotalLimit = intPtr(10)
	code.TotalUsedCount = 10

	result := Evaluate(code, 0, evalNow)

	assert.False(t, result.Eligible)
	assert.Equal(t, TotalLimitExceeded, result.Code)
}

func TestEvaluatePerCustomerLimitExceeded(t *testing.T) {
	code := activeCode()
	code.PerCustomerLimit = intPtr(2)

	result := Evaluate(code, 2, evalNow)

	assert.False(t, result.Eligible)
	assert.Equal(t, PerCustomerLimitExceeded, result.Code)
}

func TestEvaluateNilLimitsAreUnbounded(t *testing.T) {
	code := activeCode()
	code.TotalUsedCount = 1000000

	result := Evaluate(code, 1000000, evalNow)

	assert.True(t, result.Eligible)
}

// A code failing several checks at once must always report the
// first-checked reason, so clients see deterministic errors.
func TestEvaluateReportsFirstFailingCheck(t *testing.T) {
	code := activeCode()
	code.IsActive = false
	code.ExpiresAt = timePtr(evalNow.Add(-time.Hour))
	code.TotalLimit = intPtr(1)
	code.TotalUsedCount = 1
	code.PerCustomerLimit = intPtr(1)

	result := Evaluate(code, 5, evalNow)

	assert.Equal(t, CodeInactive, result.Code)

	code.IsActive = true
	result = Evaluate(code, 5, evalNow)
	assert.Equal(t, CodeExpired, result.Code)

	code.ExpiresAt = nil
	result = Evaluate(code, 5, evalNow)
	assert.Equal(t, TotalLimitExceeded, result.Code)

	code.TotalLimit = nil
	result = Evaluate(code, 5, evalNow)
	assert.Equal(t, PerCustomerLimitExceeded, result.Code)
}
