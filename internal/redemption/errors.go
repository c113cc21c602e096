package redemption

// ErrorCode is the stable machine-readable failure code surfaced to
// clients so they can branch without string-matching human text.
type ErrorCode string

const (
	CodeNotFound             ErrorCode = "CODE_NOT_FOUND"
	CodeInactive             ErrorCode = "CODE_INACTIVE"
	CodeNotStarted           ErrorCode = "CODE_NOT_STARTED"
	CodeExpired              ErrorCode = "CODE_EXPIRED"
	TotalLimitExceeded       ErrorCode = "TOTAL_LIMIT_EXCEEDED"
	PerCustomerLimitExceeded ErrorCode = "PER_CUSTOMER_LIMIT_EXCEEDED"
	RedemptionFailed         ErrorCode = "REDEMPTION_FAILED"
)

// Error is a domain failure carrying its taxonomy code. Write-path
// internals are never leaked through Message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode) *Error {
	return &Error{Code: code, Message: messageFor(code)}
}

func messageFor(code ErrorCode) string {
	switch code {
	case CodeNotFound:
		return "QR code not found."
	case CodeInactive:
		return "QR code is not active."
	case CodeNotStarted:
		return "QR code has not started yet."
	case CodeExpired:
		return "QR code has expired."
	case TotalLimitExceeded:
		return "QR code has reached its total usage limit."
	case PerCustomerLimitExceeded:
		return "You have reached the maximum uses for this QR code."
	default:
		return "Redemption failed. Please try again."
	}
}
