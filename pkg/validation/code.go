package validation

import (
	"fmt"
	"regexp"
)

// MaxCodeLength matches the size of the codes.code column.
const MaxCodeLength = 64

var codePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateCode validates a QR code string format before it ever reaches
// the database. Lookup itself stays case-sensitive exact match.
func ValidateCode(code string) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}

	if len(code) > MaxCodeLength {
		return fmt.Errorf("code too long: expected at most %d characters, got %d", MaxCodeLength, len(code))
	}

	if !codePattern.MatchString(code) {
		return fmt.Errorf("code contains invalid characters")
	}

	return nil
}
