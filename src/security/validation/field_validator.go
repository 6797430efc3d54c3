// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrValidationFailed is the sentinel wrapped by every field-level
// validation error.
var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxTickerLength   = 32
	MaxTypeLength     = 64
	MaxStrategyLength = 128
	MaxNotesLength    = 4096
	MaxSectorLength   = 128
	MaxReasonLength   = 4096
	MaxChartURLLength = 2048
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidateOptionalMaxLength applies ValidateStringMaxLength when the field is set.
func ValidateOptionalMaxLength(s *string, maxLength int, fieldName string) error {
	if s == nil {
		return nil
	}
	return ValidateStringMaxLength(*s, maxLength, fieldName)
}

// ValidatePositiveDecimal checks that a required numeric field is strictly
// greater than zero.
func ValidatePositiveDecimal(d decimal.Decimal, fieldName string) error {
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero, got %s", ErrValidationFailed, fieldName, d)
	}
	return nil
}

// ValidateNonNegativeDecimal checks that a numeric field is zero or greater.
func ValidateNonNegativeDecimal(d decimal.Decimal, fieldName string) error {
	if d.IsNegative() {
		return fmt.Errorf("%w: %s cannot be negative, got %s", ErrValidationFailed, fieldName, d)
	}
	return nil
}

// ValidateOptionalPositiveDecimal applies ValidatePositiveDecimal when the
// field is set.
func ValidateOptionalPositiveDecimal(d *decimal.Decimal, fieldName string) error {
	if d == nil {
		return nil
	}
	return ValidatePositiveDecimal(*d, fieldName)
}

// ValidateChartURL accepts empty chart links and otherwise requires an
// absolute http(s) URL.
func ValidateChartURL(s *string) error {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	if err := ValidateStringMaxLength(*s, MaxChartURLLength, "chartUrl"); err != nil {
		return err
	}
	u, err := url.Parse(*s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: chartUrl must be an absolute http(s) URL", ErrValidationFailed)
	}
	return nil
}
