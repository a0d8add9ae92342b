package security

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Violation codes carried by PasswordValidationError.
const (
	CodeMinLength        = "min_length"
	CodeMaxLength        = "max_length"
	CodeCharacterClasses = "character_classes"
	CodeWeakPassword     = "weak_password"
)

// PasswordValidationError names the first rule a password failed.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func violation(code, format string, args ...any) *PasswordValidationError {
	return &PasswordValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PasswordRule returns a violation for password, or nil. A rule with a non-positive threshold is a no-op.
type PasswordRule func(password string) *PasswordValidationError

// PasswordValidator runs rules in order and stops at the first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	return &PasswordValidator{rules: append([]PasswordRule(nil), rules...)}
}

func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return errors.New("password validator not configured")
	}
	for _, rule := range v.rules {
		if rule == nil {
			continue
		}
		if err := rule(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return func(password string) *PasswordValidationError {
		if min > 0 && utf8.RuneCountInString(password) < min {
			return violation(CodeMinLength, "password must be at least %d characters long", min)
		}
		return nil
	}
}

func MaxLengthRule(max int) PasswordRule {
	return func(password string) *PasswordValidationError {
		if max > 0 && utf8.RuneCountInString(password) > max {
			return violation(CodeMaxLength, "password must be at most %d characters long", max)
		}
		return nil
	}
}

// RequireCharacterClassesRule wants min of upper, lower, digit and symbol.
func RequireCharacterClassesRule(min int) PasswordRule {
	return func(password string) *PasswordValidationError {
		if min > 0 && characterClasses(password) < min {
			return violation(CodeCharacterClasses, "password must include at least %d character types", min)
		}
		return nil
	}
}

func characterClasses(password string) int {
	var upper, lower, digit, symbol int
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = 1
		case unicode.IsLower(r):
			lower = 1
		case unicode.IsDigit(r):
			digit = 1
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			symbol = 1
		}
	}
	return upper + lower + digit + symbol
}

// RequirePasswordStrengthRule rejects passwords scoring below minScore (capped at 4) in zxcvbn.
// userInputs are penalised when they appear in the password.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	minScore = min(minScore, 4)
	return func(password string) *PasswordValidationError {
		if minScore <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score < minScore {
			return violation(CodeWeakPassword, "password is too weak; choose a more complex value")
		}
		return nil
	}
}
