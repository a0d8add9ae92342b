package security

import (
	"fmt"
	"strings"

	"github.com/arklim/medportal-api/internal/core/domain"
	"github.com/arklim/medportal-api/internal/core/port"
)

const (
	defaultMinPasswordLength   = 10
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
	maxPasswordLength          = 128
)

// PasswordPolicyConfig tunes the registration and reset password policy.
type PasswordPolicyConfig struct {
	MinLength           int
	MinCharacterClasses int
	MinStrength         int
}

// DefaultPasswordPolicyConfig returns the service defaults.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           defaultMinPasswordLength,
		MinCharacterClasses: defaultMinCharacterClasses,
		MinStrength:         defaultMinZxcvbnScore,
	}
}

// PasswordPolicy adapts the password validator to the domain-level policy interface.
// Account attributes from the context are fed to zxcvbn so passwords derived from them score low.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

// NewPasswordPolicy builds a policy from cfg.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{cfg: cfg}
}

// Validate applies the configured rules to password.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	inputs := make([]string, 0, 4)
	for _, value := range []string{ctx.Username, ctx.Email, ctx.Phone} {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}
	if local, _, ok := strings.Cut(ctx.Email, "@"); ok && local != "" {
		inputs = append(inputs, local)
	}

	return NewPasswordValidator(
		MinLengthRule(p.cfg.MinLength),
		MaxLengthRule(maxPasswordLength),
		RequireCharacterClassesRule(p.cfg.MinCharacterClasses),
		RequirePasswordStrengthRule(p.cfg.MinStrength, inputs...),
	).Validate(password)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
