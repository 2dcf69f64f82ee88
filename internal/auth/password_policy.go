package auth

import (
	"fmt"
	"unicode"
)

// PasswordPolicy validates password strength at registration and password
// change. Rules mirror the reference deployment: a minimum length and a ban
// on entirely numeric passwords.
type PasswordPolicy struct {
	MinLength int
}

// NewPasswordPolicy builds a policy with the given minimum length. Values
// below 1 fall back to 8.
func NewPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength < 1 {
		minLength = 8
	}
	return &PasswordPolicy{MinLength: minLength}
}

// Validate returns the list of failed rules, empty when the password is
// acceptable.
func (p *PasswordPolicy) Validate(password string) []string {
	var reasons []string

	if len(password) < p.MinLength {
		reasons = append(reasons, fmt.Sprintf("password must contain at least %d characters", p.MinLength))
	}

	allDigits := len(password) > 0
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		reasons = append(reasons, "password cannot be entirely numeric")
	}

	return reasons
}
