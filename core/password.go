package core

import "unicode/utf8"

// PasswordRule is the composite password policy, shown verbatim on violation.
const PasswordRule = "Password must be at least 8 characters long and include an uppercase letter, a lowercase letter, a number, and a special character."

const minPasswordLength = 8

// ValidatePassword checks the password against PasswordRule as a single
// rule: any missing class fails the whole policy.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordPolicy
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case r == '_':
			// word character, not a symbol
		default:
			symbol = true
		}
	}

	if !lower || !upper || !digit || !symbol {
		return ErrPasswordPolicy
	}
	return nil
}
