package authcore

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrEthical07/authcore/internal"
)

const maxEmailLength = 254

// normalizeEmail validates and normalizes an address. Display-name forms
// such as "Bob <bob@example.com>" are rejected.
func normalizeEmail(raw string) (string, error) {
	email := internal.NormalizeEmail(raw)
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrValidation)
	}
	if len(email) > maxEmailLength {
		return "", fmt.Errorf("%w: email too long", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return email, nil
}

// checkPassword enforces the configured length bounds and requires at least
// one letter and one digit.
func (e *Engine) checkPassword(pw string) error {
	n := utf8.RuneCountInString(pw)
	if n < e.config.Password.MinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, e.config.Password.MinLength)
	}
	if n > e.config.Password.MaxLength {
		return fmt.Errorf("%w: password must be at most %d characters", ErrValidation, e.config.Password.MaxLength)
	}

	var letter, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain a letter and a digit", ErrValidation)
	}
	return nil
}

func requireNonEmpty(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s required", ErrValidation, field)
	}
	return nil
}
