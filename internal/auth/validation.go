package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Registration form limits.
const (
	MinNameLength     = 3
	MinPasswordLength = 6
)

// ValidationError lists every field problem found in one pass.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range []string{"name", "email", "password", "confirm_password"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, field+": "+msg)
		}
	}
	return strings.Join(parts, "; ")
}

// Unwrap makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ValidateLogin checks that both login fields were supplied.
func ValidateLogin(email, password string) error {
	fields := make(map[string]string)
	if strings.TrimSpace(email) == "" {
		fields["email"] = "is required"
	}
	if password == "" {
		fields["password"] = "is required"
	}
	return fieldsError(fields)
}

// ValidateRegistration applies the registration form rules: name of at least
// three characters, a syntactically valid email and a password of at least six
// characters.
func ValidateRegistration(name, email, password string) error {
	fields := make(map[string]string)

	if n := utf8.RuneCountInString(strings.TrimSpace(name)); n == 0 {
		fields["name"] = "is required"
	} else if n < MinNameLength {
		fields["name"] = "must be at least 3 characters"
	}

	if strings.TrimSpace(email) == "" {
		fields["email"] = "is required"
	} else if !isEmail(email) {
		fields["email"] = "must be a valid email address"
	}

	if password == "" {
		fields["password"] = "is required"
	} else if utf8.RuneCountInString(password) < MinPasswordLength {
		fields["password"] = "must be at least 6 characters"
	}

	return fieldsError(fields)
}

// ValidatePasswordConfirmation checks the confirm field of the register form.
func ValidatePasswordConfirmation(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Fields: map[string]string{"confirm_password": "passwords do not match"}}
	}
	return nil
}

func isEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

func fieldsError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
