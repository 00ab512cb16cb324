package blogauth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 100

func (e *Engine) validateRegistration(req RegisterRequest) error {
	verr := &ValidationError{}
	validateEmail(verr, req.Email)
	e.validatePassword(verr, "password", req.Password)
	if utf8.RuneCountInString(strings.TrimSpace(req.Name)) > maxNameLength {
		verr.add("name", "must be at most 100 characters")
	}
	return verr.orNil()
}

// validateNewPassword applies the password policy to a single value.
func (e *Engine) validateNewPassword(pw string) error {
	verr := &ValidationError{}
	e.validatePassword(verr, "password", pw)
	return verr.orNil()
}

func (e *Engine) validatePassword(verr *ValidationError, field, pw string) {
	n := utf8.RuneCountInString(pw)
	switch {
	case pw == "":
		verr.add(field, "is required")
	case n < e.config.Password.MinLength:
		verr.add(field, "is too short")
	case len(pw) > e.config.Password.MaxLength:
		verr.add(field, "is too long")
	}
}

// validateEmail accepts a bare address only; display-name forms such as
// "Ann <a@x.com>" are rejected.
func validateEmail(verr *ValidationError, email string) {
	email = strings.TrimSpace(email)
	if email == "" {
		verr.add("email", "is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		verr.add("email", "is not a valid address")
	}
}

// ValidateEmail reports field errors for a standalone email input, such as
// the forgot-password form.
func ValidateEmail(email string) error {
	verr := &ValidationError{}
	validateEmail(verr, email)
	return verr.orNil()
}
