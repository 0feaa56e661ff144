package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	maxNameLen       = 100
)

var validate = validator.New()

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validateEmail(errs domain.ValidationErrors, email string) {
	if email == "" {
		errs.Add("email", "can't be blank")
		return
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		errs.Add("email", "is invalid")
	}
}

// validatePassword checks length and, when a confirmation was supplied, that it matches.
func validatePassword(errs domain.ValidationErrors, password, confirmation string) {
	switch {
	case password == "":
		errs.Add("password", "can't be blank")
		return
	case utf8.RuneCountInString(password) < minPasswordLen:
		errs.Add("password", "is too short (minimum is 8 characters)")
	case len(password) > maxPasswordBytes:
		errs.Add("password", "is too long (maximum is 72 bytes)")
	}
	if confirmation != "" && confirmation != password {
		errs.Add("password_confirmation", "doesn't match password")
	}
}

func validateName(errs domain.ValidationErrors, name string) {
	if utf8.RuneCountInString(name) > maxNameLen {
		errs.Add("name", "is too long (maximum is 100 characters)")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
