package usecase

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// normalizeEmail trims and lower-cases email, rejecting anything that is not an address.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
