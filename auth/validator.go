package auth

import (
	"fmt"
	"unicode"

	"market-chat/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type RegisterRequest struct {
	Email    string   `validate:"required,email"`
	Password string   `validate:"required,min=12,max=72"`
	FullName string   `validate:"required,min=2,max=100"`
	Roles    []string `validate:"required,min=1,dive,oneof=requester responder"`
}

// ValidateRegister distinguishes shape problems (bad email, unknown
// role, length bounds) from the password complexity rule, so each
// comes back under its own sentinel.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	if !isPasswordComplex(req.Password) {
		return errors.ErrInvalidPassword
	}
	return nil
}

func isPasswordComplex(s string) bool {
	var (
		hasUpper   = false
		hasLower   = false
		hasNumber  = false
		hasSpecial = false
	)
	for _, char := range s {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}
	return hasUpper && hasLower && hasNumber && hasSpecial
}
