package auth

import (
	"chat-relay/errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return isHandle(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=32,handle"`
	Name     string `json:"name" validate:"required,max=64"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
}

// UpdateProfileRequest replaces username and name; Avatar is optional and
// must be a data URL when present.
type UpdateProfileRequest struct {
	Username string  `json:"username" validate:"required,max=32,handle"`
	Name     string  `json:"name" validate:"required,max=64"`
	Avatar   *string `json:"avatar" validate:"omitempty,startswith=data:"`
}

func ValidateRegister(req RegisterRequest) error {
	return check(req)
}

func ValidateLogin(req LoginRequest) error {
	return check(req)
}

func ValidateUpdateProfile(req UpdateProfileRequest) error {
	return check(req)
}

func check(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	return nil
}

// isHandle accepts letters, digits and "._-".
func isHandle(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, char := range s {
		switch {
		case unicode.IsLetter(char), unicode.IsDigit(char):
		case char == '.', char == '_', char == '-':
		default:
			return false
		}
	}
	return true
}
