package auth

import (
	"chat-relay/errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	MaxNameLength     = 50
	MaxPasswordLength = 72 // bytes
)

// Names are comma-joined in list responses and colon-joined in storage keys,
// so neither separator is allowed.
var namePattern = regexp.MustCompile(fmt.Sprintf(`^[A-Za-z0-9_.-]{1,%d}$`, MaxNameLength))

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("chatname", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

type RegisterRequest struct {
	Username string `validate:"required,chatname"`
	Password string `validate:"required"`
}

type GroupRequest struct {
	Name string `validate:"required,chatname"`
}

// ValidateRegister checks the username shape and the password length in bytes.
func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		if hasFieldError(err, "Username") {
			return fmt.Errorf("%w: %q", errors.ErrInvalidName, req.Username)
		}
		return errors.ErrInvalidPassword
	}
	if len(req.Password) > MaxPasswordLength {
		return fmt.Errorf("%w: longer than %d bytes", errors.ErrInvalidPassword, MaxPasswordLength)
	}
	return nil
}

func ValidateGroupName(name string) error {
	if err := validate.Struct(GroupRequest{Name: name}); err != nil {
		return fmt.Errorf("%w: %q", errors.ErrInvalidName, name)
	}
	return nil
}

func hasFieldError(err error, field string) bool {
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return false
	}
	for _, fe := range fieldErrors {
		if fe.Field() == field {
			return true
		}
	}
	return false
}
