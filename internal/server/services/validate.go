package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

const (
	minPasswordLen = 6
	minNameLen     = 2
	maxNameLen     = 100
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrorValidation}, args...)...)
}

func validateEmail(email string) error {
	if email == "" {
		return validationError("email is required")
	}
	if !govalidator.IsEmail(email) {
		return validationError("email %q is not valid", email)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return validationError("password must be at least %d characters", minPasswordLen)
	}
	return nil
}

func validateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n < minNameLen || n > maxNameLen {
		return validationError("name must be between %d and %d characters", minNameLen, maxNameLen)
	}
	return nil
}

// parseRole defaults an empty role to user.
func parseRole(role string) (models.Role, error) {
	if strings.TrimSpace(role) == "" {
		return models.RoleUser, nil
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return "", validationError("%v", err)
	}
	return r, nil
}

// CheckSelfRegistration rejects public sign-ups asking for a role above
// user. Admins are created through UserService.Create.
func CheckSelfRegistration(in RegisterInput) error {
	role, err := parseRole(in.Role)
	if err != nil {
		return err
	}
	if role != models.RoleUser {
		return fmt.Errorf("%w: cannot self-register as %s", common.ErrForbidden, role)
	}
	return nil
}
