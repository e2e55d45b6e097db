package quiz

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Normalize trims the free-text fields in place.
func (s *StudentIdentity) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.DateOfBirth = strings.TrimSpace(s.DateOfBirth)
	s.ClassName = strings.TrimSpace(s.ClassName)
}

func (s StudentIdentity) Validate() error {
	return validate.Struct(s)
}

// CanStartServerAttempt reports whether the backend will accept this
// identity for a new attempt record.
func (s StudentIdentity) CanStartServerAttempt() bool {
	return strings.TrimSpace(s.Name) != "" && strings.TrimSpace(s.DateOfBirth) != ""
}
