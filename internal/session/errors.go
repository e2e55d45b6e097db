package session

import (
	"errors"
	"fmt"

	"quiz-taker/internal/gateway"
)

var (
	ErrNoIdentity      = errors.New("student identity is required before starting a quiz")
	ErrNotActive       = errors.New("no active attempt")
	ErrBusy            = errors.New("another load or submission is in progress")
	ErrNotSubmitted    = errors.New("attempt has not been submitted")
	ErrTimeExpired     = errors.New("time is up, answers can no longer be changed")
	ErrNothingToSubmit = errors.New("time is up and no answers were recorded")
	ErrUnknownQuestion = errors.New("question does not belong to this quiz")
	ErrUnknownOption   = errors.New("option does not belong to this question")
)

// LoadError is returned when the quiz itself could not be fetched. It is the
// only remote failure surfaced to the student.
type LoadError struct {
	QuizID int64
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load quiz %d: %v", e.QuizID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) Retryable() bool {
	if errors.Is(e.Err, gateway.ErrServiceUnavailable) {
		return true
	}
	var apiErr *gateway.APIError
	if errors.As(e.Err, &apiErr) {
		return apiErr.Temporary()
	}
	return false
}
