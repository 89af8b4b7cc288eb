package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRegistered    = errors.New("email already registered")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSectionNotFound    = errors.New("section not found")
	ErrQuestionNotFound   = errors.New("question not found")
	ErrOptionNotFound     = errors.New("option not found")
	ErrSchemeNotFound     = errors.New("marking scheme not found")
	ErrRuleNotFound       = errors.New("marking rule not found")
	ErrSessionNotFound    = errors.New("response session not found")
	ErrResponseNotFound   = errors.New("question response not found")
	ErrNoActiveScheme     = errors.New("assessment has no active marking scheme")
	ErrSessionExists      = errors.New("session already exists for this assessment")
)

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrUserNotFound, ErrAssessmentNotFound, ErrSectionNotFound,
		ErrQuestionNotFound, ErrOptionNotFound, ErrSchemeNotFound,
		ErrRuleNotFound, ErrSessionNotFound, ErrResponseNotFound,
		ErrNoActiveScheme,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// ValidationError reports a catalog invariant violation with the offending
// field. Distinct from guard failures and not-found conditions so the
// transport layer can map it to a 400.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Detail: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransitionError is a rejected session state transition: either the event
// is not legal from the current state, or a guard refused it. State is
// never mutated when one is returned.
type TransitionError struct {
	Event  string
	From   string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s: %s", e.Event, e.From, e.Reason)
}

// IsTransition reports whether err is a rejected transition.
func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
