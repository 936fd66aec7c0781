package service

import (
	"errors"
	"fmt"

	"github.com/stemsi/examguard-backend/internal/repository"
	"github.com/stemsi/examguard-backend/internal/response"
)

// ErrorKind classifies domain failures; the HTTP layer maps each kind to one status.
type ErrorKind int

const (
	KindUnexpected ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// DomainError is a stable, user-visible failure. Sentinels below are
// compared with errors.Is.
type DomainError struct {
	Kind    ErrorKind
	Code    response.ErrCode
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func newDomainError(kind ErrorKind, code response.ErrCode, msg string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: msg}
}

// Catalog errors.
var (
	ErrExamNotFound     = newDomainError(KindNotFound, response.ErrExamNotFound, "exam not found")
	ErrQuestionNotFound = newDomainError(KindNotFound, response.ErrQuestionNotFound, "question not found")
)

// Session engine errors.
var (
	ErrSessionNotFound  = newDomainError(KindNotFound, response.ErrSessionNotFound, "exam session not found")
	ErrExamInactive     = newDomainError(KindValidation, response.ErrExamNotAvailable, "exam is not active")
	ErrExamNotStarted   = newDomainError(KindValidation, response.ErrExamNotStarted, "exam has not started yet")
	ErrExamEnded        = newDomainError(KindValidation, response.ErrExamEnded, "exam has ended")
	ErrAlreadyTaken     = newDomainError(KindConflict, response.ErrAlreadyTaken, "exam already taken")
	ErrAlreadyCompleted = newDomainError(KindConflict, response.ErrAlreadyCompleted, "exam session already submitted")
	ErrSessionCompleted = newDomainError(KindConflict, response.ErrInvalidState, "exam session is completed")
	ErrNotSessionOwner  = newDomainError(KindAuthorization, response.ErrNotOwner, "exam session belongs to another student")
)

// Result errors.
var (
	ErrResultNotFound = newDomainError(KindNotFound, response.ErrResultNotFound, "result not found")
	ErrNotResultOwner = newDomainError(KindAuthorization, response.ErrNotOwner, "result belongs to another student")
)

// Auth errors.
var (
	ErrInvalidCredentials = newDomainError(KindAuthentication, response.ErrInvalidCredentials, "invalid credentials")
	ErrTokenInvalid       = newDomainError(KindAuthentication, response.ErrTokenInvalid, "invalid token")
	ErrTokenExpired       = newDomainError(KindAuthentication, response.ErrTokenExpired, "token has expired")
	ErrTokenRevoked       = newDomainError(KindAuthentication, response.ErrSessionInvalidated, "token has been revoked")
	ErrResetTokenInvalid  = newDomainError(KindValidation, response.ErrResetTokenInvalid, "reset token is invalid or expired")
	ErrUsernameTaken      = newDomainError(KindConflict, response.ErrUsernameTaken, "username already taken")
	ErrEmailTaken         = newDomainError(KindConflict, response.ErrEmailTaken, "email already registered")
	ErrAdminKeyInvalid    = newDomainError(KindAuthorization, response.ErrAdminKeyRequired, "admin registration key is invalid")
	ErrUserNotFound       = newDomainError(KindNotFound, response.ErrNotFound, "user not found")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// KindOf reports the kind of err; unknown errors are unexpected.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindUnexpected
}

// orNotFound replaces repository.ErrNotFound with the given domain error
// and wraps anything else with op. A nil err stays nil.
func orNotFound(err error, notFound *DomainError, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
