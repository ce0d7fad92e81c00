package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/ownership"
	"taskboard/api/internal/store"
)

// Kind classifies a failure independently of transport.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindForbidden        Kind = "Forbidden"
	KindInvalidOperation Kind = "InvalidOperation"
	KindValidationFailed Kind = "ValidationFailed"
	KindConflict         Kind = "Conflict"
	KindStoreFailure     Kind = "StoreFailure"
	KindUnauthorized     Kind = "Unauthorized"
)

var kindStatus = map[Kind]int{
	KindNotFound:         http.StatusNotFound,
	KindForbidden:        http.StatusForbidden,
	KindInvalidOperation: http.StatusBadRequest,
	KindValidationFailed: http.StatusBadRequest,
	KindConflict:         http.StatusConflict,
	KindStoreFailure:     http.StatusInternalServerError,
	KindUnauthorized:     http.StatusUnauthorized,
}

type DomainError struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Details any
	cause   error
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.cause
}

func domainError(kind Kind, code, message string, details any) *DomainError {
	return &DomainError{
		Kind:    kind,
		Status:  kindStatus[kind],
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(entity string) *DomainError {
	return domainError(KindNotFound, "NOT_FOUND", titleCase(entity)+" not found", nil)
}

func forbidden() *DomainError {
	return domainError(KindForbidden, "FORBIDDEN", "Access denied", nil)
}

func invalidOperation(message string) *DomainError {
	return domainError(KindInvalidOperation, "INVALID_OPERATION", message, nil)
}

func unauthorized() *DomainError {
	return domainError(KindUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
}

// translate maps lower-layer errors onto a DomainError. entity names the
// thing being looked up and only shapes the NotFound message; the guard's
// NotFoundError overrides it with the link that is actually missing. The wrapped
// error stays reachable through Unwrap.
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}

	var missing *ownership.NotFoundError
	if errors.As(err, &missing) {
		entity = missing.Entity
	}

	var out *DomainError
	switch {
	case errors.Is(err, ownership.ErrForbidden):
		out = forbidden()
	case errors.Is(err, ownership.ErrNotFound), store.IsNotFound(err):
		out = notFound(entity)
	case store.IsConflict(err):
		out = domainError(KindConflict, "CONFLICT", "The board changed while the request was processed, reload and retry", nil)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		out = unauthorized()
	default:
		out = domainError(KindStoreFailure, "STORE_FAILURE", "Server error", nil)
	}
	out.cause = err
	return out
}

func titleCase(s string) string {
	if s == "" {
		return "Resource"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
