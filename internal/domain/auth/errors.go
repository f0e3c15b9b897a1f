package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NordCoder/KUSeek/internal/domain"
)

var (
	ErrUnauthenticated    = errors.New("user is not authenticated")
	ErrTokenExpired       = errors.New("expired authentication token")
	ErrTokenMalformed     = errors.New("invalid authentication token")
	ErrForbidden          = errors.New("user does not have authorization")
	ErrUnknownIdentity    = errors.New("invalid user")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrNotRegistered      = errors.New("identity is not registered")
	ErrAlreadyRegistered  = errors.New("identity already registered")
	ErrRateLimited        = errors.New("too many requests")
	ErrBanned             = errors.New("subject is banned")
	ErrCSRF               = errors.New("csrf token missing or invalid")

	ErrStoreUnavailable = domain.ErrUnavailable
)

// ValidationError lists every rejected registration field with its reason.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Add(field, reason string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = reason
	}
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
