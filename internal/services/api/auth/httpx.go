package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/NordCoder/KUSeek/internal/domain/auth"
)

const (
	msgUnauthenticated    = "User is not authenticated."
	msgTokenExpired       = "Expired authentication token."
	msgTokenMalformed     = "Invalid authentication token."
	msgUnknownIdentity    = "Invalid user."
	msgForbidden          = "User does not have authorization."
	msgInvalidCredentials = "Invalid email or password."
	msgSessionRevoked     = "Session has been revoked."
	msgNotRegistered      = "User is not registered."
	msgAlreadyRegistered  = "User already registered."
	msgTooManyRequests    = "Too many requests."
	msgValidation         = "Invalid registration data."
	msgCSRF               = "CSRF token missing or invalid."
	msgBadRequest         = "Malformed request body."
	msgUnavailable        = "Service temporarily unavailable."
	msgInternal           = "Internal server error."
)

type errorBody struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP. Expired and malformed tokens
// share a status and differ only in the message.
func statusFor(err error) (int, errorBody) {
	var verr *domainauth.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Message: msgValidation, Fields: verr.Fields}
	case errors.Is(err, domainauth.ErrUnauthenticated):
		return http.StatusUnauthorized, errorBody{Message: msgUnauthenticated}
	case errors.Is(err, domainauth.ErrTokenExpired):
		return http.StatusForbidden, errorBody{Message: msgTokenExpired}
	case errors.Is(err, domainauth.ErrTokenMalformed):
		return http.StatusForbidden, errorBody{Message: msgTokenMalformed}
	case errors.Is(err, domainauth.ErrUnknownIdentity):
		return http.StatusForbidden, errorBody{Message: msgUnknownIdentity}
	case errors.Is(err, domainauth.ErrForbidden):
		return http.StatusForbidden, errorBody{Message: msgForbidden}
	case errors.Is(err, domainauth.ErrCSRF):
		return http.StatusForbidden, errorBody{Message: msgCSRF}
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Message: msgInvalidCredentials}
	case errors.Is(err, domainauth.ErrSessionRevoked):
		return http.StatusUnauthorized, errorBody{Message: msgSessionRevoked}
	case errors.Is(err, domainauth.ErrNotRegistered):
		return http.StatusNotFound, errorBody{Message: msgNotRegistered}
	case errors.Is(err, domainauth.ErrAlreadyRegistered):
		return http.StatusConflict, errorBody{Message: msgAlreadyRegistered}
	case errors.Is(err, domainauth.ErrRateLimited), errors.Is(err, domainauth.ErrBanned):
		return http.StatusTooManyRequests, errorBody{Message: msgTooManyRequests}
	case errors.Is(err, domainauth.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorBody{Message: msgUnavailable}
	default:
		return http.StatusInternalServerError, errorBody{Message: msgInternal}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := statusFor(err)
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(dst)
}
