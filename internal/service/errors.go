package service

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField           = errors.New("missing required field")
	ErrInvalidRole            = errors.New("role not valid")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConflict               = errors.New("conflict")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrProviderDataIncomplete = errors.New("identity provider data incomplete")
	ErrProviderUnavailable    = errors.New("identity provider unavailable")
	ErrFederationDisabled     = errors.New("federated login disabled")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrMisconfigured          = errors.New("auth config invalid")

	// ErrUnauthorized is the single outcome callers see for every
	// authentication failure below.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrExpired            = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrRevoked            = fmt.Errorf("%w: token revoked", ErrUnauthorized)
	ErrWrongKind          = fmt.Errorf("%w: wrong token kind", ErrUnauthorized)
	ErrUnknownUser        = fmt.Errorf("%w: unknown user", ErrUnauthorized)
)

func storageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, ErrWrongKind):
		return "wrong_kind"
	case errors.Is(err, ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, ErrUnauthorized):
		return "invalid_token"
	case errors.Is(err, ErrProviderDataIncomplete):
		return "provider_data_incomplete"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "error"
	}
}
