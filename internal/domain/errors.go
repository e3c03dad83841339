package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	// ErrUnavailable is returned when a messaging session is not ready for sends.
	ErrUnavailable = errors.New("service unavailable")
)

// ErrNotOnNetwork marks a recipient that is not provisioned on the messaging
// network. It is permanent for the number and matches ErrNotFound.
var ErrNotOnNetwork = fmt.Errorf("recipient not on network: %w", ErrNotFound)
