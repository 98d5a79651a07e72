package copier

import (
	"errors"
	"fmt"
)

// Error categories. Concrete errors wrap one of these; callers match with errors.Is.
var (
	// ErrConfiguration: the request names something that is not configured, e.g. an unknown lead.
	ErrConfiguration = errors.New("copier: configuration error")
	// ErrPrecondition: the request is well formed but cannot be honoured right now.
	ErrPrecondition = errors.New("copier: precondition failed")
	// ErrTransport: an exchange call failed (network, auth, non-2xx).
	ErrTransport = errors.New("copier: transport error")
	// ErrData: an exchange response was missing or had malformed fields.
	ErrData = errors.New("copier: data error")
)

// Start failures, each within one of the categories above.
var (
	ErrUnknownLead     = fmt.Errorf("%w: unknown lead", ErrConfiguration)
	ErrInvalidStart    = fmt.Errorf("%w: invalid start request", ErrPrecondition)
	ErrSessionExists   = fmt.Errorf("%w: copier already has an active session", ErrPrecondition)
	ErrLeadWallet      = fmt.Errorf("%w: lead wallet unavailable", ErrPrecondition)
	ErrManagerShutdown = fmt.Errorf("%w: manager is shutting down", ErrPrecondition)
)
