package authflow

import "errors"

var (
	// ErrStepInFlight is returned when a step starts while another is pending.
	ErrStepInFlight = errors.New("authflow: a handshake step is already in flight")
	// ErrNoRequestToken is returned by SubmitVerifierPin before a request
	// token has been obtained.
	ErrNoRequestToken = errors.New("authflow: no request token")
	// ErrNotAuthenticated is returned when signed API access is requested
	// before the handshake completed.
	ErrNotAuthenticated = errors.New("authflow: not authenticated")
)
