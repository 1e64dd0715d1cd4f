package apiclient

import (
	"fmt"
	"net/http"
)

// DefaultErrorMessage is reported for an error response nobody could explain.
const DefaultErrorMessage = "An error occurred calling the API."

// TransportError is a request that produced no usable response.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("apiclient: transport (%d %s): %v", e.StatusCode, http.StatusText(e.StatusCode), e.Err)
	}
	return fmt.Sprintf("apiclient: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an error response from the provider. Message is already
// suitable for display.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return e.Message
}
