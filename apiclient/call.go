package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/daveham/FeaturesManager/oauth"
)

// Notification is a short user facing message about a finished call.
type Notification struct {
	Text  string
	Error bool
}

// Options controls how Call interprets a response. The zero value decodes
// the body as JSON into T and reports failures with DefaultErrorMessage.
type Options[T any] struct {
	// SuccessTransform converts a successful body. Defaults to JSON decoding,
	// or the raw body when T is string.
	SuccessTransform func(body string) (T, error)
	// ControlledErrorTransform extracts a message from an error body. An
	// empty return falls back to DefaultErrorMessage.
	ControlledErrorTransform func(body string) string
	// ErrorMessage replaces the notification text for transport failures.
	ErrorMessage string
	// SuccessMessage, when set, is sent to Notify after success.
	SuccessMessage string
	// Notify receives success and failure notifications.
	Notify func(Notification)
}

func (o Options[T]) notify(text string, isErr bool) {
	if o.Notify != nil && text != "" {
		o.Notify(Notification{Text: text, Error: isErr})
	}
}

// Call performs one request and classifies the outcome: a *TransportError
// when no response arrived, an *APIError for an error response, otherwise
// the transformed body.
func Call[T any](ctx context.Context, r Requester, method, url string, data oauth.Data, headers map[string]string, opts Options[T]) (T, error) {
	var zero T

	res, err := r.Request(ctx, method, url, data, headers)
	if err != nil {
		var terr *TransportError
		if !errors.As(err, &terr) {
			terr = &TransportError{Err: err}
		}
		msg := opts.ErrorMessage
		if msg == "" {
			msg = terr.Error()
		}
		opts.notify(msg, true)
		return zero, terr
	}

	if res.IsError {
		var msg string
		if opts.ControlledErrorTransform != nil {
			msg = opts.ControlledErrorTransform(res.Body)
		}
		if msg == "" {
			msg = DefaultErrorMessage
		}
		opts.notify(msg, true)
		return zero, &APIError{StatusCode: res.StatusCode, Message: msg, Body: res.Body}
	}

	transform := opts.SuccessTransform
	if transform == nil {
		transform = decodeBody[T]
	}
	out, err := transform(res.Body)
	if err != nil {
		return zero, fmt.Errorf("apiclient: decode response: %w", err)
	}
	opts.notify(opts.SuccessMessage, false)
	return out, nil
}

func decodeBody[T any](body string) (T, error) {
	var out T
	if s, ok := any(&out).(*string); ok {
		*s = body
		return out, nil
	}
	err := json.Unmarshal([]byte(body), &out)
	return out, err
}
