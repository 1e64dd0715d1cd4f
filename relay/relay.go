package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/service/sqs"

	"github.com/daveham/FeaturesManager/apiclient"
	"github.com/daveham/FeaturesManager/oauth"
)

// API performs signed calls.
type API interface {
	Do(ctx context.Context, method, path string, data oauth.Data, successMessage string) (json.RawMessage, error)
}

// Sender forwards a result and deletes the input message.
type Sender interface {
	Send(ctx context.Context, msg *sqs.SendMessageInput, delmsg *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
}

// Relay turns queued Calls into signed API requests.
type Relay struct {
	API         API
	Queue       Sender
	InputQueue  string
	OutputQueue string
	Retries     int
	Logger      *slog.Logger

	// Wait sleeps before attempt n+1; defaults to WaitABit.
	Wait func(ctx context.Context, n int) error
	// OnRetryableError, when set, sees each 429/504 before the wait.
	OnRetryableError func(c *Call, attempt int, err error)
}

// RandMs (attempt) => round(2^(attempt-1)*64 + rand[1,101])
func RandMs(n int) int64 {
	ms := math.Pow(2, float64(n-1))*64 + float64(rand.IntN(101)+1)
	return int64(math.Round(ms))
}

// WaitABit sleeps RandMs(n) milliseconds or until ctx is done.
func WaitABit(ctx context.Context, n int) error {
	d := time.Duration(RandMs(n)) * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// retryable reports throttling and gateway timeouts.
func retryable(err error) (int, bool) {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == http.StatusGatewayTimeout
	}
	var terr *apiclient.TransportError
	if errors.As(err, &terr) {
		return terr.StatusCode, terr.StatusCode == http.StatusTooManyRequests || terr.StatusCode == http.StatusGatewayTimeout
	}
	return 0, false
}

// Send calls the API for c, retrying throttled and timed out attempts up to
// Retries times.
func (r *Relay) Send(ctx context.Context, c *Call) (*Result, error) {
	wait := r.Wait
	if wait == nil {
		wait = WaitABit
	}
	retries := r.Retries
	if retries <= 0 {
		retries = 1
	}
	log := r.logger().With(c.LogAttrs()...)

	res := &Result{ID: c.ID, Method: c.Method, Path: c.Path}
	var failed error
	for n := 1; n <= retries; n++ {
		res.Attempts = n
		body, err := r.API.Do(ctx, c.Method, c.Path, c.RequestData(), "")
		if err == nil {
			res.StatusCode = http.StatusOK
			res.Response = body
			return res, nil
		}
		failed = err
		status, again := retryable(err)
		res.StatusCode = status
		if !again {
			break
		}
		log.Warn("retryable response", "status", status, "attempt", n)
		if r.OnRetryableError != nil {
			r.OnRetryableError(c, n, err)
		}
		if n == retries {
			failed = fmt.Errorf("failed to complete %s %s after %d trys: %w", c.Method, c.Path, retries, err)
			break
		}
		if werr := wait(ctx, n); werr != nil {
			failed = werr
			break
		}
	}
	res.Error = failed.Error()
	return res, failed
}

// Handle sends c and, when the call succeeded, forwards the result and
// deletes the input message. Failed calls stay on the input queue.
func (r *Relay) Handle(ctx context.Context, c *Call) (*Result, error) {
	res, err := r.Send(ctx, c)
	if err != nil {
		r.logger().Error("call failed", append(c.LogAttrs(), "error", err)...)
		return res, err
	}

	msg, err := res.SqsMsg(r.OutputQueue)
	if err != nil {
		return res, err
	}
	if _, err := r.Queue.Send(ctx, msg, c.SqsDelMsg(r.InputQueue)); err != nil {
		return res, fmt.Errorf("forward result: %w", err)
	}
	r.logger().Info("call relayed", append(c.LogAttrs(), "attempts", res.Attempts)...)
	return res, nil
}
