package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/daveham/FeaturesManager/oauth"
)

// Result is a completed HTTP exchange. IsError marks a non-2xx response that
// carried a body; callers extract a message from it.
type Result struct {
	StatusCode int
	Body       string
	IsError    bool
}

// Requester performs one HTTP request. A failure that produced no usable
// response is returned as an error.
type Requester interface {
	Request(ctx context.Context, method, url string, data oauth.Data, headers map[string]string) (Result, error)
}

// HTTPRequester is the net/http Requester. Data is sent form encoded on
// methods that carry a body and is otherwise left to the signed header.
type HTTPRequester struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPRequester returns a requester limited to perSec requests per second.
// A non-positive perSec disables the limit.
func NewHTTPRequester(client *http.Client, perSec float64) *HTTPRequester {
	r := &HTTPRequester{Client: client}
	if perSec > 0 {
		r.Limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
	return r
}

func (r *HTTPRequester) client() *http.Client {
	if r.Client == nil {
		return http.DefaultClient
	}
	return r.Client
}

func (r *HTTPRequester) Request(ctx context.Context, method, rawURL string, data oauth.Data, headers map[string]string) (Result, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return Result{}, &TransportError{Err: err}
		}
	}

	var body io.Reader
	form := hasBody(method) && len(data) > 0
	if form {
		body = strings.NewReader(EncodeForm(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	if form {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client().Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	res := Result{StatusCode: resp.StatusCode, Body: string(b)}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(b) == 0 {
			return Result{}, &TransportError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s %s: %s", method, rawURL, resp.Status),
			}
		}
		res.IsError = true
	}
	return res, nil
}

func hasBody(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// EncodeForm serializes data as a form body. Sequence members repeat the key.
func EncodeForm(data oauth.Data) string {
	values := url.Values{}
	for k, v := range data {
		switch s := v.(type) {
		case []string:
			values[k] = append(values[k], s...)
		case []any:
			for _, item := range s {
				values.Add(k, oauth.Stringify(item))
			}
		default:
			values.Set(k, oauth.Stringify(v))
		}
	}
	return values.Encode()
}
