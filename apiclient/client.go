package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/daveham/FeaturesManager/oauth"
)

// ErrNoToken is returned when an authenticated call has no access token.
var ErrNoToken = errors.New("apiclient: no access token")

// Client makes signed calls against the SmugMug v2 API.
type Client struct {
	Requester  Requester
	Authorizer *oauth.Authorizer
	Token      *oauth.Token
	// APIOrigin defaults to oauth.SmugMugAPIOrigin.
	APIOrigin string
	// Notify, when set, receives call notifications.
	Notify func(Notification)
}

// PreparedRequest is a signed request ready for a Requester.
type PreparedRequest struct {
	Method string
	URL    string
	// Data is the form body; nil for methods that carry data in the query.
	Data    oauth.Data
	Headers map[string]string
}

func (c *Client) origin() string {
	if c.APIOrigin == "" {
		return oauth.SmugMugAPIOrigin
	}
	return strings.TrimRight(c.APIOrigin, "/")
}

// ResolveURL maps a path onto the API. Paths that already contain /api/v2
// (such as Uris returned by the API) are joined to the origin; anything else
// is relative to the v2 base.
func (c *Client) ResolveURL(path string) string {
	if strings.Contains(path, oauth.APIV2) {
		return c.origin() + path
	}
	return c.origin() + oauth.APIV2 + path
}

// PrepareAuthRequest signs method+path with the held consumer and access
// token. Data takes part in the signature: as the form body for methods that
// have one, otherwise appended to the URL query.
func (c *Client) PrepareAuthRequest(method, path string, data oauth.Data) (PreparedRequest, error) {
	if c.Token == nil || c.Token.Key == "" {
		return PreparedRequest{}, ErrNoToken
	}
	if method == "" {
		method = http.MethodGet
	}
	url := c.ResolveURL(path)
	if !hasBody(method) && len(data) > 0 {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + oauth.EncodeQuery(data)
		data = nil
	}
	auth, err := c.Authorizer.AuthorizeHeader(oauth.Request{Method: method, URL: url, Data: data}, c.Token, nil)
	if err != nil {
		return PreparedRequest{}, err
	}
	return PreparedRequest{
		Method: method,
		URL:    url,
		Data:   data,
		Headers: map[string]string{
			oauth.AuthorizationHeader: auth,
			"Accept":                  "application/json",
		},
	}, nil
}

// Do sends a signed request and returns the decoded JSON body.
func (c *Client) Do(ctx context.Context, method, path string, data oauth.Data, successMessage string) (json.RawMessage, error) {
	prepared, err := c.PrepareAuthRequest(method, path, data)
	if err != nil {
		return nil, err
	}
	return Call(ctx, c.Requester, prepared.Method, prepared.URL, prepared.Data, prepared.Headers, Options[json.RawMessage]{
		ControlledErrorTransform: SmugMugErrorMessage,
		SuccessMessage:           successMessage,
		Notify:                   c.Notify,
	})
}

func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "")
}

func (c *Client) Post(ctx context.Context, path string, data oauth.Data) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, data, "")
}

// AuthUser returns the Response.User object of !authuser.
func (c *Client) AuthUser(ctx context.Context) (map[string]any, error) {
	prepared, err := c.PrepareAuthRequest(http.MethodGet, "!authuser", nil)
	if err != nil {
		return nil, err
	}
	return Call(ctx, c.Requester, prepared.Method, prepared.URL, nil, prepared.Headers, Options[map[string]any]{
		SuccessTransform: func(body string) (map[string]any, error) {
			var payload struct {
				Response struct {
					User map[string]any `json:"User"`
				} `json:"Response"`
			}
			if err := json.Unmarshal([]byte(body), &payload); err != nil {
				return nil, err
			}
			if payload.Response.User == nil {
				return nil, fmt.Errorf("apiclient: !authuser response has no User")
			}
			return payload.Response.User, nil
		},
		ControlledErrorTransform: SmugMugErrorMessage,
		Notify:                   c.Notify,
	})
}

type smugMugError struct {
	Code     int    `json:"Code"`
	Message  string `json:"Message"`
	Response *struct {
		URIDescription string `json:"UriDescription"`
		EndpointType   string `json:"EndpointType"`
	} `json:"Response"`
}

// SmugMugErrorMessage extracts a message from a SmugMug error payload, or
// returns "" when the body has no Code and Message.
func SmugMugErrorMessage(body string) string {
	var e smugMugError
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return ""
	}
	if e.Code == 0 || e.Message == "" {
		return ""
	}
	if e.Response != nil && e.Response.URIDescription != "" {
		return fmt.Sprintf("Query for %s %s %s (%d)", e.Response.URIDescription, e.Response.EndpointType, e.Message, e.Code)
	}
	return fmt.Sprintf("Error: %s %d", e.Message, e.Code)
}
