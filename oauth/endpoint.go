package oauth

import (
	"errors"
	"strings"
)

// SmugMug OAuth 1.0a and API locations.
const (
	SmugMugOAuthOrigin = "https://secure.smugmug.com"
	SmugMugAPIOrigin   = "https://api.smugmug.com"
	APIV2              = "/api/v2"
)

// OutOfBand is the oauth_callback value for PIN based verification.
const OutOfBand = "oob"

// Endpoint represents an OAuth1 provider's (server's) request token,
// owner authorization, and access token request URLs.
type Endpoint struct {
	// Request URL (Temporary Credential Request URI)
	RequestTokenURL string
	// Authorize URL (Resource Owner Authorization URI)
	AuthorizeURL string
	// Access Token URL (Token Request URI)
	AccessTokenURL string
	// AuthorizeParams are added next to oauth_token on the authorize URL.
	AuthorizeParams map[string]string
}

// SmugMugEndpoint returns the endpoint rooted at origin, or at
// SmugMugOAuthOrigin when origin is empty.
func SmugMugEndpoint(origin string) Endpoint {
	if origin == "" {
		origin = SmugMugOAuthOrigin
	}
	origin = strings.TrimRight(origin, "/")
	return Endpoint{
		RequestTokenURL: origin + "/services/oauth/1.0a/getRequestToken",
		AuthorizeURL:    origin + "/services/oauth/1.0a/authorize",
		AccessTokenURL:  origin + "/services/oauth/1.0a/getAccessToken",
		AuthorizeParams: map[string]string{
			"access":      "Full",
			"permissions": "Modify",
		},
	}
}

// AuthorizationURL returns the page the user visits to approve requestToken.
// Parameters are percent encoded and sorted by key, e.g.
// {authorize}?access=Full&oauth_token=...&permissions=Modify.
func (e Endpoint) AuthorizationURL(requestToken string) string {
	params := make(map[string]string, len(e.AuthorizeParams)+1)
	for key, value := range e.AuthorizeParams {
		params[PercentEncode(key)] = PercentEncode(value)
	}
	params[TokenParam] = PercentEncode(requestToken)
	return e.AuthorizeURL + "?" + GetDataAsParameterString(SortObjectProperties(params))
}

// RequestToken is the temporary credential returned by the first leg.
type RequestToken struct {
	Token             string
	TokenSecret       string
	CallbackConfirmed bool
}

// AccessToken is the token credential returned by the last leg.
type AccessToken struct {
	Token       string
	TokenSecret string
}

// AsToken returns the request token as signing material.
func (t RequestToken) AsToken() *Token {
	return &Token{Key: t.Token, Secret: t.TokenSecret}
}

// AsToken returns the access token as signing material.
func (t AccessToken) AsToken() *Token {
	return &Token{Key: t.Token, Secret: t.TokenSecret}
}

// ErrMissingToken is returned when a token response lacks the token or secret.
var ErrMissingToken = errors.New("oauth: response missing oauth_token or oauth_token_secret")

// ParseRequestToken decodes a form encoded request token response.
func ParseRequestToken(body string) (RequestToken, error) {
	values := ConvertQueryStringToObject(body)
	t := RequestToken{
		Token:             first(values[TokenParam]),
		TokenSecret:       first(values[TokenSecretParam]),
		CallbackConfirmed: first(values[CallbackConfirmed]) == "true",
	}
	if t.Token == "" || t.TokenSecret == "" {
		return RequestToken{}, ErrMissingToken
	}
	return t, nil
}

// ParseAccessToken decodes a form encoded access token response.
func ParseAccessToken(body string) (AccessToken, error) {
	values := ConvertQueryStringToObject(body)
	t := AccessToken{
		Token:       first(values[TokenParam]),
		TokenSecret: first(values[TokenSecretParam]),
	}
	if t.Token == "" || t.TokenSecret == "" {
		return AccessToken{}, ErrMissingToken
	}
	return t, nil
}

func first(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []string:
		if len(t) == 0 {
			return ""
		}
		return t[0]
	default:
		return Stringify(t)
	}
}
