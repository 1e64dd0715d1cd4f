package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daveham/FeaturesManager/oauth"
)

type fakeRequester struct {
	result Result
	err    error

	method, url string
	data        oauth.Data
	headers     map[string]string
}

func (f *fakeRequester) Request(_ context.Context, method, url string, data oauth.Data, headers map[string]string) (Result, error) {
	f.method, f.url, f.data, f.headers = method, url, data, headers
	return f.result, f.err
}

func TestHTTPRequester(t *testing.T) {
	var gotBody, gotType, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotType = r.Header.Get("Content-Type")
		gotAccept = r.Header.Get("Accept")
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, "oauth_token=t")
		case "/bad":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"Code":401,"Message":"Unauthorized"}`)
		case "/empty":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	r := NewHTTPRequester(srv.Client(), 0)
	ctx := context.Background()

	res, err := r.Request(ctx, http.MethodPost, srv.URL+"/ok", oauth.Data{"oauth_callback": "oob"}, map[string]string{"Accept": "application/json"})
	require.NoError(t, err)
	require.Equal(t, Result{StatusCode: http.StatusOK, Body: "oauth_token=t"}, res)
	require.Equal(t, "oauth_callback=oob", gotBody)
	require.Equal(t, "application/x-www-form-urlencoded", gotType)
	require.Equal(t, "application/json", gotAccept)

	// GET data rides in the signed header only
	_, err = r.Request(ctx, http.MethodGet, srv.URL+"/ok", oauth.Data{"oauth_verifier": "123"}, nil)
	require.NoError(t, err)
	require.Empty(t, gotBody)

	res, err = r.Request(ctx, http.MethodGet, srv.URL+"/bad", nil, nil)
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, err = r.Request(ctx, http.MethodGet, srv.URL+"/empty", nil, nil)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, http.StatusBadGateway, terr.StatusCode)
}

func TestHTTPRequester_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRequester(nil, 0).Request(context.Background(), http.MethodGet, url, nil, nil)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	require.Zero(t, terr.StatusCode)
}

func TestHTTPRequester_RateLimitHonoursContext(t *testing.T) {
	r := NewHTTPRequester(nil, 0.001)
	// consume the single burst token
	require.True(t, r.Limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Request(ctx, http.MethodGet, "http://127.0.0.1:1", nil, nil)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
}

func TestEncodeForm(t *testing.T) {
	got := EncodeForm(oauth.Data{"b": []string{"2", "1"}, "a": "x y", "n": 3})
	require.Equal(t, "a=x+y&b=2&b=1&n=3", got)
}

func TestCall(t *testing.T) {
	ctx := context.Background()

	t.Run("success decodes json", func(t *testing.T) {
		var notes []Notification
		r := &fakeRequester{result: Result{StatusCode: 200, Body: `{"a":1}`}}
		got, err := Call(ctx, r, "GET", "u", nil, nil, Options[map[string]int]{
			SuccessMessage: "done",
			Notify:         func(n Notification) { notes = append(notes, n) },
		})
		require.NoError(t, err)
		require.Equal(t, map[string]int{"a": 1}, got)
		require.Equal(t, []Notification{{Text: "done"}}, notes)
	})

	t.Run("string receives raw body", func(t *testing.T) {
		r := &fakeRequester{result: Result{StatusCode: 200, Body: "oauth_token=x"}}
		got, err := Call(ctx, r, "GET", "u", nil, nil, Options[string]{})
		require.NoError(t, err)
		require.Equal(t, "oauth_token=x", got)
	})

	t.Run("error response uses transform", func(t *testing.T) {
		var notes []Notification
		r := &fakeRequester{result: Result{StatusCode: 401, Body: `{"Code":401,"Message":"Unauthorized"}`, IsError: true}}
		_, err := Call(ctx, r, "GET", "u", nil, nil, Options[string]{
			ControlledErrorTransform: SmugMugErrorMessage,
			Notify:                   func(n Notification) { notes = append(notes, n) },
		})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "Error: Unauthorized 401", apiErr.Message)
		require.Equal(t, 401, apiErr.StatusCode)
		require.Equal(t, []Notification{{Text: "Error: Unauthorized 401", Error: true}}, notes)
	})

	t.Run("error response default message", func(t *testing.T) {
		r := &fakeRequester{result: Result{StatusCode: 400, Body: "oauth_problem=signature_invalid", IsError: true}}
		_, err := Call(ctx, r, "GET", "u", nil, nil, Options[string]{ControlledErrorTransform: SmugMugErrorMessage})
		require.EqualError(t, err, DefaultErrorMessage)
	})

	t.Run("transport failure", func(t *testing.T) {
		var notes []Notification
		cause := errors.New("dial tcp: refused")
		r := &fakeRequester{err: cause}
		_, err := Call(ctx, r, "GET", "u", nil, nil, Options[string]{
			ErrorMessage: "Could not reach SmugMug",
			Notify:       func(n Notification) { notes = append(notes, n) },
		})
		var terr *TransportError
		require.True(t, errors.As(err, &terr))
		require.ErrorIs(t, err, cause)
		require.Equal(t, []Notification{{Text: "Could not reach SmugMug", Error: true}}, notes)
	})

	t.Run("success transform failure", func(t *testing.T) {
		r := &fakeRequester{result: Result{StatusCode: 200, Body: "not json"}}
		_, err := Call(ctx, r, "GET", "u", nil, nil, Options[map[string]any]{})
		require.Error(t, err)
	})
}

func TestSmugMugErrorMessage(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"with uri", `{"Code":404,"Message":"Not Found","Response":{"UriDescription":"Node","EndpointType":"Node"}}`, "Query for Node Node Not Found (404)"},
		{"plain", `{"Code":401,"Message":"Unauthorized"}`, "Error: Unauthorized 401"},
		{"no code", `{"Message":"x"}`, ""},
		{"not json", "oauth_problem=x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, SmugMugErrorMessage(tt.body))
		})
	}
}

func testClient(r Requester) *Client {
	return &Client{
		Requester: r,
		Authorizer: oauth.MustNew(oauth.Config{
			Consumer: &oauth.Consumer{Key: "ck", Secret: "cs"},
			Signer:   oauth.NewHMACSHA1Signer(),
			Noncer:   oauth.StaticNoncer("n"),
			Clock:    oauth.FixedClock(1),
		}),
		Token:     &oauth.Token{Key: "at", Secret: "as"},
		APIOrigin: "https://api.test/",
	}
}

func TestClient_PrepareAuthRequest(t *testing.T) {
	c := testClient(nil)

	p, err := c.PrepareAuthRequest("", "!authuser", nil)
	require.NoError(t, err)
	require.Equal(t, "GET", p.Method)
	require.Equal(t, "https://api.test/api/v2!authuser", p.URL)
	require.Equal(t, "application/json", p.Headers["Accept"])
	require.True(t, strings.HasPrefix(p.Headers[oauth.AuthorizationHeader], "OAuth "))
	require.Contains(t, p.Headers[oauth.AuthorizationHeader], `oauth_token="at"`)

	p, err = c.PrepareAuthRequest("GET", "/api/v2/node/abc?_config=x", nil)
	require.NoError(t, err)
	require.Equal(t, "https://api.test/api/v2/node/abc?_config=x", p.URL)

	p, err = c.PrepareAuthRequest("GET", "/user/cmac", nil)
	require.NoError(t, err)
	require.Equal(t, "https://api.test/api/v2/user/cmac", p.URL)

	c.Token = nil
	_, err = c.PrepareAuthRequest("GET", "/user/cmac", nil)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestClient_GetAndAuthUser(t *testing.T) {
	r := &fakeRequester{result: Result{StatusCode: 200, Body: `{"Response":{"User":{"NickName":"cmac"}}}`}}
	c := testClient(r)

	raw, err := c.Get(context.Background(), "/user/cmac")
	require.NoError(t, err)
	require.True(t, json.Valid(raw))
	require.Equal(t, "GET", r.method)
	require.Equal(t, "https://api.test/api/v2/user/cmac", r.url)

	user, err := c.AuthUser(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cmac", user["NickName"])

	r.result = Result{StatusCode: 200, Body: `{"Response":{}}`}
	_, err = c.AuthUser(context.Background())
	require.Error(t, err)
}

func TestClient_PostSignsData(t *testing.T) {
	r := &fakeRequester{result: Result{StatusCode: 201, Body: `{}`}}
	c := testClient(r)

	_, err := c.Post(context.Background(), "/album/x!images", oauth.Data{"Title": "t"})
	require.NoError(t, err)
	require.Equal(t, oauth.Data{"Title": "t"}, r.data)

	want, err := c.Authorizer.AuthorizeHeader(oauth.Request{Method: "POST", URL: r.url, Data: oauth.Data{"Title": "t"}}, c.Token, nil)
	require.NoError(t, err)
	require.Equal(t, want, r.headers[oauth.AuthorizationHeader])
}

// authParams parses an OAuth Authorization header value.
func authParams(t *testing.T, header string) oauth.Params {
	t.Helper()
	require.True(t, strings.HasPrefix(header, "OAuth "))
	params := oauth.Params{}
	for _, part := range strings.Split(strings.TrimPrefix(header, "OAuth "), ", ") {
		key, quoted, ok := strings.Cut(part, "=")
		require.True(t, ok, part)
		value, err := url.PathUnescape(strings.Trim(quoted, `"`))
		require.NoError(t, err)
		params[key] = value
	}
	return params
}

func TestClient_SignatureVerifiesOnServer(t *testing.T) {
	type received struct {
		method, base, auth string
		form               url.Values
	}
	var got received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = received{
			method: r.Method,
			base:   "http://" + r.Host + r.URL.Path,
			auth:   r.Header.Get(oauth.AuthorizationHeader),
			form:   r.Form,
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := testClient(NewHTTPRequester(srv.Client(), 0))
	c.APIOrigin = srv.URL

	// what a server rebuilds from the request it actually received
	verify := func(t *testing.T) {
		t.Helper()
		params := authParams(t, got.auth)
		sig := params[oauth.SignatureParam]
		delete(params, oauth.SignatureParam)

		data := oauth.Data{}
		for k, v := range got.form {
			data[k] = v[0]
		}
		want, err := c.Authorizer.Signature(oauth.Request{Method: got.method, URL: got.base, Data: data}, c.Token.Secret, params)
		require.NoError(t, err)
		require.Equal(t, want, sig)
	}

	tests := []struct {
		name   string
		method string
		path   string
		data   oauth.Data
		want   url.Values
	}{
		{"get with query data", http.MethodGet, "/user/x", oauth.Data{"count": "5", "q": "a b"},
			url.Values{"count": {"5"}, "q": {"a b"}}},
		{"get joins existing query", http.MethodGet, "/user/x?_verbosity=1", oauth.Data{"count": 2},
			url.Values{"_verbosity": {"1"}, "count": {"2"}}},
		{"post form body", http.MethodPost, "/album/x!images", oauth.Data{"Title": "hello world+1"},
			url.Values{"Title": {"hello world+1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Do(context.Background(), tt.method, tt.path, tt.data, "")
			require.NoError(t, err)
			require.Equal(t, tt.method, got.method)
			require.Equal(t, tt.want, got.form)
			verify(t)
		})
	}
}
