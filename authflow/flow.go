package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/daveham/FeaturesManager/apiclient"
	"github.com/daveham/FeaturesManager/oauth"
	"github.com/daveham/FeaturesManager/storage"
)

// Config wires a Flow to its collaborators.
type Config struct {
	// Endpoint defaults to oauth.SmugMugEndpoint("").
	Endpoint oauth.Endpoint
	// OAuth is the signing template; Consumer is replaced per step.
	OAuth     oauth.Config
	Requester apiclient.Requester
	Store     storage.Store
	Logger    *slog.Logger

	// Consumer is used by LoadPersisted when storage holds no consumer
	// credentials.
	Consumer *oauth.Consumer
	// PersistConsumerCredentials writes the consumer key and secret after a
	// request token is obtained.
	PersistConsumerCredentials bool

	// OnTransition is called, without the flow lock held, after each change
	// of State.
	OnTransition func(from, to State)
}

// Flow runs the three-legged OAuth 1.0a handshake. Methods are safe for
// concurrent use; only one step runs at a time.
type Flow struct {
	cfg    Config
	logger *slog.Logger

	mu               sync.Mutex
	inFlight         bool
	state            State
	consumer         *oauth.Consumer
	requestToken     DataState[oauth.RequestToken]
	authorizationURL DataState[string]
	accessToken      DataState[oauth.AccessToken]
	persisted        Persisted
}

// New returns a Flow in the Unauthenticated state.
func New(cfg Config) (*Flow, error) {
	if cfg.Requester == nil {
		return nil, &oauth.ConfigurationError{Field: "Requester", Reason: "required"}
	}
	if cfg.Store == nil {
		return nil, &oauth.ConfigurationError{Field: "Store", Reason: "required"}
	}
	if cfg.Endpoint.RequestTokenURL == "" {
		cfg.Endpoint = oauth.SmugMugEndpoint("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{cfg: cfg, logger: logger.With("component", "authflow")}, nil
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Flow) snapshotLocked() Snapshot {
	s := Snapshot{
		State:            f.state,
		RequestToken:     f.requestToken,
		AuthorizationURL: f.authorizationURL,
		AccessToken:      f.accessToken,
		Persisted:        f.persisted,
	}
	if f.consumer != nil {
		c := *f.consumer
		s.Consumer = &c
	}
	return s
}

// claim takes the single step slot and returns the current state.
func (f *Flow) claim() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return 0, ErrStepInFlight
	}
	f.inFlight = true
	return f.state, nil
}

// begin claims the step slot and moves to pending, returning the state to
// restore on failure.
func (f *Flow) begin(pending State) (State, error) {
	prev, err := f.claim()
	if err != nil {
		return 0, err
	}
	f.mu.Lock()
	f.state = pending
	f.mu.Unlock()

	f.transitioned(prev, pending)
	return prev, nil
}

// end releases the step slot after moving to next.
func (f *Flow) end(next State) Snapshot {
	f.mu.Lock()
	prev := f.state
	f.state = next
	f.inFlight = false
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.transitioned(prev, next)
	return snap
}

func (f *Flow) transitioned(from, to State) {
	if from == to {
		return
	}
	f.logger.Debug("state transition", "from", from.String(), "to", to.String())
	if f.cfg.OnTransition != nil {
		f.cfg.OnTransition(from, to)
	}
}

func (f *Flow) authorizer(c *oauth.Consumer) (*oauth.Authorizer, error) {
	cfg := f.cfg.OAuth
	cfg.Consumer = c
	if cfg.Signer == nil && cfg.SignatureMethod == "" {
		cfg.Signer = oauth.NewHMACSHA1Signer()
	}
	return oauth.New(cfg)
}

// exchange signs and sends one handshake request and returns the form body.
func (f *Flow) exchange(ctx context.Context, a *oauth.Authorizer, method, url string, token *oauth.Token, extra oauth.Params) (string, error) {
	data := oauth.Data{}
	for k, v := range extra {
		data[k] = v
	}
	auth, err := a.AuthorizeHeader(oauth.Request{Method: method, URL: url, Data: data}, token, extra)
	if err != nil {
		return "", err
	}
	headers := map[string]string{
		oauth.AuthorizationHeader: auth,
		"Accept":                  "application/json",
	}
	return apiclient.Call(ctx, f.cfg.Requester, method, url, data, headers, apiclient.Options[string]{
		ControlledErrorTransform: HandshakeErrorMessage,
	})
}

// SubmitConsumerCredentials obtains a request token for key and secret and
// builds the authorization URL the user must visit. On failure the flow
// returns to its previous state with earlier data intact.
func (f *Flow) SubmitConsumerCredentials(ctx context.Context, key, secret string) (Snapshot, error) {
	if key == "" {
		return f.Snapshot(), &oauth.ConfigurationError{Field: "Consumer", Reason: "key is required"}
	}
	consumer := &oauth.Consumer{Key: key, Secret: secret}
	a, err := f.authorizer(consumer)
	if err != nil {
		return f.Snapshot(), err
	}

	prev, err := f.begin(RequestTokenPending)
	if err != nil {
		return f.Snapshot(), err
	}
	f.mu.Lock()
	oldToken, oldURL := f.requestToken, f.authorizationURL
	f.requestToken.request()
	f.authorizationURL.request()
	f.mu.Unlock()

	body, err := f.exchange(ctx, a, http.MethodPost, f.cfg.Endpoint.RequestTokenURL, nil,
		oauth.Params{oauth.CallbackParam: oauth.OutOfBand})
	var tok oauth.RequestToken
	if err == nil {
		tok, err = oauth.ParseRequestToken(body)
	}
	if err != nil {
		f.logger.Warn("request token failed", "error", err)
		f.mu.Lock()
		f.requestToken = failedFrom(oldToken, err)
		f.authorizationURL = failedFrom(oldURL, err)
		f.mu.Unlock()
		return f.end(prev), err
	}

	f.mu.Lock()
	f.consumer = consumer
	f.requestToken.succeed(tok)
	f.authorizationURL.succeed(f.cfg.Endpoint.AuthorizationURL(tok.Token))
	f.mu.Unlock()

	var perr error
	if f.cfg.PersistConsumerCredentials {
		perr = f.write(ctx,
			storage.KeyConsumerKey, key,
			storage.KeyConsumerSecret, secret)
	}
	return f.end(AwaitingVerification), perr
}

// SubmitVerifierPin exchanges the held request token and pin for an access
// token and persists it. A failed exchange returns to AwaitingVerification
// keeping the request token so the pin can be retried; a successful one
// discards the request token and authorization URL. A failed write does
// not undo Authenticated; its *storage.PersistenceError is returned with the
// snapshot.
func (f *Flow) SubmitVerifierPin(ctx context.Context, pin string) (Snapshot, error) {
	prev, err := f.claim()
	if err != nil {
		return f.Snapshot(), err
	}
	f.mu.Lock()
	consumer, tok := f.consumer, f.requestToken
	f.mu.Unlock()
	if consumer == nil || !tok.Ok() {
		return f.end(prev), ErrNoRequestToken
	}
	a, err := f.authorizer(consumer)
	if err != nil {
		return f.end(prev), err
	}

	f.mu.Lock()
	f.state = AccessTokenPending
	oldAccess := f.accessToken
	f.accessToken.request()
	f.mu.Unlock()
	f.transitioned(prev, AccessTokenPending)

	body, err := f.exchange(ctx, a, http.MethodGet, f.cfg.Endpoint.AccessTokenURL, tok.Data.AsToken(),
		oauth.Params{oauth.VerifierParam: pin})
	var access oauth.AccessToken
	if err == nil {
		access, err = oauth.ParseAccessToken(body)
	}
	if err != nil {
		f.logger.Warn("access token failed", "error", err)
		f.mu.Lock()
		f.accessToken = failedFrom(oldAccess, err)
		f.mu.Unlock()
		return f.end(prev), err
	}

	// the request token is spent once exchanged
	f.mu.Lock()
	f.accessToken.succeed(access)
	f.requestToken.reset()
	f.authorizationURL.reset()
	f.mu.Unlock()

	perr := f.write(ctx,
		storage.KeyAuthToken, access.Token,
		storage.KeyAuthTokenSecret, access.TokenSecret)
	return f.end(Authenticated), perr
}

// LoadPersisted reads stored credentials. Complete consumer and access token
// material moves the flow to Authenticated; anything less leaves the state
// alone and is reported in Snapshot.Persisted, never as an error. Read
// failures are returned as *storage.PersistenceError.
func (f *Flow) LoadPersisted(ctx context.Context) (Snapshot, error) {
	prev, err := f.claim()
	if err != nil {
		return f.Snapshot(), err
	}

	var p Persisted
	var errs []error
	for _, kv := range []struct {
		key string
		dst *string
	}{
		{storage.KeyAuthToken, &p.Token},
		{storage.KeyAuthTokenSecret, &p.TokenSecret},
		{storage.KeyConsumerKey, &p.ConsumerKey},
		{storage.KeyConsumerSecret, &p.ConsumerSecret},
	} {
		v, _, err := f.cfg.Store.Read(ctx, kv.key)
		if err != nil {
			errs = append(errs, f.persistenceError("read", kv.key, err))
			continue
		}
		*kv.dst = v
	}

	consumer := f.cfg.Consumer
	if p.hasConsumer() {
		consumer = &oauth.Consumer{Key: p.ConsumerKey, Secret: p.ConsumerSecret}
	}

	next := prev
	f.mu.Lock()
	f.persisted = p
	if consumer != nil {
		f.consumer = consumer
	}
	if p.hasToken() {
		f.accessToken.succeed(oauth.AccessToken{Token: p.Token, TokenSecret: p.TokenSecret})
		if f.consumer != nil {
			next = Authenticated
		}
	}
	f.mu.Unlock()

	f.logger.Debug("loaded persisted credentials",
		"has_consumer", consumer != nil, "has_token", p.hasToken())
	return f.end(next), errors.Join(errs...)
}

// Deauthorize forgets the access token and any handshake in progress and
// removes the stored token. Consumer credentials are kept.
func (f *Flow) Deauthorize(ctx context.Context) (Snapshot, error) {
	if _, err := f.begin(Unauthenticated); err != nil {
		return f.Snapshot(), err
	}

	f.mu.Lock()
	f.requestToken.reset()
	f.authorizationURL.reset()
	f.accessToken.reset()
	f.persisted.Token, f.persisted.TokenSecret = "", ""
	f.mu.Unlock()

	var errs []error
	for _, key := range []string{storage.KeyAuthToken, storage.KeyAuthTokenSecret} {
		if err := storage.Remove(ctx, f.cfg.Store, key); err != nil {
			errs = append(errs, f.persistenceError("delete", key, err))
		}
	}
	return f.end(Unauthenticated), errors.Join(errs...)
}

// Client returns an API client signing with the held consumer and access
// token.
func (f *Flow) Client(r apiclient.Requester, apiOrigin string) (*apiclient.Client, error) {
	f.mu.Lock()
	state, consumer, access := f.state, f.consumer, f.accessToken
	f.mu.Unlock()
	if state != Authenticated || consumer == nil || !access.Ok() {
		return nil, ErrNotAuthenticated
	}
	a, err := f.authorizer(consumer)
	if err != nil {
		return nil, err
	}
	return &apiclient.Client{
		Requester:  r,
		Authorizer: a,
		Token:      access.Data.AsToken(),
		APIOrigin:  apiOrigin,
	}, nil
}

// write stores key/value pairs in order, attempting every pair.
func (f *Flow) write(ctx context.Context, kv ...string) error {
	var errs []error
	for i := 0; i+1 < len(kv); i += 2 {
		if err := f.cfg.Store.Write(ctx, kv[i], kv[i+1]); err != nil {
			errs = append(errs, f.persistenceError("write", kv[i], err))
		}
	}
	if len(errs) > 0 {
		f.logger.Error("credentials not persisted; re-authentication will be needed next launch",
			"error", errors.Join(errs...))
	}
	return errors.Join(errs...)
}

func (f *Flow) persistenceError(op, key string, err error) error {
	var perr *storage.PersistenceError
	if errors.As(err, &perr) {
		return perr
	}
	return &storage.PersistenceError{Op: op, Key: key, Err: err}
}

// HandshakeErrorMessage explains a failed token request from either a
// SmugMug JSON error or an oauth_problem form body.
func HandshakeErrorMessage(body string) string {
	if msg := apiclient.SmugMugErrorMessage(body); msg != "" {
		return msg
	}
	values := oauth.ConvertQueryStringToObject(body)
	if problem, ok := values["oauth_problem"].(string); ok && problem != "" {
		return fmt.Sprintf("OAuth problem: %s", problem)
	}
	return ""
}
