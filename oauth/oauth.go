package oauth

import (
	"encoding/json"
	"strings"
)

const (
	AuthorizationHeader = "Authorization"
	authorizationPrefix = "OAuth " // trailing space is intentional

	ConsumerKeyParam     = "oauth_consumer_key"
	NonceParam           = "oauth_nonce"
	SignatureParam       = "oauth_signature"
	SignatureMethodParam = "oauth_signature_method"
	TimestampParam       = "oauth_timestamp"
	TokenParam           = "oauth_token"
	TokenSecretParam     = "oauth_token_secret"
	VersionParam         = "oauth_version"
	CallbackParam        = "oauth_callback"
	CallbackConfirmed    = "oauth_callback_confirmed"
	VerifierParam        = "oauth_verifier"
	BodyHashParam        = "oauth_body_hash"
	realmParam           = "realm"
	oauthPrefix          = "oauth_"

	DefaultVersion            = "1.0"
	DefaultNonceLength        = 32
	DefaultParameterSeparator = ", "
)

// Consumer is the client application's key and secret.
type Consumer struct {
	Key    string
	Secret string
}

// Token is a token key and secret used to sign a request. Request tokens and
// access tokens are both signed with it.
type Token struct {
	Key    string
	Secret string
}

// Params is an OAuth parameter set.
type Params map[string]string

// Header is the result of serializing Params.
type Header struct {
	Authorization string
}

// Config enumerates every Authorizer option. Zero values select the
// documented default.
type Config struct {
	// Consumer is required.
	Consumer *Consumer
	// SignatureMethod defaults to the Signer's name, or PLAINTEXT when no
	// Signer is set. Any method other than PLAINTEXT needs a Signer.
	SignatureMethod string
	// Signer computes oauth_signature.
	Signer Signer
	// BodyHasher computes oauth_body_hash (defaults to Signer).
	BodyHasher Signer
	// NonceLength defaults to 32; negative values are rejected.
	NonceLength int
	// Version defaults to "1.0".
	Version string
	// ParameterSeparator defaults to ", ".
	ParameterSeparator string
	// Realm, when set, prefixes the header.
	Realm string
	// OmitLastAmpersand drops the trailing "&" of the signing key when there
	// is no token secret.
	OmitLastAmpersand bool
	// Noncer defaults to AlphanumericNoncer.
	Noncer Noncer
	// Clock defaults to the wall clock.
	Clock Clock
}

// Authorizer builds signed OAuth parameter sets. It holds no mutable state and
// is safe for concurrent use.
type Authorizer struct {
	consumer        Consumer
	signatureMethod string
	signer          Signer
	bodyHasher      Signer
	nonceLength     int
	version         string
	separator       string
	realm           string
	lastAmpersand   bool
	noncer          Noncer
	clock           Clock
}

// New validates cfg and returns an Authorizer.
func New(cfg Config) (*Authorizer, error) {
	if cfg.Consumer == nil {
		return nil, &ConfigurationError{Field: "Consumer", Reason: "consumer must be defined"}
	}
	if cfg.NonceLength < 0 {
		return nil, &ConfigurationError{Field: "NonceLength", Reason: "nonce length must not be negative"}
	}
	a := &Authorizer{
		consumer:        *cfg.Consumer,
		signatureMethod: cfg.SignatureMethod,
		signer:          cfg.Signer,
		bodyHasher:      cfg.BodyHasher,
		nonceLength:     cfg.NonceLength,
		version:         cfg.Version,
		separator:       cfg.ParameterSeparator,
		realm:           cfg.Realm,
		lastAmpersand:   !cfg.OmitLastAmpersand,
		noncer:          cfg.Noncer,
		clock:           cfg.Clock,
	}
	if a.signer == nil {
		if a.signatureMethod != "" && a.signatureMethod != MethodPlaintext {
			return nil, &ConfigurationError{Field: "Signer", Reason: "signer must be defined for " + a.signatureMethod}
		}
		a.signer = PlaintextSigner{}
	}
	if a.signatureMethod == "" {
		a.signatureMethod = a.signer.Name()
	}
	if a.bodyHasher == nil {
		a.bodyHasher = a.signer
	}
	if a.nonceLength == 0 {
		a.nonceLength = DefaultNonceLength
	}
	if a.version == "" {
		a.version = DefaultVersion
	}
	if a.separator == "" {
		a.separator = DefaultParameterSeparator
	}
	if a.noncer == nil {
		a.noncer = AlphanumericNoncer{}
	}
	if a.clock == nil {
		a.clock = ClockFunc(timeNow)
	}
	return a, nil
}

// MustNew is like New but panics on a configuration error.
func MustNew(cfg Config) *Authorizer {
	a, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return a
}

// Consumer returns the consumer credentials the Authorizer signs with.
func (a *Authorizer) Consumer() Consumer { return a.consumer }

// SignatureMethod returns the oauth_signature_method value.
func (a *Authorizer) SignatureMethod() string { return a.signatureMethod }

// Authorize returns the OAuth parameter set for req, including a fresh nonce,
// timestamp and the signature. token may be nil.
func (a *Authorizer) Authorize(req Request, token *Token) (Params, error) {
	params := Params{
		ConsumerKeyParam:     a.consumer.Key,
		NonceParam:           a.noncer.Nonce(a.nonceLength),
		SignatureMethodParam: a.signatureMethod,
		TimestampParam:       timestamp(a.clock),
		VersionParam:         a.version,
	}
	var secret string
	if token != nil {
		if token.Key != "" {
			params[TokenParam] = token.Key
		}
		secret = token.Secret
	}
	if req.IncludeBodyHash {
		bodyHash, err := a.BodyHash(req, secret)
		if err != nil {
			return nil, err
		}
		params[BodyHashParam] = bodyHash
	}
	signature, err := a.Signature(req, secret, params)
	if err != nil {
		return nil, err
	}
	params[SignatureParam] = signature
	return params, nil
}

// BodyHash hashes the request body (Body, or Data as JSON) with the body
// hasher keyed by the signing key.
func (a *Authorizer) BodyHash(req Request, tokenSecret string) (string, error) {
	body := req.Body
	if body == "" {
		data := req.Data
		if data == nil {
			data = Data{}
		}
		b, err := json.Marshal(data)
		if err != nil {
			return "", err
		}
		body = string(b)
	}
	return a.bodyHasher.Sign(a.SigningKey(tokenSecret), body)
}

// Signature signs the base string of req and params.
func (a *Authorizer) Signature(req Request, tokenSecret string, params Params) (string, error) {
	return a.signer.Sign(a.SigningKey(tokenSecret), GetBaseString(req, params))
}

// SigningKey derives the signing key from the consumer secret and tokenSecret.
func (a *Authorizer) SigningKey(tokenSecret string) string {
	encodedConsumerSecret := PercentEncode(a.consumer.Secret)
	if tokenSecret == "" && !a.lastAmpersand {
		return encodedConsumerSecret
	}
	return encodedConsumerSecret + "&" + PercentEncode(tokenSecret)
}

// ToHeader formats the oauth_ entries of params and extras as an
// Authorization header value: sorted, percent encoded, key="value" pairs
// joined by the parameter separator, optionally preceded by the realm.
func (a *Authorizer) ToHeader(params Params, extras Params) Header {
	merged := make(Params, len(params)+len(extras))
	for key, value := range params {
		merged[key] = value
	}
	for key, value := range extras {
		merged[key] = value
	}

	var parts []string
	if a.realm != "" {
		parts = append(parts, realmParam+`="`+a.realm+`"`)
	}
	for _, p := range SortObjectProperties(merged) {
		if !strings.HasPrefix(p.Key, oauthPrefix) {
			continue
		}
		parts = append(parts, PercentEncode(p.Key)+`="`+EncodeValue(p.Value)+`"`)
	}
	return Header{Authorization: authorizationPrefix + strings.Join(parts, a.separator)}
}

// AuthorizeHeader signs req and returns the Authorization header value.
func (a *Authorizer) AuthorizeHeader(req Request, token *Token, extras Params) (string, error) {
	params, err := a.Authorize(req, token)
	if err != nil {
		return "", err
	}
	return a.ToHeader(params, extras).Authorization, nil
}
