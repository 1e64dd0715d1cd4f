package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/daveham/FeaturesManager/oauth"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverSSM    = "ssm"
	DriverMemory = "memory"
)

// Config is read from the environment.
type Config struct {
	//A value used by the Consumer to identify itself to the Service Provider.
	ConsumerKey string `env:"SMUGMUG_API_KEY"`
	//A secret used by the Consumer to establish ownership of the Consumer Key.
	ConsumerSecret string `env:"SMUGMUG_API_SECRET"`

	OAuthOrigin     string `env:"SMUGMUG_OAUTH_ORIGIN" envDefault:"https://secure.smugmug.com"`
	APIOrigin       string `env:"SMUGMUG_API_ORIGIN" envDefault:"https://api.smugmug.com"`
	NonceLength     int    `env:"OAUTH_NONCE_LENGTH" envDefault:"32"`
	SignatureMethod string `env:"OAUTH_SIGNATURE_METHOD" envDefault:"HMAC-SHA1"`

	// PersistConsumerCredentials stores the consumer key and secret next to
	// the access token so a restart can resume without re-entry.
	PersistConsumerCredentials bool `env:"PERSIST_CONSUMER_CREDENTIALS" envDefault:"true"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLiteDSN     string `env:"STORAGE_SQLITE_DSN" envDefault:"featuresmanager.db"`
	SSMPrefix     string `env:"STORAGE_SSM_PREFIX" envDefault:"featuresmanager"`
	AWSRegion     string `env:"AWS_REGION" envDefault:"us-east-1"`

	// InputQueue is the SQS url the relay consumes; OutputQueue receives results.
	InputQueue  string `env:"INPUT_QUEUE"`
	OutputQueue string `env:"OUTPUT_QUEUE"`

	RelayRetries    int           `env:"RELAY_RETRIES" envDefault:"5"`
	RelayRatePerSec float64       `env:"RELAY_RATE_PER_SEC" envDefault:"4"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"65s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Env       string `env:"ENV" envDefault:"prod"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings no component could run with.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverSQLite, DriverSSM, DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if oauth.SignerFor(c.SignatureMethod) == nil {
		return fmt.Errorf("config: unsupported OAUTH_SIGNATURE_METHOD %q", c.SignatureMethod)
	}
	if c.NonceLength <= 0 {
		return fmt.Errorf("config: OAUTH_NONCE_LENGTH must be positive, got %d", c.NonceLength)
	}
	if c.RelayRetries <= 0 {
		return fmt.Errorf("config: RELAY_RETRIES must be positive, got %d", c.RelayRetries)
	}
	return nil
}

// Consumer returns the configured consumer credentials, or nil when no key is set.
func (c Config) Consumer() *oauth.Consumer {
	if c.ConsumerKey == "" {
		return nil
	}
	return &oauth.Consumer{Key: c.ConsumerKey, Secret: c.ConsumerSecret}
}

// OAuth returns the signing options. Consumer is nil when none is configured;
// the handshake fills it in from user input.
func (c Config) OAuth() oauth.Config {
	return oauth.Config{
		Consumer:        c.Consumer(),
		SignatureMethod: c.SignatureMethod,
		Signer:          oauth.SignerFor(c.SignatureMethod),
		NonceLength:     c.NonceLength,
		Version:         oauth.DefaultVersion,
	}
}

// Endpoint returns the provider's handshake URLs.
func (c Config) Endpoint() oauth.Endpoint {
	return oauth.SmugMugEndpoint(c.OAuthOrigin)
}
