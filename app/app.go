package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/daveham/FeaturesManager/apiclient"
	"github.com/daveham/FeaturesManager/authflow"
	"github.com/daveham/FeaturesManager/config"
	"github.com/daveham/FeaturesManager/logging"
	"github.com/daveham/FeaturesManager/storage"
)

// App holds the long-lived collaborators built once at startup.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     storage.Store
	Requester apiclient.Requester
	Flow      *authflow.Flow

	closers []func() error
}

// Option overrides a collaborator New would otherwise build.
type Option func(*App)

func WithStore(s storage.Store) Option { return func(a *App) { a.Store = s } }

func WithRequester(r apiclient.Requester) Option { return func(a *App) { a.Requester = r } }

func WithLogger(l *slog.Logger) Option { return func(a *App) { a.Logger = l } }

// New builds the application context from cfg.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	if a.Logger == nil {
		a.Logger = logging.New(logging.Config{
			Service: "featuresmanager",
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	if a.Store == nil {
		s, closer, err := OpenStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
		}
		a.Store = s
		if closer != nil {
			a.closers = append(a.closers, closer)
		}
	}

	if a.Requester == nil {
		client := apiclient.NewHTTPClient(apiclient.DefaultClientSettings(), cfg.HTTPTimeout)
		a.Requester = apiclient.NewHTTPRequester(client, cfg.RelayRatePerSec)
	}

	flow, err := authflow.New(authflow.Config{
		Endpoint:                   cfg.Endpoint(),
		OAuth:                      cfg.OAuth(),
		Requester:                  a.Requester,
		Store:                      a.Store,
		Logger:                     a.Logger,
		Consumer:                   cfg.Consumer(),
		PersistConsumerCredentials: cfg.PersistConsumerCredentials,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Flow = flow
	return a, nil
}

// OpenStore opens the storage driver cfg names. The returned closer may be nil.
func OpenStore(cfg config.Config) (storage.Store, func() error, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemory(), nil, nil
	case config.DriverSSM:
		s, err := storage.NewSSM(cfg.AWSRegion, cfg.SSMPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case config.DriverSQLite, "":
		s, err := storage.OpenSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// APIClient loads persisted credentials when needed and returns a signing
// client for the v2 API.
func (a *App) APIClient(ctx context.Context) (*apiclient.Client, error) {
	if a.Flow.State() != authflow.Authenticated {
		if _, err := a.Flow.LoadPersisted(ctx); err != nil {
			a.Logger.Error("loading persisted credentials", "error", err)
		}
	}
	return a.Flow.Client(a.Requester, a.Config.APIOrigin)
}

// Close releases resources opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}
