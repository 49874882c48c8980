// Package app wires configuration, logging, the API client, the query cache
// and the session together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/logging"
	"github.com/docshelf/docshelf/pkg/client"
	"github.com/docshelf/docshelf/pkg/protocol"
	"github.com/docshelf/docshelf/pkg/query"
	"github.com/docshelf/docshelf/pkg/retry"
	"github.com/docshelf/docshelf/pkg/session"
	"github.com/docshelf/docshelf/pkg/store"
	"github.com/docshelf/docshelf/pkg/view"
)

// App holds the long-lived components of one process.
type App struct {
	Config  *config.Config
	Tokens  session.Store
	Client  *client.Client
	Cache   *query.Cache
	Store   *store.Store
	Session *session.Manager
	Format  view.Formatter
}

// Options overrides parts of the wiring. Zero values use the defaults.
type Options struct {
	Tokens    session.Store
	Transport http.RoundTripper
	Breaker   client.BreakerConfig
	Now       func() time.Time
}

// New builds an App from cfg. Logging must already be initialized.
func New(cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = session.NewFileStore(cfg.TokenPath())
	}

	rc := retry.DefaultConfig().WithAttempts(cfg.RetryAttempts)
	api := client.New(client.Config{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.Timeout,
		RetryConfig:   rc,
		Tokens:        tokens,
		Transport:     opts.Transport,
		Breaker:       opts.Breaker,
		MaxUploadSize: cfg.MaxUploadSize,
	})

	cache := query.New(query.Options{
		StaleTime:     cfg.StaleTime,
		KindStaleTime: store.StaleTimes(cfg.StaleTime, cfg.DocumentsStaleTime),
		Now:           opts.Now,
	})

	a := &App{
		Config: cfg,
		Tokens: tokens,
		Client: api,
		Cache:  cache,
		Store:  store.New(api, cache),
		Format: view.Formatter{Location: time.Local},
	}
	a.Session = session.NewManager(tokens, api, cache)

	logging.Debug("app initialized",
		zap.String("api_url", cfg.APIURL),
		zap.Duration("stale_time", cfg.StaleTime),
		zap.Duration("documents_stale_time", cfg.DocumentsStaleTime),
		zap.Int("retry_attempts", rc.MaxAttempts),
	)
	return a, nil
}

// Dashboard returns a dashboard over the app's store.
func (a *App) Dashboard() *view.Dashboard {
	return view.NewDashboard(a.Store, a.Format)
}

// CollectionsPage returns the collections page over the app's store.
func (a *App) CollectionsPage() *view.CollectionsPage {
	return view.NewCollectionsPage(a.Store, a.Format)
}

// RequireSession checks the stored session before a command that needs one.
// When verification could not reach the backend, a health check decides
// between a transient failure (checked once more) and a backend that is down.
func (a *App) RequireSession(ctx context.Context) (protocol.User, error) {
	user, err := a.Session.Check(ctx)
	if !errors.Is(err, session.ErrBackendUnreachable) {
		return user, err
	}
	if perr := a.Client.Ping(ctx); perr != nil {
		logging.Debug("health check failed", zap.String("api_url", a.Client.BaseURL()), zap.Error(perr))
		return user, err
	}
	logging.Debug("backend is up, verifying session again")
	return a.Session.Check(ctx)
}

// Close releases the cache and flushes logs.
func (a *App) Close() {
	a.Cache.Close()
	_ = logging.Sync()
}
