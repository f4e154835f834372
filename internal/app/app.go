package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/florianilch/moonctl/internal/httpclient"
	"github.com/florianilch/moonctl/internal/moon"
	"github.com/florianilch/moonctl/internal/observability"
	"github.com/florianilch/moonctl/internal/proxy"
	"github.com/florianilch/moonctl/internal/tokensource"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// App wires the session store, the authenticated client and the services
// of one connection, and runs the session proxy.
type App struct {
	cfg        *Config
	closeStore func() error

	client   *httpclient.Client
	moon     *moon.Client
	session  *Session
	registry *prometheus.Registry
}

// Option configures an App.
type Option func(*options)

type options struct {
	clientOpts []httpclient.Option
	store      tokenstore.TokenStore
	transport  http.RoundTripper
}

// WithTransport sets the transport for every request of the connection,
// including login and token refresh.
func WithTransport(transport http.RoundTripper) Option {
	return func(o *options) {
		o.transport = transport
	}
}

// WithClientOptions appends options to the authenticated client. Use
// WithTransport rather than httpclient.WithTransport so login and refresh
// share the transport.
func WithClientOptions(opts ...httpclient.Option) Option {
	return func(o *options) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// WithTokenStore replaces the store built from the auth configuration.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// New creates a new App instance. No network I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(o)
	}

	store, closeStore := o.store, func() error { return nil }
	if store == nil {
		var err error
		store, closeStore, err = cfg.Auth.NewTokenStore(cfg.Connection.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
	}

	source, err := tokensource.New(cfg.Connection.BaseURL,
		tokensource.WithTransport(o.transport),
		tokensource.WithTimeout(cfg.Connection.Timeout),
	)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create token source: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	connection := cfg.Connection.Name
	clientOpts := []httpclient.Option{
		httpclient.WithTransport(o.transport),
		httpclient.WithRefresher(source),
		httpclient.WithTimeout(cfg.Connection.Timeout),
		httpclient.WithRetryPolicy(cfg.Retry.Policy()),
		httpclient.WithObserver(observability.NewClientMetrics(registry)),
		httpclient.WithSessionExpired(func() {
			slog.Warn("session expired, run `moonctl auth login` to sign in again", "connection", connection)
		}),
	}
	if cfg.Retry.IdempotentReplayOnly {
		clientOpts = append(clientOpts, httpclient.WithIdempotentReplayOnly())
	}
	clientOpts = append(clientOpts, o.clientOpts...)

	client, err := httpclient.New(cfg.Connection.BaseURL, store, clientOpts...)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	slog.Debug("client configured",
		"connection", connection,
		"base_url", client.BaseURL(),
		"retry_delays", cfg.Retry.Policy().Delays(),
	)

	session, err := NewSession(store)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &App{
		cfg:        cfg,
		closeStore: closeStore,
		client:     client,
		moon:       moon.New(client, source),
		session:    session,
		registry:   registry,
	}, nil
}

// Moon returns the API services of the connection.
func (a *App) Moon() *moon.Client {
	return a.moon
}

// Session returns the stored session of the connection.
func (a *App) Session() *Session {
	return a.session
}

// Close releases the token store.
func (a *App) Close() error {
	return a.closeStore()
}

// Start runs the session proxy and blocks until ctx is done or the server fails.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	proxyServer, err := proxy.New(a.client,
		proxy.WithLogger(slog.Default()),
		proxy.WithMetrics(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
	)
	if err != nil {
		return fmt.Errorf("failed to create proxy: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	address := a.cfg.Proxy.Host + ":" + strconv.FormatUint(uint64(a.cfg.Proxy.Port), 10)
	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting session proxy", "address", address, "upstream", a.client.BaseURL())
	proxyErrCh, err := proxyServer.Start(gCtx, address)
	if err != nil {
		return fmt.Errorf("proxy startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, proxyServer.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-proxyErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "proxy runtime error", "error", err)
				return fmt.Errorf("proxy: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address, "connection", a.cfg.Connection.Name)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
