package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/florianilch/moonctl/internal/httpclient"
)

// DefaultMaxBodyBytes bounds the size of a forwarded request body.
const DefaultMaxBodyBytes = 10 << 20

// Forwarder executes a request against the Moon API with the session attached.
type Forwarder interface {
	Do(ctx context.Context, req *httpclient.Request) (*httpclient.Response, error)
}

// Compile-time check that the authenticated client can forward requests
var _ Forwarder = (*httpclient.Client)(nil)

// forwardedRequestHeaders are copied from the local request. Authorization is
// never forwarded; the session of the client is used instead.
var forwardedRequestHeaders = []string{"Accept", "Content-Type", "X-Request-Id", "Traceparent", "Tracestate"}

// hopHeaders are dropped from upstream responses.
var hopHeaders = []string{"Connection", "Keep-Alive", "Transfer-Encoding", "Content-Length", "Upgrade", "Trailer"}

// Proxy is a local HTTP server forwarding every request to the Moon API
// through the authenticated client.
type Proxy struct {
	mux    *http.ServeMux
	server *http.Server
}

// Compile-time check that Proxy implements http.Handler
var _ http.Handler = (*Proxy)(nil)

// Option configures a Proxy.
type Option func(*config)

type config struct {
	logger       *slog.Logger
	metrics      http.Handler
	maxBodyBytes int64
}

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics serves handler on GET /metrics instead of forwarding the path.
func WithMetrics(handler http.Handler) Option {
	return func(c *config) {
		c.metrics = handler
	}
}

// WithMaxBodyBytes limits forwarded request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		c.maxBodyBytes = n
	}
}

// New creates a Proxy that forwards through client.
func New(client Forwarder, opts ...Option) (*Proxy, error) {
	if client == nil {
		return nil, errors.New("missing forwarding client")
	}

	cfg := &config{
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mux := http.NewServeMux()

	if cfg.metrics != nil {
		mux.Handle("GET /metrics", cfg.metrics)
	}

	mux.Handle("/", applyMiddlewares(&forwardHandler{client: client, maxBodyBytes: cfg.maxBodyBytes},
		Logging(cfg.logger),
		RequestID,
		Recovery,
	))

	return &Proxy{mux: mux}, nil
}

// ServeHTTP implements http.Handler interface
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (p *Proxy) Start(ctx context.Context, address string) (<-chan error, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.server = &http.Server{
		Handler:      p,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // covers retries and a refresh cycle
		IdleTimeout:  90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := p.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Shutdown performs graceful shutdown of the HTTP server.
func (p *Proxy) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}

	if err := p.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = p.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}

// forwardHandler relays a local request to the Moon API.
type forwardHandler struct {
	client       Forwarder
	maxBodyBytes int64
}

func (h *forwardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSONError(ctx, w, "INVALID_REQUEST", "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(ctx, w, "INVALID_REQUEST", "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		body = nil
	}

	req := &httpclient.Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Query:  r.URL.Query(),
		Header: http.Header{},
		Body:   body,
	}
	for _, key := range forwardedRequestHeaders {
		if v := r.Header.Get(key); v != "" {
			req.Header.Set(key, v)
		}
	}

	resp, err := h.client.Do(ctx, req)
	if err != nil {
		writeAPIError(ctx, w, err)
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	for _, key := range hopHeaders {
		w.Header().Del(key)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		slog.DebugContext(ctx, "failed to write proxied response", "error", err)
	}
}
