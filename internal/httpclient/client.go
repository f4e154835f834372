package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/moonctl/internal/apierror"
	"github.com/florianilch/moonctl/internal/tokensource"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

const tracerName = "github.com/florianilch/moonctl/internal/httpclient"

// Refresher exchanges a refresh token for new credentials.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (tokenstore.Credentials, error)
}

// Compile-time check that tokensource.Source can refresh for the client
var _ Refresher = (*tokensource.Source)(nil)

// Client executes authenticated requests against a single Moon base URL.
// A Client owns its refresh state; create one per connection.
type Client struct {
	baseURL string
	store   tokenstore.TokenStore

	httpClient *http.Client
	timeout    time.Duration
	retry      RetryPolicy
	userAgent  string

	refresher            Refresher
	refreshGroup         singleflight.Group
	onSessionExpired     func()
	idempotentReplayOnly bool

	observer Observer
	tracer   trace.Tracer

	// sleep waits between retry attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Client for baseURL that reads and writes credentials through store.
func New(baseURL string, store tokenstore.TokenStore, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	cfg := &clientConfig{
		transport: http.DefaultTransport,
		timeout:   DefaultTimeout,
		retry:     DefaultRetryPolicy(),
		observer:  nopObserver{},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	baseURL = strings.TrimRight(baseURL, "/")

	refresher := cfg.refresher
	if refresher == nil {
		src, err := tokensource.New(baseURL,
			tokensource.WithTransport(cfg.transport),
			tokensource.WithTimeout(cfg.timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create token source: %w", err)
		}
		refresher = src
	}

	return &Client{
		baseURL:              baseURL,
		store:                store,
		httpClient:           &http.Client{Transport: cfg.transport},
		timeout:              cfg.timeout,
		retry:                cfg.retry.normalized(),
		userAgent:            cfg.userAgent,
		refresher:            refresher,
		onSessionExpired:     cfg.onSessionExpired,
		idempotentReplayOnly: cfg.idempotentReplayOnly,
		observer:             cfg.observer,
		tracer:               otel.Tracer(tracerName),
		sleep:                sleepContext,
	}, nil
}

// BaseURL returns the base URL all paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the client's token store.
func (c *Client) Store() tokenstore.TokenStore {
	return c.store
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, opts)
}

// Post issues a POST request with body encoded as JSON.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT request with body encoded as JSON.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, body, opts)
}

// Patch issues a PATCH request with body encoded as JSON.
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodPatch, path, body, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, opts)
}

func (c *Client) call(ctx context.Context, method, path string, body any, opts []RequestOption) (*Response, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: method, Path: path, Body: data}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req)
}

// Do executes req through the full pipeline. Any error is an *apierror.Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	pending, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "moon "+pending.method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", pending.method),
			attribute.String("url.full", pending.url),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(pending.header))

	resp, err := c.execute(ctx, pending)
	if err != nil {
		apiErr := apierror.Normalize(err)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Code)
		if apiErr.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", apiErr.Status))
		}
		return nil, apiErr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

// prepare validates req and captures it as a pendingRequest.
// Nothing is sent when the request cannot be built.
func (c *Client) prepare(req *Request) (*pendingRequest, error) {
	if req == nil {
		return nil, apierror.Invalid("request is nil")
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	if req.Path == "" {
		return nil, apierror.Invalid("request path is required")
	}

	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + req.Query.Encode()
	}
	if _, err := url.Parse(target); err != nil {
		return nil, apierror.Invalid("invalid request URL %q: %v", target, err)
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Accept") == "" {
		header.Set("Accept", "application/json")
	}
	if req.Body != nil && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}
	if header.Get("User-Agent") == "" && c.userAgent != "" {
		header.Set("User-Agent", c.userAgent)
	}
	if header.Get("X-Request-Id") == "" {
		header.Set("X-Request-Id", uuid.NewString())
	}
	// Callers may not smuggle their own credentials past the token store
	header.Del("Authorization")

	return &pendingRequest{
		method: method,
		url:    target,
		header: header,
		body:   req.Body,
		noAuth: req.NoAuth,
	}, nil
}

// execute runs the send/refresh/replay state machine for one logical request.
func (c *Client) execute(ctx context.Context, p *pendingRequest) (*Response, error) {
	token, err := c.accessToken(ctx, p)
	if err != nil {
		return nil, err
	}

	resp, apiErr := c.sendWithRetry(ctx, p, token)
	if apiErr == nil {
		return resp, nil
	}

	if apiErr.Status != http.StatusUnauthorized || p.noAuth || p.authRetried {
		return nil, apiErr
	}
	if c.idempotentReplayOnly && !isIdempotent(p.method) {
		slog.DebugContext(ctx, "not replaying non-idempotent request after 401", "method", p.method)
		return nil, apiErr
	}

	// Set before waiting so a request that joins an in-flight refresh never
	// starts another cycle for the same logical attempt.
	p.authRetried = true

	if err := c.refresh(ctx, token); err != nil {
		return nil, err
	}

	token, err = c.accessToken(ctx, p)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "replaying request after token refresh", "method", p.method, "request_id", p.header.Get("X-Request-Id"))
	resp, apiErr = c.sendWithRetry(ctx, p, token)
	if apiErr != nil {
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) accessToken(ctx context.Context, p *pendingRequest) (string, error) {
	if p.noAuth {
		return "", nil
	}
	token, err := c.store.AccessToken(ctx)
	if err != nil {
		return "", apierror.Normalize(fmt.Errorf("reading access token: %w", err))
	}
	return token, nil
}

// send performs a single attempt bounded by the client timeout.
func (c *Client) send(ctx context.Context, p *pendingRequest, token string) (*Response, *apierror.Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := p.build(attemptCtx, token)
	if err != nil {
		return nil, apierror.Invalid("building request: %v", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := apierror.FromTransportError(err)
		c.observer.ObserveAttempt(p.method, 0, apiErr.Code, time.Since(start))
		return nil, apiErr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := apierror.FromTransportError(fmt.Errorf("reading response body: %w", err))
		c.observer.ObserveAttempt(p.method, resp.StatusCode, apiErr.Code, time.Since(start))
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierror.FromResponse(resp.StatusCode, body)
		c.observer.ObserveAttempt(p.method, resp.StatusCode, apiErr.Code, time.Since(start))
		return nil, apiErr
	}

	c.observer.ObserveAttempt(p.method, resp.StatusCode, "", time.Since(start))
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
