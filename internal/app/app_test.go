package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/moonctl/internal/httpclient"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	cfg := &Config{
		Connection: ConnectionConfig{BaseURL: baseURL},
		Auth:       AuthConfig{Storage: TokenStorageTypeMemory},
		Retry:      RetryConfig{MaxAttempts: 1},
	}
	require.NoError(t, cfg.ApplyDefaults())
	return cfg
}

func TestAppRefreshesThroughTokenSource(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth:refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"r2","expires_in":3600}`))
	})
	mux.HandleFunc("GET /collections:list", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"collections":[{"name":"products"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens(context.Background(), "stale", "r1", time.Time{}))

	application, err := New(testConfig(t, srv.URL), WithTokenStore(store))
	require.NoError(t, err)
	defer func() { _ = application.Close() }()

	collections, err := application.Moon().Collections.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, collections, 1)
	assert.Equal(t, int32(1), refreshes.Load())

	status, err := application.Session().Status(context.Background())
	require.NoError(t, err)
	assert.True(t, status.LoggedIn)
	assert.True(t, status.Valid)
	assert.True(t, status.Renewable)
}

func TestAppTransportCoversLoginAndRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth:login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"stale","refresh_token":"r1"}`))
	})
	mux.HandleFunc("POST /auth:refresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"fresh","refresh_token":"r2"}`))
	})
	mux.HandleFunc("GET /auth:me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"username":"ada"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var (
		mu    sync.Mutex
		paths []string
	)
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		return http.DefaultTransport.RoundTrip(r)
	})

	application, err := New(testConfig(t, srv.URL), WithTransport(transport))
	require.NoError(t, err)
	defer func() { _ = application.Close() }()

	ctx := context.Background()
	_, err = application.Moon().Auth.Login(ctx, "ada", "secret123")
	require.NoError(t, err)
	me, err := application.Moon().Auth.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/auth:login", "/auth:me", "/auth:refresh", "/auth:me"}, paths)
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "http://localhost")
	cfg.LogFormat = "xml"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestAppStartServesProxyAndStops(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer upstream.Close()

	// Reserve a free port for the proxy.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := testConfig(t, upstream.URL)
	cfg.Proxy.Port = uint16(port)

	application, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Start(ctx) }()

	proxyURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(proxyURL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get(proxyURL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestSessionStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		session, err := NewSession(tokenstore.NewMemoryStore())
		require.NoError(t, err)

		status, err := session.Status(ctx)
		require.NoError(t, err)
		assert.False(t, status.LoggedIn)

		_, err = session.Token()
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("jwt claims fill expiry", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "ada",
			Issuer:    "moon",
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.SetTokens(ctx, signed, "", time.Time{}))
		session, err := NewSession(store)
		require.NoError(t, err)

		status, err := session.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.Valid)
		assert.False(t, status.Renewable)
		assert.Equal(t, "ada", status.Subject)
		assert.Equal(t, "moon", status.Issuer)
		require.NotNil(t, status.ExpiresAt)
		assert.True(t, exp.Equal(*status.ExpiresAt))
	})

	t.Run("expired", func(t *testing.T) {
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.SetTokens(ctx, "opaque", "r", time.Now().Add(-time.Minute)))
		session, err := NewSession(store)
		require.NoError(t, err)

		status, err := session.Status(ctx)
		require.NoError(t, err)
		assert.True(t, status.LoggedIn)
		assert.False(t, status.Valid)
		assert.True(t, status.Renewable)
		assert.Empty(t, status.ExpiresIn)
	})
}

func TestRetryConfigPolicy(t *testing.T) {
	policy := RetryConfig{MaxAttempts: 4, BaseDelay: 250 * time.Millisecond}.Policy()
	assert.Equal(t, httpclient.RetryPolicy{MaxAttempts: 4, BaseDelay: 250 * time.Millisecond}, policy)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second}, policy.Delays())
}
