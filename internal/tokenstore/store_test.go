package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// testStoreRoundTrip exercises the TokenStore contract shared by all writable backends.
func testStoreRoundTrip(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()

	access, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, access, "fresh store should hold no access token")

	expires, err := store.ExpiresAt(ctx)
	require.NoError(t, err)
	assert.True(t, expires.IsZero(), "fresh store should hold no expiry")

	expiresAt := time.UnixMilli(time.Now().Add(time.Hour).UnixMilli())
	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1", expiresAt))

	creds, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "access-1", creds.AccessToken)
	assert.Equal(t, "refresh-1", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.Equal(expiresAt), "expiry = %v, want %v", creds.ExpiresAt, expiresAt)

	require.NoError(t, store.SetTokens(ctx, "access-2", "refresh-2", time.Time{}))
	creds, err = Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "access-2", creds.AccessToken)
	assert.Equal(t, "refresh-2", creds.RefreshToken)
	assert.True(t, creds.ExpiresAt.IsZero())

	require.NoError(t, store.ClearTokens(ctx))
	creds, err = Load(ctx, store)
	require.NoError(t, err)
	assert.True(t, creds.IsZero(), "credentials should be cleared, got %+v", creds)

	// Clearing twice is not an error
	require.NoError(t, store.ClearTokens(ctx))
}

func TestMemoryStore(t *testing.T) {
	testStoreRoundTrip(t, NewMemoryStore())
}

func TestSaveEmptyCredentialsClears(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, Save(ctx, store, Credentials{AccessToken: "a", RefreshToken: "r"}))

	require.NoError(t, Save(ctx, store, Credentials{}))

	creds, err := Load(ctx, store)
	require.NoError(t, err)
	assert.True(t, creds.IsZero(), "got %+v", creds)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.SetTokens(ctx, "access", "refresh", time.Unix(int64(i), 0))
		}()
		go func() {
			defer wg.Done()
			_, _ = Load(ctx, store)
		}()
	}
	wg.Wait()

	access, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", access)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.AccessToken(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.SetTokens(ctx, "a", "r", time.Time{}), context.Canceled)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "credentials.json"))
	require.NoError(t, err)
	testStoreRoundTrip(t, store)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	ctx := context.Background()

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetTokens(ctx, "access", "refresh", time.Time{}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := NewFileStore(path)
	require.NoError(t, err)
	refresh, err := second.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refresh)
}

func TestFileStore_InsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"access_token":"a"}`), 0644))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.AccessToken(context.Background())
	assert.ErrorContains(t, err, "insecure permissions")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.AccessToken(context.Background())
	assert.ErrorContains(t, err, "decoding stored credentials")
}

func TestNewFileStore_EmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore("moonctl-test", "default")
	require.NoError(t, err)
	testStoreRoundTrip(t, store)
}

func TestNewKeyringStore_Validation(t *testing.T) {
	_, err := NewKeyringStore("", "user")
	assert.Error(t, err)
	_, err = NewKeyringStore("service", "")
	assert.Error(t, err)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	_, client := newTestRedis(t)

	store, err := NewRedisStore(client, "moonctl:test", time.Hour)
	require.NoError(t, err)
	testStoreRoundTrip(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(client, "moonctl:ttl", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.SetTokens(ctx, "access", "refresh", time.Time{}))

	assert.Equal(t, time.Minute, mr.TTL("moonctl:ttl"))

	mr.FastForward(2 * time.Minute)

	access, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, access, "credentials should expire with the key")
}

func TestRedisStore_SharedBetweenInstances(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	writer, err := NewRedisStore(client, "moonctl:shared", 0)
	require.NoError(t, err)
	reader, err := NewRedisStore(client, "moonctl:shared", 0)
	require.NoError(t, err)

	require.NoError(t, writer.SetTokens(ctx, "access", "refresh", time.Time{}))

	access, err := reader.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", access)
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	store, err := NewRedisStore(client, "moonctl:down", 0)
	require.NoError(t, err)

	_, err = store.AccessToken(context.Background())
	assert.Error(t, err)
}

func TestEnvStore(t *testing.T) {
	t.Setenv("MOONCTL_TEST_API_KEY", "moon_live_key")
	ctx := context.Background()

	store, err := NewEnvStore("MOONCTL_TEST_API_KEY")
	require.NoError(t, err)

	access, err := store.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "moon_live_key", access)

	refresh, err := store.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, refresh)

	assert.ErrorIs(t, store.SetTokens(ctx, "a", "r", time.Time{}), ErrReadOnly)
	assert.ErrorIs(t, store.ClearTokens(ctx), ErrReadOnly)
}

func TestNewEnvStore_Unset(t *testing.T) {
	_, err := NewEnvStore("MOONCTL_TEST_SURELY_UNSET_VARIABLE")
	assert.Error(t, err)

	_, err = NewEnvStore("")
	assert.Error(t, err)
}

func TestCredentialsToken(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	tok := Credentials{AccessToken: "a", RefreshToken: "r", ExpiresAt: expiry}.Token()

	assert.Equal(t, "Bearer", tok.Type())
	assert.True(t, tok.Valid())

	expired := Credentials{AccessToken: "a", ExpiresAt: time.Now().Add(-time.Minute)}.Token()
	assert.False(t, expired.Valid())
}
