package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// blobBackend persists the encoded credentials of one connection.
type blobBackend interface {
	// readBlob returns nil data and no error when nothing is stored.
	readBlob(ctx context.Context) ([]byte, error)
	writeBlob(ctx context.Context, data []byte) error
	deleteBlob(ctx context.Context) error
}

// blobStore implements TokenStore on top of a blobBackend.
// Credentials are read once and cached; writes go through to the backend
// and only update the cache on success.
type blobStore struct {
	backend blobBackend

	mu     sync.Mutex
	loaded bool
	creds  Credentials
}

func newBlobStore(backend blobBackend) *blobStore {
	return &blobStore{backend: backend}
}

// load returns the cached credentials, reading the backend on first use.
func (b *blobStore) load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loaded {
		return b.creds, nil
	}

	data, err := b.backend.readBlob(ctx)
	if err != nil {
		return Credentials{}, err
	}

	var creds Credentials
	if len(data) > 0 {
		if err := json.Unmarshal(data, &creds); err != nil {
			return Credentials{}, fmt.Errorf("decoding stored credentials: %w", err)
		}
	}

	b.creds = creds
	b.loaded = true
	return creds, nil
}

func (b *blobStore) AccessToken(ctx context.Context) (string, error) {
	creds, err := b.load(ctx)
	return creds.AccessToken, err
}

func (b *blobStore) RefreshToken(ctx context.Context) (string, error) {
	creds, err := b.load(ctx)
	return creds.RefreshToken, err
}

func (b *blobStore) ExpiresAt(ctx context.Context) (time.Time, error) {
	creds, err := b.load(ctx)
	return creds.ExpiresAt, err
}

func (b *blobStore) SetTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	creds := Credentials{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.backend.writeBlob(ctx, data); err != nil {
		return err
	}
	b.creds = creds
	b.loaded = true
	return nil
}

func (b *blobStore) ClearTokens(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.backend.deleteBlob(ctx); err != nil {
		return err
	}
	b.creds = Credentials{}
	b.loaded = true
	return nil
}
