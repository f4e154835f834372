package tokensource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/florianilch/moonctl/internal/apierror"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	src, err := New(srv.URL, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return src
}

func TestRefresh(t *testing.T) {
	var gotBody map[string]string
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != RefreshPath {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		_, _ = w.Write([]byte(`{"access_token":"new","refresh_token":"new-r","expires_in":3600}`))
	})

	creds, err := src.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if gotBody["refresh_token"] != "old-refresh" || len(gotBody) != 1 {
		t.Errorf("request body = %v, want only refresh_token", gotBody)
	}
	if creds.AccessToken != "new" || creds.RefreshToken != "new-r" {
		t.Errorf("credentials = %+v", creds)
	}
	if want := fixedNow.Add(time.Hour); !creds.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, want)
	}
}

func TestRefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"new","expires_in":60}`))
	})

	creds, err := src.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if creds.RefreshToken != "old-refresh" {
		t.Errorf("RefreshToken = %q, want old-refresh", creds.RefreshToken)
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := src.Refresh(context.Background(), "")
	if !apierror.HasCode(err, apierror.CodeSessionExpired) {
		t.Errorf("error = %v, want %s", err, apierror.CodeSessionExpired)
	}
}

func TestRefreshRejected(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"INVALID_TOKEN","message":"refresh token revoked"}`))
	})

	_, err := src.Refresh(context.Background(), "revoked")

	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *apierror.Error", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "INVALID_TOKEN" {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestRefreshMissingAccessToken(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refresh_token":"r"}`))
	})

	_, err := src.Refresh(context.Background(), "r")
	if !apierror.HasCode(err, apierror.CodeUnknown) {
		t.Errorf("error = %v, want %s", err, apierror.CodeUnknown)
	}
}

func TestRefreshNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	src, err := New(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	_, err = src.Refresh(context.Background(), "r")
	if !apierror.HasCode(err, apierror.CodeNetwork) {
		t.Errorf("error = %v, want %s", err, apierror.CodeNetwork)
	}
}

func TestLogin(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LoginPath {
			t.Errorf("path = %s, want %s", r.URL.Path, LoginPath)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "admin" || body["password"] != "secret123" {
			t.Errorf("body = %v", body)
		}
		// camelCase fields are accepted as well
		_, _ = w.Write([]byte(`{"accessToken":"a","refreshToken":"r","expiresIn":120}`))
	})

	creds, err := src.Login(context.Background(), "admin", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if creds.AccessToken != "a" || creds.RefreshToken != "r" {
		t.Errorf("credentials = %+v", creds)
	}
	if want := fixedNow.Add(2 * time.Minute); !creds.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, want)
	}
}

func TestLoginValidation(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := src.Login(context.Background(), "admin", "")
	if !apierror.HasCode(err, apierror.CodeInvalidRequest) {
		t.Errorf("error = %v, want %s", err, apierror.CodeInvalidRequest)
	}
}

func TestExpiryFormats(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(15 * time.Minute)),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"expires_at RFC 3339", `{"access_token":"a","expires_at":"2026-01-02T04:04:05Z"}`, fixedNow.Add(time.Hour)},
		{"expires_at seconds", `{"access_token":"a","expires_at":1767326645}`, time.Unix(1767326645, 0)},
		{"expires_at milliseconds", `{"access_token":"a","expires_at":1767326645000}`, time.UnixMilli(1767326645000)},
		{"jwt exp claim", `{"access_token":"` + signed + `"}`, fixedNow.Add(15 * time.Minute)},
		{"unknown", `{"access_token":"opaque"}`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			creds, err := src.Refresh(context.Background(), "r")
			if err != nil {
				t.Fatalf("Refresh() error = %v", err)
			}
			if !creds.ExpiresAt.Equal(tt.want) {
				t.Errorf("ExpiresAt = %v, want %v", creds.ExpiresAt, tt.want)
			}
		})
	}
}

func TestParseClaims(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  "admin",
		Issuer:   "moon",
		IssuedAt: jwt.NewNumericDate(fixedNow),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	claims, ok := ParseClaims(signed)
	if !ok {
		t.Fatal("ParseClaims() should accept a JWT")
	}
	if claims.Subject != "admin" || claims.Issuer != "moon" || !claims.IssuedAt.Equal(fixedNow) {
		t.Errorf("claims = %+v", claims)
	}

	if _, ok := ParseClaims("moon_api_key_opaque"); ok {
		t.Error("ParseClaims() should reject opaque tokens")
	}
	if _, ok := ExpiryFromJWT(signed); ok {
		t.Error("ExpiryFromJWT() should report no exp claim")
	}
}

func TestNewInvalidBaseURL(t *testing.T) {
	if _, err := New("not a url"); err == nil {
		t.Error("New() should reject an invalid base URL")
	}
}
