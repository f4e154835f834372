package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/florianilch/moonctl/internal/httpclient"
	"github.com/florianilch/moonctl/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExporter selects where log records are sent.
type LogExporter string

const (
	LogExporterNone     LogExporter = "none"
	LogExporterStdout   LogExporter = "stdout"
	LogExporterOTLPGRPC LogExporter = "otlp-grpc"
	LogExporterOTLPHTTP LogExporter = "otlp-http"
)

// TokenStorageType represents the different storage types supported for session credentials.
type TokenStorageType string

const (
	TokenStorageTypeMemory  TokenStorageType = "memory"
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
	TokenStorageTypeRedis   TokenStorageType = "redis"
)

// Default configuration values
const (
	DefaultConfigLogFormat       = LogFormatText
	DefaultConfigLogExporter     = LogExporterNone
	DefaultConfigConnectionName  = "default"
	DefaultConfigBaseURL         = "http://localhost:6006"
	DefaultConfigTimeout         = httpclient.DefaultTimeout
	DefaultConfigMaxAttempts     = httpclient.DefaultMaxAttempts
	DefaultConfigBaseDelay       = httpclient.DefaultBaseDelay
	DefaultConfigAuthStorage     = TokenStorageTypeFile
	DefaultConfigAuthEnvKey      = "MOON_API_KEY"
	DefaultConfigRedisKeyPrefix  = "moonctl:session:"
	DefaultConfigProxyHost       = "127.0.0.1"
	DefaultConfigProxyPort       = 6060
	DefaultConfigShutdownTimeout = 5 * time.Second
)

// keyringServicePrefix is combined with the connection name to form the keyring service.
const keyringServicePrefix = "moonctl-session-"

// ConnectionConfig identifies the Moon server to talk to.
type ConnectionConfig struct {
	// Name keys the stored session, so several servers can be used side by side.
	Name    string        `json:"name" validate:"required,excludesall=/\\ "`
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// RetryConfig controls retries of transient failures and replay after refresh.
type RetryConfig struct {
	MaxAttempts          int           `json:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay            time.Duration `json:"base_delay" validate:"gt=0"`
	IdempotentReplayOnly bool          `json:"idempotent_replay_only"`
}

// Policy converts the configuration into a client retry policy.
func (r RetryConfig) Policy() httpclient.RetryPolicy {
	return httpclient.RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
	}
}

// RedisConfig holds settings for the redis session storage.
type RedisConfig struct {
	Addr      string        `json:"addr,omitempty"`
	Password  string        `json:"password,omitempty"`
	DB        int           `json:"db,omitempty" validate:"gte=0"`
	KeyPrefix string        `json:"key_prefix,omitempty"`
	TTL       time.Duration `json:"ttl,omitempty" validate:"gte=0"`
}

// AuthConfig describes where session credentials are kept.
type AuthConfig struct {
	Storage TokenStorageType `json:"storage" validate:"required,oneof=memory file env keyring redis"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string      `json:"file,omitempty"`         // For file storage: path to session file
	EnvKey      string      `json:"env_key,omitempty"`      // For env storage: variable holding an API key
	KeyringUser string      `json:"keyring_user,omitempty"` // For keyring storage: user identifier
	Redis       RedisConfig `json:"redis"`
}

// NewTokenStore creates the TokenStore holding the session of connection.
// The returned close func releases resources held by the store.
func (a *AuthConfig) NewTokenStore(connection string) (tokenstore.TokenStore, func() error, error) {
	noop := func() error { return nil }

	switch a.Storage {
	case TokenStorageTypeMemory:
		return tokenstore.NewMemoryStore(), noop, nil
	case TokenStorageTypeFile:
		store, err := tokenstore.NewFileStore(a.File)
		return store, noop, err
	case TokenStorageTypeEnv:
		store, err := tokenstore.NewEnvStore(a.EnvKey)
		return store, noop, err
	case TokenStorageTypeKeyring:
		store, err := tokenstore.NewKeyringStore(keyringServicePrefix+connection, a.KeyringUser)
		return store, noop, err
	case TokenStorageTypeRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.Redis.Addr,
			Password: a.Redis.Password,
			DB:       a.Redis.DB,
		})
		store, err := tokenstore.NewRedisStore(client, a.Redis.KeyPrefix+connection, a.Redis.TTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// ProxyConfig holds settings of the local session proxy.
type ProxyConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel    slog.Level       `json:"log_level"`
	LogFormat   LogFormat        `json:"log_format" validate:"oneof=text json"`
	LogExporter LogExporter      `json:"log_exporter" validate:"oneof=none stdout otlp-grpc otlp-http"`
	Connection  ConnectionConfig `json:"connection"`
	Retry       RetryConfig      `json:"retry"`
	Auth        AuthConfig       `json:"auth"`
	Proxy       ProxyConfig      `json:"proxy"`
	Shutdown    ShutdownConfig   `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.LogExporter == "" {
		c.LogExporter = DefaultConfigLogExporter
	}
	if c.Connection.Name == "" {
		c.Connection.Name = DefaultConfigConnectionName
	}
	if c.Connection.BaseURL == "" {
		c.Connection.BaseURL = DefaultConfigBaseURL
	}
	if c.Connection.Timeout == 0 {
		c.Connection.Timeout = DefaultConfigTimeout
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultConfigMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultConfigBaseDelay
	}
	if c.Proxy.Host == "" {
		c.Proxy.Host = DefaultConfigProxyHost
	}
	if c.Proxy.Port == 0 {
		c.Proxy.Port = DefaultConfigProxyPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "moonctl", "sessions", c.Connection.Name+".json")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			c.Auth.EnvKey = DefaultConfigAuthEnvKey
		}
	case TokenStorageTypeRedis:
		if c.Auth.Redis.KeyPrefix == "" {
			c.Auth.Redis.KeyPrefix = DefaultConfigRedisKeyPrefix
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case TokenStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case TokenStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case TokenStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	case TokenStorageTypeRedis:
		if c.Auth.Redis.Addr == "" {
			return errors.New("redis addr required for redis storage")
		}
	}

	return nil
}
