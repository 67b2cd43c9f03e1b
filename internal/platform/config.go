package platform

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"gopkg.in/yaml.v3"
)

// Config is the pinboard.yaml file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Events EventsConfig `yaml:"events"`
	Auth   AuthConfig   `yaml:"auth"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures `pinboard serve` and the CLI client.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"base_url"`
}

// StoreConfig selects and configures the storage adapter.
type StoreConfig struct {
	Adapter  string         `yaml:"adapter"`
	URI      string         `yaml:"uri"`
	ReadOnly bool           `yaml:"read_only"`
	Watch    bool           `yaml:"watch"`
	Options  map[string]any `yaml:"options"`
}

// EventsConfig enables the NATS publisher.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Prefix  string `yaml:"prefix"`
}

// AuthConfig configures sessions and the identity provider.
type AuthConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	ClientID      string        `yaml:"client_id"`
	ClientSecret  string        `yaml:"client_secret"`
	RedirectURL   string        `yaml:"redirect_url"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":3000", BaseURL: "http://localhost:3000"},
		Store:  StoreConfig{Adapter: AdapterMemory, Options: map[string]any{}},
		Auth:   AuthConfig{SessionTTL: 30 * 24 * time.Hour},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig layers defaults, the file at path (skipped when empty) and the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Store.Options == nil {
			cfg.Store.Options = map[string]any{}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from PINBOARD_* and the Google credentials.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("PINBOARD_ADDR", &c.Server.Addr)
	str("PINBOARD_BASE_URL", &c.Server.BaseURL)
	str("PINBOARD_STORE_ADAPTER", &c.Store.Adapter)
	str("PINBOARD_STORE_URI", &c.Store.URI)
	str("PINBOARD_NATS_URL", &c.Events.NATSURL)
	str("PINBOARD_NATS_PREFIX", &c.Events.Prefix)
	str("PINBOARD_SESSION_SECRET", &c.Auth.SessionSecret)
	str("PINBOARD_REDIRECT_URL", &c.Auth.RedirectURL)
	str("GOOGLE_CLIENT_ID", &c.Auth.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Auth.ClientSecret)
	str("PINBOARD_LOG_LEVEL", &c.Log.Level)
	str("PINBOARD_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("PINBOARD_REST_API_KEY"); ok && v != "" {
		c.Store.Options["api_key"] = v
	}

	return errors.Join(
		boolean("PINBOARD_READ_ONLY", &c.Store.ReadOnly),
		boolean("PINBOARD_WATCH", &c.Store.Watch),
		boolean("PINBOARD_AUTH_ENABLED", &c.Auth.Enabled),
	)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Adapter {
	case AdapterMemory, AdapterFS, AdapterMongo, AdapterREST:
	default:
		errs = append(errs, fmt.Errorf("store.adapter: unknown adapter %q", c.Store.Adapter))
	}
	if c.Store.Adapter == AdapterREST && !govalidator.IsURL(c.Store.URI) {
		errs = append(errs, fmt.Errorf("store.uri: invalid url %q", c.Store.URI))
	}
	if c.Store.Adapter == AdapterMongo && c.Store.URI == "" {
		errs = append(errs, errors.New("store.uri: required for mongo"))
	}
	if !govalidator.IsURL(c.Server.BaseURL) {
		errs = append(errs, fmt.Errorf("server.base_url: invalid url %q", c.Server.BaseURL))
	}
	if c.Events.NATSURL != "" && !govalidator.IsRequestURL(c.Events.NATSURL) {
		errs = append(errs, fmt.Errorf("events.nats_url: invalid url %q", c.Events.NATSURL))
	}
	if c.Auth.Enabled {
		if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
			errs = append(errs, errors.New("auth: client_id and client_secret are required"))
		}
		if len(c.Auth.SessionSecret) < 16 {
			errs = append(errs, errors.New("auth.session_secret: must be at least 16 characters"))
		}
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// RedirectURL returns the OAuth callback, derived from the base URL when unset.
func (c Config) RedirectURL() string {
	if c.Auth.RedirectURL != "" {
		return c.Auth.RedirectURL
	}
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
}

// Options translates the store and events sections into functional options.
func (c Config) Options() []Option {
	opts := []Option{
		WithAdapter(c.Store.Adapter),
		WithAdapterConfig(c.Store.Options),
		WithReadOnly(c.Store.ReadOnly),
		WithWatch(c.Store.Watch),
	}
	if c.Events.NATSURL != "" {
		opts = append(opts, WithNATS(c.Events.NATSURL, c.Events.Prefix))
	}
	return opts
}
