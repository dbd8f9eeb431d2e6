package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeOAuth    = "oauth"
)

// Feed backends.
const (
	FeedBackendMemory = "memory"
	FeedBackendRedis  = "redis"
)

const minSessionSecret = 16

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Feed    FeedConfig        `yaml:"feed"`
	Import  ImportConfig      `yaml:"import"`
	Limits  LimitsConfig      `yaml:"limits"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return c.Limits.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration. BaseURL is the externally
// visible origin, used to build the OAuth redirect URL.
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.BaseURL, is.URL),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): every request acts as LocalOwner, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "oauth": OAuth2 login; OAuth client credentials and Session.Secret are required.
type AuthConfig struct {
	Mode       string        `yaml:"mode"`
	Token      string        `yaml:"token"`
	LocalOwner string        `yaml:"local_owner"`
	OAuth      OAuthConfig   `yaml:"oauth"`
	Session    SessionConfig `yaml:"session"`
}

// OAuthConfig holds the OAuth2 client. Empty endpoints default to Google.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	UserinfoURL  string   `yaml:"userinfo_url"`
	Scopes       []string `yaml:"scopes"`
}

// SessionConfig holds the session token signer.
type SessionConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if c.LocalOwner == "" {
		c.LocalOwner = "local"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeOAuth)),
	); err != nil {
		return err
	}

	switch c.Mode {
	case AuthModeToken:
		if c.Token == "" {
			return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
		}
	case AuthModeOAuth:
		if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
			return errors.New("auth: oauth mode requires oauth.client_id and oauth.client_secret")
		}
		if c.Session.Secret == "" {
			return errors.New("auth: oauth mode requires session.secret")
		}
	}
	if c.Session.Secret != "" && len(c.Session.Secret) < minSessionSecret {
		return fmt.Errorf("auth: session.secret must be at least %d bytes", minSessionSecret)
	}
	return validation.ValidateStruct(&c.OAuth,
		validation.Field(&c.OAuth.AuthURL, is.URL),
		validation.Field(&c.OAuth.TokenURL, is.URL),
		validation.Field(&c.OAuth.UserinfoURL, is.URL),
	)
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeOAuth
}

// FeedConfig selects how changes reach subscribers. The redis backend relays
// changes between processes sharing one database.
type FeedConfig struct {
	Backend   string        `yaml:"backend"`
	Heartbeat time.Duration `yaml:"heartbeat"`
	Redis     RedisConfig   `yaml:"redis"`
}

// RedisConfig holds the relay connection.
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Channel        string        `yaml:"channel"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = FeedBackendMemory
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(FeedBackendMemory, FeedBackendRedis)),
		validation.Field(&c.Heartbeat, validation.Min(time.Second)),
	); err != nil {
		return err
	}
	if c.Backend == FeedBackendRedis {
		return validation.ValidateStruct(&c.Redis,
			validation.Field(&c.Redis.Addr, validation.Required),
			validation.Field(&c.Redis.DB, validation.Min(0)),
		)
	}
	return nil
}

// ImportConfig configures the bulk import inbox.
type ImportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Owner   string `yaml:"owner"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Owner, validation.When(c.Enabled, validation.Required)),
	)
}

// LimitsConfig caps mutating API calls per owner.
type LimitsConfig struct {
	MutationsPerMinute int `yaml:"mutations_per_minute"`
	Burst              int `yaml:"burst"`
}

// Validate validates the limits configuration.
func (c *LimitsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MutationsPerMinute, validation.Min(0)),
		validation.Field(&c.Burst, validation.Min(0)),
	)
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:    8080,
				BaseURL: "http://localhost:8080",
			},
		},
		SQLite: SQLiteConfig{
			Path: "./smartmarks.db",
		},
		Auth: AuthConfig{
			Mode:       AuthModeDisabled,
			LocalOwner: "local",
			Session: SessionConfig{
				TTL: 7 * 24 * time.Hour,
			},
		},
		Feed: FeedConfig{
			Backend:   FeedBackendMemory,
			Heartbeat: 25 * time.Second,
			Redis: RedisConfig{
				Channel:        "smartmarks:changes",
				ConnectTimeout: 30 * time.Second,
			},
		},
		Import: ImportConfig{
			Path:  "./inbox",
			Owner: "local",
		},
		Limits: LimitsConfig{
			MutationsPerMinute: 120,
			Burst:              20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
