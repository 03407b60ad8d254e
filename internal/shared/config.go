package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Auth        AuthConfig        `toml:"auth"`
	API         APIConfig         `toml:"api"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify application credentials.
//
// ClientSecret is optional: PKCE public clients exchange codes without it. When RelayURL is set the
// code exchange goes through the relay, which holds the secret instead.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	RelayURL     string `toml:"relay_url"`
}

// AuthConfig controls the authorization request and credential validity.
type AuthConfig struct {
	Scopes            []string `toml:"scopes"`
	ShowDialog        bool     `toml:"show_dialog"`
	ExpirySkewSeconds int      `toml:"expiry_skew_seconds"`
}

// APIConfig tunes calls against the resource server.
type APIConfig struct {
	BaseURL                  string `toml:"base_url"`
	CacheTTLSeconds          int    `toml:"cache_ttl_seconds"`
	CacheSize                int    `toml:"cache_size"`
	MaxAttempts              int    `toml:"max_attempts"`
	BackoffMS                int    `toml:"backoff_ms"`
	DefaultRetryAfterSeconds int    `toml:"default_retry_after_seconds"`
	RequestsPerMinute        int    `toml:"requests_per_minute"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ExpirySkew returns the safety buffer subtracted from token expiry.
func (c AuthConfig) ExpirySkew() time.Duration {
	return time.Duration(c.ExpirySkewSeconds) * time.Second
}

// CacheTTL returns how long a cached response stays live.
func (c APIConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Backoff returns the initial delay between failed attempts.
func (c APIConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMS) * time.Millisecond
}

// DefaultRetryAfter returns the wait used when a 429 carries no usable Retry-After header.
func (c APIConfig) DefaultRetryAfter() time.Duration {
	return time.Duration(c.DefaultRetryAfterSeconds) * time.Second
}

// Validate checks the settings required to start an authorization.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id must be set", ErrInvalidConfig)
	}
	if c.Credentials.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri must be set", ErrInvalidConfig)
	}
	if len(c.Auth.Scopes) == 0 {
		return fmt.Errorf("%w: at least one scope is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the configuration to path in TOML format.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from a dotenv file into the process environment.
// A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides Spotify credentials with SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET,
// REDIRECT_URI and SPOTIFY_RELAY_URL when they are set.
func (c *Config) ApplyEnv() {
	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed, true
			}
		}
		return "", false
	}

	if v, ok := lookup("SPOTIFY_CLIENT_ID"); ok {
		c.Credentials.Spotify.ClientID = v
	}
	if v, ok := lookup("SPOTIFY_CLIENT_SECRET"); ok {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v, ok := lookup("REDIRECT_URI"); ok {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v, ok := lookup("SPOTIFY_RELAY_URL"); ok {
		c.Credentials.Spotify.RelayURL = v
	}
}
