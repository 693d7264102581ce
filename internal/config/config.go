// Package config loads and validates the photoboard YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// AlbumID is the Google Photos album the board mirrors. The setup
	// wizard fills this in from the album picker.
	AlbumID string `yaml:"album_id"`

	// ClientID and ClientSecret identify the OAuth2 application created
	// in the Google Cloud console.
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// DataDir is where the cache database and photo files live.
	// Defaults to ~/.local/share/photoboard.
	DataDir string `yaml:"data_dir,omitempty"`

	// PollInterval controls how often the album is re-listed.
	// Minimum 1m, maximum 24h. Defaults to 5m if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HTTPTimeout bounds each provider API call within a pass.
	// Defaults to 30s.
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "photoboard".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request. Equivalent to the OTEL_EXPORTER_OTLP_HEADERS environment
	// variable. Use this for authentication tokens, e.g.:
	//   Authorization: "Bearer <token>"
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/photoboard/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "photoboard", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Write marshals the configuration to the given path, creating parent
// directories as needed. The file is written 0600 since it carries the
// client secret.
func (c *Config) Write(path string) error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("refusing to write invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// validate checks that all required fields are present and well-formed.
func (c *Config) validate() error {
	if c.AlbumID == "" {
		return fmt.Errorf("album_id is required (run setup)")
	}
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}

	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Minute
	}
	if c.PollInterval < time.Minute {
		return fmt.Errorf("poll_interval %v is too short (minimum 1m)", c.PollInterval)
	}
	if c.PollInterval > 24*time.Hour {
		return fmt.Errorf("poll_interval %v is too long (maximum 24h)", c.PollInterval)
	}

	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.HTTPTimeout < time.Second {
		return fmt.Errorf("http_timeout %v is too short (minimum 1s)", c.HTTPTimeout)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
