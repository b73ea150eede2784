package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenAddr = ":8475"
	DefaultEventTTL   = 1 * time.Hour
	DefaultAuthHeader = "x-cfgsync-key"
	DefaultEventName  = "cfgsync"
)

// Config is the top-level configuration for the relay server.
type Config struct {
	// ListenAddr is the address the HTTP/WebSocket server binds to.
	ListenAddr string `yaml:"listen_addr"`

	// EventTTL is how long the latest stored event per name is replayed to
	// newly connecting instances before it is considered stale.
	EventTTL time.Duration `yaml:"event_ttl"`

	// Document configures the optional canonical configuration document.
	Document DocumentConfig `yaml:"document"`

	// Auth configures authentication for the /ws and /api endpoints.
	Auth AuthConfig `yaml:"auth"`
}

// DocumentConfig describes the canonical configuration document the relay
// serves to instances running in fetch mode.
type DocumentConfig struct {
	// Path is the filesystem path of the document (YAML or JSON).
	// Empty disables the /api/v1/config endpoint.
	Path string `yaml:"path"`

	// Watch broadcasts a configuration event to all connected instances
	// whenever the document changes on disk.
	Watch bool `yaml:"watch"`

	// EventName is the event name document changes are broadcast under.
	EventName string `yaml:"event_name"`
}

// AuthConfig specifies the relay's authentication mode.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header name the key is expected in.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		EventTTL:   DefaultEventTTL,
		Document: DocumentConfig{
			EventName: DefaultEventName,
		},
		Auth: AuthConfig{
			Header: DefaultAuthHeader,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if cfg.EventTTL <= 0 {
		return fmt.Errorf("event_ttl must be positive")
	}
	if cfg.Document.Watch && cfg.Document.Path == "" {
		return fmt.Errorf("document.watch requires document.path")
	}
	if cfg.Document.EventName == "" {
		return fmt.Errorf("document.event_name is required")
	}
	switch cfg.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
	return nil
}
