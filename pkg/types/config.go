package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "applytrack/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// MarketplaceConfig holds settings for the marketplace API client.
type MarketplaceConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the root of the marketplace API (e.g. "https://market.example.com").
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// APIToken is sent as a bearer token. Usually loaded from .secrets/.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty" mapstructure:"api_token"`

	// RequestsPerSecond caps the client request rate; 0 disables the limiter.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gte=0"`

	// Burst is the limiter burst size (default 1).
	Burst int `json:"burst" yaml:"burst" mapstructure:"burst" validate:"gte=0"`

	// MaxRetries bounds retries on 429 and 503 responses (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// SessionConfig holds settings for the reconciliation engine.
type SessionConfig struct {
	// ProjectCacheSize bounds the number of project summaries kept for the
	// applications view (default 512).
	ProjectCacheSize int `json:"project_cache_size" yaml:"project_cache_size" mapstructure:"project_cache_size" validate:"gte=0"`

	// NoticeBuffer is the capacity of the notice channel (default 16).
	NoticeBuffer int `json:"notice_buffer" yaml:"notice_buffer" mapstructure:"notice_buffer" validate:"gte=0"`

	// RequestTimeout bounds each background fetch or mutation (default 15s).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout" validate:"gte=0"`
}

// SandboxConfig holds settings for the local sandbox marketplace server.
type SandboxConfig struct {
	// Addr is the listen address (default "127.0.0.1:8089").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required,hostname_port"`

	// DBPath is the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path" validate:"required"`

	// SeedFile optionally points at a YAML file of projects and applications.
	SeedFile string `json:"seed_file,omitempty" yaml:"seed_file,omitempty" mapstructure:"seed_file"`

	// UserID is the developer the sandbox acts on behalf of.
	UserID int64 `json:"user_id" yaml:"user_id" mapstructure:"user_id" validate:"gt=0"`
}

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=text json"`
}

// Config groups all component configurations.
type Config struct {
	Marketplace MarketplaceConfig `json:"marketplace" yaml:"marketplace" mapstructure:"marketplace"`
	Session     SessionConfig     `json:"session" yaml:"session" mapstructure:"session"`
	Sandbox     SandboxConfig     `json:"sandbox" yaml:"sandbox" mapstructure:"sandbox" validate:"-"`
	Log         LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file or flag overrides a value.
func DefaultConfig() Config {
	return Config{
		Marketplace: MarketplaceConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   20 * time.Second,
				UserAgent: "applytrack/0.1",
			},
			BaseURL:           "http://127.0.0.1:8089",
			RequestsPerSecond: 10,
			Burst:             5,
			MaxRetries:        3,
		},
		Session: SessionConfig{
			ProjectCacheSize: 512,
			NoticeBuffer:     16,
			RequestTimeout:   15 * time.Second,
		},
		Sandbox: SandboxConfig{
			Addr:   "127.0.0.1:8089",
			DBPath: "sandbox.db",
			UserID: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var validate = validator.New()

// Validate checks the client-side configuration. The sandbox section is
// checked separately by SandboxConfig.Validate since only the sandbox
// command needs it.
func (c Config) Validate() error {
	return validationError(validate.Struct(c))
}

// Validate checks the sandbox server settings.
func (c SandboxConfig) Validate() error {
	return validationError(validate.Struct(c))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("config error: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
}
