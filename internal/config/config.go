package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultTimeout             = 10 * time.Second
	DefaultMaxCardinality      = 1000
	DefaultStalenessThreshold  = 300 * time.Second
	DefaultConcurrency         = 4
	DefaultSlowScrapeThreshold = 10 * time.Second
	DefaultMaxBodyBytes        = 64 << 20
)

// Config is the top-level promcheck configuration.
type Config struct {
	Validator    ValidatorConfig    `yaml:"validator"`
	Endpoints    []Source           `yaml:"endpoints"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
}

// ValidatorConfig holds the thresholds and limits of a validation run.
type ValidatorConfig struct {
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxCardinality is the per-family sample count treated as critical.
	// Families above 70% of it are reported as warnings.
	MaxCardinality int `yaml:"max_cardinality"`

	// StalenessThreshold is the maximum accepted age of explicit sample
	// timestamps.
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`

	// Concurrency caps how many endpoints are validated at once.
	Concurrency int `yaml:"concurrency"`

	// StrictParse additionally runs the reference expfmt parser over every
	// payload and reports rejections as info issues.
	StrictParse bool `yaml:"strict_parse"`

	// CheckCerts inspects the TLS certificate of https endpoints.
	CheckCerts bool `yaml:"check_certs"`

	// SlowScrapeThreshold is the control-plane scrape duration above which a
	// target is reported as slow.
	SlowScrapeThreshold time.Duration `yaml:"slow_scrape_threshold"`

	// MaxBodyBytes caps the size of a fetched payload.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// Source describes one exporter endpoint to validate.
type Source struct {
	// ID is an optional human-readable name; the endpoint URL is used when empty.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the exporter's metrics endpoint.
	Endpoint string `yaml:"endpoint"`

	// Auth configures how promcheck authenticates to this endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// Name returns the ID, falling back to the endpoint URL.
func (s Source) Name() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Endpoint
}

// ControlPlaneConfig points at the Prometheus server whose targets API is
// cross-checked. An empty URL disables the cross-check.
type ControlPlaneConfig struct {
	URL  string     `yaml:"url"`
	Job  string     `yaml:"job"`
	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for an endpoint.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header names the HTTP header carrying the key when Mode == "apikey".
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv holds the bearer token variable name when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-endpoint TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Validator: ValidatorConfig{
			Timeout:             DefaultTimeout,
			MaxCardinality:      DefaultMaxCardinality,
			StalenessThreshold:  DefaultStalenessThreshold,
			Concurrency:         DefaultConcurrency,
			CheckCerts:          true,
			SlowScrapeThreshold: DefaultSlowScrapeThreshold,
			MaxBodyBytes:        DefaultMaxBodyBytes,
		},
	}
}

// Validate checks required fields and structural constraints. It is run by
// Load and again by the CLI after flag overrides are applied.
func (cfg *Config) Validate() error {
	v := cfg.Validator
	if v.Timeout <= 0 {
		return fmt.Errorf("validator.timeout must be positive")
	}
	if v.MaxCardinality <= 0 {
		return fmt.Errorf("validator.max_cardinality must be positive")
	}
	if v.StalenessThreshold <= 0 {
		return fmt.Errorf("validator.staleness_threshold must be positive")
	}
	if v.Concurrency <= 0 {
		return fmt.Errorf("validator.concurrency must be positive")
	}
	if v.SlowScrapeThreshold <= 0 {
		return fmt.Errorf("validator.slow_scrape_threshold must be positive")
	}
	if v.MaxBodyBytes <= 0 {
		return fmt.Errorf("validator.max_body_bytes must be positive")
	}

	for i, src := range cfg.Endpoints {
		if src.Endpoint == "" {
			return fmt.Errorf("endpoints[%d]: endpoint is required", i)
		}
		if err := checkURL(src.Endpoint); err != nil {
			return fmt.Errorf("endpoints[%d] %q: %w", i, src.Name(), err)
		}
		if err := checkAuthMode(src.Auth.Mode); err != nil {
			return fmt.Errorf("endpoints[%d] %q: %w", i, src.Name(), err)
		}
	}

	if cfg.ControlPlane.URL != "" {
		if err := checkURL(cfg.ControlPlane.URL); err != nil {
			return fmt.Errorf("control_plane: %w", err)
		}
		if err := checkAuthMode(cfg.ControlPlane.Auth.Mode); err != nil {
			return fmt.Errorf("control_plane: %w", err)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

func checkAuthMode(mode string) error {
	switch mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q", mode)
	}
}
