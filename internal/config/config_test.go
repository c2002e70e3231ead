package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
validator:
  timeout: 5s
  max_cardinality: 500
  staleness_threshold: 2m
  concurrency: 8
  strict_parse: true
  check_certs: false
endpoints:
  - id: node
    endpoint: "http://localhost:9100/metrics"
    auth:
      mode: bearer
      token_env: NODE_TOKEN
  - endpoint: "https://exporter.internal:9187/metrics"
    tls:
      insecure_skip_verify: true
control_plane:
  url: "http://prometheus:9090"
  job: node_exporter
`
	cfg := loadFromString(t, yaml)

	v := cfg.Validator
	if v.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", v.Timeout)
	}
	if v.MaxCardinality != 500 {
		t.Errorf("max_cardinality: got %d", v.MaxCardinality)
	}
	if v.StalenessThreshold != 2*time.Minute {
		t.Errorf("staleness_threshold: got %v", v.StalenessThreshold)
	}
	if v.Concurrency != 8 {
		t.Errorf("concurrency: got %d", v.Concurrency)
	}
	if !v.StrictParse || v.CheckCerts {
		t.Errorf("strict_parse=%v check_certs=%v, want true/false", v.StrictParse, v.CheckCerts)
	}
	if len(cfg.Endpoints) != 2 {
		t.Fatalf("endpoints: got %d, want 2", len(cfg.Endpoints))
	}
	if cfg.Endpoints[0].Name() != "node" {
		t.Errorf("endpoint name: got %q", cfg.Endpoints[0].Name())
	}
	if cfg.Endpoints[1].Name() != "https://exporter.internal:9187/metrics" {
		t.Errorf("unnamed endpoint should fall back to url, got %q", cfg.Endpoints[1].Name())
	}
	if !cfg.Endpoints[1].TLS.InsecureSkipVerify {
		t.Error("tls.insecure_skip_verify not parsed")
	}
	if cfg.ControlPlane.Job != "node_exporter" {
		t.Errorf("control_plane.job: got %q", cfg.ControlPlane.Job)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, `
endpoints:
  - endpoint: "http://localhost:9100/metrics"
`)
	v := cfg.Validator
	if v.Timeout != DefaultTimeout {
		t.Errorf("default timeout: got %v, want %v", v.Timeout, DefaultTimeout)
	}
	if v.MaxCardinality != DefaultMaxCardinality {
		t.Errorf("default max_cardinality: got %d, want %d", v.MaxCardinality, DefaultMaxCardinality)
	}
	if v.StalenessThreshold != DefaultStalenessThreshold {
		t.Errorf("default staleness_threshold: got %v, want %v", v.StalenessThreshold, DefaultStalenessThreshold)
	}
	if v.Concurrency != DefaultConcurrency {
		t.Errorf("default concurrency: got %d, want %d", v.Concurrency, DefaultConcurrency)
	}
	if !v.CheckCerts {
		t.Error("check_certs should default to true")
	}
	if v.SlowScrapeThreshold != DefaultSlowScrapeThreshold {
		t.Errorf("default slow_scrape_threshold: got %v", v.SlowScrapeThreshold)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing endpoint", `
endpoints:
  - id: nothing
`},
		{"bad scheme", `
endpoints:
  - endpoint: "ftp://host/metrics"
`},
		{"unknown auth mode", `
endpoints:
  - endpoint: "http://host:9100/metrics"
    auth:
      mode: magictoken
`},
		{"negative cardinality", `
validator:
  max_cardinality: -1
`},
		{"zero concurrency", `
validator:
  concurrency: 0
`},
		{"bad control plane url", `
control_plane:
  url: "prometheus:9090"
`},
		{"malformed yaml", "validator: [unterminated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestAuthConfig_Secrets(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	t.Setenv("TEST_PASSWORD", "hunter2")

	a := AuthConfig{KeyEnv: "TEST_API_KEY", TokenEnv: "TEST_BEARER_TOKEN", PasswordEnv: "TEST_PASSWORD"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q, want %q", got, "supersecret")
	}
	if got := a.Token(); got != "mytoken" {
		t.Errorf("Token(): got %q, want %q", got, "mytoken")
	}
	if got := a.Password(); got != "hunter2" {
		t.Errorf("Password(): got %q, want %q", got, "hunter2")
	}

	var empty AuthConfig
	if empty.Key() != "" || empty.Token() != "" || empty.Password() != "" {
		t.Error("unset env names should resolve to empty strings")
	}
}

func TestLoad_AuthModes(t *testing.T) {
	for _, mode := range []string{"mtls", "apikey", "bearer", "basic", "none", ""} {
		t.Run("mode="+mode, func(t *testing.T) {
			cfg := loadFromString(t, `
endpoints:
  - endpoint: "http://localhost:9100/metrics"
    auth:
      mode: "`+mode+`"
`)
			if got := cfg.Endpoints[0].Auth.Mode; got != mode {
				t.Errorf("auth mode: got %q, want %q", got, mode)
			}
		})
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "promcheck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}
