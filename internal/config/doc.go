// Package config loads the promcheck configuration file (promcheck.yaml).
//
// Top-level types:
//   - Config{Validator, Endpoints, ControlPlane}: full tree parsed from YAML
//   - ValidatorConfig: timeout, max_cardinality, staleness_threshold,
//     concurrency, strict_parse, check_certs, slow_scrape_threshold,
//     max_body_bytes
//   - Source: id, endpoint, auth, tls for one exporter endpoint
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token()
//     and Password() resolve secrets from environment variables
//   - ControlPlaneConfig: url, job, auth, tls of the Prometheus server whose
//     targets API is cross-checked
//
// Load(path) reads the YAML file, applies defaults (10s timeout, cardinality
// 1000, staleness 300s, concurrency 4, 10s slow scrape) and validates
// required fields and enums. Default() returns the same defaults without a
// file, for runs configured entirely by flags.
package config
