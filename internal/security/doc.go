// Package security checks the TLS certificate of https exporter endpoints
// and reports certificates that have expired or expire within 30 days.
package security
