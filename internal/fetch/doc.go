// Package fetch retrieves exporter payloads over HTTP(S).
//
// Client wraps one shared *http.Client (safe for concurrent use) whose
// transport injects the endpoint's authentication (mTLS, API key, bearer,
// basic) and TLS options. Every request goes through Policy.Do, the single
// retry wrapper: up to three attempts, 1s backoff factor, retrying only
// transient connection errors and 429/500/502/503/504.
//
// Failures come back as *Error values carrying a Kind; IssueFor converts them
// into the connectivity/http issues placed in a validation result. Fetch
// does both steps for exporter endpoints.
package fetch
