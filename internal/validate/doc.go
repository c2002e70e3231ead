// Package validate runs the per-endpoint validation pipeline.
//
// Each endpoint moves through FETCHING, PARSING, CHECKING and DONE. A
// failed fetch goes straight to DONE; parsing and checking are skipped and
// the fetch failure is the only issue. Every path finalizes the result's
// duration exactly once. A Validator holds no per-run state, so one
// Validator may serve any number of concurrent endpoints.
package validate
