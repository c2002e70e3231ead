// Package types defines the validation data model shared by every promcheck
// package: severities, issue categories, issues and per-endpoint results.
// Results derive their process exit code from the worst issue they hold.
package types
