// Package report aggregates finalized validation results and renders them
// for people (human, summary) or automation (json). It also derives the
// process exit code.
package report
