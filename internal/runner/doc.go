// Package runner validates many sources concurrently with a bounded pool of
// workers.
package runner
