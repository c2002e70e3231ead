// Package discovery resolves the set of exporter endpoints to validate: a
// single URL, the well-known exporter ports of one host, or a file listing
// one URL per line.
package discovery
