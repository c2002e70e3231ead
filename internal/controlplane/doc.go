// Package controlplane cross-checks exporters against a Prometheus server.
//
// Rather than scraping an exporter directly, the checker asks Prometheus
// how its own scrapes of the exporter are going by reading the
// /api/v1/targets endpoint, and reports targets that are down or slow.
package controlplane
