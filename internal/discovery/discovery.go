package discovery

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Resolution errors.
var (
	ErrConflictingModes = errors.New("discovery: only one of endpoint, scan host or endpoints file may be set")
	ErrNoMode           = errors.New("discovery: no endpoint, scan host or endpoints file given")
	ErrNoEndpoints      = errors.New("discovery: no endpoints found")
)

// DefaultProbeTimeout bounds each port probe.
const DefaultProbeTimeout = 2 * time.Second

// Port is a well-known exporter port.
type Port struct {
	Number   int
	Exporter string
}

// WellKnownPorts lists the ports a Scanner probes by default, in order.
var WellKnownPorts = []Port{
	{9100, "node_exporter"},
	{9090, "prometheus"},
	{9093, "alertmanager"},
	{9091, "pushgateway"},
	{9104, "mysqld_exporter"},
	{9187, "postgres_exporter"},
	{9216, "mongodb_exporter"},
	{9308, "kafka_exporter"},
	{9117, "apache_exporter"},
	{9113, "nginx_exporter"},
}

// Scanner probes a host for exporters.
type Scanner struct {
	Client  *http.Client
	Ports   []Port
	Timeout time.Duration
}

// Scan probes every port of s concurrently, WellKnownPorts when none are
// set, and returns the metrics URLs that answered 200 in port order.
// Unreachable ports and non-200 answers are skipped.
func (s Scanner) Scan(ctx context.Context, host string) []string {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ports := s.Ports
	if ports == nil {
		ports = WellKnownPorts
	}

	found := make([]bool, len(ports))
	var g errgroup.Group
	for i, p := range ports {
		i, p := i, p
		g.Go(func() error {
			url := metricsURL(host, p.Number)
			if probe(ctx, client, url, timeout) {
				found[i] = true
				slog.Info("discovery: found exporter", "exporter", p.Exporter, "url", url)
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for i, ok := range found {
		if ok {
			out = append(out, metricsURL(host, ports[i].Number))
		}
	}
	return out
}

func metricsURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/metrics"
}

func probe(ctx context.Context, client *http.Client, url string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Debug("discovery: probe failed", "url", url, "err", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return resp.StatusCode == http.StatusOK
}

// ReadEndpointsFile reads one URL per line. Blank lines and lines starting
// with '#' are skipped.
func ReadEndpointsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: open endpoints file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("discovery: read endpoints file: %w", err)
	}
	return out, nil
}

// Selection names the endpoint source chosen on the command line. Exactly
// one field must be set.
type Selection struct {
	Endpoint      string
	ScanHost      string
	EndpointsFile string
}

func (s Selection) modes() int {
	var n int
	for _, v := range []string{s.Endpoint, s.ScanHost, s.EndpointsFile} {
		if v != "" {
			n++
		}
	}
	return n
}

// Resolve turns sel into endpoint URLs, scanning with scanner when a host
// is selected.
func Resolve(ctx context.Context, sel Selection, scanner Scanner) ([]string, error) {
	switch sel.modes() {
	case 0:
		return nil, ErrNoMode
	case 1:
	default:
		return nil, ErrConflictingModes
	}

	var endpoints []string
	switch {
	case sel.Endpoint != "":
		endpoints = []string{sel.Endpoint}
	case sel.ScanHost != "":
		endpoints = scanner.Scan(ctx, sel.ScanHost)
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("%w on %s", ErrNoEndpoints, sel.ScanHost)
		}
	default:
		var err error
		if endpoints, err = ReadEndpointsFile(sel.EndpointsFile); err != nil {
			return nil, err
		}
		if len(endpoints) == 0 {
			return nil, fmt.Errorf("%w in %s", ErrNoEndpoints, sel.EndpointsFile)
		}
	}
	return endpoints, nil
}
