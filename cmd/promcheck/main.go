package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/promcheck/internal/config"
	"github.com/obsidianstack/promcheck/internal/controlplane"
	"github.com/obsidianstack/promcheck/internal/discovery"
	"github.com/obsidianstack/promcheck/internal/fetch"
	"github.com/obsidianstack/promcheck/internal/report"
	"github.com/obsidianstack/promcheck/internal/rules"
	"github.com/obsidianstack/promcheck/internal/runner"
	"github.com/obsidianstack/promcheck/internal/security"
	"github.com/obsidianstack/promcheck/internal/validate"
	"github.com/obsidianstack/promcheck/pkg/types"
)

const usage = `Validate Prometheus exporter metrics and health.

Examples:
  # Validate a single exporter
  promcheck --endpoint http://localhost:9100/metrics

  # Validate with Prometheus integration
  promcheck --endpoint http://localhost:9100/metrics \
            --prometheus http://prometheus:9090 --job node_exporter

  # Scan all exporters on a host
  promcheck --scan-host localhost --prometheus http://prometheus:9090

  # JSON output for automation
  promcheck --endpoint http://localhost:9100/metrics --json

Exit codes:
  0  all checks passed
  1  warnings detected
  2  critical errors detected

Flags:
`

// options holds the parsed command line.
type options struct {
	configPath    string
	format        string
	sel           discovery.Selection
	prometheus    string
	job           string
	maxCard       int
	staleness     int
	timeout       int
	concurrency   int
	jsonOut       bool
	summaryOnly   bool
	verbose       bool
	quiet         bool
	noColor       bool
	exitOnWarning bool
	strictParse   bool
	inventory     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one validation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs, opts := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return types.ExitOK
		}
		return types.ExitCritical
	}

	setupLogging(stderr, opts.verbose, opts.quiet)

	format, err := outputFormat(opts)
	if err != nil {
		slog.Error("invalid output format", "err", err)
		return types.ExitCritical
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		return types.ExitCritical
	}
	applyFlags(cfg, fs, opts)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		return types.ExitCritical
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetchOpts := fetch.Options{
		Timeout:      cfg.Validator.Timeout,
		MaxBodyBytes: cfg.Validator.MaxBodyBytes,
	}
	client, err := fetch.New(fetchOpts)
	if err != nil {
		slog.Error("failed to build http client", "err", err)
		return types.ExitCritical
	}
	defer client.CloseIdleConnections()

	sources, err := resolveSources(ctx, opts.sel, cfg)
	if err != nil {
		slog.Error("no endpoints to validate", "err", err)
		return types.ExitCritical
	}

	var certs validate.CertChecker
	if cfg.Validator.CheckCerts {
		certs = security.Check
	}
	engine := rules.New(rules.Config{
		MaxCardinality:     cfg.Validator.MaxCardinality,
		StalenessThreshold: cfg.Validator.StalenessThreshold,
	})
	v := validate.New(client, engine, validate.Options{
		StrictParse: cfg.Validator.StrictParse,
		Inventory:   opts.inventory,
		Certs:       certs,
		Fetch:       fetchOpts,
	})

	slog.Info("promcheck starting",
		"sources", len(sources),
		"concurrency", cfg.Validator.Concurrency,
		"control_plane", cfg.ControlPlane.URL)

	results := runner.Run(ctx, v, sources, cfg.Validator.Concurrency)

	if cp := cfg.ControlPlane; cp.URL != "" {
		res, err := checkControlPlane(ctx, cp, fetchOpts, cfg.Validator.SlowScrapeThreshold)
		if err != nil {
			slog.Error("failed to build control plane client", "err", err)
			return types.ExitCritical
		}
		results = append(results, res)
	}

	renderOpts := report.Options{
		Verbose: opts.verbose,
		Color:   useColor(stdout, opts.noColor),
		Quiet:   opts.quiet,
	}
	if err := report.Render(stdout, format, results, renderOpts); err != nil {
		slog.Error("failed to write report", "err", err)
		return types.ExitCritical
	}
	return report.ExitCode(results, opts.exitOnWarning)
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet("promcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&o.configPath, "config", "", "path to config file (optional)")
	fs.StringVar(&o.sel.Endpoint, "endpoint", "", "single exporter endpoint URL")
	fs.StringVar(&o.sel.ScanHost, "scan-host", "", "scan common exporter ports on host")
	fs.StringVar(&o.sel.EndpointsFile, "endpoints-file", "", "file containing one endpoint URL per line")
	fs.StringVar(&o.prometheus, "prometheus", "", "Prometheus server URL for integration checks")
	fs.StringVar(&o.job, "job", "", "Prometheus job name to filter targets")
	fs.IntVar(&o.maxCard, "max-cardinality", config.DefaultMaxCardinality, "maximum allowed samples per metric family")
	fs.IntVar(&o.staleness, "staleness-threshold", int(config.DefaultStalenessThreshold/time.Second), "maximum metric age in seconds")
	fs.IntVar(&o.timeout, "timeout", int(config.DefaultTimeout/time.Second), "HTTP request timeout in seconds")
	fs.IntVar(&o.concurrency, "concurrency", config.DefaultConcurrency, "endpoints validated in parallel")
	fs.StringVar(&o.format, "format", "human", "output format: human, json or summary")
	fs.BoolVar(&o.jsonOut, "json", false, "output results in JSON format (same as --format json)")
	fs.BoolVar(&o.summaryOnly, "summary-only", false, "only print the summary (same as --format summary)")
	fs.BoolVar(&o.verbose, "verbose", false, "enable verbose output")
	fs.BoolVar(&o.verbose, "v", false, "shorthand for --verbose")
	fs.BoolVar(&o.quiet, "quiet", false, "suppress non-error output")
	fs.BoolVar(&o.quiet, "q", false, "shorthand for --quiet")
	fs.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	fs.BoolVar(&o.exitOnWarning, "exit-on-warning", false, "exit with code 1 on warnings (stricter CI mode)")
	fs.BoolVar(&o.strictParse, "strict-parse", false, "also check payloads with the reference exposition parser")
	fs.BoolVar(&o.inventory, "inventory", false, "include a per-family inventory in JSON output")
	return fs, o
}

// outputFormat resolves --format, letting --json and --summary-only
// override it.
func outputFormat(o *options) (report.Format, error) {
	switch {
	case o.jsonOut:
		return report.FormatJSON, nil
	case o.summaryOnly:
		return report.FormatSummary, nil
	}
	return report.ParseFormat(o.format)
}

func setupLogging(w io.Writer, verbose, quiet bool) {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyFlags overrides config values with flags given explicitly.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, o *options) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-cardinality":
			cfg.Validator.MaxCardinality = o.maxCard
		case "staleness-threshold":
			cfg.Validator.StalenessThreshold = time.Duration(o.staleness) * time.Second
		case "timeout":
			cfg.Validator.Timeout = time.Duration(o.timeout) * time.Second
		case "concurrency":
			cfg.Validator.Concurrency = o.concurrency
		case "strict-parse":
			cfg.Validator.StrictParse = o.strictParse
		case "prometheus":
			cfg.ControlPlane.URL = o.prometheus
		case "job":
			cfg.ControlPlane.Job = o.job
		}
	})
}

// resolveSources picks the endpoints from the command line, falling back
// to the config file when no endpoint flag is given. A control plane alone
// is not an endpoint source.
func resolveSources(ctx context.Context, sel discovery.Selection, cfg *config.Config) ([]config.Source, error) {
	scanner := discovery.Scanner{Client: &http.Client{}}
	endpoints, err := discovery.Resolve(ctx, sel, scanner)
	switch {
	case err == nil:
		return runner.Sources(endpoints), nil
	case errors.Is(err, discovery.ErrNoMode) && len(cfg.Endpoints) > 0:
		return cfg.Endpoints, nil
	default:
		return nil, err
	}
}

func checkControlPlane(ctx context.Context, cp config.ControlPlaneConfig, base fetch.Options, slow time.Duration) (*types.Result, error) {
	opts := base
	opts.Auth = cp.Auth
	opts.TLS = cp.TLS
	client, err := fetch.New(opts)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()
	checker := controlplane.New(client)
	checker.SlowScrape = slow
	return checker.CheckTargets(ctx, cp.URL, cp.Job), nil
}

// useColor reports whether w is a terminal and color was not disabled.
func useColor(w io.Writer, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
