package validate

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/obsidianstack/promcheck/internal/config"
	"github.com/obsidianstack/promcheck/internal/exposition"
	"github.com/obsidianstack/promcheck/internal/fetch"
	"github.com/obsidianstack/promcheck/internal/rules"
	"github.com/obsidianstack/promcheck/pkg/types"
)

type stage int

const (
	stageFetching stage = iota
	stageParsing
	stageChecking
	stageDone
)

func (s stage) String() string {
	switch s {
	case stageFetching:
		return "FETCHING"
	case stageParsing:
		return "PARSING"
	case stageChecking:
		return "CHECKING"
	default:
		return "DONE"
	}
}

// Fetcher retrieves an exporter payload, reporting failures as issues.
// *fetch.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Response, *types.Issue)
}

// CertChecker inspects the TLS certificate behind endpoint, dialing with
// cfg. It returns nil when there is nothing to report.
type CertChecker func(ctx context.Context, endpoint string, cfg *tls.Config) *types.Issue

// Options tunes a Validator.
type Options struct {
	// StrictParse also runs the reference parser over every payload.
	StrictParse bool

	// Inventory records a summary of every parsed family on the result.
	Inventory bool

	// Certs, when set, is consulted after every successful fetch.
	Certs CertChecker

	// Fetch is the base configuration for clients built for sources that
	// carry their own auth or TLS settings.
	Fetch fetch.Options
}

// Validator validates exporter endpoints.
type Validator struct {
	fetcher Fetcher
	rules   *rules.Engine
	opts    Options
}

// New returns a Validator fetching through f and checking with engine.
func New(f Fetcher, engine *rules.Engine, opts Options) *Validator {
	return &Validator{fetcher: f, rules: engine, opts: opts}
}

// ValidateEndpoint fetches, parses and checks the payload served at url.
func (v *Validator) ValidateEndpoint(ctx context.Context, url string) *types.Result {
	return v.run(ctx, v.fetcher, url, nil)
}

// ValidateSource is ValidateEndpoint for a configured source. Sources with
// their own auth or TLS settings are fetched through a dedicated client
// whose connections are released when the call returns.
func (v *Validator) ValidateSource(ctx context.Context, src config.Source) *types.Result {
	if !needsOwnClient(src) {
		return v.run(ctx, v.fetcher, src.Endpoint, nil)
	}

	opts := v.opts.Fetch
	opts.Auth = src.Auth
	opts.TLS = src.TLS
	tlsCfg, err := fetch.TLSConfig(src.Auth, src.TLS)
	var c *fetch.Client
	if err == nil {
		c, err = fetch.New(opts)
	}
	if err != nil {
		start := time.Now()
		res := types.NewResult(src.Endpoint, start)
		res.Add(types.Critical(types.CategoryError,
			fmt.Sprintf("Invalid client configuration: %v", err)).
			With("source", src.Name()))
		res.Finish(start)
		slog.Error("validate: build client", "source", src.Name(), "err", err)
		return res
	}
	defer c.CloseIdleConnections()
	return v.run(ctx, c, src.Endpoint, tlsCfg)
}

// ValidateText parses and checks a payload that has already been obtained.
// endpoint only labels the result.
func (v *Validator) ValidateText(endpoint, text string) *types.Result {
	start := time.Now()
	res := types.NewResult(endpoint, start)
	v.check(res, text)
	res.Finish(start)
	return res
}

func (v *Validator) run(ctx context.Context, f Fetcher, url string, tlsCfg *tls.Config) *types.Result {
	start := time.Now()
	res := types.NewResult(url, start)
	enter(url, stageFetching)

	resp, iss := f.Fetch(ctx, url)
	if iss != nil {
		res.Add(*iss)
		enter(url, stageDone)
		res.Finish(start)
		slog.Warn("validate: fetch failed", "endpoint", url, "err", iss.Message)
		return res
	}

	if ct := fetch.CheckContentType(resp.ContentType); ct != nil {
		res.Add(*ct)
	}
	if v.opts.Certs != nil {
		if cert := v.opts.Certs(ctx, url, tlsCfg); cert != nil {
			res.Add(*cert)
		}
	}

	v.check(res, string(resp.Body))
	res.Finish(start)
	return res
}

// check runs PARSING and CHECKING over text and ends in DONE.
func (v *Validator) check(res *types.Result, text string) {
	enter(res.Endpoint, stageParsing)
	families, issues := exposition.Parse(text)
	res.Add(issues...)
	if v.opts.StrictParse {
		res.Add(exposition.StrictCheck(text)...)
	}
	res.TotalMetrics = len(families)
	res.TotalSamples = exposition.CountSamples(families)
	res.Series = fingerprints(families)
	if v.opts.Inventory {
		res.Families = make([]types.FamilySummary, 0, len(families))
		for _, f := range families {
			res.Families = append(res.Families, f.Summary())
		}
	}

	enter(res.Endpoint, stageChecking)
	res.Add(v.rules.Run(families)...)

	enter(res.Endpoint, stageDone)
	slog.Debug("validate: endpoint checked",
		"endpoint", res.Endpoint,
		"metrics", res.TotalMetrics,
		"samples", res.TotalSamples,
		"issues", len(res.Issues))
}

func enter(endpoint string, s stage) {
	slog.Debug("validate: stage", "endpoint", endpoint, "stage", s.String())
}

// fingerprints returns the distinct series signatures across families.
func fingerprints(families []*exposition.Family) []uint64 {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, f := range families {
		for _, s := range f.Samples {
			sig := exposition.SeriesSignature(s)
			if _, ok := seen[sig]; ok {
				continue
			}
			seen[sig] = struct{}{}
			out = append(out, sig)
		}
	}
	return out
}

func needsOwnClient(src config.Source) bool {
	mode := src.Auth.Mode
	return (mode != "" && mode != "none") || src.TLS.InsecureSkipVerify
}
