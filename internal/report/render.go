package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/obsidianstack/promcheck/pkg/types"
)

// Format selects how results are rendered.
type Format int

const (
	FormatHuman Format = iota
	FormatJSON
	FormatSummary
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatSummary:
		return "summary"
	default:
		return "human"
	}
}

// ParseFormat accepts "human", "json" and "summary".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "human":
		return FormatHuman, nil
	case "json":
		return FormatJSON, nil
	case "summary":
		return FormatSummary, nil
	default:
		return FormatHuman, fmt.Errorf("report: unknown format %q", s)
	}
}

// Options tunes the human-readable renderings.
type Options struct {
	// Verbose prints issue details.
	Verbose bool

	// Color emits ANSI color codes.
	Color bool

	// Quiet drops the trailing summary after the human report.
	Quiet bool
}

// Render writes results to w in format f.
func Render(w io.Writer, f Format, results []*types.Result, opts Options) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, results, time.Now())
	case FormatSummary:
		return WriteSummary(w, results, opts)
	default:
		if err := WriteHuman(w, results, opts); err != nil {
			return err
		}
		if opts.Quiet {
			return nil
		}
		return WriteSummary(w, results, opts)
	}
}

type document struct {
	ValidationTime string          `json:"validation_time"`
	Results        []*types.Result `json:"results"`
	Summary        Summary         `json:"summary"`
}

// WriteJSON writes the machine-readable report stamped with now.
func WriteJSON(w io.Writer, results []*types.Result, now time.Time) error {
	if results == nil {
		results = []*types.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(document{
		ValidationTime: now.Format(time.RFC3339Nano),
		Results:        results,
		Summary:        Summarize(results),
	}); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

const (
	ansiRed    = "\033[91m"
	ansiGreen  = "\033[92m"
	ansiYellow = "\033[93m"
	ansiBlue   = "\033[94m"
	ansiCyan   = "\033[96m"
	ansiBold   = "\033[1m"
	ansiReset  = "\033[0m"
)

// printer accumulates the first write error so rendering code can stay
// linear.
type printer struct {
	w     io.Writer
	color bool
	err   error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// paint wraps s in the given codes when color is enabled.
func (p *printer) paint(s string, codes ...string) string {
	if !p.color || len(codes) == 0 {
		return s
	}
	return strings.Join(codes, "") + s + ansiReset
}

func severityStyle(s types.Severity) (color, symbol string) {
	switch s {
	case types.SeverityCritical:
		return ansiRed, "✗"
	case types.SeverityWarning:
		return ansiYellow, "⚠"
	default:
		return ansiBlue, "ℹ"
	}
}

// WriteHuman writes the detailed report: one block per endpoint with
// issues grouped by category.
func WriteHuman(w io.Writer, results []*types.Result, opts Options) error {
	p := &printer{w: w, color: opts.Color}
	rule := strings.Repeat("=", 80)

	p.printf("\n%s\n", p.paint(rule, ansiBold))
	p.printf("%s\n", p.paint("Prometheus Exporter Validation Report", ansiBold))
	p.printf("%s\n\n", p.paint(rule, ansiBold))

	for _, r := range results {
		writeResult(p, r, opts.Verbose)
	}
	return p.err
}

func writeResult(p *printer, r *types.Result, verbose bool) {
	p.printf("%s %s\n", p.paint("Endpoint:", ansiCyan, ansiBold), r.Endpoint)
	p.printf("%s %s\n", p.paint("Timestamp:", ansiCyan), r.Timestamp.Format(time.DateTime))
	p.printf("%s %.2fms\n", p.paint("Duration:", ansiCyan), float64(r.Duration)/float64(time.Millisecond))
	p.printf("%s %d\n", p.paint("Metrics:", ansiCyan), r.TotalMetrics)
	p.printf("%s %d\n\n", p.paint("Samples:", ansiCyan), r.TotalSamples)

	if len(r.Issues) == 0 {
		p.printf("%s\n\n", p.paint("✓ All checks passed!", ansiGreen, ansiBold))
	} else {
		p.printf("%s\n", p.paint("Issues Found:", ansiBold))
		if n := r.Count(types.SeverityCritical); n > 0 {
			p.printf("  %s\n", p.paint(fmt.Sprintf("● Critical: %d", n), ansiRed))
		}
		if n := r.Count(types.SeverityWarning); n > 0 {
			p.printf("  %s\n", p.paint(fmt.Sprintf("● Warnings: %d", n), ansiYellow))
		}
		if n := r.Count(types.SeverityInfo); n > 0 {
			p.printf("  %s\n", p.paint(fmt.Sprintf("● Info: %d", n), ansiBlue))
		}
		p.printf("\n")

		for _, cat := range categories(r.Issues) {
			p.printf("%s\n", p.paint(strings.ToUpper(string(cat))+":", ansiBold))
			for _, iss := range r.ByCategory(cat) {
				writeIssue(p, iss, verbose)
			}
			p.printf("\n")
		}
	}

	p.printf("%s\n\n", p.paint(strings.Repeat("-", 80), ansiBold))
}

func writeIssue(p *printer, iss types.Issue, verbose bool) {
	color, symbol := severityStyle(iss.Severity)
	line := symbol + " " + iss.Message
	if iss.MetricName != "" {
		line += " [" + iss.MetricName + "]"
	}
	p.printf("  %s\n", p.paint(line, color))

	if !verbose || len(iss.Details) == 0 {
		return
	}
	keys := make([]string, 0, len(iss.Details))
	for k := range iss.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.printf("    %s %v\n", p.paint(k+":", ansiCyan), iss.Details[k])
	}
}

// categories returns the distinct categories of issues in sorted order.
func categories(issues []types.Issue) []types.Category {
	seen := make(map[types.Category]struct{})
	var out []types.Category
	for _, iss := range issues {
		if _, ok := seen[iss.Category]; ok {
			continue
		}
		seen[iss.Category] = struct{}{}
		out = append(out, iss.Category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WriteSummary writes the endpoint totals only.
func WriteSummary(w io.Writer, results []*types.Result, opts Options) error {
	p := &printer{w: w, color: opts.Color}
	s := Summarize(results)

	p.printf("\n%s\n", p.paint("Summary:", ansiBold))
	p.printf("  Total endpoints: %d\n", s.TotalEndpoints)
	p.printf("  %s\n", p.paint(fmt.Sprintf("Passed: %d", s.Passed), ansiGreen))
	p.printf("  %s\n", p.paint(fmt.Sprintf("Warnings: %d", s.Warnings), ansiYellow))
	p.printf("  %s\n", p.paint(fmt.Sprintf("Failed: %d", s.Failed), ansiRed))
	p.printf("  Issues: %d critical, %d warning, %d info\n", s.Critical, s.Warning, s.Info)
	if s.EstimatedSeries > 0 {
		p.printf("  Estimated series: %d\n", s.EstimatedSeries)
	}
	p.printf("\n")
	return p.err
}
